package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tinylink/pkg/analytics"
	"tinylink/pkg/base62"
	"tinylink/pkg/cache"
	"tinylink/pkg/logging"
	"tinylink/pkg/metrics"
	"tinylink/pkg/slug"
	"tinylink/pkg/storage"
	"tinylink/pkg/useragent"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultCacheTTL  = 24 * time.Hour
	negativeCacheTTL = 5 * time.Minute
)

type Options struct {
	Reserved   slug.ReservedSet
	Codec      *base62.Codec
	Classifier *useragent.Classifier
	Metrics    *metrics.Metrics
	CacheTTL   time.Duration
	Now        func() time.Time
}

type LinkService struct {
	links      storage.LinkStorage
	clicks     storage.ClickStorage
	cache      cache.LinkCacheInterface
	logger     *logging.Logger
	allocator  *Allocator
	classifier *useragent.Classifier
	aggregator *analytics.Aggregator
	metrics    *metrics.Metrics
	cacheTTL   time.Duration
	now        func() time.Time
}

// NewLinkService wires the service. linkCache may be nil, which disables
// caching; zero Options fields get defaults.
func NewLinkService(links storage.LinkStorage, clicks storage.ClickStorage, linkCache cache.LinkCacheInterface, logger *logging.Logger, opts Options) *LinkService {
	if len(opts.Reserved.Words()) == 0 {
		opts.Reserved = slug.DefaultReservedSet()
	}
	if opts.Classifier == nil {
		opts.Classifier = useragent.NewClassifier(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &LinkService{
		links:      links,
		clicks:     clicks,
		cache:      linkCache,
		logger:     logger,
		allocator:  NewAllocator(links, opts.Codec, opts.Reserved),
		classifier: opts.Classifier,
		aggregator: analytics.NewAggregator(opts.Now),
		metrics:    opts.Metrics,
		cacheTTL:   opts.CacheTTL,
		now:        opts.Now,
	}
}

type CreateLinkRequest struct {
	LongURL    string     `json:"long_url"`
	CustomSlug *string    `json:"custom_slug,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	// ExpiresIn is a lifetime in seconds, used when ExpiresAt is unset.
	ExpiresIn *int64 `json:"expires_in,omitempty"`
}

// ClickInput is the raw request data captured at redirect time.
type ClickInput struct {
	Referrer  string
	UserAgent string
	IPAddress string
}

// LinkStats is the read-time analytics view of one link.
type LinkStats struct {
	Link *storage.ShortLink `json:"link"`
	*analytics.Stats
}

// CreateLink validates the target, then claims either the requested custom
// slug or the next auto slug.
func (s *LinkService) CreateLink(ctx context.Context, req *CreateLinkRequest) (*storage.ShortLink, error) {
	if !slug.IsValidURL(req.LongURL) {
		s.logger.LogURLValidation(ctx, false, "")
		return nil, ErrInvalidURL
	}
	scheme := "http"
	if strings.HasPrefix(req.LongURL, "https://") {
		scheme = "https"
	}
	s.logger.LogURLValidation(ctx, true, scheme)

	now := s.now().UTC()
	expiresAt, err := resolveExpiry(req, now)
	if err != nil {
		return nil, err
	}

	var (
		link *storage.ShortLink
		path string
	)
	if req.CustomSlug != nil && *req.CustomSlug != "" {
		path = pathCustom
		link, err = s.allocator.AllocateCustom(ctx, *req.CustomSlug, req.LongURL, now, expiresAt)
	} else {
		path = pathAuto
		link, err = s.allocator.AllocateAuto(ctx, req.LongURL, now, expiresAt)
	}
	if err != nil {
		s.logger.Warn(ctx, "link creation failed", "path", path, "error", err)
		return nil, err
	}

	// Overwrites any negative entry left by an earlier miss.
	s.populate(ctx, link.Slug, link)
	s.metrics.LinksCreated.WithLabelValues(path).Inc()
	s.logger.LogLinkOperation(ctx, "create", link.Slug, true)
	return link, nil
}

func resolveExpiry(req *CreateLinkRequest, now time.Time) (*time.Time, error) {
	var expiresAt time.Time
	switch {
	case req.ExpiresAt != nil:
		expiresAt = req.ExpiresAt.UTC()
	case req.ExpiresIn != nil:
		if *req.ExpiresIn <= 0 {
			return nil, ErrInvalidExpiry
		}
		expiresAt = now.Add(time.Duration(*req.ExpiresIn) * time.Second)
	default:
		return nil, nil
	}
	if !expiresAt.After(now) {
		return nil, ErrInvalidExpiry
	}
	return &expiresAt, nil
}

// Resolve returns a usable link: ErrNotFound when the slug is unknown and
// ErrExpired when its expiry has passed.
func (s *LinkService) Resolve(ctx context.Context, slugText string) (*storage.ShortLink, error) {
	link, err := s.lookup(ctx, slugText)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotFound
	}
	if link.IsExpired(s.now()) {
		return nil, ErrExpired
	}
	return link, nil
}

// Redirect resolves slugText and records the click. Click recording never
// changes the outcome.
func (s *LinkService) Redirect(ctx context.Context, slugText string, in ClickInput) (string, error) {
	link, err := s.Resolve(ctx, slugText)
	if err != nil {
		s.metrics.Redirects.WithLabelValues(redirectOutcome(err)).Inc()
		return "", err
	}

	s.RecordClick(ctx, link, in)
	s.metrics.Redirects.WithLabelValues(metrics.OutcomeFound).Inc()
	return link.TargetURL, nil
}

func redirectOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrExpired):
		return metrics.OutcomeExpired
	default:
		return metrics.OutcomeError
	}
}

// RecordClick is best effort: failures are logged, counted and dropped.
func (s *LinkService) RecordClick(ctx context.Context, link *storage.ShortLink, in ClickInput) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.ClickRecordFailures.Inc()
			s.logger.Error(ctx, "click recording panicked", "slug", link.Slug, "panic", fmt.Sprint(r))
		}
	}()

	info := s.classifier.Classify(in.UserAgent)
	click := &storage.ClickEvent{
		LinkID:     link.ID,
		Timestamp:  s.now().UTC(),
		Referrer:   optional(in.Referrer),
		UserAgent:  optional(in.UserAgent),
		IPAddress:  optional(in.IPAddress),
		DeviceType: &info.DeviceType,
		Browser:    &info.Browser,
		OS:         &info.OS,
	}

	// The client may hang up once it has the redirect.
	if err := s.clicks.Record(context.WithoutCancel(ctx), click); err != nil {
		s.metrics.ClickRecordFailures.Inc()
		s.logger.Warn(ctx, "failed to record click",
			"slug", link.Slug,
			"ip", logging.MaskSensitive(in.IPAddress),
			"error", err,
		)
		return
	}
	s.metrics.ClicksRecorded.Inc()
}

// GetLink returns the stored record, expired or not.
func (s *LinkService) GetLink(ctx context.Context, slugText string) (*storage.ShortLink, error) {
	link, err := s.lookup(ctx, slugText)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotFound
	}
	return link, nil
}

// Stats aggregates the full click history. Expired links keep their stats.
func (s *LinkService) Stats(ctx context.Context, slugText string) (*LinkStats, error) {
	link, err := s.links.GetBySlug(ctx, slugText)
	if err != nil {
		return nil, storageFailure("get link", err)
	}
	if link == nil {
		return nil, ErrNotFound
	}

	clicks, err := s.clicks.ListByLink(ctx, link.ID)
	if err != nil {
		return nil, storageFailure("list clicks", err)
	}
	total, err := s.clicks.CountByLink(ctx, link.ID)
	if err != nil {
		return nil, storageFailure("count clicks", err)
	}

	return &LinkStats{Link: link, Stats: s.aggregator.Compute(link, clicks, total)}, nil
}

// DeleteLink removes the link and, through the store, its clicks.
func (s *LinkService) DeleteLink(ctx context.Context, slugText string) error {
	deleted, err := s.links.Delete(ctx, slugText)
	if err != nil {
		return storageFailure("delete link", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.invalidate(ctx, slugText)
	s.logger.LogLinkOperation(ctx, "delete", slugText, true)
	return nil
}

// lookup is cache-aside over GetBySlug. Unknown slugs are cached briefly as
// negative entries. Cache failures fall through to storage.
func (s *LinkService) lookup(ctx context.Context, slugText string) (*storage.ShortLink, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, slugText)
		switch {
		case err != nil:
			s.metrics.CacheLookups.WithLabelValues("error").Inc()
			s.logger.Warn(ctx, "cache get failed", "slug", slugText, "error", err)
		case cached != nil:
			s.metrics.CacheLookups.WithLabelValues("hit").Inc()
			if cached.NotFound {
				return nil, nil
			}
			return &storage.ShortLink{
				ID:        cached.ID,
				Slug:      slugText,
				TargetURL: cached.TargetURL,
				CreatedAt: cached.CreatedAt,
				ExpiresAt: cached.ExpiresAt,
			}, nil
		default:
			s.metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}

	link, err := s.links.GetBySlug(ctx, slugText)
	if err != nil {
		return nil, storageFailure("get link", err)
	}
	s.populate(ctx, slugText, link)
	return link, nil
}

// populate caches link, or a negative entry when link is nil. Negative
// entries never replace an existing one, so a miss that races a create
// cannot hide the new link.
func (s *LinkService) populate(ctx context.Context, slugText string, link *storage.ShortLink) {
	if s.cache == nil {
		return
	}

	var err error
	if link == nil {
		_, err = s.cache.SetIfAbsent(ctx, slugText, &cache.CachedLink{NotFound: true}, negativeCacheTTL)
	} else {
		err = s.cache.Set(ctx, slugText, &cache.CachedLink{
			ID:        link.ID,
			TargetURL: link.TargetURL,
			CreatedAt: link.CreatedAt,
			ExpiresAt: link.ExpiresAt,
		}, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn(ctx, "cache set failed", "slug", slugText, "error", err)
	}
}

func (s *LinkService) invalidate(ctx context.Context, slugText string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, slugText); err != nil {
		s.logger.Warn(ctx, "cache delete failed", "slug", slugText, "error", err)
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
