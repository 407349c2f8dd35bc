package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStorage keeps links and clicks in process memory. Transactions are
// serialized by a single mutex and staged writes are applied on commit, so it
// honours the same uniqueness and sequence guarantees as PostgresStorage.
type MemoryStorage struct {
	mu          sync.Mutex
	lastLinkID  int64
	lastClickID int64
	links       map[string]*ShortLink
	slugsByID   map[int64]string
	clicks      map[int64][]ClickEvent
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		links:     make(map[string]*ShortLink),
		slugsByID: make(map[int64]string),
		clicks:    make(map[int64][]ClickEvent),
	}
}

func (s *MemoryStorage) Close() {}

func (s *MemoryStorage) WithTx(ctx context.Context, fn func(tx LinkTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryLinkTx{s: s, staged: make(map[string]*ShortLink)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for slug, link := range tx.staged {
		s.links[slug] = link
		s.slugsByID[link.ID] = slug
	}
	return nil
}

func (s *MemoryStorage) GetBySlug(ctx context.Context, slug string) (*ShortLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[slug]
	if !ok {
		return nil, nil
	}
	copied := *link
	return &copied, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[slug]
	if !ok {
		return false, nil
	}
	delete(s.links, slug)
	delete(s.slugsByID, link.ID)
	delete(s.clicks, link.ID)
	return true, nil
}

func (s *MemoryStorage) Record(ctx context.Context, click *ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slugsByID[click.LinkID]; !ok {
		return fmt.Errorf("failed to record click: link %d does not exist", click.LinkID)
	}

	s.lastClickID++
	click.ID = s.lastClickID
	if click.Timestamp.IsZero() {
		click.Timestamp = time.Now().UTC()
	}
	s.clicks[click.LinkID] = append(s.clicks[click.LinkID], *click)
	return nil
}

func (s *MemoryStorage) ListByLink(ctx context.Context, linkID int64) ([]ClickEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clicks := append([]ClickEvent(nil), s.clicks[linkID]...)
	sort.SliceStable(clicks, func(i, j int) bool {
		if clicks[i].Timestamp.Equal(clicks[j].Timestamp) {
			return clicks[i].ID < clicks[j].ID
		}
		return clicks[i].Timestamp.Before(clicks[j].Timestamp)
	})
	return clicks, nil
}

func (s *MemoryStorage) CountByLink(ctx context.Context, linkID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.clicks[linkID])), nil
}

// memoryLinkTx runs with the store mutex held.
type memoryLinkTx struct {
	s      *MemoryStorage
	staged map[string]*ShortLink
}

func (t *memoryLinkTx) NextID(ctx context.Context) (int64, error) {
	t.s.lastLinkID++
	return t.s.lastLinkID, nil
}

func (t *memoryLinkTx) SlugExists(ctx context.Context, slug string) (bool, error) {
	_, committed := t.s.links[slug]
	_, staged := t.staged[slug]
	return committed || staged, nil
}

func (t *memoryLinkTx) Insert(ctx context.Context, link *ShortLink) error {
	if exists, _ := t.SlugExists(ctx, link.Slug); exists {
		return ErrDuplicateSlug
	}
	if link.ID == 0 {
		id, _ := t.NextID(ctx)
		link.ID = id
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	copied := *link
	t.staged[link.Slug] = &copied
	return nil
}
