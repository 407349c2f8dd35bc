package http

import (
	"encoding/json"
	"errors"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tinylink/pkg/logging"
	"tinylink/pkg/service"
	"tinylink/pkg/storage"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	linkService *service.LinkService
	baseURL     string
	logger      *logging.Logger
}

// NewHandler builds short URLs from baseURL, or from the request when it is
// empty.
func NewHandler(linkService *service.LinkService, baseURL string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		linkService: linkService,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger,
	}
}

type CreateLinkResponse struct {
	ShortURL  string     `json:"short_url"`
	Slug      string     `json:"slug"`
	LongURL   string     `json:"long_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	req, err := decodeCreateRequest(r)
	if err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	link, err := h.linkService.CreateLink(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateLinkResponse{
		ShortURL:  h.shortURL(r, link.Slug),
		Slug:      link.Slug,
		LongURL:   link.TargetURL,
		ExpiresAt: link.ExpiresAt,
	})
}

// decodeCreateRequest accepts JSON or a url-encoded/multipart form.
func decodeCreateRequest(r *http.Request) (*service.CreateLinkRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" && mediaType != "multipart/form-data" {
		var req service.CreateLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}
	req := &service.CreateLinkRequest{LongURL: r.PostFormValue("long_url")}
	if v := r.PostFormValue("custom_slug"); v != "" {
		req.CustomSlug = &v
	}
	if v := r.PostFormValue("expires_at"); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		req.ExpiresAt = &at
	}
	if v := r.PostFormValue("expires_in"); v != "" {
		seconds, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		req.ExpiresIn = &seconds
	}
	return req, nil
}

func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	target, err := h.linkService.Redirect(r.Context(), chi.URLParam(r, "slug"), service.ClickInput{
		Referrer:  r.Referer(),
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.linkService.GetLink(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, linkView{ShortLink: link, ShortURL: h.shortURL(r, link.Slug)})
}

type linkView struct {
	*storage.ShortLink
	ShortURL string `json:"short_url"`
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.linkService.Stats(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.linkService.DeleteLink(r.Context(), chi.URLParam(r, "slug")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrInvalidSlug),
		errors.Is(err, service.ErrInvalidExpiry),
		errors.Is(err, service.ErrReservedSlug):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrSlugTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, service.ErrExpired):
		http.Error(w, "gone", http.StatusGone)
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) shortURL(r *http.Request, slug string) string {
	base := h.baseURL
	if base == "" {
		base = requestBaseURL(r)
	}
	return base + "/" + slug
}

// requestBaseURL honours X-Forwarded-Proto and X-Forwarded-Host from a
// fronting proxy.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(r, "X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	host := r.Host
	if fwd := firstHeaderValue(r, "X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host
}

func firstHeaderValue(r *http.Request, name string) string {
	v, _, _ := strings.Cut(r.Header.Get(name), ",")
	return strings.TrimSpace(v)
}

// clientIP reads RemoteAddr, which chi's RealIP middleware has already
// replaced with the forwarded address when one was sent.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
