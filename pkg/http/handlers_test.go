package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tinylink/pkg/service"
	"tinylink/pkg/storage"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, baseURL string) (*chi.Mux, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	svc := service.NewLinkService(store, store, nil, nil, service.Options{})

	allowAll := func(next http.Handler) http.Handler { return next }
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	SetupRoutes(r, NewHandler(svc, baseURL, nil), allowAll, nil)
	return r, store
}

func do(r http.Handler, method, target, contentType, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateLinkJSON(t *testing.T) {
	r, _ := setupRouter(t, "https://sho.rt/")

	w := do(r, http.MethodPost, "/v1/links", "application/json", `{"long_url":"https://example.com/docs"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp CreateLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "000001", resp.Slug)
	assert.Equal(t, "https://sho.rt/000001", resp.ShortURL)
	assert.Equal(t, "https://example.com/docs", resp.LongURL)
	assert.Nil(t, resp.ExpiresAt)
}

func TestCreateLinkForm(t *testing.T) {
	r, _ := setupRouter(t, "")

	form := url.Values{"long_url": {"https://example.com/form"}, "custom_slug": {"My-Promo"}, "expires_in": {"3600"}}
	w := do(r, http.MethodPost, "/shorten", "application/x-www-form-urlencoded", form.Encode(),
		"X-Forwarded-Proto", "https", "X-Forwarded-Host", "links.example.org")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp CreateLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "my-promo", resp.Slug)
	assert.Equal(t, "https://links.example.org/my-promo", resp.ShortURL)
	require.NotNil(t, resp.ExpiresAt)
}

func TestCreateLinkErrors(t *testing.T) {
	r, _ := setupRouter(t, "")

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/shorten", "application/json", `{"long_url":"https://example.com","custom_slug":"taken"}`).Code)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"long_url":`, http.StatusBadRequest},
		{"invalid url", `{"long_url":"example.com"}`, http.StatusBadRequest},
		{"reserved slug", `{"long_url":"https://example.com","custom_slug":"Stats"}`, http.StatusBadRequest},
		{"invalid slug", `{"long_url":"https://example.com","custom_slug":"ab"}`, http.StatusBadRequest},
		{"past expiry", `{"long_url":"https://example.com","expires_at":"2001-01-01T00:00:00Z"}`, http.StatusBadRequest},
		{"taken slug", `{"long_url":"https://example.com","custom_slug":"TAKEN"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/v1/links", "application/json", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRedirectRecordsClick(t *testing.T) {
	r, store := setupRouter(t, "")

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/v1/links", "application/json", `{"long_url":"https://example.com/landing","custom_slug":"go-here"}`).Code)

	w := do(r, http.MethodGet, "/go-here", "", "",
		"Referer", "https://news.example.com/post",
		"User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"X-Real-IP", "198.51.100.23")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/landing", w.Header().Get("Location"))

	link, err := store.GetBySlug(context.Background(), "go-here")
	require.NoError(t, err)
	clicks, err := store.ListByLink(context.Background(), link.ID)
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	assert.Equal(t, "198.51.100.23", *clicks[0].IPAddress)
	assert.Equal(t, "https://news.example.com/post", *clicks[0].Referrer)
	assert.Equal(t, "mobile", *clicks[0].DeviceType)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/missing", "", "").Code)
}

func TestRedirectExpired(t *testing.T) {
	store := storage.NewMemoryStorage()
	now := time.Now().UTC()
	clock := func() time.Time { return now }
	svc := service.NewLinkService(store, store, nil, nil, service.Options{Now: clock})
	r := chi.NewRouter()
	SetupRedirectRoutes(r, NewHandler(svc, "", nil), nil)

	lifetime := int64(1)
	_, err := svc.CreateLink(context.Background(), &service.CreateLinkRequest{LongURL: "https://example.com", CustomSlug: strPtr("brief"), ExpiresIn: &lifetime})
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	assert.Equal(t, http.StatusGone, do(r, http.MethodGet, "/brief", "", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/v1/links/brief", "", "").Code)
}

func TestGetLinkAndStats(t *testing.T) {
	r, _ := setupRouter(t, "https://sho.rt")

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/v1/links", "application/json", `{"long_url":"https://example.com/x","custom_slug":"xyz"}`).Code)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusFound, do(r, http.MethodGet, "/xyz", "", "", "X-Real-IP", "10.1.1.1").Code)
	}

	w := do(r, http.MethodGet, "/v1/links/xyz", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var link map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	assert.Equal(t, "xyz", link["slug"])
	assert.Equal(t, "https://example.com/x", link["long_url"])
	assert.Equal(t, "https://sho.rt/xyz", link["short_url"])

	for _, path := range []string{"/stats/xyz", "/v1/links/xyz/stats"} {
		w = do(r, http.MethodGet, path, "", "")
		require.Equal(t, http.StatusOK, w.Code)
		var stats map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, float64(3), stats["total_clicks"])
		assert.Equal(t, float64(1), stats["unique_visitors"])
		assert.Len(t, stats["recent_clicks"], 3)
		assert.Contains(t, stats, "link")
	}

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/stats/none", "", "").Code)
}

func TestDeleteLink(t *testing.T) {
	r, _ := setupRouter(t, "")

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/v1/links", "application/json", `{"long_url":"https://example.com","custom_slug":"bye"}`).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/v1/links/bye", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/v1/links/bye", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/bye", "", "").Code)
}

func TestDeleteRouteNotMountedWithoutAuth(t *testing.T) {
	store := storage.NewMemoryStorage()
	svc := service.NewLinkService(store, store, nil, nil, service.Options{})
	r := chi.NewRouter()
	SetupRoutes(r, NewHandler(svc, "", nil), nil, nil)

	assert.Equal(t, http.StatusMethodNotAllowed, do(r, http.MethodDelete, "/v1/links/any", "", "").Code)
}

func TestWriteErrorHidesStorageCause(t *testing.T) {
	h := NewHandler(nil, "", nil)
	w := httptest.NewRecorder()
	cause := errors.New("pq: password authentication failed")
	h.writeError(w, httptest.NewRequest(http.MethodGet, "/x", nil), errors.Join(service.ErrStorage, cause))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRequestBaseURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://api.local:8080/shorten", nil)
	assert.Equal(t, "http://api.local:8080", requestBaseURL(req))

	req.Header.Set("X-Forwarded-Proto", "https, http")
	req.Header.Set("X-Forwarded-Host", "sho.rt")
	assert.Equal(t, "https://sho.rt", requestBaseURL(req))
}

func strPtr(s string) *string { return &s }
