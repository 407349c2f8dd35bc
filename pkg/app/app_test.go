package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tinylink/pkg/config"
	"tinylink/pkg/logging"
	"tinylink/pkg/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server:  config.Server{ShutdownTimeout: time.Second},
		Storage: config.Storage{Driver: config.DriverMemory},
		Cache:   config.Cache{TTL: time.Hour},
		Slugs:   config.Slugs{MinLength: 6, Reserved: []string{"docs"}},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestAPIRouter(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Cache.RedisURL = "redis://" + mr.Addr()
	a := newTestApp(t, cfg)

	deleteAuth, err := a.DeleteAuth(context.Background())
	require.NoError(t, err)
	assert.Nil(t, deleteAuth)
	r := a.APIRouter(deleteAuth)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/links", strings.NewReader(`{"long_url":"https://example.com","custom_slug":"docs"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code, "configured reserved words are enforced")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/links", strings.NewReader(`{"long_url":"https://example.com"}`)))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/000001", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, mr.Exists("link:000001"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `tinylink_redirects_total{outcome="found"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestDeleteAuthWithAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := memoryConfig()
	cfg.Auth.AdminKeyHash = string(hash)
	a := newTestApp(t, cfg)

	deleteAuth, err := a.DeleteAuth(context.Background())
	require.NoError(t, err)
	require.NotNil(t, deleteAuth)
	r := a.APIRouter(deleteAuth)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(`{"long_url":"https://example.com","custom_slug":"temp"}`)))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/links/temp", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodDelete, "/v1/links/temp", nil)
	req.Header.Set("X-Admin-Key", "letmein")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRedirectRouterServesOnlyRedirects(t *testing.T) {
	a := newTestApp(t, memoryConfig())
	r := a.RedirectRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/links", strings.NewReader(`{"long_url":"https://example.com"}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientIPHonoursProxySetting(t *testing.T) {
	tests := []struct {
		name  string
		trust bool
		want  string
	}{
		{"headers ignored by default", false, "192.0.2.1"},
		{"headers trusted behind proxy", true, "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			cfg.Server.TrustProxyHeaders = tt.trust
			a := newTestApp(t, cfg)
			r := a.RedirectRouter()
			ctx := context.Background()

			link, err := a.Service.CreateLink(ctx, &service.CreateLinkRequest{LongURL: "https://example.com/ip"})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/"+link.Slug, nil)
			req.Header.Set("X-Forwarded-For", "198.51.100.7")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, http.StatusFound, w.Code)

			clicks, err := a.Store.ListByLink(ctx, link.ID)
			require.NoError(t, err)
			require.Len(t, clicks, 1)
			require.NotNil(t, clicks[0].IPAddress)
			assert.Equal(t, tt.want, *clicks[0].IPAddress)
		})
	}
}

func TestNewRejectsBadRedisURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.Cache.RedisURL = "not-a-url"

	_, err := New(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), time.Second, logging.Discard())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
