// Package app wires configuration into the stores, service and routers
// shared by the API and redirect binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tinylink/pkg/base62"
	"tinylink/pkg/cache"
	"tinylink/pkg/config"
	httphandler "tinylink/pkg/http"
	"tinylink/pkg/logging"
	"tinylink/pkg/metrics"
	"tinylink/pkg/middleware"
	"tinylink/pkg/service"
	"tinylink/pkg/slug"
	"tinylink/pkg/storage"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config  *config.Config
	Logger  *logging.Logger
	Store   storage.Store
	Service *service.LinkService
	Metrics *metrics.Metrics

	redisClient *redis.Client
}

// New opens storage (migrating PostgreSQL) and the optional Redis cache.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	var (
		linkCache   cache.LinkCacheInterface
		redisClient *redis.Client
	)
	if cfg.Cache.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opt)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "redis unreachable, serving from storage until it recovers", "error", err)
		}
		linkCache = cache.NewLinkCache(redisClient)
	}

	codec, err := base62.NewCodec(base62.Alphabet, cfg.Slugs.MinLength)
	if err != nil {
		store.Close()
		return nil, err
	}

	m := metrics.NewWithRuntime(prometheus.NewRegistry())
	svc := service.NewLinkService(store, store, linkCache, logger, service.Options{
		Reserved: slug.DefaultReservedSet(cfg.Slugs.Reserved...),
		Codec:    codec,
		Metrics:  m,
		CacheTTL: cfg.Cache.TTL,
	})

	return &App{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Service:     svc,
		Metrics:     m,
		redisClient: redisClient,
	}, nil
}

func openStore(ctx context.Context, cfg config.Storage) (storage.Store, error) {
	if cfg.Driver == config.DriverMemory {
		return storage.NewMemoryStorage(), nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := storage.NewPostgresStorage(pool)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (a *App) Close() {
	if a.redisClient != nil {
		a.redisClient.Close()
	}
	a.Store.Close()
}

// DeleteAuth picks OIDC when an issuer is configured, else the admin key.
// It returns nil when neither is set.
func (a *App) DeleteAuth(ctx context.Context) (func(http.Handler) http.Handler, error) {
	auth := a.Config.Auth
	switch {
	case auth.OIDCIssuer != "":
		oauth, err := middleware.NewOAuthMiddleware(ctx, middleware.OAuthConfig{
			IssuerURL: auth.OIDCIssuer,
			Audience:  auth.OIDCAudience,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		return oauth.Authenticate(middleware.ScopeDelete), nil
	case auth.AdminKeyHash != "":
		return middleware.AdminKey(auth.AdminKeyHash, a.Logger), nil
	default:
		return nil, nil
	}
}

// APIRouter serves the full API. deleteAuth comes from DeleteAuth.
func (a *App) APIRouter(deleteAuth func(http.Handler) http.Handler) http.Handler {
	r := a.baseRouter()
	handler := httphandler.NewHandler(a.Service, a.Config.Server.BaseURL, a.Logger)
	httphandler.SetupRoutes(r, handler, deleteAuth, a.Metrics.Handler())
	return r
}

func (a *App) RedirectRouter() http.Handler {
	r := a.baseRouter()
	handler := httphandler.NewHandler(a.Service, a.Config.Server.BaseURL, a.Logger)
	httphandler.SetupRedirectRoutes(r, handler, a.Metrics.Handler())
	return r
}

func (a *App) baseRouter() *chi.Mux {
	r := chi.NewRouter()
	if a.Config.Server.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.CorrelationID)
	r.Use(middleware.AccessLog(a.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(a.Metrics.Instrument)
	return r
}

// Serve runs the server until ctx is cancelled, then drains it within
// shutdownTimeout.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, logger *logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down server", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
