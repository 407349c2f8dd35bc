package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"tinylink/pkg/logging"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ScopeDelete guards link deletion.
const ScopeDelete = "links:delete"

type OAuthConfig struct {
	IssuerURL string
	Audience  string
}

type OAuthMiddleware struct {
	verifier *oidc.IDTokenVerifier
	audience string
	logger   *logging.Logger
}

type AuthClaims struct {
	Sub    string   `json:"sub"`
	Email  string   `json:"email"`
	Scope  string   `json:"scope"`
	Groups []string `json:"groups,omitempty"`
}

type contextKey string

const (
	subKey   contextKey = "sub"
	emailKey contextKey = "email"
	scopeKey contextKey = "scope"
)

// NewOAuthMiddleware discovers the provider, so it needs network access to
// the issuer.
func NewOAuthMiddleware(ctx context.Context, config OAuthConfig, logger *logging.Logger) (*OAuthMiddleware, error) {
	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: config.Audience,
	})
	return NewOAuthMiddlewareWithVerifier(verifier, config.Audience, logger), nil
}

func NewOAuthMiddlewareWithVerifier(verifier *oidc.IDTokenVerifier, audience string, logger *logging.Logger) *OAuthMiddleware {
	if logger == nil {
		logger = logging.Discard()
	}
	return &OAuthMiddleware{verifier: verifier, audience: audience, logger: logger}
}

func (m *OAuthMiddleware) Authenticate(requiredScopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := m.verifier.Verify(ctx, tokenString)
			if err != nil {
				m.logger.Warn(ctx, "token verification failed", "error", err)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			var claims AuthClaims
			if err := token.Claims(&claims); err != nil {
				http.Error(w, "failed to extract claims", http.StatusUnauthorized)
				return
			}

			if !hasAudience(token.Audience, m.audience) {
				http.Error(w, "invalid audience", http.StatusUnauthorized)
				return
			}

			if !checkScopes(claims.Scope, requiredScopes) {
				m.logger.LogAuthEvent(ctx, "insufficient_scope", claims.Sub, false)
				http.Error(w, "insufficient scope", http.StatusForbidden)
				return
			}
			m.logger.LogAuthEvent(ctx, "authenticated", claims.Sub, true)

			ctx = context.WithValue(ctx, subKey, claims.Sub)
			ctx = context.WithValue(ctx, emailKey, claims.Email)
			ctx = context.WithValue(ctx, scopeKey, claims.Scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasAudience(audiences []string, expected string) bool {
	for _, a := range audiences {
		if a == expected {
			return true
		}
	}
	return false
}

func checkScopes(tokenScopes string, requiredScopes []string) bool {
	granted := make(map[string]bool)
	for _, s := range strings.Fields(tokenScopes) {
		granted[s] = true
	}

	for _, required := range requiredScopes {
		if !granted[required] {
			return false
		}
	}
	return true
}

func GetSubFromContext(ctx context.Context) string {
	if sub, ok := ctx.Value(subKey).(string); ok {
		return sub
	}
	return ""
}

func GetEmailFromContext(ctx context.Context) string {
	if email, ok := ctx.Value(emailKey).(string); ok {
		return email
	}
	return ""
}

func GetScopeFromContext(ctx context.Context) string {
	if scope, ok := ctx.Value(scopeKey).(string); ok {
		return scope
	}
	return ""
}
