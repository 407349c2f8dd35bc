package middleware

import (
	"net/http"

	"tinylink/pkg/logging"

	"golang.org/x/crypto/bcrypt"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminKey admits requests whose X-Admin-Key matches the bcrypt hash.
func AdminKey(hash string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AdminKeyHeader)
			if key == "" {
				http.Error(w, "missing admin key", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
				logger.LogAuthEvent(r.Context(), "admin_key", "admin-key", false)
				http.Error(w, "invalid admin key", http.StatusUnauthorized)
				return
			}
			logger.LogAuthEvent(r.Context(), "admin_key", "admin-key", true)
			next.ServeHTTP(w, r)
		})
	}
}
