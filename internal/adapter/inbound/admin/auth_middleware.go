package admin

import (
	"net/http"
	"strings"

	"github.com/Stream-Gate/Streamgate/internal/domain/auth"
)

// extractAdminKey pulls the presented admin key from a request. The
// X-Admin-Key header wins; Authorization: Bearer is accepted as an
// alternative for clients that only speak standard headers.
func extractAdminKey(r *http.Request) string {
	if key := r.Header.Get("X-Admin-Key"); key != "" {
		return key
	}
	authz := r.Header.Get("Authorization")
	if rest, ok := strings.CutPrefix(authz, "Bearer "); ok {
		return rest
	}
	return ""
}

// authMiddleware enforces the admin key on every admin route. The key is
// verified against the configured argon2id hash; the comparison inside
// the library is constant-time. Failures are uniform 401s so callers
// cannot distinguish a missing key from a wrong one.
func (h *APIHandler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKeyHash == "" {
			// Enabled admin API without a hash is a config error; fail
			// closed rather than open.
			h.respondError(w, http.StatusServiceUnavailable, "admin API key not configured")
			return
		}

		key := extractAdminKey(r)
		if key == "" {
			h.respondError(w, http.StatusUnauthorized, "admin key required")
			return
		}

		match, err := auth.VerifyAdminKey(key, h.apiKeyHash)
		if err != nil {
			h.logger.Error("admin: key verification failed", "error", err)
			h.respondError(w, http.StatusUnauthorized, "admin key rejected")
			return
		}
		if !match {
			h.respondError(w, http.StatusUnauthorized, "admin key rejected")
			return
		}

		next.ServeHTTP(w, r)
	})
}
