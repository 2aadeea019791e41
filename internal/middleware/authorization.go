package middleware

import (
	"net/http"

	"chocolata/internal/access"

	"go.uber.org/zap"
)

// RequireArea lets a request through only when the caller's role may enter area.
// It must run after AuthMiddleware.
func RequireArea(area access.Area, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context", zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if !access.CanEnter(role, area) {
				logger.Warn("Role not allowed in area",
					zap.String("role", string(role)),
					zap.String("area", string(area)),
					zap.String("path", r.URL.Path),
				)
				RespondWithErrorDetails(w, http.StatusForbidden, "insufficient permissions", map[string]interface{}{
					"redirect": access.HomeRoute(role),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
