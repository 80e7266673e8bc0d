package auth

import (
	"net/http"

	"github.com/xela07ax/evco-audit/internal/domain"
	"go.uber.org/zap"
)

// RequireRoles lets the request through only when the authenticated principal
// holds at least one of roles. No principal means 401, a principal without
// any of the roles means 403. Mount it after NewMiddleware.
func RequireRoles(logger *zap.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := append([]domain.Role(nil), roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !p.HasAnyRole(allowed) {
				logger.Warn("role not permitted",
					zap.String("subject", p.Subject),
					zap.Any("roles", p.Roles),
					zap.String("path", r.URL.Path))
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
