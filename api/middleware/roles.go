package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/cbwis-backend/api/responses"
	"github.com/angelmondragon/cbwis-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
)

// RequireRole lets a request through only when the caller's effective role is
// one of allowed. Run it after Auth.
func RequireRole(logg *logger.Logger, allowed ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.Role(RoleFromContext(r.Context()))
			if !slices.Contains(allowed, role) {
				name := string(role)
				if name == "" {
					name = "anonymous"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, name+" callers may not perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
