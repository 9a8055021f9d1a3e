package middleware

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/cbwis-backend/api/responses"
	"github.com/angelmondragon/cbwis-backend/pkg/auth"
	"github.com/angelmondragon/cbwis-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/cbwis-backend/pkg/errors"
	"github.com/angelmondragon/cbwis-backend/pkg/logger"
)

// Auth requires a valid bearer token and puts the caller identity on the
// request context. Tokens without a known role act as staff.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := auth.ParseAccessToken(cfg, token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					msg = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			id := Identity{
				Subject: claims.Subject,
				Email:   claims.Email,
				Role:    string(claims.EffectiveRole()),
			}
			ctx := WithIdentity(r.Context(), id)
			if logg != nil {
				ctx = logg.WithActorRole(logg.WithUserID(ctx, id.Subject), id.Role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
