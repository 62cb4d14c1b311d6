package server

import (
	"net/http"

	"github.com/tjfontaine/harassment-moderator/internal/auth"
	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
)

// PublicPaths are served without an API key.
var PublicPaths = map[string]bool{
	"/":        true,
	"/healthz": true,
	"/metrics": true,
}

// AuthMiddleware rejects requests without a valid Bearer API key.
func AuthMiddleware(a *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PublicPaths[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			key, err := auth.ExtractAPIKey(r)
			if err != nil {
				WriteError(w, r, domain.ErrAuthentication(err.Error()))
				return
			}
			desc, err := a.ValidateAPIKey(key)
			if err != nil {
				WriteError(w, r, domain.ErrAuthentication(err.Error()).WithCode(domain.ErrorCodeInvalidAPIKey))
				return
			}
			AddLogField(r.Context(), "api_key", desc)
			next.ServeHTTP(w, r)
		})
	}
}
