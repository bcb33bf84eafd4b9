package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sumitpay/billing-backend/api/responses"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

const apiKeyHeader = "X-Api-Key"

// APIKey guards the admin surface with a static key. With no key configured
// every request is rejected; the admin routes are opt-in per environment.
func APIKey(key string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(key))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if len(expected) == 0 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin api is not enabled"))
				return
			}
			presented := []byte(strings.TrimSpace(r.Header.Get(apiKeyHeader)))
			if subtle.ConstantTimeCompare(expected, presented) != 1 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
