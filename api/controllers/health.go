package controllers

import (
	"context"
	"net/http"

	"github.com/sumitpay/billing-backend/api/responses"
	"github.com/sumitpay/billing-backend/pkg/config"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

// Pinger is implemented by backing dependencies that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Sumit-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each named dependency and fails fast on the first
// unreachable one.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Sumit-Env", cfg.App.Env)
		for name, dep := range checks {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency not ready").
						WithDetails(map[string]string{"dependency": name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
