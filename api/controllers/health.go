package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/luxeaccount/luxeaccount-backend/api/responses"
	"github.com/luxeaccount/luxeaccount-backend/pkg/config"
	pkgerrors "github.com/luxeaccount/luxeaccount-backend/pkg/errors"
	"github.com/luxeaccount/luxeaccount-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

// Pinger is the health check surface shared by the backing stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-LuxeAccount-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when every wired dependency answers.
// Optional dependencies are passed as nil and skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		w.Header().Set("X-LuxeAccount-Env", cfg.App.Env)

		for name, pinger := range pingers {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				if logg != nil {
					logg.Error(ctx, "readiness check failed", pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				}
				responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]string{
					"status":    "unready",
					"component": name,
				})
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
