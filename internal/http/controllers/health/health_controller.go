// Package health exposes liveness and readiness probes.
package health

import (
	"context"
	"net/http"

	httperrors "github.com/camly-social/camly-idp/internal/http/errors"
)

// Pinger is what readiness needs from a backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller serves /healthz and /readyz.
type Controller struct {
	deps []Pinger
}

func NewController(deps ...Pinger) *Controller {
	return &Controller{deps: deps}
}

// Healthz reports process liveness only.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz pings every backend and fails if any is down.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	for _, d := range c.deps {
		if err := d.Ping(r.Context()); err != nil {
			httperrors.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
			return
		}
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
