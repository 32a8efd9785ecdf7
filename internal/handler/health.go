package handler

import (
	"context"
	"net/http"
	"time"
)

// Check is one dependency probed by /health/ready. A failing required check
// makes the service unready; an optional one only degrades it.
type Check struct {
	Name     string
	Ping     func(ctx context.Context) error
	Optional bool
}

type Health struct {
	checks []Check
	env    string
}

type livenessResponse struct {
	Status string `json:"status"`
	Env    string `json:"env,omitempty"`
}

type readinessResponse struct {
	Status       string            `json:"status"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *Health) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, livenessResponse{Status: "ok", Env: h.env})
}

func (h *Health) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	status := "ok"
	for _, c := range h.checks {
		pingCtx, pingCancel := context.WithTimeout(ctx, time.Second)
		err := c.Ping(pingCtx)
		pingCancel()
		if err == nil {
			deps[c.Name] = "ok"
			continue
		}
		deps[c.Name] = "down"
		switch {
		case !c.Optional:
			status = "error"
		case status == "ok":
			status = "degraded"
		}
	}

	code := http.StatusOK
	if status == "error" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, readinessResponse{Status: status, Env: h.env, Dependencies: deps})
}
