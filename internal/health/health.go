// Package health serves the liveness and readiness probes that sit next to
// the /metrics endpoint while a transcription run or server mode is active.
//
// /healthz only reports that the process can still serve HTTP. /readyz
// additionally runs the registered dependency checks — the configured STT
// and LLM providers, the transcript store — and returns 503 when any of
// them fails. Both respond with a JSON body of the form
//
//	{"status": "ok", "checks": {"store": "ok", "stt_provider": "ok"}}
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check. A store that cannot answer a
// ping within this window counts as not ready.
const checkTimeout = 5 * time.Second

// Checker is one named readiness check. Check returns nil when the
// dependency can serve the next transcription run and an error describing
// what is wrong otherwise. It must respect context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Configured returns a Checker that passes once mark has been called,
// covering dependencies that are built at startup and never probed again,
// like a provider constructed from config.
func Configured(name string, failure error) (Checker, func()) {
	done := make(chan struct{})
	mark := func() { close(done) }
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			select {
			case <-done:
				return nil
			default:
				return failure
			}
		},
	}, mark
}

// result is the JSON body of both probe endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction; the handler itself is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a Handler evaluating the given checkers, in order, on every
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz answers the liveness probe. A process that reached the handler is
// alive, so this always returns 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz answers the readiness probe: 200 when every checker passes, 503
// with the per-check failures otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.runChecks(r.Context())

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// runChecks evaluates the checkers sequentially, each under its own
// checkTimeout deadline derived from the request context.
func (h *Handler) runChecks(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string, len(h.checkers))
	ready := true
	for _, c := range h.checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
		} else {
			checks[c.Name] = "ok"
		}
	}
	return checks, ready
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code, falling back to a
// plain-text 500 when encoding fails.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
