// Package health provides readiness state tracking and HTTP health check
// handlers, including a persistent-store reachability probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

const pingTimeout = 2 * time.Second

// Pinger verifies a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker tracks the readiness state of the service and probes the scores
// store. It is safe for concurrent use.
type Checker struct {
	state atomic.Int32
	store Pinger
}

// NewChecker creates a Checker in the Starting state. store may be nil, in
// which case readiness depends on lifecycle state alone.
func NewChecker(store Pinger) *Checker {
	return &Checker{store: store}
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

// LivenessHandler responds 200 while the persistent store is reachable and
// 503 when it is not; the constrained client probes it before starting a
// commit sequence.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c.store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			defer cancel()
			if err := c.store.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Store: "unreachable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: "ok"})
	}
}

// ReadinessHandler responds 200 when ready and 503 when starting or
// draining.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if c.IsReady() {
			writeJSON(w, http.StatusOK, healthResponse{Status: c.State()})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: c.State()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
