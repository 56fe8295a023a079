// Package health provides Kubernetes-style liveness and readiness probes.
//
// Each registered check runs on its own background goroutine at a fixed
// interval. Checks carry failure and success thresholds so a single hiccup
// does not flip the reported state: a check must fail consecutively several
// times before it is considered unhealthy, and pass again before it
// recovers.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes a single component. It returns nil when the component is
// healthy.
type CheckFunc func(ctx context.Context) error

// Default probe thresholds, matching common Kubernetes probe settings.
const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
)

// probe holds the configuration and runtime state for one check.
//
// run is only ever called from the probe's own goroutine, so the consecutive
// counters need no synchronization. The healthy flag and lastErr are read by
// HTTP handlers from arbitrary goroutines and use atomics.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	p := &probe{
		name:             name,
		timeout:          timeout,
		check:            check,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
	}
	// Probes start healthy so a slow first check does not fail the service.
	p.healthy.Store(true)
	return p
}

func (p *probe) isHealthy() bool {
	return p.healthy.Load()
}

func (p *probe) lastError() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

// run executes the check once and applies the thresholds. Must only be
// called from the probe's goroutine.
func (p *probe) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(checkCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.consecutiveOK = 0
		p.consecutiveFails++
		if p.consecutiveFails >= p.failureThreshold {
			p.healthy.Store(false)
		}
		return
	}

	p.consecutiveFails = 0
	p.consecutiveOK++
	if p.consecutiveOK >= p.successThreshold {
		p.healthy.Store(true)
	}
}

// loop re-runs the probe at the given interval until ctx is cancelled. The
// first run happens immediately.
func (p *probe) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

// Health manages liveness and readiness probes for a service.
type Health struct {
	ready atomic.Bool

	// mu guards the probe slices and cancel. Registration happens before
	// Start; HTTP handlers snapshot the slices under RLock.
	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New creates a Health instance. The service starts not ready; call
// SetReady(true) once initialization completes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a liveness probe. Liveness failures mean the
// process itself is broken (goroutine leak, runaway GC) and should be
// restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a readiness probe. Readiness failures mean the
// service should not receive traffic right now (database unreachable,
// dependency down) but may recover.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start launches one background goroutine per registered probe. Register all
// probes before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go p.loop(ctx, interval)
	}
}

// SetReady flips the manual readiness gate. Typically set true after
// initialization and false at the start of graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service should receive traffic: the manual
// gate must be open and every readiness probe passing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()

	for _, p := range probes {
		if !p.isHealthy() {
			return false
		}
	}
	return true
}

// Stop cancels all probe goroutines. Safe to call multiple times.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// statusResponse is the JSON body for both health endpoints.
type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} while all liveness probes
// pass, otherwise 503 with the failing probes listed.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	probes := make([]*probe, len(h.liveness))
	copy(probes, h.liveness)
	h.mu.RUnlock()

	writeStatus(w, failures(probes))
}

// ReadyEndpoint serves /readyz: 200 only when the manual gate is open and
// every readiness probe passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.Load()

	h.mu.RLock()
	probes := make([]*probe, len(h.readiness))
	copy(probes, h.readiness)
	h.mu.RUnlock()

	failing := failures(probes)
	if !ready {
		failing["_readiness"] = "service is not ready"
	}
	writeStatus(w, failing)
}

// failures maps probe name to error message for every unhealthy probe, using
// the probe's stored last error rather than re-running the check.
func failures(probes []*probe) map[string]string {
	failing := make(map[string]string)
	for _, p := range probes {
		if p.isHealthy() {
			continue
		}
		if err := p.lastError(); err != nil {
			failing[p.name] = err.Error()
		} else {
			failing[p.name] = "check is unhealthy"
		}
	}
	return failing
}

func writeStatus(w http.ResponseWriter, failing map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	status := http.StatusOK
	if len(failing) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failing
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
