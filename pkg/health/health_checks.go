package health

import (
	"context"
	"sync"
	"time"
)

// DefaultPingTimeout bounds a single store ping
const DefaultPingTimeout = 2 * time.Second

// NetworkCheck reports whether a network is loaded. A network without any
// edge cannot be traced; one without liaisons traces but resolves no entity.
func NetworkCheck(stats func() (edges, liaisons int)) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{
			Name:    "network",
			Details: make(map[string]any),
		}

		edges, liaisons := stats()
		check.Details["edges"] = edges
		check.Details["liaisons"] = liaisons

		switch {
		case edges == 0:
			check.Status = StatusUnhealthy
			check.Message = "No edge loaded"
		case liaisons == 0:
			check.Status = StatusDegraded
			check.Message = "No liaison loaded"
		default:
			check.Status = StatusHealthy
			check.Message = "Network loaded"
		}
		return check
	}
}

// PingCheck reports whether a backing store answers within timeout
func PingCheck(name string, timeout time.Duration, ping func(ctx context.Context) error) CheckFunc {
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	return func(ctx context.Context) Check {
		check := Check{Name: name}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := ping(ctx); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Connected"
		}
		return check
	}
}

// ReloadTracker remembers the outcome of the last network reload
type ReloadTracker struct {
	mu      sync.Mutex
	last    time.Time
	lastErr error
	count   int
}

// Record stores the outcome of a reload finished at t
func (r *ReloadTracker) Record(t time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last, r.lastErr = t, err
	r.count++
}

// Check reports a failed last reload as degraded: the previous network is
// still being served.
func (r *ReloadTracker) Check(ctx context.Context) Check {
	r.mu.Lock()
	defer r.mu.Unlock()

	check := Check{
		Name:    "reload",
		Details: map[string]any{"reloads": r.count},
	}
	if !r.last.IsZero() {
		check.Details["last_reload"] = r.last
	}

	switch {
	case r.count == 0:
		check.Status = StatusHealthy
		check.Message = "No reload yet"
	case r.lastErr != nil:
		check.Status = StatusDegraded
		check.Message = r.lastErr.Error()
	default:
		check.Status = StatusHealthy
		check.Message = "Last reload applied"
	}
	return check
}
