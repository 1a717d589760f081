package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fixed(status Status) CheckFunc {
	return func(ctx context.Context) Check { return Check{Status: status} }
}

func TestRegisterCheck_Separation(t *testing.T) {
	hc := NewHealthChecker()

	var health, ready, live int
	hc.RegisterCheck("network", func(ctx context.Context) Check { health++; return Check{Status: StatusHealthy} })
	hc.RegisterReadinessCheck("postgres", func(ctx context.Context) Check { ready++; return Check{Status: StatusHealthy} })
	hc.RegisterLivenessCheck("process", func(ctx context.Context) Check { live++; return Check{Status: StatusHealthy} })

	ctx := context.Background()
	resp := hc.Check(ctx)
	if health != 1 || ready != 0 || live != 0 {
		t.Errorf("Check called health=%d ready=%d live=%d", health, ready, live)
	}
	if c, ok := resp.Checks["network"]; !ok || c.Name != "network" {
		t.Errorf("Check result missing or unnamed: %+v", resp.Checks)
	}

	hc.CheckReadiness(ctx)
	hc.CheckLiveness(ctx)
	if health != 1 || ready != 1 || live != 1 {
		t.Errorf("after all checks health=%d ready=%d live=%d", health, ready, live)
	}
}

func TestCheckStatusAggregation(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for i, s := range tt.statuses {
				hc.RegisterCheck(string(rune('a'+i)), fixed(s))
			}
			if got := hc.Check(context.Background()).Status; got != tt.want {
				t.Errorf("Status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCheckTiming(t *testing.T) {
	hc := NewHealthChecker()
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	tick := 0
	hc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	hc.started = base
	hc.RegisterCheck("network", fixed(StatusHealthy))

	resp := hc.Check(context.Background())
	c := resp.Checks["network"]
	if c.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", c.Duration)
	}
	if !c.LastChecked.Equal(base.Add(2 * time.Second)) {
		t.Errorf("LastChecked = %v", c.LastChecked)
	}
	if resp.Uptime != time.Second {
		t.Errorf("Uptime = %v, want 1s", resp.Uptime)
	}
}

func TestNetworkCheck(t *testing.T) {
	tests := []struct {
		name     string
		edges    int
		liaisons int
		want     Status
	}{
		{"empty network", 0, 0, StatusUnhealthy},
		{"no liaisons", 12, 0, StatusDegraded},
		{"loaded", 12, 3, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NetworkCheck(func() (int, int) { return tt.edges, tt.liaisons })(context.Background())
			if check.Status != tt.want {
				t.Errorf("Status = %s, want %s (%s)", check.Status, tt.want, check.Message)
			}
			if check.Details["edges"] != tt.edges || check.Details["liaisons"] != tt.liaisons {
				t.Errorf("Details = %v", check.Details)
			}
		})
	}
}

func TestPingCheck(t *testing.T) {
	ok := PingCheck("redis", time.Second, func(ctx context.Context) error { return nil })(context.Background())
	if ok.Status != StatusHealthy || ok.Name != "redis" {
		t.Errorf("healthy ping = %+v", ok)
	}

	failed := PingCheck("postgres", time.Second, func(ctx context.Context) error {
		return errors.New("connection refused")
	})(context.Background())
	if failed.Status != StatusUnhealthy || failed.Message != "connection refused" {
		t.Errorf("failed ping = %+v", failed)
	}

	// the ping sees the bounded context
	slow := PingCheck("postgres", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})(context.Background())
	if slow.Status != StatusUnhealthy {
		t.Errorf("slow ping = %+v", slow)
	}
}

func TestReloadTracker(t *testing.T) {
	var r ReloadTracker
	ctx := context.Background()

	if c := r.Check(ctx); c.Status != StatusHealthy || c.Details["reloads"] != 0 {
		t.Errorf("before any reload = %+v", c)
	}

	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	r.Record(at, errors.New("conduit 4: duplicate id"))
	c := r.Check(ctx)
	if c.Status != StatusDegraded || c.Message != "conduit 4: duplicate id" {
		t.Errorf("after failed reload = %+v", c)
	}
	if c.Details["last_reload"] != at {
		t.Errorf("last_reload = %v", c.Details["last_reload"])
	}

	r.Record(at.Add(time.Minute), nil)
	if c := r.Check(ctx); c.Status != StatusHealthy || c.Details["reloads"] != 2 {
		t.Errorf("after good reload = %+v", c)
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		status   Status
		wantCode int
	}{
		{"health healthy", "/health", StatusHealthy, http.StatusOK},
		{"health degraded", "/health", StatusDegraded, http.StatusOK},
		{"health unhealthy", "/health", StatusUnhealthy, http.StatusServiceUnavailable},
		{"ready degraded", "/readyz", StatusDegraded, http.StatusServiceUnavailable},
		{"ready healthy", "/readyz", StatusHealthy, http.StatusOK},
		{"live unhealthy", "/healthz", StatusUnhealthy, http.StatusServiceUnavailable},
		{"live healthy", "/healthz", StatusHealthy, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			hc.RegisterCheck("c", fixed(tt.status))
			hc.RegisterReadinessCheck("c", fixed(tt.status))
			hc.RegisterLivenessCheck("c", fixed(tt.status))
			mux := http.NewServeMux()
			hc.Register(mux)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if rec.Header().Get("Content-Type") != "application/json" {
				t.Error("expected Content-Type application/json")
			}
			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("response status = %s, want %s", resp.Status, tt.status)
			}
		})
	}
}
