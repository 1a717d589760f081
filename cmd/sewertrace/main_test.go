package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testNetworkYAML = `conduits:
  - {id: 1, start: A, end: B, length: 12.5}
  - {id: 2, start: B, end: C, length: 30}
  - {id: 3, start: X, end: Y, length: 8}
liaisons:
  - {id: 10, node: A, entity: IND1}
  - {id: 11, node: C, entity: IND2}
entities:
  - {id: IND1, attributes: {name: Tannery}}
  - {id: IND2, attributes: {name: Dairy}}
`

// setupCLI writes a network and a config into a temp directory and points
// the root command at it
func setupCLI(t *testing.T) {
	t.Helper()
	dir := t.TempDir()

	netPath := filepath.Join(dir, "network.yaml")
	if err := os.WriteFile(netPath, []byte(testNetworkYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := "log:\n  level: error\n" +
		"network:\n  source: yaml\n  path: " + netPath + "\n" +
		"session:\n  dir: " + filepath.Join(dir, "sessions") + "\n  name: field\n" +
		"metrics:\n  enabled: false\n"
	cfgFile := filepath.Join(dir, "sewertrace.yaml")
	if err := os.WriteFile(cfgFile, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	cfgPath, sessionName = cfgFile, ""
	visitPollution, visitKeep = false, nil
	t.Cleanup(func() {
		cfgPath, sessionName = "", ""
		visitPollution, visitKeep = false, nil
	})
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", cfgPath))
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestCLI_TraceVisitStatus(t *testing.T) {
	setupCLI(t)

	out := run(t, "trace", "C")
	if !strings.Contains(out, "Reached 2 edges over 42.5 m") {
		t.Errorf("trace output:\n%s", out)
	}
	if !strings.Contains(out, "Tannery") || !strings.Contains(out, "Dairy") {
		t.Errorf("trace should list both entities:\n%s", out)
	}

	out = run(t, "visit", "B", "--pollution")
	if !strings.Contains(out, "removed entities: IND2") {
		t.Errorf("visit output:\n%s", out)
	}

	// state survives between invocations through the session store
	out = run(t, "status")
	for _, want := range []string{"Session field", "upstream from C", "conduits:  1", "entities:  IND1", "visit 1:   B pollution=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	out = run(t, "sessions")
	if !strings.Contains(out, "* field") {
		t.Errorf("sessions output:\n%s", out)
	}

	run(t, "reset")
	out = run(t, "status")
	if !strings.Contains(out, "conduits:  0") {
		t.Errorf("status after reset:\n%s", out)
	}
}

func TestCLI_VisitRejectsKeepWithoutPollution(t *testing.T) {
	setupCLI(t)

	rootCmd.SetArgs([]string{"visit", "B", "--keep", "conduit:1", "--config", cfgPath})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	if err := rootCmd.ExecuteContext(context.Background()); err == nil {
		t.Error("Expected error keeping branches without pollution")
	}
}

func TestWatch_HealthEndpoints(t *testing.T) {
	setupCLI(t)

	a, err := openApp(context.Background(), cfgPath, "")
	if err != nil {
		t.Fatalf("openApp failed: %v", err)
	}
	defer a.Close()

	hc, reloads := a.healthChecker()
	mux := http.NewServeMux()
	hc.Register(mux)

	get := func(path string) int {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	if code := get("/readyz"); code != http.StatusOK {
		t.Errorf("/readyz = %d, want 200", code)
	}
	if code := get("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz = %d, want 200", code)
	}

	// a failed reload degrades /health but keeps serving the old network
	reloads.Record(time.Now(), errors.New("bad yaml"))
	resp := hc.Check(context.Background())
	if resp.Status != "degraded" {
		t.Errorf("health after failed reload = %s", resp.Status)
	}
	if code := get("/health"); code != http.StatusOK {
		t.Errorf("/health = %d, want 200", code)
	}
}
