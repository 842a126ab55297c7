package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"towerfront.ai/internal/sim/tuning"
	"towerfront.ai/internal/sim/world"
)

func newTestServerWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(worldConfig("test", 7, tuning.Defaults()))
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	w.StepOnce(nil, nil, nil)
	return w
}

func TestMetricsHandler(t *testing.T) {
	w := newTestServerWorld(t)
	rr := httptest.NewRecorder()
	metricsHandler(w, nil)(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`towerfront_world_tick{world="test"} 1`,
		`towerfront_world_players{world="test"} 0`,
		`towerfront_world_queue_depth{world="test",queue="inbox"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestAdminEndpoints_LoopbackOnly(t *testing.T) {
	t.Setenv("TF_ENABLE_ADMIN_HTTP", "true")
	w := newTestServerWorld(t)
	mux := newMux(w, nil, log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "10.0.0.8:4000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("remote state: %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	var state struct {
		WorldID string             `json:"world_id"`
		Tick    uint64             `json:"tick"`
		Metrics world.WorldMetrics `json:"metrics"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &state); err != nil {
		t.Fatalf("state: %v %s", err, rr.Body.String())
	}
	if state.WorldID != "test" || state.Tick != 1 || state.Metrics.Digest == "" {
		t.Fatalf("state: %+v", state)
	}

	for _, tc := range []struct {
		query string
		code  int
	}{
		{"cx=3&cy=4", http.StatusOK},
		{"cx=32&cy=0", http.StatusBadRequest},
		{"cx=a&cy=0", http.StatusBadRequest},
	} {
		req = httptest.NewRequest(http.MethodPost, "/admin/v1/destroy_chunk?"+tc.query, nil)
		req.RemoteAddr = "[::1]:4000"
		rr = httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != tc.code {
			t.Fatalf("destroy %s: got %d want %d", tc.query, rr.Code, tc.code)
		}
	}
}

func TestLatestSnapshot(t *testing.T) {
	dir := t.TempDir()
	snaps := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snaps, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"3000.snap.zst", "12000.snap.zst", "900.snap.zst", "junk.snap.zst", "5.txt"} {
		if err := os.WriteFile(filepath.Join(snaps, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := latestSnapshot(dir); filepath.Base(got) != "12000.snap.zst" {
		t.Fatalf("latest: %q", got)
	}
	if got := latestSnapshot(filepath.Join(dir, "missing")); got != "" {
		t.Fatalf("missing dir: %q", got)
	}
}
