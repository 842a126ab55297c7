package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"

	"towerfront.ai/internal/sim/world"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/transport/ws"
)

func newMux(w *world.World, idx runtimeIndex, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, idx))

	if envBool("TF_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string             `json:"world_id"`
				Tick    uint64             `json:"tick"`
				Metrics world.WorldMetrics `json:"metrics"`
			}{
				WorldID: w.ID(),
				Tick:    w.CurrentTick(),
				Metrics: w.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		}))
		mux.HandleFunc("/admin/v1/destroy_chunk", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			cx, errX := strconv.Atoi(r.URL.Query().Get("cx"))
			cy, errY := strconv.Atoi(r.URL.Query().Get("cy"))
			if errX != nil || errY != nil || cx < 0 || cy < 0 || cx >= addr.ChunksPerSide || cy >= addr.ChunksPerSide {
				http.Error(rw, "bad chunk", http.StatusBadRequest)
				return
			}
			select {
			case w.Destroy() <- addr.ChunkID{X: uint8(cx), Y: uint8(cy)}:
			default:
				http.Error(rw, "busy", http.StatusServiceUnavailable)
				return
			}
			logger.Printf("admin: destroy chunk %d,%d", cx, cy)
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "chunk": [2]int{cx, cy}})
		}))
	} else {
		logger.Printf("admin endpoints disabled (TF_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("TF_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())
	return mux
}

func metricsHandler(w *world.World, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		id := w.ID()
		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		gauge := func(name, help string, v any) {
			fmt.Fprintf(rw, "# HELP towerfront_%s %s\n", name, help)
			fmt.Fprintf(rw, "# TYPE towerfront_%s gauge\n", name)
			fmt.Fprintf(rw, "towerfront_%s{world=%q} %v\n", name, id, v)
		}
		gauge("world_tick", "Current world tick.", tick)
		gauge("world_players", "Players known to the world.", m.Players)
		gauge("world_alive_players", "Players with a living Ruler.", m.AlivePlayers)
		gauge("world_clients", "Current number of connected clients.", m.Clients)
		gauge("world_loaded_chunks", "Loaded chunk count.", m.LoadedChunks)
		gauge("world_forces", "Forces in flight.", m.Forces)
		gauge("world_events", "Cross-chunk events applied in the last tick.", m.Events)
		gauge("world_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))

		fmt.Fprintf(rw, "# HELP towerfront_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE towerfront_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "towerfront_world_queue_depth{world=%q,queue=%q} %d\n", id, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "towerfront_world_queue_depth{world=%q,queue=%q} %d\n", id, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "towerfront_world_queue_depth{world=%q,queue=%q} %d\n", id, "leave", m.QueueDepths.Leave)

		if idx != nil {
			s := idx.Stats()
			fmt.Fprintf(rw, "# HELP towerfront_index_dropped_total Rows dropped by the read-model indexer.\n")
			fmt.Fprintf(rw, "# TYPE towerfront_index_dropped_total counter\n")
			fmt.Fprintf(rw, "towerfront_index_dropped_total{world=%q,kind=%q} %d\n", id, "tick", s.DropTickTotal)
			fmt.Fprintf(rw, "towerfront_index_dropped_total{world=%q,kind=%q} %d\n", id, "snapshot", s.DropSnapshotTotal)
			gauge("index_queue_depth", "Indexer queue depth.", s.QueueDepth)
		}
	}
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
