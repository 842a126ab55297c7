package main

import (
	"strings"
	"testing"

	persistlog "towerfront.ai/internal/persistence/log"
	"towerfront.ai/internal/protocol"
	"towerfront.ai/internal/sim/world"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
)

type memLog struct {
	inner   *persistlog.TickLogger
	entries []world.TickLogEntry
}

func (m *memLog) WriteTick(e world.TickLogEntry) error {
	m.entries = append(m.entries, e)
	return m.inner.WriteTick(e)
}

func newWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.WorldConfig{ID: "replay", Seed: 5})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func spawn(p model.PlayerID, id string) world.CommandEnvelope {
	return world.CommandEnvelope{
		Player: p,
		Cmd: protocol.CmdMsg{
			Type:            protocol.TypeCmd,
			ProtocolVersion: protocol.Version,
			Commands:        []protocol.Command{{ID: id, Kind: protocol.CmdSpawn}},
		},
	}
}

func record(t *testing.T, dir string) *memLog {
	t.Helper()
	src := newWorld(t)
	log := &memLog{inner: persistlog.NewTickLogger(dir)}
	src.SetTickLogger(log)

	src.StepOnce([]world.JoinRequest{{Name: "a"}, {Name: "b"}}, nil, nil)
	src.StepOnce(nil, nil, []world.CommandEnvelope{spawn(1, "s1"), spawn(2, "s2")})
	for i := 0; i < 20; i++ {
		src.StepOnce(nil, nil, nil)
	}
	src.DestroyChunk(addr.ChunkID{X: 2, Y: 2})
	for i := 0; i < 5; i++ {
		src.StepOnce(nil, nil, nil)
	}
	if err := log.inner.Close(); err != nil {
		t.Fatalf("close log: %v", err)
	}
	return log
}

func TestReplay_VerifiesLoggedDigests(t *testing.T) {
	dir := t.TempDir()
	log := record(t, dir)

	files, err := persistlog.TickLogFiles(dir)
	if err != nil || len(files) == 0 {
		t.Fatalf("log files: %v %v", files, err)
	}
	dst := newWorld(t)
	r := &replayer{w: dst}
	for _, f := range files {
		if err := r.file(f); err != nil {
			t.Fatalf("replay: %v", err)
		}
	}
	if r.checked != uint64(len(log.entries)) {
		t.Fatalf("checked %d of %d ticks", r.checked, len(log.entries))
	}
}

func TestReplay_StopsAtToTick(t *testing.T) {
	dir := t.TempDir()
	record(t, dir)
	files, _ := persistlog.TickLogFiles(dir)

	dst := newWorld(t)
	r := &replayer{w: dst, to: 10}
	for _, f := range files {
		if err := r.file(f); err != nil {
			t.Fatalf("replay: %v", err)
		}
		if r.done() {
			break
		}
	}
	if dst.CurrentTick() != 10 || r.checked != 10 {
		t.Fatalf("tick=%d checked=%d", dst.CurrentTick(), r.checked)
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	dir := t.TempDir()
	log := record(t, dir)

	dst := newWorld(t)
	r := &replayer{w: dst}
	for i, e := range log.entries {
		if i == 3 {
			e.Digest = strings.Repeat("0", 64)
		}
		err := r.step(e)
		if i < 3 && err != nil {
			t.Fatalf("tick %d: %v", e.Tick, err)
		}
		if i == 3 {
			if err == nil || !strings.Contains(err.Error(), "digest mismatch") {
				t.Fatalf("tampered digest not detected: %v", err)
			}
			return
		}
	}
}

func TestReplay_RejectsGap(t *testing.T) {
	r := &replayer{w: newWorld(t)}
	if err := r.step(world.TickLogEntry{Tick: 5}); err == nil || !strings.Contains(err.Error(), "tick gap") {
		t.Fatalf("gap not detected: %v", err)
	}
}
