package main

import (
	"errors"
	"fmt"
	"path/filepath"

	persistlog "towerfront.ai/internal/persistence/log"
	"towerfront.ai/internal/sim/world"
	"towerfront.ai/internal/sim/world/kernel/addr"
)

var errStop = errors.New("stop")

// replayer feeds logged ticks back into a world and checks every digest at
// or after verifyFrom. Entries at or before start are skipped.
type replayer struct {
	w          *world.World
	start      uint64
	verifyFrom uint64
	to         uint64
	checked    uint64
}

func (r *replayer) done() bool { return r.to != 0 && r.w.CurrentTick() >= r.to }

func (r *replayer) file(path string) error {
	err := persistlog.ReadTicks(path, func(e world.TickLogEntry) error {
		if e.Tick <= r.start {
			return nil
		}
		if r.to != 0 && e.Tick > r.to {
			return errStop
		}
		return r.step(e)
	})
	if errors.Is(err, errStop) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func (r *replayer) step(e world.TickLogEntry) error {
	if want := r.w.CurrentTick() + 1; e.Tick != want {
		return fmt.Errorf("tick gap: want=%d got=%d", want, e.Tick)
	}
	for _, c := range e.Destroyed {
		r.w.DestroyChunk(addr.ChunkID{X: uint8(c[0]), Y: uint8(c[1])})
	}
	tick, got := r.w.StepOnce(e.JoinRequests(), e.LeaveIDs(), e.Envelopes())
	if tick != e.Tick {
		return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, e.Tick)
	}
	if tick >= r.verifyFrom {
		r.checked++
		if got != e.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, got, e.Digest)
		}
	}
	return nil
}
