package world

import (
	"context"
	"time"

	"towerfront.ai/internal/sim/world/kernel/model"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingCmds []CommandEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []model.PlayerID

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case id := <-w.destroy:
			w.DestroyChunk(id)
		case env := <-w.inbox:
			pendingCmds = append(pendingCmds, env)
		case <-ticker.C:
			w.stepInternal(pendingJoins, pendingLeaves, pendingCmds)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingCmds = pendingCmds[:0]
		}
	}
}

// Stop ends Run. It must be called at most once.
func (w *World) Stop() { close(w.stop) }

// StepOnce runs a single tick with the given inputs. It is used by tests and
// replay; it must not be called while Run is active.
func (w *World) StepOnce(joins []JoinRequest, leaves []model.PlayerID, cmds []CommandEnvelope) (uint64, string) {
	return w.stepInternal(joins, leaves, cmds)
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
