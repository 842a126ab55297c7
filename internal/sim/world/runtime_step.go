package world

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"towerfront.ai/internal/protocol"
	"towerfront.ai/internal/sim/world/chunk"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
	"towerfront.ai/internal/sim/world/logic/rates"
)

// stepInternal runs one tick:
//
//  1. advance the clock
//  2. scan for halts and 3. apply them
//  4. clear the alliances formed last tick
//  5. tick every chunk, collecting events
//  6. run inputs (maintenance, then commands in inbox order), collecting events
//  7. deliver all events
//
// Chunks never see each other's state within a phase, so the order chunks
// are processed in only matters for the order of events, which is sorted.
func (w *World) stepInternal(joins []JoinRequest, leaves []model.PlayerID, envs []CommandEnvelope) (uint64, string) {
	stepStart := time.Now()

	// Joins and leaves happen at the tick boundary.
	recordedLeaves := make([]uint16, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.clients[id]; ok {
			delete(w.clients, id)
			recordedLeaves = append(recordedLeaves, uint16(id))
		}
	}
	recordedJoins := make([]JoinLog, 0, len(joins))
	for _, req := range joins {
		p := w.addPlayer(req.Name)
		if req.Out != nil {
			w.clients[p.ID] = &clientState{
				out:     req.Out,
				sent:    map[addr.ChunkID][32]byte{},
				players: map[model.PlayerID]uint64{},
			}
		}
		if req.Resp != nil {
			req.Resp <- JoinResponse{Welcome: w.welcome(p)}
		}
		recordedJoins = append(recordedJoins, JoinLog{Player: uint16(p.ID), Name: req.Name})
	}

	// 1.
	w.singleton.Tick++
	tick := w.singleton.Tick
	ctx := &chunk.Context{Tables: w.tables, Tick: tick, Relations: w, Rules: w.cfg.Rules}

	// 2, 3.
	w.applyHalts(w.haltScan())

	// 4.
	for _, p := range w.players {
		if len(p.NewAllies) > 0 {
			p.NewAllies = playerSet{}
		}
	}

	// 5.
	out := &w.out
	out.Reset()
	for _, cid := range w.sortedChunkIDs() {
		w.chunks[cid].Tick(ctx, out)
	}

	// 6.
	destroyed := w.maintenance(ctx, out)
	results := map[model.PlayerID][]protocol.CommandResult{}
	var recorded []CommandLog
	for _, env := range envs {
		p := w.players[env.Player]
		if p == nil {
			continue
		}
		for _, cmd := range env.Cmd.Commands {
			recorded = append(recorded, CommandLog{Player: uint16(p.ID), Cmd: cmd})
			res := protocol.CommandResult{ID: cmd.ID, Accepted: true}
			var err error
			var allowed bool
			p.cmdStart, p.cmdCount, allowed, _ = rates.Allow(tick, p.cmdStart, p.cmdCount, 1, w.cfg.CommandsPerTick)
			if !allowed {
				err = reject(protocol.ErrRateLimit, "more than %d commands this tick", w.cfg.CommandsPerTick)
			} else {
				err = w.applyCommand(ctx, p, cmd, out)
			}
			if err != nil {
				res.Accepted = false
				res.Code, res.Message = codeOf(err)
			}
			results[p.ID] = append(results[p.ID], res)
		}
	}

	// 7.
	for _, ev := range out.Events {
		if c := w.chunk(ev.Dest); c != nil {
			c.ApplyEvent(ev)
		}
	}

	summary := w.summarize()
	for id, cl := range w.clients {
		p := w.players[id]
		if p == nil {
			continue
		}
		msg := w.buildUpdate(p, cl, tick, summary, out.Info, results[id])
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		sendLatest(cl.out, b)
	}

	digest := w.stateDigest(tick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:      tick,
			Joins:     recordedJoins,
			Leaves:    recordedLeaves,
			Destroyed: destroyed,
			Commands:  recorded,
			Digest:    digest,
		})
	}

	if w.snapshotSink != nil && w.cfg.SnapshotEveryTicks > 0 && tick%uint64(w.cfg.SnapshotEveryTicks) == 0 {
		snap := w.ExportSnapshot()
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop snapshot if sink is backed up.
		}
	}

	w.tick.Store(tick)
	w.metrics.Store(WorldMetrics{
		Tick:         tick,
		Digest:       digest,
		Players:      len(w.players),
		AlivePlayers: summary.alive,
		Clients:      len(w.clients),
		LoadedChunks: len(w.chunks),
		Forces:       summary.forces,
		Events:       len(out.Events),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS: float64(time.Since(stepStart).Microseconds()) / 1000.0,
	})
	return tick, digest
}

// maintenance runs before commands: queued chunk removals, then cleanup for
// every player whose Ruler died during the chunk ticks. It returns the
// removed chunks for the tick log.
func (w *World) maintenance(ctx *chunk.Context, out *chunk.Output) [][2]int {
	var destroyed [][2]int
	for _, cid := range w.pendingDestroy {
		c, loaded := w.chunks[cid]
		if _, gone := w.destroyed[cid]; gone || !cid.Valid() {
			continue
		}
		if loaded {
			c.Each(w.tables, func(id addr.TowerID, t *model.Tower) {
				if t.Units.HasRuler() && t.Owner().Some() {
					out.Deaths = append(out.Deaths, t.Owner())
					out.Info = append(out.Info, chunk.InfoEvent{Kind: chunk.RulerKilled, Tower: id, Player: t.Owner()})
				}
				for _, f := range t.Inbound {
					if f.Units.HasRuler() && f.Player.Some() {
						out.Deaths = append(out.Deaths, f.Player)
						out.Info = append(out.Info, chunk.InfoEvent{Kind: chunk.RulerKilled, Tower: id, Player: f.Player})
					}
				}
			})
			delete(w.chunks, cid)
		}
		w.destroyed[cid] = struct{}{}
		destroyed = append(destroyed, [2]int{int(cid.X), int(cid.Y)})
	}
	w.pendingDestroy = w.pendingDestroy[:0]

	if len(out.Deaths) == 0 {
		return destroyed
	}
	deaths := append([]model.PlayerID(nil), out.Deaths...)
	sort.Slice(deaths, func(i, j int) bool { return deaths[i] < deaths[j] })
	for i, id := range deaths {
		if !id.Some() || (i > 0 && deaths[i-1] == id) {
			continue
		}
		if p := w.players[id]; p == nil || !p.Alive {
			continue
		}
		w.killPlayer(id, w.deathReason(id, out.Info))
		for _, cid := range w.sortedChunkIDs() {
			_ = w.chunks[cid].Apply(ctx, chunk.KillPlayer{Player: id}, out)
		}
		out.Events = neutralizeEvents(out.Events, id)
	}
	return destroyed
}

func (w *World) deathReason(id model.PlayerID, info []chunk.InfoEvent) string {
	for _, ev := range info {
		if ev.Kind == chunk.RulerKilled && ev.Player == id {
			return fmt.Sprintf("ruler killed at %v", ev.Tower)
		}
	}
	return "ruler killed"
}

// neutralizeEvents applies a player's death to forces that are still in
// flight between chunks. Both halves of a departure change the same way, so
// they stay a matching pair and are dropped together when emptied.
func neutralizeEvents(evs []chunk.Event, p model.PlayerID) []chunk.Event {
	kept := evs[:0]
	for _, ev := range evs {
		switch {
		case ev.Inbound != nil && ev.Inbound.Player == p:
			f := *ev.Inbound
			f.Player = model.NoPlayer
			f.Units.Subtract(model.Ruler, model.MaxCount)
			if f.Units.IsEmpty() {
				continue
			}
			ev.Inbound = &f
		case ev.Outbound != nil && ev.Outbound.Player == p:
			o := *ev.Outbound
			o.Player = model.NoPlayer
			o.Units.Subtract(model.Ruler, model.MaxCount)
			if o.Units.IsEmpty() {
				continue
			}
			ev.Outbound = &o
		}
		kept = append(kept, ev)
	}
	return kept
}

func (w *World) welcome(p *Player) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        uint16(p.ID),
		WorldID:         w.cfg.ID,
		Tick:            w.singleton.Tick,
		WorldParams: protocol.WorldParams{
			TickRateHz:      w.cfg.TickRateHz,
			WorldSize:       addr.WorldSize,
			ChunkSize:       addr.ChunkSize,
			Seed:            w.cfg.Seed,
			DensityPermille: w.cfg.DensityPermille,
			MaxPathLen:      w.cfg.MaxPathLen,
		},
	}
}
