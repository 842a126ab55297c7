package world

import (
	"fmt"

	"towerfront.ai/internal/persistence/snapshot"
	"towerfront.ai/internal/sim/encoding"
	"towerfront.ai/internal/sim/world/chunk"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
	"towerfront.ai/internal/sim/world/pathfind"
)

// ConfigFromSnapshot returns the world configuration a snapshot was taken with.
func ConfigFromSnapshot(s snapshot.SnapshotV1) WorldConfig {
	return WorldConfig{
		ID:                 s.Header.WorldID,
		Seed:               s.Seed,
		TickRateHz:         s.TickRate,
		DensityPermille:    s.DensityPermille,
		MaxPathLen:         s.MaxPathLen,
		SnapshotEveryTicks: s.SnapshotEveryTicks,
		ViewportMaxChunks:  s.ViewportMaxChunks,
		CommandsPerTick:    s.CommandsPerTick,
		Rules: chunk.Rules{
			OverflowDecayPeriod: s.Rules.OverflowDecayPeriod,
			SpawnShields:        s.Rules.SpawnShields,
		},
		Pathfind: pathfind.Config{
			D2Scale:        s.Pathfind.D2Scale,
			OwnDiscount:    s.Pathfind.OwnDiscount,
			ForeignPenalty: s.Pathfind.ForeignPenalty,
			BaseBudget:     s.Pathfind.BaseBudget,
			PerTowerBudget: s.Pathfind.PerTowerBudget,
		},
	}
}

// ImportSnapshot replaces the current simulation state with the snapshot.
// The next step simulates tick s.Header.Tick+1. Connected clients are kept
// and receive every chunk again.
//
// This must be called only when the world is stopped or from the world loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if w.cfg.Seed != s.Seed {
		return fmt.Errorf("snapshot seed mismatch: cfg=%d snap=%d", w.cfg.Seed, s.Seed)
	}
	if w.cfg.DensityPermille != s.DensityPermille {
		return fmt.Errorf("snapshot density mismatch: cfg=%d snap=%d", w.cfg.DensityPermille, s.DensityPermille)
	}

	chunks := make(map[addr.ChunkID]*chunk.Chunk, len(s.Chunks))
	for _, cs := range s.Chunks {
		c, err := chunk.Decode(encoding.NewReader(cs.Data))
		if err != nil {
			return fmt.Errorf("snapshot chunk %d,%d: %w", cs.CX, cs.CY, err)
		}
		if int(c.ID.X) != cs.CX || int(c.ID.Y) != cs.CY {
			return fmt.Errorf("snapshot chunk %d,%d: encoded id %v", cs.CX, cs.CY, c.ID)
		}
		chunks[c.ID] = c
	}

	destroyed := make(map[addr.ChunkID]struct{}, len(s.Destroyed))
	for _, k := range s.Destroyed {
		id := addr.ChunkID{X: uint8(k.CX), Y: uint8(k.CY)}
		if !id.Valid() {
			return fmt.Errorf("snapshot destroyed chunk %d,%d out of range", k.CX, k.CY)
		}
		destroyed[id] = struct{}{}
	}

	players := make(map[model.PlayerID]*Player, len(s.Players))
	for _, ps := range s.Players {
		id := model.PlayerID(ps.ID)
		if !id.Some() {
			return fmt.Errorf("snapshot player with id 0")
		}
		p := newPlayer(id, ps.Name)
		p.Alive = ps.Alive
		p.Spawned = ps.Spawned
		p.DeathReason = ps.DeathReason
		for _, o := range ps.Allies {
			p.Allies[model.PlayerID(o)] = struct{}{}
		}
		for _, o := range ps.NewAllies {
			p.NewAllies[model.PlayerID(o)] = struct{}{}
		}
		for _, o := range ps.Requests {
			p.Requests[model.PlayerID(o)] = struct{}{}
		}
		v := ps.Viewport
		p.Viewport = addr.Rect{Min: addr.Tower(v[0], v[1]), Max: addr.Tower(v[2], v[3])}
		players[id] = p
	}

	w.chunks = chunks
	w.destroyed = destroyed
	w.players = players
	w.nextPlayer = model.PlayerID(s.Counters.NextPlayer)
	w.singleton.Tick = s.Header.Tick
	w.tick.Store(s.Header.Tick)
	w.pendingDestroy = nil
	for _, cl := range w.clients {
		cl.sent = map[addr.ChunkID][32]byte{}
		cl.players = map[model.PlayerID]uint64{}
		cl.nonActor = ""
	}
	if s.Header.Digest != "" {
		if got := w.stateDigest(s.Header.Tick); got != s.Header.Digest {
			return fmt.Errorf("snapshot digest mismatch at tick %d: got %s want %s", s.Header.Tick, got, s.Header.Digest)
		}
	}
	return nil
}
