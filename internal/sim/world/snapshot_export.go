package world

import (
	"towerfront.ai/internal/persistence/snapshot"
	"towerfront.ai/internal/sim/encoding"
	"towerfront.ai/internal/sim/world/kernel/addr"
)

// ExportSnapshot captures the complete simulation state after the last tick.
// Clients are not part of it. It must be called from the world loop goroutine
// or while the world is stopped.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	tick := w.singleton.Tick
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    tick,
			Digest:  w.stateDigest(tick),
		},
		Seed:               w.cfg.Seed,
		DensityPermille:    w.cfg.DensityPermille,
		TickRate:           w.cfg.TickRateHz,
		MaxPathLen:         w.cfg.MaxPathLen,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		ViewportMaxChunks:  w.cfg.ViewportMaxChunks,
		CommandsPerTick:    w.cfg.CommandsPerTick,
		Rules: snapshot.RulesV1{
			OverflowDecayPeriod: w.cfg.Rules.OverflowDecayPeriod,
			SpawnShields:        w.cfg.Rules.SpawnShields,
		},
		Pathfind: snapshot.PathfindV1{
			D2Scale:        w.cfg.Pathfind.D2Scale,
			OwnDiscount:    w.cfg.Pathfind.OwnDiscount,
			ForeignPenalty: w.cfg.Pathfind.ForeignPenalty,
			BaseBudget:     w.cfg.Pathfind.BaseBudget,
			PerTowerBudget: w.cfg.Pathfind.PerTowerBudget,
		},
		Counters: snapshot.CountersV1{NextPlayer: uint16(w.nextPlayer)},
	}

	wr := encoding.NewWriter(4096)
	for _, id := range w.sortedChunkIDs() {
		wr.Reset()
		w.chunks[id].Encode(wr)
		s.Chunks = append(s.Chunks, snapshot.ChunkV1{
			CX:   int(id.X),
			CY:   int(id.Y),
			Data: append([]byte(nil), wr.Bytes()...),
		})
	}

	for _, id := range sortedChunkKeys(w.destroyed) {
		s.Destroyed = append(s.Destroyed, snapshot.ChunkKeyV1{CX: int(id.X), CY: int(id.Y)})
	}

	for _, id := range w.sortedPlayerIDs() {
		p := w.players[id]
		s.Players = append(s.Players, snapshot.PlayerV1{
			ID:          uint16(p.ID),
			Name:        p.Name,
			Alive:       p.Alive,
			Spawned:     p.Spawned,
			DeathReason: p.DeathReason,
			Allies:      p.Allies.sorted(),
			NewAllies:   p.NewAllies.sorted(),
			Requests:    p.Requests.sorted(),
			Viewport:    [4]int{int(p.Viewport.Min.X), int(p.Viewport.Min.Y), int(p.Viewport.Max.X), int(p.Viewport.Max.Y)},
		})
	}
	return s
}

func sortedChunkKeys(m map[addr.ChunkID]struct{}) []addr.ChunkID {
	ids := make([]addr.ChunkID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sortChunkIDs(ids)
	return ids
}
