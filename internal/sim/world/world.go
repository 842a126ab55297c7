// Package world owns the authoritative tower world: the chunk map, the
// players and the tick loop that moves events between chunks. Everything in
// a tick runs on the loop goroutine; the channels are the only way in.
package world

import (
	"fmt"
	"sort"
	"sync/atomic"

	"towerfront.ai/internal/persistence/snapshot"
	"towerfront.ai/internal/sim/world/chunk"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
	"towerfront.ai/internal/sim/world/pathfind"
)

// Singleton is world state that is not owned by any chunk.
type Singleton struct {
	Tick uint64
}

type World struct {
	cfg    WorldConfig
	tables *addr.Tables
	finder *pathfind.Finder

	singleton Singleton
	tick      atomic.Uint64

	chunks    map[addr.ChunkID]*chunk.Chunk
	destroyed map[addr.ChunkID]struct{}
	players   map[model.PlayerID]*Player
	clients   map[model.PlayerID]*clientState

	nextPlayer     model.PlayerID
	pendingDestroy []addr.ChunkID

	// scratch reused across ticks
	out chunk.Output

	inbox   chan CommandEnvelope
	join    chan JoinRequest
	leave   chan model.PlayerID
	destroy chan addr.ChunkID
	stop    chan struct{}

	tickLogger   TickLogger
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Value // WorldMetrics
}

// clientState is what the server remembers about a connected client in order
// to send it diffs.
type clientState struct {
	out      chan []byte
	sent     map[addr.ChunkID][32]byte
	players  map[model.PlayerID]uint64
	nonActor string
}

func New(cfg WorldConfig) (*World, error) {
	cfg.applyDefaults()
	if cfg.TickRateHz > 1000 {
		return nil, fmt.Errorf("world: tick rate %d too high", cfg.TickRateHz)
	}
	tables := addr.NewTablesWithDensity(cfg.Seed, cfg.DensityPermille)
	w := &World{
		cfg:       cfg,
		tables:    tables,
		finder:    pathfind.New(tables, cfg.Pathfind),
		chunks:    map[addr.ChunkID]*chunk.Chunk{},
		destroyed: map[addr.ChunkID]struct{}{},
		players:   map[model.PlayerID]*Player{},
		clients:   map[model.PlayerID]*clientState{},
		inbox:     make(chan CommandEnvelope, 1024),
		join:      make(chan JoinRequest, 64),
		leave:     make(chan model.PlayerID, 64),
		destroy:   make(chan addr.ChunkID, 64),
		stop:      make(chan struct{}),
	}
	return w, nil
}

func (w *World) ID() string                    { return w.cfg.ID }
func (w *World) Config() WorldConfig           { return w.cfg }
func (w *World) Tables() *addr.Tables          { return w.tables }
func (w *World) CurrentTick() uint64           { return w.tick.Load() }
func (w *World) Inbox() chan<- CommandEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest      { return w.join }
func (w *World) Leave() chan<- model.PlayerID  { return w.leave }
func (w *World) SetTickLogger(l TickLogger)    { w.tickLogger = l }

func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

// Destroy queues chunk removals from other goroutines while Run is active.
func (w *World) Destroy() chan<- addr.ChunkID { return w.destroy }

// chunk returns the chunk with id, generating it on first use. It returns nil
// for chunks outside the world or removed by DestroyChunk.
func (w *World) chunk(id addr.ChunkID) *chunk.Chunk {
	if c, ok := w.chunks[id]; ok {
		return c
	}
	if !id.Valid() {
		return nil
	}
	if _, gone := w.destroyed[id]; gone {
		return nil
	}
	c := chunk.Generate(id, w.tables)
	w.chunks[id] = c
	return c
}

// towerExists reports whether id is a tower of a chunk that was not destroyed.
func (w *World) towerExists(id addr.TowerID) bool {
	if !w.tables.Exists(id) {
		return false
	}
	_, gone := w.destroyed[id.Chunk()]
	return !gone
}

// peekTower is tower without generating: an ungenerated chunk reports the
// generated default.
func (w *World) peekTower(id addr.TowerID) (model.Tower, bool) {
	if !w.towerExists(id) {
		return model.Tower{}, false
	}
	if c, ok := w.chunks[id.Chunk()]; ok {
		return *c.TowerAt(id), true
	}
	return model.NewTower(model.GenerateTowerType(w.tables.Hash(id))), true
}

// Tower returns a copy of the tower at id for inspection from the loop
// goroutine or tests.
func (w *World) Tower(id addr.TowerID) (model.Tower, bool) { return w.peekTower(id) }

func (w *World) sortedChunkIDs() []addr.ChunkID {
	ids := make([]addr.ChunkID, 0, len(w.chunks))
	for id := range w.chunks {
		ids = append(ids, id)
	}
	sortChunkIDs(ids)
	return ids
}

func sortChunkIDs(ids []addr.ChunkID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

func (w *World) sortedPlayerIDs() []model.PlayerID {
	ids := make([]model.PlayerID, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DestroyChunk removes a chunk at the next input phase. Towers in it no
// longer exist, which halts forces routed through it. It must be called from
// the loop goroutine, or between StepOnce calls.
func (w *World) DestroyChunk(id addr.ChunkID) {
	w.pendingDestroy = append(w.pendingDestroy, id)
}
