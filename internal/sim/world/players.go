package world

import (
	"sort"

	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
)

type playerSet map[model.PlayerID]struct{}

func (s playerSet) has(p model.PlayerID) bool {
	_, ok := s[p]
	return ok
}

func (s playerSet) sorted() []uint16 {
	if len(s) == 0 {
		return nil
	}
	out := make([]uint16, 0, len(s))
	for p := range s {
		out = append(out, uint16(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type Player struct {
	ID   model.PlayerID
	Name string

	Alive       bool
	Spawned     bool
	DeathReason string

	// Allies is symmetric. NewAllies holds alliances formed during the last
	// input phase; the halt scan reads it and the tick clears it.
	Allies    playerSet
	NewAllies playerSet
	// Requests are outgoing alliance requests not yet answered.
	Requests playerSet

	Viewport addr.Rect

	// version changes whenever a field other players can see changes.
	version uint64

	// Command window of the rate limit. It spans one tick, so it is not
	// part of the persisted state.
	cmdStart uint64
	cmdCount int
}

func newPlayer(id model.PlayerID, name string) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		Allies:    playerSet{},
		NewAllies: playerSet{},
		Requests:  playerSet{},
		Viewport:  addr.EmptyRect(),
		version:   1,
	}
}

// player returns the player with id, creating it on first reference.
func (w *World) player(id model.PlayerID) *Player {
	if p, ok := w.players[id]; ok {
		return p
	}
	p := newPlayer(id, "")
	w.players[id] = p
	if id >= w.nextPlayer {
		w.nextPlayer = id
	}
	return p
}

// Player returns a copy of the player's state. The sets are shared and must
// not be modified.
func (w *World) Player(id model.PlayerID) (Player, bool) {
	p, ok := w.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

func (w *World) addPlayer(name string) *Player {
	w.nextPlayer++
	p := w.player(w.nextPlayer)
	p.Name = name
	p.version++
	return p
}

// Allied implements chunk.Relations and pathfind.View.
func (w *World) Allied(a, b model.PlayerID) bool {
	p, ok := w.players[a]
	return ok && p.Allies.has(b)
}

// requestAlliance records a's request; the alliance forms once both sides
// asked. It reports whether a new alliance was formed.
func (w *World) requestAlliance(a, b model.PlayerID) bool {
	pa, pb := w.player(a), w.player(b)
	if pa.Allies.has(b) {
		return false
	}
	if !pb.Requests.has(a) {
		pa.Requests[b] = struct{}{}
		return false
	}
	delete(pb.Requests, a)
	delete(pa.Requests, b)
	pa.Allies[b] = struct{}{}
	pb.Allies[a] = struct{}{}
	pa.NewAllies[b] = struct{}{}
	pb.NewAllies[a] = struct{}{}
	pa.version++
	pb.version++
	return true
}

func (w *World) breakAlliance(a, b model.PlayerID) {
	pa, pb := w.player(a), w.player(b)
	delete(pa.Requests, b)
	if !pa.Allies.has(b) {
		return
	}
	delete(pa.Allies, b)
	delete(pb.Allies, a)
	delete(pa.NewAllies, b)
	delete(pb.NewAllies, a)
	pa.version++
	pb.version++
}

// killPlayer marks p dead and dissolves its alliances. Chunk cleanup is done
// by the caller.
func (w *World) killPlayer(id model.PlayerID, reason string) {
	p := w.player(id)
	if !p.Alive {
		return
	}
	p.Alive = false
	p.DeathReason = reason
	for _, other := range p.Allies.sorted() {
		w.breakAlliance(id, model.PlayerID(other))
	}
	for other := range p.Requests {
		delete(p.Requests, other)
	}
	p.version++
}
