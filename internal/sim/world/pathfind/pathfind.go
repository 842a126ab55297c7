// Package pathfind is the deterministic A* search over the road graph used by
// command validation, bots and the UI. All costs are int64 fixed point, so a
// server and a client given the same tables and view find the same path.
package pathfind

import (
	"container/heap"

	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
	"towerfront.ai/internal/sim/world/logic/mathx"
)

// Config holds the tunable constants of the search.
type Config struct {
	// D2Scale scales squared distances before the square root. 1<<16 makes an
	// orthogonal hop cost 256 and keeps every sum far inside int64.
	D2Scale int64
	// OwnDiscount is subtracted from hops onto the searching player's towers.
	OwnDiscount int64
	// ForeignPenalty is added to hops onto towers owned by someone else or
	// holding a neutral garrison.
	ForeignPenalty int64
	// The iteration budget is BaseBudget + PerTowerBudget * straight line length.
	BaseBudget     int
	PerTowerBudget int
}

func DefaultConfig() Config {
	return Config{
		D2Scale:        1 << 16,
		OwnDiscount:    64,
		ForeignPenalty: 512,
		BaseBudget:     256,
		PerTowerBudget: 64,
	}
}

// Occupancy is what the search needs to know about a tower.
type Occupancy struct {
	Owner      model.PlayerID
	Garrisoned bool
}

// View exposes the live world to the search.
type View interface {
	Occupancy(id addr.TowerID) Occupancy
	Allied(a, b model.PlayerID) bool
}

// Query describes one search. Filter, when set, excludes every tower it
// rejects except From.
type Query struct {
	From, To addr.TowerID
	Player   model.PlayerID
	Filter   func(addr.TowerID) bool
}

// Result is the outcome of a search. When Complete is false Path leads from
// From to Closest, the reached tower nearest to To.
type Result struct {
	Path       []addr.TowerID
	Complete   bool
	Closest    addr.TowerID
	Cost       int64
	Iterations int
}

type Finder struct {
	tables *addr.Tables
	cfg    Config
}

func New(t *addr.Tables, cfg Config) *Finder {
	if cfg.D2Scale <= 0 {
		cfg.D2Scale = DefaultConfig().D2Scale
	}
	return &Finder{tables: t, cfg: cfg}
}

// distance is the fixed-point Euclidean length between a and b.
func (f *Finder) distance(a, b addr.TowerID) int64 {
	return int64(mathx.Isqrt(a.DistanceSquared(b) * uint64(f.cfg.D2Scale)))
}

func (f *Finder) budget(q Query) int {
	straight := int(mathx.Isqrt(q.From.DistanceSquared(q.To)))
	return f.cfg.BaseBudget + f.cfg.PerTowerBudget*straight
}

type node struct {
	id     addr.TowerID
	parent int32
	g, h   int64
	closed bool
}

type entry struct {
	node    int32
	f, h    int64
	towerID addr.TowerID
}

type openList []entry

func (o openList) Len() int { return len(o) }
func (o openList) Less(i, j int) bool {
	a, b := o[i], o[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.towerID.Less(b.towerID)
}
func (o openList) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o *openList) Push(x any)   { *o = append(*o, x.(entry)) }
func (o *openList) Pop() any {
	old := *o
	n := len(old)
	e := old[n-1]
	*o = old[:n-1]
	return e
}

// Find runs A* from q.From to q.To.
func (f *Finder) Find(q Query, v View) Result {
	if !f.tables.Exists(q.From) {
		return Result{Closest: q.From}
	}
	if q.From == q.To {
		return Result{Path: []addr.TowerID{q.From}, Complete: true, Closest: q.From}
	}

	nodes := make([]node, 0, 256)
	index := make(map[addr.TowerID]int32, 256)
	open := &openList{}

	push := func(id addr.TowerID, parent int32, g int64) {
		h := f.distance(id, q.To)
		if i, ok := index[id]; ok {
			n := &nodes[i]
			if n.closed || g >= n.g {
				return
			}
			n.parent, n.g = parent, g
			heap.Push(open, entry{node: i, f: g + h, h: h, towerID: id})
			return
		}
		i := int32(len(nodes))
		nodes = append(nodes, node{id: id, parent: parent, g: g, h: h})
		index[id] = i
		heap.Push(open, entry{node: i, f: g + h, h: h, towerID: id})
	}
	push(q.From, -1, 0)

	closest := int32(0)
	budget := f.budget(q)
	iterations := 0
	var nbuf [addr.NumDirections]addr.TowerID

	for open.Len() > 0 {
		if iterations >= budget {
			break
		}
		e := heap.Pop(open).(entry)
		cur := &nodes[e.node]
		if cur.closed || e.f != cur.g+cur.h {
			continue
		}
		cur.closed = true
		iterations++

		if better(cur, &nodes[closest]) {
			closest = e.node
		}
		if cur.id == q.To {
			return f.result(nodes, e.node, true, iterations)
		}

		curID, curG, curIdx := cur.id, cur.g, e.node
		for _, n := range f.tables.Neighbors(nbuf[:0], curID) {
			if q.Filter != nil && !q.Filter(n) {
				continue
			}
			cost, ok := f.hopCost(q, v, curID, n)
			if !ok {
				continue
			}
			push(n, curIdx, curG+cost)
		}
	}
	return f.result(nodes, closest, false, iterations)
}

// better orders candidates for the closest node: nearer to the goal first,
// then cheaper, then by tower id.
func better(a, b *node) bool {
	if a.h != b.h {
		return a.h < b.h
	}
	if a.g != b.g {
		return a.g < b.g
	}
	return a.id.Less(b.id)
}

// hopCost prices the hop a -> b, or reports b impassable.
func (f *Finder) hopCost(q Query, v View, a, b addr.TowerID) (int64, bool) {
	cost := f.distance(a, b)
	if v == nil {
		return cost, true
	}
	occ := v.Occupancy(b)
	switch {
	case q.Player.Some() && occ.Owner == q.Player:
		cost -= f.cfg.OwnDiscount
		if cost < 1 {
			cost = 1
		}
	case q.Player.Some() && occ.Owner.Some() && v.Allied(q.Player, occ.Owner):
		// Allied towers end a path but never carry one through.
		if b != q.To {
			return 0, false
		}
	case occ.Owner.Some() || occ.Garrisoned:
		cost += f.cfg.ForeignPenalty
	}
	return cost, true
}

func (f *Finder) result(nodes []node, last int32, complete bool, iterations int) Result {
	var rev []addr.TowerID
	for i := last; i >= 0; i = nodes[i].parent {
		rev = append(rev, nodes[i].id)
	}
	path := make([]addr.TowerID, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return Result{
		Path:       path,
		Complete:   complete,
		Closest:    nodes[last].id,
		Cost:       nodes[last].g,
		Iterations: iterations,
	}
}
