package pathfind

import (
	"sync"
	"testing"

	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
)

var (
	gridOnce sync.Once
	grid     *addr.Tables
)

// fullGrid generates every cell, which leaves an orthogonal lattice.
func fullGrid() *addr.Tables {
	gridOnce.Do(func() { grid = addr.NewTablesWithDensity(3, 1000) })
	return grid
}

type mapView struct {
	occ    map[addr.TowerID]Occupancy
	allied map[[2]model.PlayerID]bool
}

func (m mapView) Occupancy(id addr.TowerID) Occupancy { return m.occ[id] }

func (m mapView) Allied(a, b model.PlayerID) bool {
	return m.allied[[2]model.PlayerID{a, b}] || m.allied[[2]model.PlayerID{b, a}]
}

func TestFind_AdjacentIsDirect(t *testing.T) {
	f := New(fullGrid(), DefaultConfig())
	a := addr.Tower(100, 100)
	b := addr.Tower(101, 100)
	r := f.Find(Query{From: a, To: b, Player: 1}, nil)
	if !r.Complete || len(r.Path) != 2 || r.Path[0] != a || r.Path[1] != b {
		t.Fatalf("adjacent: %+v", r)
	}
}

func TestFind_SameTower(t *testing.T) {
	f := New(fullGrid(), DefaultConfig())
	a := addr.Tower(100, 100)
	r := f.Find(Query{From: a, To: a}, nil)
	if !r.Complete || len(r.Path) != 1 {
		t.Fatalf("same tower: %+v", r)
	}
}

func TestFind_CostGrowsWithDistance(t *testing.T) {
	f := New(fullGrid(), DefaultConfig())
	from := addr.Tower(200, 200)
	prev := int64(-1)
	for d := 1; d <= 12; d++ {
		to := addr.Tower(200+d, 200+d/2)
		r := f.Find(Query{From: from, To: to}, nil)
		if !r.Complete {
			t.Fatalf("d=%d incomplete", d)
		}
		if r.Cost < prev {
			t.Fatalf("d=%d cost %d below previous %d", d, r.Cost, prev)
		}
		prev = r.Cost
	}
}

func TestFind_RespectsFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseBudget = 4096
	f := New(fullGrid(), cfg)
	from := addr.Tower(50, 50)
	to := addr.Tower(56, 50)
	banned := map[addr.TowerID]bool{}
	for y := 47; y <= 53; y++ {
		banned[addr.Tower(53, y)] = true
	}
	r := f.Find(Query{From: from, To: to, Filter: func(id addr.TowerID) bool { return !banned[id] }}, nil)
	if !r.Complete {
		t.Fatalf("detour not found: %+v", r)
	}
	for _, id := range r.Path {
		if banned[id] {
			t.Fatalf("path crosses filtered tower %v", id)
		}
	}
	if len(r.Path) <= 7 {
		t.Fatalf("path should detour, got %d towers", len(r.Path))
	}
}

func TestFind_AllyOnlyAsDestination(t *testing.T) {
	f := New(fullGrid(), DefaultConfig())
	from := addr.Tower(80, 80)
	mid := addr.Tower(81, 80)
	to := addr.Tower(82, 80)
	v := mapView{
		occ:    map[addr.TowerID]Occupancy{mid: {Owner: 2}},
		allied: map[[2]model.PlayerID]bool{{1, 2}: true},
	}
	r := f.Find(Query{From: from, To: to, Player: 1}, v)
	if !r.Complete {
		t.Fatalf("no path: %+v", r)
	}
	for _, id := range r.Path {
		if id == mid {
			t.Fatalf("path passes through allied tower")
		}
	}
	r = f.Find(Query{From: from, To: mid, Player: 1}, v)
	if !r.Complete || len(r.Path) != 2 {
		t.Fatalf("allied destination: %+v", r)
	}
}

func TestFind_PrefersOwnTerritory(t *testing.T) {
	f := New(fullGrid(), DefaultConfig())
	from := addr.Tower(300, 300)
	to := addr.Tower(302, 300)
	// The straight middle tower is hostile; the detour is owned.
	v := mapView{occ: map[addr.TowerID]Occupancy{
		addr.Tower(301, 300): {Owner: 5},
		addr.Tower(300, 301): {Owner: 1},
		addr.Tower(301, 301): {Owner: 1},
		addr.Tower(302, 301): {Owner: 1},
	}}
	r := f.Find(Query{From: from, To: to, Player: 1}, v)
	if !r.Complete {
		t.Fatalf("no path")
	}
	for _, id := range r.Path {
		if id == addr.Tower(301, 300) {
			t.Fatalf("path cut through hostile tower: %v", r.Path)
		}
	}
}

func TestFind_BudgetReturnsClosest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseBudget = 10
	cfg.PerTowerBudget = 0
	f := New(fullGrid(), cfg)
	from := addr.Tower(10, 10)
	to := addr.Tower(200, 10)
	r := f.Find(Query{From: from, To: to}, nil)
	if r.Complete {
		t.Fatalf("search should run out of budget")
	}
	if r.Iterations != 10 {
		t.Fatalf("iterations %d", r.Iterations)
	}
	if len(r.Path) < 2 || r.Path[0] != from || r.Path[len(r.Path)-1] != r.Closest {
		t.Fatalf("partial path %v closest %v", r.Path, r.Closest)
	}
	if r.Closest.DistanceSquared(to) >= from.DistanceSquared(to) {
		t.Fatalf("closest %v not closer than start", r.Closest)
	}
}

func TestFind_Deterministic(t *testing.T) {
	tb := addr.NewTables(21)
	f := New(tb, DefaultConfig())
	var from, to addr.TowerID
	for x := 240; x < 260; x++ {
		if tb.Exists(addr.Tower(x, 230)) {
			from = addr.Tower(x, 230)
			break
		}
	}
	for x := 240; x < 260; x++ {
		if tb.Exists(addr.Tower(x, 280)) {
			to = addr.Tower(x, 280)
			break
		}
	}
	a := f.Find(Query{From: from, To: to}, nil)
	b := f.Find(Query{From: from, To: to}, nil)
	if len(a.Path) != len(b.Path) || a.Cost != b.Cost {
		t.Fatalf("runs differ")
	}
	for i := range a.Path {
		if a.Path[i] != b.Path[i] {
			t.Fatalf("runs differ at %d", i)
		}
		if i > 0 && !tb.IsNeighbor(a.Path[i-1], a.Path[i]) {
			t.Fatalf("hop %v -> %v is not a road", a.Path[i-1], a.Path[i])
		}
	}
}
