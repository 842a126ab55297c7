package model

import (
	"errors"
	"sync"
	"testing"

	"towerfront.ai/internal/sim/encoding"
	"towerfront.ai/internal/sim/world/kernel/addr"
)

var (
	tablesOnce sync.Once
	tables     *addr.Tables
)

func testTables() *addr.Tables {
	tablesOnce.Do(func() { tables = addr.NewTables(7) })
	return tables
}

// walk follows connectivity from start for n towers, a path that always exists.
func walk(t *testing.T, tb *addr.Tables, start addr.TowerID, n int) []addr.TowerID {
	t.Helper()
	out := []addr.TowerID{start}
	cur := start
	for len(out) < n {
		next, ok := tb.Connectivity(cur)
		if !ok {
			t.Fatalf("walk reached center early from %v", start)
		}
		out = append(out, next)
		cur = next
	}
	return out
}

func farTower(t *testing.T, tb *addr.Tables) addr.TowerID {
	t.Helper()
	for x := 200; x > 0; x-- {
		id := addr.Tower(x, 200)
		if tb.Exists(id) {
			return id
		}
	}
	t.Fatalf("no tower found")
	return addr.TowerID{}
}

func TestPath_Validate(t *testing.T) {
	tb := testTables()
	start := farTower(t, tb)
	ok := walk(t, tb, start, 5)

	if err := NewPath(ok).Validate(tb, start, 0); err != nil {
		t.Fatalf("valid path rejected: %v", err)
	}

	cases := []struct {
		name string
		path []addr.TowerID
		src  addr.TowerID
		max  int
		want error
	}{
		{"short", ok[:1], start, 0, ErrPathTooShort},
		{"long", ok, start, 3, ErrPathTooLong},
		{"source", ok, ok[1], 0, ErrSourceMismatch},
		{"duplicate", append(append([]addr.TowerID{}, ok[:3]...), ok[1]), start, 0, ErrDuplicateTower},
		{"out of world", []addr.TowerID{start, {X: addr.WorldSize, Y: 3}}, start, 0, ErrOutOfWorld},
		{"not adjacent", []addr.TowerID{ok[0], ok[2]}, start, 0, ErrNotAdjacent},
	}
	for _, c := range cases {
		err := NewPath(c.path).Validate(tb, c.src, c.max)
		if !errors.Is(err, c.want) {
			t.Fatalf("%s: got %v want %v", c.name, err, c.want)
		}
	}

	// A cell that is not generated.
	for x := 0; x < addr.WorldSize; x++ {
		id := addr.Tower(x, 100)
		if tb.Exists(id) {
			continue
		}
		err := NewPath([]addr.TowerID{start, id}).Validate(tb, start, 0)
		if !errors.Is(err, ErrUngenerated) {
			t.Fatalf("ungenerated: got %v", err)
		}
		break
	}
}

func TestPath_ReversedStorage(t *testing.T) {
	ids := []addr.TowerID{addr.Tower(1, 1), addr.Tower(2, 1), addr.Tower(3, 1)}
	p := NewPath(ids)
	if p.Current() != ids[0] || p.Destination() != ids[2] {
		t.Fatalf("ends: %v %v", p.Current(), p.Destination())
	}
	if n, _ := p.Next(); n != ids[1] {
		t.Fatalf("next: %v", n)
	}
	p.PopFront()
	if p.Current() != ids[1] || p.Len() != 2 {
		t.Fatalf("after pop: %v len=%d", p.Current(), p.Len())
	}
	got := p.Towers()
	if len(got) != 2 || got[0] != ids[1] || got[1] != ids[2] {
		t.Fatalf("towers: %v", got)
	}
}

func TestForce_RawTickAndMoveOn(t *testing.T) {
	ids := []addr.TowerID{addr.Tower(10, 10), addr.Tower(11, 10), addr.Tower(12, 11)}
	f := NewForce(1, UnitsOf(UnitCount{Soldier, 3}), NewPath(ids))
	if f.Target() != ids[1] {
		t.Fatalf("target %v", f.Target())
	}
	req := f.ProgressRequired()
	if req != ProgressScale {
		t.Fatalf("orthogonal hop required %d", req)
	}
	ticks := 0
	for !f.RawTick() {
		ticks++
		if ticks > 100 {
			t.Fatalf("never arrived")
		}
	}
	if want := int(ProgressScale/Normal.ProgressPerTick()) - 1; ticks != want {
		t.Fatalf("arrived after %d ticks want %d", ticks, want)
	}
	if !f.TryMoveOn() {
		t.Fatalf("should move on")
	}
	if f.Fuel != MaxFuel-1 || f.PathProgress != 0 || f.Target() != ids[2] {
		t.Fatalf("after move on: %+v", f)
	}
	// Diagonal hop uses the fixed-point Euclidean length.
	if got := f.ProgressRequired(); got != 22 {
		t.Fatalf("diagonal required %d", got)
	}
	for !f.RawTick() {
	}
	if f.TryMoveOn() {
		t.Fatalf("final hop must not move on")
	}
}

func TestForce_HaltedAndStarved(t *testing.T) {
	ids := []addr.TowerID{addr.Tower(10, 10), addr.Tower(11, 10), addr.Tower(12, 10)}
	f := NewForce(1, UnitsOf(UnitCount{Soldier, 3}), NewPath(ids))
	f.Halted = true
	if f.TryMoveOn() {
		t.Fatalf("halted force moved on")
	}
	f.Halted = false
	f.Fuel = 0
	if f.TryMoveOn() {
		t.Fatalf("starved force moved on")
	}

	nuke := NewForce(1, UnitsOf(UnitCount{Nuke, 1}), NewPath(ids))
	nuke.Fuel = 0
	if nuke.IsMultiUnit() || nuke.Starved() {
		t.Fatalf("projectiles do not burn fuel")
	}
	if !nuke.TryMoveOn() {
		t.Fatalf("projectile should move on")
	}
}

func TestForce_NoRulerWithoutPlayer(t *testing.T) {
	ids := []addr.TowerID{addr.Tower(10, 10), addr.Tower(11, 10)}
	f := NewForce(NoPlayer, UnitsOf(UnitCount{Soldier, 2}, UnitCount{Ruler, 1}), NewPath(ids))
	if f.Units.HasRuler() {
		t.Fatalf("ruler kept without player")
	}
}

func TestForce_ShadowMirrorsProgress(t *testing.T) {
	ids := []addr.TowerID{addr.Tower(10, 10), addr.Tower(11, 11)}
	f := NewForce(2, UnitsOf(UnitCount{Tank, 2}), NewPath(ids))
	s := f.Shadow()
	for {
		a := f.RawTick()
		b := s.RawTick()
		if a != b || f.PathProgress != s.PathProgress {
			t.Fatalf("shadow diverged: %d vs %d", f.PathProgress, s.PathProgress)
		}
		if a {
			break
		}
	}
}

func TestTower_SetOwnerInvariant(t *testing.T) {
	tw := NewTower(Town)
	tw.SetOwner(3)
	tw.Units.Add(Ruler, 1)
	tw.Units.Add(Shield, 4)
	line := NewPath([]addr.TowerID{addr.Tower(1, 1), addr.Tower(1, 2)})
	tw.SupplyLine = &line

	tw.SetOwner(NoPlayer)
	if tw.Units.Contains(Ruler) || tw.Units.Contains(Shield) {
		t.Fatalf("unowned tower kept %v", tw.Units)
	}
	if tw.SupplyLine != nil {
		t.Fatalf("supply line survived owner loss")
	}
}

func TestTower_EncodeRoundTrip(t *testing.T) {
	ids := []addr.TowerID{addr.Tower(10, 10), addr.Tower(11, 10), addr.Tower(12, 10)}
	tw := NewTower(City)
	tw.SetOwner(9)
	tw.Delay = 12
	f := NewForce(9, UnitsOf(UnitCount{Soldier, 4}, UnitCount{Fighter, 1}), NewPath(ids))
	f.PathProgress = 5
	tw.Inbound = append(tw.Inbound, f)
	tw.Outbound = append(tw.Outbound, f.Shadow())
	line := NewPath(ids)
	tw.SupplyLine = &line

	w := encoding.NewWriter(64)
	tw.Encode(w)
	got, err := DecodeTower(encoding.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	w2 := encoding.NewWriter(64)
	got.Encode(w2)
	if string(w.Bytes()) != string(w2.Bytes()) {
		t.Fatalf("re-encoding differs")
	}
	if got.Owner() != 9 || got.Inbound[0].Units != f.Units || got.SupplyLine.Destination() != ids[2] {
		t.Fatalf("decoded tower: %+v", got)
	}
}

func TestTowerType_UpgradeGraph(t *testing.T) {
	for tt := TowerType(0); tt < NumTowerTypes; tt++ {
		if tt.Raw() {
			if _, ok := tt.Prerequisite(); ok {
				t.Fatalf("%v raw with prerequisite", tt)
			}
			continue
		}
		p, _ := tt.Prerequisite()
		if !p.CanUpgradeTo(tt) || !tt.CanDowngradeTo(p) {
			t.Fatalf("%v <-> %v inconsistent", p, tt)
		}
		if tt.Capacity(Ruler) != 1 {
			t.Fatalf("%v must hold a ruler", tt)
		}
	}
	if got := GenerateTowerType(61); got != Quarry {
		t.Fatalf("generate 61: %v", got)
	}
	if tt, ok := ParseTowerType("airfield"); !ok || tt != Airfield {
		t.Fatalf("parse airfield")
	}
}
