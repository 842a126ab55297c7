package model

import (
	"testing"

	"towerfront.ai/internal/sim/encoding"
)

func TestUnits_ZeroIsDefault(t *testing.T) {
	var u Units
	u.Add(Nuke, 1)
	if u.IsEmpty() {
		t.Fatalf("expected nuke")
	}
	u.Subtract(Nuke, 5)
	if u != (Units{}) {
		t.Fatalf("empty units must equal zero value, got %#v", u)
	}

	u.Add(Fighter, 3)
	u.Add(Soldier, 2)
	u.Subtract(Fighter, 3)
	u.Subtract(Soldier, 2)
	if u != (Units{}) {
		t.Fatalf("empty units must equal zero value, got %#v", u)
	}
}

func TestUnits_SingleAndManyExclusive(t *testing.T) {
	var u Units
	u.Add(Fighter, 4)
	u.Add(Soldier, 5)

	// Ruler outranks the Many layout and discards it.
	if got := u.Add(Ruler, 1); got != 1 {
		t.Fatalf("ruler add=%d", got)
	}
	if u.Available(Fighter) != 0 || u.Available(Soldier) != 5 || !u.HasRuler() {
		t.Fatalf("after ruler: %v", u)
	}

	// Many units never displace a Ruler.
	if got := u.Add(Bomber, 2); got != 0 {
		t.Fatalf("bomber should be rejected, added %d", got)
	}
	// Nor does a lower single.
	if got := u.Add(Shell, 1); got != 0 {
		t.Fatalf("shell should be rejected, added %d", got)
	}

	var v Units
	v.Add(Shell, 2)
	// Many outranks Shell and replaces it.
	if got := v.Add(Chopper, 1); got != 1 {
		t.Fatalf("chopper add=%d", got)
	}
	if v.Available(Shell) != 0 || v.Available(Chopper) != 1 {
		t.Fatalf("after chopper: %v", v)
	}
	// Emp is below Many.
	if got := v.Add(Emp, 1); got != 0 {
		t.Fatalf("emp should be rejected")
	}
	// Nuke is above Many.
	if got := v.Add(Nuke, 1); got != 1 || v.Available(Chopper) != 0 {
		t.Fatalf("nuke should replace choppers: %v", v)
	}
}

func TestUnits_CapacityAndOverflow(t *testing.T) {
	var u Units
	c := u.Capacity(Soldier, Village)
	if got := u.AddToTower(Soldier, 100, Village, false); got != c {
		t.Fatalf("added %d want %d", got, c)
	}
	extra := u.AddToTower(Soldier, 100, Village, true)
	if extra != Soldier.Overflow() {
		t.Fatalf("overflow added %d want %d", extra, Soldier.Overflow())
	}
	if u.Available(Soldier) > u.OverflowCapacity(Soldier, Village) {
		t.Fatalf("above overflow capacity")
	}

	noRuler := u.Capacity(Shield, Town)
	u.Add(Ruler, 1)
	if got := u.Capacity(Shield, Town); got != noRuler+RulerShieldBonus {
		t.Fatalf("shield capacity with ruler %d want %d", got, noRuler+RulerShieldBonus)
	}
}

func TestUnits_SequencesStayBounded(t *testing.T) {
	ops := []struct {
		unit  Unit
		count int
		sub   bool
	}{
		{Soldier, 30, false}, {Tank, 9, false}, {Shield, 8, false},
		{Fighter, 3, false}, {Soldier, 4, true}, {Ruler, 1, false},
		{Shield, 40, false}, {Nuke, 1, false}, {Tank, 2, true},
		{Fighter, 20, false}, {Tank, 100, true}, {Fighter, 100, true},
	}
	for tt := TowerType(0); tt < NumTowerTypes; tt++ {
		var u Units
		for i, op := range ops {
			if op.sub {
				u.Subtract(op.unit, op.count)
			} else {
				u.AddToTower(op.unit, op.count, tt, i%2 == 0)
			}
			for k := Unit(0); k < NumUnits; k++ {
				if u.Available(k) > u.OverflowCapacity(k, tt) {
					t.Fatalf("%v: %v=%d above %d after op %d", tt, k, u.Available(k), u.OverflowCapacity(k, tt), i)
				}
			}
			if (u.Total() == 0) != (u == Units{}) {
				t.Fatalf("%v: zero/default mismatch after op %d: %#v", tt, i, u)
			}
		}
	}
}

func TestUnits_Reconcile(t *testing.T) {
	var u Units
	u.Add(Soldier, 40)
	u.Add(Tank, 12)
	u.Add(Shield, 20)
	u.Reconcile(Village)
	if u.Available(Soldier) != Village.Capacity(Soldier) || u.Available(Tank) != 0 || u.Available(Shield) != Village.Capacity(Shield) {
		t.Fatalf("reconcile: %v", u)
	}

	var r Units
	r.Add(Ruler, 1)
	r.Add(Shield, 15)
	r.Reconcile(Village)
	if want := Village.Capacity(Shield) + RulerShieldBonus; r.Available(Shield) != want {
		t.Fatalf("ruler bonus lost: %d want %d", r.Available(Shield), want)
	}
}

func TestUnits_EncodeRoundTrip(t *testing.T) {
	cases := []Units{
		{},
		UnitsOf(UnitCount{Soldier, 5}, UnitCount{Fighter, 2}, UnitCount{Chopper, 1}),
		UnitsOf(UnitCount{Tank, 3}, UnitCount{Ruler, 1}),
	}
	for _, u := range cases {
		w := encoding.NewWriter(8)
		u.Encode(w)
		got, err := DecodeUnits(encoding.NewReader(w.Bytes()))
		if err != nil {
			t.Fatalf("decode %v: %v", u, err)
		}
		if got != u {
			t.Fatalf("round trip %v -> %v", u, got)
		}
	}

	// A zero-count single tag is not a valid encoding.
	bad := []byte{0, 0, 0, uint8(Nuke) + 1, 0}
	if _, err := DecodeUnits(encoding.NewReader(bad)); err == nil {
		t.Fatalf("expected error for zero-count single")
	}
}

func TestSpeed_ChopperCarry(t *testing.T) {
	u := UnitsOf(UnitCount{Chopper, 2}, UnitCount{Tank, 4})
	if s := u.Speed(); s != Fast {
		t.Fatalf("2 choppers + 4 tanks: %v", s)
	}
	u.Add(Soldier, 4)
	if s := u.Speed(); s != Normal {
		t.Fatalf("+4 soldiers: %v", s)
	}
	u.Add(Tank, 1)
	if s := u.Speed(); s != Slow {
		t.Fatalf("5 tanks: %v", s)
	}
	u.Subtract(Tank, 3)
	if s := u.Speed(); s != Fast {
		t.Fatalf("2 tanks + 4 soldiers: %v", s)
	}
}

func TestSpeed_Basics(t *testing.T) {
	if s := (Units{}).Speed(); s != Immobile {
		t.Fatalf("empty: %v", s)
	}
	if s := UnitsOf(UnitCount{Shield, 3}).Speed(); s != Immobile {
		t.Fatalf("shields only: %v", s)
	}
	if s := UnitsOf(UnitCount{Soldier, 3}, UnitCount{Shield, 3}).Speed(); s != Normal {
		t.Fatalf("soldiers with shields: %v", s)
	}
	if s := UnitsOf(UnitCount{Fighter, 1}, UnitCount{Bomber, 1}).Speed(); s != Normal {
		t.Fatalf("fighter+bomber: %v", s)
	}
}

func TestFight_Mirrored(t *testing.T) {
	a := UnitsOf(UnitCount{Soldier, 10}, UnitCount{Tank, 2})
	b := UnitsOf(UnitCount{Soldier, 4}, UnitCount{Shield, 3}, UnitCount{Fighter, 2})

	a1, b1 := Fight(a, b)
	b2, a2 := Fight(b, a)
	if a1 != a2 || b1 != b2 {
		t.Fatalf("fight not mirrored: %v %v vs %v %v", a1, b1, a2, b2)
	}
	// a deals 16: 3 shields, 4 soldiers, then 9 damage over fighters (health 2) = 2 fighters.
	if !b1.IsEmpty() {
		t.Fatalf("defender should be wiped: %v", b1)
	}
	// b deals 4 + 4 = 8: eight soldiers.
	if a1.Available(Soldier) != 2 || a1.Available(Tank) != 2 {
		t.Fatalf("attacker after fight: %v", a1)
	}
}

func TestBattle_RulerDiesLast(t *testing.T) {
	a := UnitsOf(UnitCount{Soldier, 3})
	b := UnitsOf(UnitCount{Soldier, 1}, UnitCount{Ruler, 1})
	a, b = Battle(a, b)
	if !b.IsEmpty() {
		t.Fatalf("defender survived: %v", b)
	}
	if a.IsEmpty() {
		t.Fatalf("attacker should survive")
	}
}
