package model

import (
	"fmt"

	"towerfront.ai/internal/sim/encoding"
)

// Tower is the state of one grid cell.
type Tower struct {
	owner      PlayerID
	Type       TowerType
	Units      Units
	Delay      uint16 // busy ticks left after an upgrade
	Inbound    []Force
	Outbound   []OutboundForce
	SupplyLine *Path
	// Ticks since the last production step.
	Clock uint16
}

// NewTower is an untouched, unowned tower of a generated type.
func NewTower(t TowerType) Tower {
	tw := Tower{Type: t}
	if p := t.Production(); p.Unit == Soldier {
		tw.Units.AddToTower(Soldier, t.Capacity(Soldier)/2, t, false)
	}
	return tw
}

func (t *Tower) Owner() PlayerID { return t.owner }

// SetOwner is the only way to change ownership. Losing the owner clears the
// supply line and strips the units an unowned tower may not hold.
func (t *Tower) SetOwner(p PlayerID) {
	if p == t.owner {
		return
	}
	t.owner = p
	t.SupplyLine = nil
	if !p.Some() {
		t.Units.Subtract(Ruler, MaxCount)
		t.Units.Subtract(Shield, MaxCount)
	}
	t.check()
}

// IsBusy reports an upgrade in progress.
func (t *Tower) IsBusy() bool { return t.Delay > 0 }

// Upgrade switches the type, re-homes the garrison and starts the busy timer.
func (t *Tower) Upgrade(to TowerType) {
	t.Type = to
	t.Units.Reconcile(to)
	t.Delay = to.Delay()
	t.Clock = 0
	t.check()
}

// Downgrade switches back to the prerequisite type without a busy timer.
func (t *Tower) Downgrade(to TowerType) {
	t.Type = to
	t.Units.Reconcile(to)
	t.Delay = 0
	t.Clock = 0
}

// TakeDeployable takes what a deploy sends. A tower holding a projectile
// launches it alone and keeps its garrison; otherwise every mobile unit leaves.
func (t *Tower) TakeDeployable() Units {
	if k, ok := t.projectile(); ok {
		return t.Units.Take(func(u Unit) bool { return u == k })
	}
	out := t.Units.Take(func(u Unit) bool { return u.Mobile() })
	if out.HasRuler() {
		// The Shield bonus leaves with the Ruler.
		t.Units.Reconcile(t.Type)
	}
	return out
}

func (t *Tower) projectile() (Unit, bool) {
	for _, k := range [...]Unit{Shell, Emp, Nuke} {
		if t.Units.Contains(k) {
			return k, true
		}
	}
	return 0, false
}

// TakeSupply takes what a supply line carries: mobile units other than the Ruler.
func (t *Tower) TakeSupply() Units {
	return t.Units.Take(func(u Unit) bool { return u.Mobile() && u != Ruler })
}

// IsFull reports whether kind u is at or above nominal capacity.
func (t *Tower) IsFull(u Unit) bool {
	c := t.Units.Capacity(u, t.Type)
	return c > 0 && t.Units.Available(u) >= c
}

// DecayOverflow removes one unit of each kind held above nominal capacity.
func (t *Tower) DecayOverflow() bool {
	changed := false
	for u := Unit(0); u < NumUnits; u++ {
		if t.Units.Available(u) > t.Units.Capacity(u, t.Type) {
			t.Units.Subtract(u, 1)
			changed = true
		}
	}
	return changed
}

func (t *Tower) Encode(w *encoding.Writer) {
	w.Uvarint(uint64(t.owner))
	w.Uint8(uint8(t.Type))
	t.Units.Encode(w)
	w.Uvarint(uint64(t.Delay))
	w.Uvarint(uint64(t.Clock))
	w.Uvarint(uint64(len(t.Inbound)))
	for _, f := range t.Inbound {
		f.Encode(w)
	}
	w.Uvarint(uint64(len(t.Outbound)))
	for _, o := range t.Outbound {
		o.Encode(w)
	}
	w.Bool(t.SupplyLine != nil)
	if t.SupplyLine != nil {
		t.SupplyLine.Encode(w)
	}
}

const maxForcesPerTower = 4096

func DecodeTower(r *encoding.Reader) (Tower, error) {
	var t Tower
	t.owner = PlayerID(r.Bounded(0xFFFF, "owner"))
	t.Type = TowerType(r.Uint8())
	if r.Err() == nil && !t.Type.Valid() {
		return Tower{}, fmt.Errorf("tower: bad type %d", t.Type)
	}
	u, err := DecodeUnits(r)
	if err != nil {
		return Tower{}, err
	}
	t.Units = u
	t.Delay = uint16(r.Bounded(0xFFFF, "delay"))
	t.Clock = uint16(r.Bounded(0xFFFF, "clock"))
	n := r.Bounded(maxForcesPerTower, "inbound")
	for i := uint64(0); i < n; i++ {
		f, err := DecodeForce(r)
		if err != nil {
			return Tower{}, err
		}
		t.Inbound = append(t.Inbound, f)
	}
	n = r.Bounded(maxForcesPerTower, "outbound")
	for i := uint64(0); i < n; i++ {
		o, err := DecodeOutbound(r)
		if err != nil {
			return Tower{}, err
		}
		t.Outbound = append(t.Outbound, o)
	}
	if r.Bool() {
		p := DecodePath(r)
		t.SupplyLine = &p
	}
	if err := r.Err(); err != nil {
		return Tower{}, err
	}
	return t, nil
}
