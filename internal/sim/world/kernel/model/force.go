package model

import (
	"towerfront.ai/internal/sim/encoding"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/logic/mathx"
)

const (
	// ProgressScale is the path progress of one orthogonal hop.
	ProgressScale = 16
	// MaxFuel is the number of hops a multi-unit force may travel.
	MaxFuel = 96
)

// ProgressRequired is the fixed-point Euclidean length of the hop a -> b.
func ProgressRequired(a, b addr.TowerID) uint16 {
	return uint16(mathx.Isqrt(a.DistanceSquared(b) * ProgressScale * ProgressScale))
}

// Force is a group of units travelling along a path. It is stored in the
// inbound list of the tower it is heading to.
type Force struct {
	Path         Path
	PathProgress uint16
	Fuel         uint8
	Player       PlayerID
	Units        Units
	Halted       bool
}

// NewForce builds a force leaving path.Current(). Rulers never travel without a player.
func NewForce(player PlayerID, units Units, path Path) Force {
	if !player.Some() {
		units.Subtract(Ruler, MaxCount)
	}
	return Force{
		Path:   path,
		Fuel:   MaxFuel,
		Player: player,
		Units:  units,
	}
}

// Source is the tower the force is leaving on its current hop.
func (f *Force) Source() addr.TowerID { return f.Path.Current() }

// Target is the tower the force is heading to on its current hop.
func (f *Force) Target() addr.TowerID {
	next, ok := f.Path.Next()
	if !ok {
		return f.Path.Current()
	}
	return next
}

func (f *Force) ProgressRequired() uint16 {
	return ProgressRequired(f.Source(), f.Target())
}

// IsMultiUnit is false only for lone projectiles.
func (f *Force) IsMultiUnit() bool { return !f.Units.LoneProjectile() }

func (f *Force) Speed() Speed { return f.Units.Speed() }

// Starved reports a multi-unit force that has no fuel left for another hop.
func (f *Force) Starved() bool { return f.IsMultiUnit() && f.Fuel == 0 }

// RawTick advances progress along the current hop and reports arrival.
func (f *Force) RawTick() bool {
	req := f.ProgressRequired()
	if f.PathProgress < req {
		p := uint32(f.PathProgress) + uint32(f.Speed().ProgressPerTick())
		if p > uint32(req) {
			p = uint32(req)
		}
		f.PathProgress = uint16(p)
	}
	return f.PathProgress >= req
}

// CanMoveOn reports whether an arrived force continues past its target.
func (f *Force) CanMoveOn() bool {
	return !f.Halted && !f.Starved() && f.Path.Len() > 2
}

// TryMoveOn pops the reached hop and starts the next one. It returns false,
// leaving the force untouched, when the force must stop at its target.
func (f *Force) TryMoveOn() bool {
	if !f.CanMoveOn() {
		return false
	}
	f.Path.PopFront()
	f.PathProgress = 0
	if f.IsMultiUnit() && f.Fuel > 0 {
		f.Fuel--
	}
	return true
}

// Reroute replaces the route with a supply line leaving the current target.
func (f *Force) Reroute(line Path) {
	f.Path = line.Clone()
	f.PathProgress = 0
	f.Halted = false
	if f.IsMultiUnit() && f.Fuel > 0 {
		f.Fuel--
	}
}

// Shadow is the bandwidth-reduced copy kept by the tower being left.
func (f *Force) Shadow() OutboundForce {
	return OutboundForce{
		Target:       f.Target(),
		Player:       f.Player,
		Units:        f.Units,
		PathProgress: f.PathProgress,
		Required:     f.ProgressRequired(),
	}
}

// OutboundForce mirrors a force in the neighbor's inbound list so the tower it
// left can fight forces coming the other way without the full path.
type OutboundForce struct {
	Target       addr.TowerID
	Player       PlayerID
	Units        Units
	PathProgress uint16
	Required     uint16
}

// RawTick mirrors Force.RawTick and reports when the real force has arrived.
func (o *OutboundForce) RawTick() bool {
	if o.PathProgress < o.Required {
		p := uint32(o.PathProgress) + uint32(o.Units.Speed().ProgressPerTick())
		if p > uint32(o.Required) {
			p = uint32(o.Required)
		}
		o.PathProgress = uint16(p)
	}
	return o.PathProgress >= o.Required
}

func (f Force) Encode(w *encoding.Writer) {
	f.Path.Encode(w)
	w.Uvarint(uint64(f.PathProgress))
	w.Uint8(f.Fuel)
	w.Uvarint(uint64(f.Player))
	f.Units.Encode(w)
	w.Bool(f.Halted)
}

func DecodeForce(r *encoding.Reader) (Force, error) {
	var f Force
	f.Path = DecodePath(r)
	f.PathProgress = uint16(r.Bounded(0xFFFF, "progress"))
	f.Fuel = r.Uint8()
	f.Player = PlayerID(r.Bounded(0xFFFF, "player"))
	u, err := DecodeUnits(r)
	if err != nil {
		return Force{}, err
	}
	f.Units = u
	f.Halted = r.Bool()
	return f, r.Err()
}

func (o OutboundForce) Encode(w *encoding.Writer) {
	w.Uvarint(uint64(o.Target.X))
	w.Uvarint(uint64(o.Target.Y))
	w.Uvarint(uint64(o.Player))
	o.Units.Encode(w)
	w.Uvarint(uint64(o.PathProgress))
	w.Uvarint(uint64(o.Required))
}

func DecodeOutbound(r *encoding.Reader) (OutboundForce, error) {
	var o OutboundForce
	o.Target.X = uint16(r.Bounded(addr.WorldSize-1, "tower x"))
	o.Target.Y = uint16(r.Bounded(addr.WorldSize-1, "tower y"))
	o.Player = PlayerID(r.Bounded(0xFFFF, "player"))
	u, err := DecodeUnits(r)
	if err != nil {
		return OutboundForce{}, err
	}
	o.Units = u
	o.PathProgress = uint16(r.Bounded(0xFFFF, "progress"))
	o.Required = uint16(r.Bounded(0xFFFF, "required"))
	return o, r.Err()
}
