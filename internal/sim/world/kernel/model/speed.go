package model

// Speed classifies how fast a force travels.
type Speed uint8

const (
	Immobile Speed = iota
	Slow
	Normal
	Fast
)

var speedNames = [...]string{"IMMOBILE", "SLOW", "NORMAL", "FAST"}

func (s Speed) String() string {
	if int(s) < len(speedNames) {
		return speedNames[s]
	}
	return "SPEED?"
}

// ProgressPerTick is the path progress a force gains each tick at speed s.
func (s Speed) ProgressPerTick() uint16 {
	switch s {
	case Slow:
		return 1
	case Normal:
		return 2
	case Fast:
		return 4
	default:
		return 0
	}
}

// carryOrder lists ground kinds from slowest to fastest, the order choppers pick them up.
var carryOrder = [...]Unit{Tank, Soldier, Ruler}

// Speed is the speed of a force carrying u. Choppers lift ground units by
// weight, slowest first; the force moves at the slowest kind left on the
// ground, or Fast when everything fits. Shields ride along without slowing the
// force, so a Units holding nothing but shields is Immobile.
func (u Units) Speed() Speed {
	movable := false
	floor := Fast
	lift := u.Available(Chopper) * ChopperLift

	for _, k := range carryOrder {
		n := u.Available(k)
		if n == 0 {
			continue
		}
		movable = true
		carried := 0
		if w := k.Weight(); w > 0 && lift > 0 {
			carried = lift / w
			if carried > n {
				carried = n
			}
			lift -= carried * w
		}
		if carried < n && k.Speed() < floor {
			floor = k.Speed()
		}
	}
	u.Each(func(k Unit, n int) {
		if k == Shield || k == Tank || k == Soldier || k == Ruler {
			return
		}
		movable = true
		if k.Speed() < floor {
			floor = k.Speed()
		}
	})
	if !movable {
		return Immobile
	}
	return floor
}
