package model

import (
	"fmt"
	"strings"

	"towerfront.ai/internal/sim/encoding"
)

// Units is the compact unit inventory of a tower or force.
//
// Always kinds live in their own fixed slots. The rest slot holds either the
// Many counts (tag == 0) or one Single kind (tag == kind+1, count in rest[0]).
// Switching layouts discards what the rest slot held. A Units with nothing in
// it is always the zero value, so it can be compared with ==.
type Units struct {
	always [numAlways]uint8
	tag    uint8
	rest   [numMany]uint8
}

// UnitsOf builds a Units by adding each (unit, count) pair in order.
func UnitsOf(pairs ...UnitCount) Units {
	var u Units
	for _, p := range pairs {
		u.Add(p.Unit, p.Count)
	}
	return u
}

// UnitCount pairs a kind with a count.
type UnitCount struct {
	Unit  Unit `json:"unit"`
	Count int  `json:"count"`
}

func (u *Units) single() (Unit, bool) {
	if u.tag == 0 {
		return 0, false
	}
	return Unit(u.tag - 1), true
}

// restPriority is the priority a newcomer must match to overwrite the rest
// slot, or -1 when the slot is empty.
func (u *Units) restPriority() int {
	if s, ok := u.single(); ok {
		return unitInfos[s].priority
	}
	for _, c := range u.rest {
		if c != 0 {
			return manyPriority
		}
	}
	return -1
}

func (u *Units) clearRest() {
	u.tag = 0
	u.rest = [numMany]uint8{}
}

// Available is the number of u units present.
func (u Units) Available(k Unit) int {
	switch k.Category() {
	case Always:
		return int(u.always[k])
	case Many:
		if u.tag != 0 {
			return 0
		}
		return int(u.rest[k-firstMany])
	default:
		if s, ok := u.single(); ok && s == k {
			return int(u.rest[0])
		}
		return 0
	}
}

func (u Units) Contains(k Unit) bool { return u.Available(k) > 0 }

func (u Units) HasRuler() bool { return u.Contains(Ruler) }

func (u Units) IsEmpty() bool { return u == Units{} }

// LoneProjectile reports units made of a single projectile kind. Such a
// group flies without fuel and never fights on the road.
func (u Units) LoneProjectile() bool {
	kinds := 0
	only := Unit(0)
	u.Each(func(k Unit, _ int) {
		kinds++
		only = k
	})
	return kinds == 1 && only.IsProjectile()
}

// Total is the number of units of all kinds.
func (u Units) Total() int {
	n := 0
	u.Each(func(_ Unit, c int) { n += c })
	return n
}

// Each calls fn for every present kind in Unit order.
func (u Units) Each(fn func(Unit, int)) {
	for k := Unit(0); k < NumUnits; k++ {
		if c := u.Available(k); c > 0 {
			fn(k, c)
		}
	}
}

// Add adds up to n units of kind k, bounded only by MaxCount and the rest
// slot priority rule. It returns how many were added.
func (u *Units) Add(k Unit, n int) int {
	if n <= 0 || !k.Valid() {
		return 0
	}
	switch k.Category() {
	case Always:
		add := clampAdd(int(u.always[k]), n, MaxCount)
		u.always[k] += uint8(add)
		return add
	case Many:
		if s, ok := u.single(); ok {
			if unitInfos[s].priority > manyPriority {
				return 0
			}
			u.clearRest()
		}
		i := k - firstMany
		add := clampAdd(int(u.rest[i]), n, MaxCount)
		u.rest[i] += uint8(add)
		return add
	default:
		if s, ok := u.single(); ok && s == k {
			add := clampAdd(int(u.rest[0]), n, MaxCount)
			u.rest[0] += uint8(add)
			return add
		}
		if u.restPriority() > unitInfos[k].priority {
			return 0
		}
		u.clearRest()
		add := clampAdd(0, n, MaxCount)
		u.tag = uint8(k) + 1
		u.rest[0] = uint8(add)
		return add
	}
}

// AddToTower adds up to n units of kind k within the capacity of type t. When
// overflow is set the kind-specific overflow allowance is available on top.
func (u *Units) AddToTower(k Unit, n int, t TowerType, overflow bool) int {
	limit := u.Capacity(k, t)
	if overflow {
		limit = u.OverflowCapacity(k, t)
	}
	room := limit - u.Available(k)
	if room <= 0 {
		return 0
	}
	if n > room {
		n = room
	}
	return u.Add(k, n)
}

// Subtract removes up to n units of kind k and returns how many were removed.
func (u *Units) Subtract(k Unit, n int) int {
	have := u.Available(k)
	if n <= 0 || have == 0 {
		return 0
	}
	if n > have {
		n = have
	}
	switch k.Category() {
	case Always:
		u.always[k] -= uint8(n)
	case Many:
		u.rest[k-firstMany] -= uint8(n)
	default:
		u.rest[0] -= uint8(n)
		if u.rest[0] == 0 {
			u.clearRest()
		}
	}
	return n
}

// Capacity is the nominal number of k units a tower of type t holds.
func (u Units) Capacity(k Unit, t TowerType) int {
	c := t.Capacity(k)
	if k == Shield && u.HasRuler() {
		c += RulerShieldBonus
	}
	return c
}

// OverflowCapacity is Capacity plus the temporary allowance of k.
func (u Units) OverflowCapacity(k Unit, t TowerType) int {
	c := u.Capacity(k, t) + k.Overflow()
	if c > MaxCount {
		c = MaxCount
	}
	return c
}

// Reconcile drops whatever does not fit the nominal capacity of t. The Ruler
// is handled first so a surviving Ruler keeps its Shield bonus.
func (u *Units) Reconcile(t TowerType) {
	if over := u.Available(Ruler) - u.Capacity(Ruler, t); over > 0 {
		u.Subtract(Ruler, over)
	}
	for k := Unit(0); k < NumUnits; k++ {
		if k == Ruler {
			continue
		}
		if over := u.Available(k) - u.Capacity(k, t); over > 0 {
			u.Subtract(k, over)
		}
	}
}

// Take moves every unit matching keep out of u and returns them.
func (u *Units) Take(keep func(Unit) bool) Units {
	var out Units
	u.Each(func(k Unit, n int) {
		if !keep(k) {
			return
		}
		out.Add(k, u.Subtract(k, n))
	})
	return out
}

// Merge adds every unit of o to u with no capacity limit and returns what was rejected by the rest slot.
func (u *Units) Merge(o Units) (rejected Units) {
	o.Each(func(k Unit, n int) {
		if added := u.Add(k, n); added < n {
			rejected.Add(k, n-added)
		}
	})
	return rejected
}

func (u Units) String() string {
	if u.IsEmpty() {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	first := true
	u.Each(func(k Unit, n int) {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		fmt.Fprintf(&b, "%s:%d", k, n)
	})
	b.WriteByte('}')
	return b.String()
}

// List returns the present kinds as (unit, count) pairs in Unit order.
func (u Units) List() []UnitCount {
	var out []UnitCount
	u.Each(func(k Unit, n int) { out = append(out, UnitCount{Unit: k, Count: n}) })
	return out
}

// Encode writes the always slots, the tag and the rest slot.
func (u Units) Encode(w *encoding.Writer) {
	for _, c := range u.always {
		w.Uint8(c)
	}
	w.Uint8(u.tag)
	if u.tag != 0 {
		w.Uint8(u.rest[0])
		return
	}
	for _, c := range u.rest {
		w.Uint8(c)
	}
}

// DecodeUnits reads what Encode wrote and rejects values that break the layout invariant.
func DecodeUnits(r *encoding.Reader) (Units, error) {
	var u Units
	for i := range u.always {
		u.always[i] = r.Uint8()
	}
	u.tag = r.Uint8()
	if u.tag != 0 {
		if k := Unit(u.tag - 1); !k.Valid() || k.Category() != Single {
			return Units{}, fmt.Errorf("units: bad single tag %d", u.tag)
		}
		u.rest[0] = r.Uint8()
		if r.Err() == nil && u.rest[0] == 0 {
			return Units{}, fmt.Errorf("units: zero-count single tag")
		}
	} else {
		for i := range u.rest {
			u.rest[i] = r.Uint8()
		}
	}
	if err := r.Err(); err != nil {
		return Units{}, err
	}
	return u, nil
}

func clampAdd(have, n, max int) int {
	if room := max - have; n > room {
		if room < 0 {
			return 0
		}
		return room
	}
	return n
}
