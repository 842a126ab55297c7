package model

import (
	"errors"
	"fmt"

	"towerfront.ai/internal/sim/encoding"
	"towerfront.ai/internal/sim/world/kernel/addr"
)

// MaxPathLen bounds the number of towers in a path.
const MaxPathLen = 64

// Path validation failures. Paths come from untrusted clients, so every
// failure is reported instead of asserted.
var (
	ErrPathTooShort   = errors.New("path too short")
	ErrPathTooLong    = errors.New("path too long")
	ErrSourceMismatch = errors.New("path does not start at source")
	ErrDuplicateTower = errors.New("path visits a tower twice")
	ErrOutOfWorld     = errors.New("path leaves the world")
	ErrNotAdjacent    = errors.New("path hop is not a road")
	ErrUngenerated    = errors.New("path crosses an ungenerated tower")
)

// Path is an ordered tower sequence stored reversed, so the tower being left
// is the last element and popping the front is O(1).
type Path struct {
	rev []addr.TowerID
}

// NewPath copies towers (source first) into a Path without validating it.
func NewPath(towers []addr.TowerID) Path {
	rev := make([]addr.TowerID, len(towers))
	for i, id := range towers {
		rev[len(towers)-1-i] = id
	}
	return Path{rev: rev}
}

func (p Path) Len() int { return len(p.rev) }

func (p Path) IsZero() bool { return len(p.rev) == 0 }

// Current is the tower the path is leaving, its first element.
func (p Path) Current() addr.TowerID { return p.rev[len(p.rev)-1] }

// Source is an alias of Current for freshly built paths.
func (p Path) Source() addr.TowerID { return p.Current() }

// Next is the tower after Current; ok is false on a single-tower path.
func (p Path) Next() (addr.TowerID, bool) {
	if len(p.rev) < 2 {
		return addr.TowerID{}, false
	}
	return p.rev[len(p.rev)-2], true
}

func (p Path) Destination() addr.TowerID { return p.rev[0] }

// PopFront drops Current.
func (p *Path) PopFront() {
	if len(p.rev) > 0 {
		p.rev = p.rev[:len(p.rev)-1]
	}
}

// Towers returns the path in travel order.
func (p Path) Towers() []addr.TowerID {
	out := make([]addr.TowerID, len(p.rev))
	for i, id := range p.rev {
		out[len(p.rev)-1-i] = id
	}
	return out
}

// Each calls fn for each tower in travel order until fn returns false.
func (p Path) Each(fn func(addr.TowerID) bool) {
	for i := len(p.rev) - 1; i >= 0; i-- {
		if !fn(p.rev[i]) {
			return
		}
	}
}

func (p Path) Contains(id addr.TowerID) bool {
	for _, t := range p.rev {
		if t == id {
			return true
		}
	}
	return false
}

// Clone returns a path that shares no storage with p.
func (p Path) Clone() Path {
	return Path{rev: append([]addr.TowerID(nil), p.rev...)}
}

// Validate checks p starts at src and follows existing roads.
func (p Path) Validate(t *addr.Tables, src addr.TowerID, maxLen int) error {
	if len(p.rev) < 2 {
		return ErrPathTooShort
	}
	if maxLen <= 0 || maxLen > MaxPathLen {
		maxLen = MaxPathLen
	}
	if len(p.rev) > maxLen {
		return ErrPathTooLong
	}
	if p.Current() != src {
		return ErrSourceMismatch
	}
	seen := make(map[addr.TowerID]struct{}, len(p.rev))
	var prev addr.TowerID
	for i := len(p.rev) - 1; i >= 0; i-- {
		id := p.rev[i]
		if !id.Valid() {
			return fmt.Errorf("%w: %v", ErrOutOfWorld, id)
		}
		if !t.Exists(id) {
			return fmt.Errorf("%w: %v", ErrUngenerated, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %v", ErrDuplicateTower, id)
		}
		seen[id] = struct{}{}
		if i != len(p.rev)-1 && !t.IsNeighbor(prev, id) {
			return fmt.Errorf("%w: %v -> %v", ErrNotAdjacent, prev, id)
		}
		prev = id
	}
	return nil
}

func (p Path) Encode(w *encoding.Writer) {
	w.Uvarint(uint64(len(p.rev)))
	for _, id := range p.rev {
		w.Uvarint(uint64(id.X))
		w.Uvarint(uint64(id.Y))
	}
}

func DecodePath(r *encoding.Reader) Path {
	n := r.Bounded(MaxPathLen, "path length")
	rev := make([]addr.TowerID, 0, n)
	for i := uint64(0); i < n; i++ {
		x := r.Bounded(addr.WorldSize-1, "tower x")
		y := r.Bounded(addr.WorldSize-1, "tower y")
		rev = append(rev, addr.TowerID{X: uint16(x), Y: uint16(y)})
	}
	return Path{rev: rev}
}
