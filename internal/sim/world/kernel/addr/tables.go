package addr

import "towerfront.ai/internal/sim/world/logic/mathx"

// Direction indexes the fixed 8-neighbor offset table.
type Direction uint8

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest

	NumDirections = 8
)

const (
	connNone   uint8 = 0xff
	connCenter uint8 = 0xfe
)

// Offsets are ordered clockwise starting north. Neighbor iteration order is
// part of the deterministic contract of pathfinding and of the flood fill.
var Offsets = [NumDirections][2]int{
	{0, -1}, {1, -1}, {1, 0}, {1, 1},
	{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

func (d Direction) Diagonal() bool { return d&1 == 1 }

func (d Direction) Opposite() Direction { return (d + 4) % NumDirections }

// DefaultDensityPermille is the share of grid cells that hold a tower.
const DefaultDensityPermille = 820

// Tables holds the immutable per-cell lookups derived from the world seed.
// Build once with NewTables and share the pointer; nothing mutates it afterwards.
type Tables struct {
	seed      int64
	generated []bool
	roads     []uint8
	conn      []uint8
	count     int
}

// NewTables computes the road and connectivity tables for seed.
func NewTables(seed int64) *Tables {
	return NewTablesWithDensity(seed, DefaultDensityPermille)
}

func NewTablesWithDensity(seed int64, densityPermille int) *Tables {
	n := WorldSize * WorldSize
	t := &Tables{
		seed:      seed,
		generated: make([]bool, n),
		roads:     make([]uint8, n),
		conn:      make([]uint8, n),
	}
	center := Center()
	for i := 0; i < n; i++ {
		id := TowerFromIndex(i)
		t.generated[i] = id == center || int(mathx.Hash2(seed, int(id.X), int(id.Y))%1000) < densityPermille
	}
	for i := 0; i < n; i++ {
		if !t.generated[i] {
			continue
		}
		id := TowerFromIndex(i)
		var mask uint8
		for d := Direction(0); d < NumDirections; d++ {
			if t.roadCandidate(id, d) {
				mask |= 1 << d
			}
		}
		t.roads[i] = mask
	}
	t.floodFill(center)
	return t
}

func (t *Tables) gen(id TowerID, dx, dy int) bool {
	o, ok := id.Offset(dx, dy)
	return ok && t.generated[o.Index()]
}

// roadCandidate: orthogonal roads join any two generated cells. A diagonal road
// exists only if the two orthogonal corners are not both generated, so it never
// crosses the opposite diagonal or shortcuts an orthogonal pair.
func (t *Tables) roadCandidate(id TowerID, d Direction) bool {
	off := Offsets[d]
	if !t.gen(id, off[0], off[1]) {
		return false
	}
	if !d.Diagonal() {
		return true
	}
	return !(t.gen(id, off[0], 0) && t.gen(id, 0, off[1]))
}

func (t *Tables) floodFill(center TowerID) {
	for i := range t.conn {
		t.conn[i] = connNone
	}
	queue := make([]TowerID, 0, WorldSize*WorldSize/2)
	t.conn[center.Index()] = connCenter
	queue = append(queue, center)
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		mask := t.roads[cur.Index()]
		for d := Direction(0); d < NumDirections; d++ {
			if mask&(1<<d) == 0 {
				continue
			}
			off := Offsets[d]
			next, _ := cur.Offset(off[0], off[1])
			ni := next.Index()
			if t.conn[ni] != connNone {
				continue
			}
			// Store the direction pointing back toward cur.
			t.conn[ni] = uint8(d.Opposite())
			queue = append(queue, next)
		}
	}
	t.count = len(queue)
}

func (t *Tables) Seed() int64 { return t.seed }

// Count is the number of existing towers.
func (t *Tables) Count() int { return t.count }

// Exists reports whether a tower is generated and reachable from the center.
func (t *Tables) Exists(id TowerID) bool {
	return id.Valid() && t.conn[id.Index()] != connNone
}

// Connectivity returns the unique neighbor of id pointing toward the center.
// The center itself and non-existent towers report false.
func (t *Tables) Connectivity(id TowerID) (TowerID, bool) {
	if !id.Valid() {
		return TowerID{}, false
	}
	c := t.conn[id.Index()]
	if c == connNone || c == connCenter {
		return TowerID{}, false
	}
	off := Offsets[c]
	return id.Offset(off[0], off[1])
}

// RoadMask is the 8-bit neighbor mask of id, zero for non-existent towers.
func (t *Tables) RoadMask(id TowerID) uint8 {
	if !t.Exists(id) {
		return 0
	}
	return t.roads[id.Index()]
}

// Neighbors appends the road neighbors of id to dst in Offsets order.
func (t *Tables) Neighbors(dst []TowerID, id TowerID) []TowerID {
	mask := t.RoadMask(id)
	for d := Direction(0); d < NumDirections; d++ {
		if mask&(1<<d) == 0 {
			continue
		}
		off := Offsets[d]
		n, _ := id.Offset(off[0], off[1])
		dst = append(dst, n)
	}
	return dst
}

// IsNeighbor reports whether a road joins a and b.
func (t *Tables) IsNeighbor(a, b TowerID) bool {
	mask := t.RoadMask(a)
	if mask == 0 {
		return false
	}
	dx := int(b.X) - int(a.X)
	dy := int(b.Y) - int(a.Y)
	for d := Direction(0); d < NumDirections; d++ {
		if Offsets[d][0] == dx && Offsets[d][1] == dy {
			return mask&(1<<d) != 0
		}
	}
	return false
}

// Hash is the procedural hash of a cell, the input to tower type generation.
func (t *Tables) Hash(id TowerID) uint64 {
	return mathx.Hash2(t.seed^0x5bd1e995, int(id.X), int(id.Y))
}
