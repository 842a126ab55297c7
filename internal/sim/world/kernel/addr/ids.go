package addr

import "fmt"

const (
	// WorldSize is the number of towers along each side of the world grid.
	WorldSize = 512
	// ChunkSize is the number of towers along each side of a chunk.
	ChunkSize = 16
	// ChunksPerSide is the number of chunks along each side of the world grid.
	ChunksPerSide = WorldSize / ChunkSize
	// TowersPerChunk is the dense array length of a chunk.
	TowersPerChunk = ChunkSize * ChunkSize
)

// TowerID addresses one cell of the world grid.
type TowerID struct {
	X uint16 `json:"x"`
	Y uint16 `json:"y"`
}

// ChunkID addresses one square partition of the world grid.
type ChunkID struct {
	X uint8 `json:"x"`
	Y uint8 `json:"y"`
}

// RelativeTowerID addresses a tower inside its chunk.
type RelativeTowerID struct {
	X uint8 `json:"x"`
	Y uint8 `json:"y"`
}

func Tower(x, y int) TowerID { return TowerID{X: uint16(x), Y: uint16(y)} }

// Center is the tower the connectivity table converges on.
func Center() TowerID { return TowerID{X: WorldSize / 2, Y: WorldSize / 2} }

func (id TowerID) Valid() bool { return id.X < WorldSize && id.Y < WorldSize }

func (id TowerID) String() string { return fmt.Sprintf("%d,%d", id.X, id.Y) }

// Index is the dense world index of the tower (x fastest).
func (id TowerID) Index() int { return int(id.X) + int(id.Y)*WorldSize }

func TowerFromIndex(i int) TowerID {
	return TowerID{X: uint16(i % WorldSize), Y: uint16(i / WorldSize)}
}

// Offset returns the tower at (x+dx, y+dy) if it is inside the world.
func (id TowerID) Offset(dx, dy int) (TowerID, bool) {
	x := int(id.X) + dx
	y := int(id.Y) + dy
	if x < 0 || y < 0 || x >= WorldSize || y >= WorldSize {
		return TowerID{}, false
	}
	return TowerID{X: uint16(x), Y: uint16(y)}, true
}

func (id TowerID) DistanceSquared(o TowerID) uint64 {
	dx := int64(id.X) - int64(o.X)
	dy := int64(id.Y) - int64(o.Y)
	return uint64(dx*dx + dy*dy)
}

// Manhattan distance, used for bounding rectangles and budgets.
func (id TowerID) Manhattan(o TowerID) int {
	dx := int(id.X) - int(o.X)
	if dx < 0 {
		dx = -dx
	}
	dy := int(id.Y) - int(o.Y)
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Split decomposes the id into its chunk and chunk-relative parts.
func (id TowerID) Split() (ChunkID, RelativeTowerID) {
	return ChunkID{X: uint8(id.X / ChunkSize), Y: uint8(id.Y / ChunkSize)},
		RelativeTowerID{X: uint8(id.X % ChunkSize), Y: uint8(id.Y % ChunkSize)}
}

func (id TowerID) Chunk() ChunkID {
	c, _ := id.Split()
	return c
}

func (id TowerID) Relative() RelativeTowerID {
	_, r := id.Split()
	return r
}

// Upgrade recomposes a world id from the chunk it belongs to.
func (r RelativeTowerID) Upgrade(c ChunkID) TowerID {
	return TowerID{
		X: uint16(c.X)*ChunkSize + uint16(r.X),
		Y: uint16(c.Y)*ChunkSize + uint16(r.Y),
	}
}

func (r RelativeTowerID) Valid() bool { return r.X < ChunkSize && r.Y < ChunkSize }

func (r RelativeTowerID) Index() int { return int(r.X) + int(r.Y)*ChunkSize }

func RelativeFromIndex(i int) RelativeTowerID {
	return RelativeTowerID{X: uint8(i % ChunkSize), Y: uint8(i / ChunkSize)}
}

func (c ChunkID) Valid() bool { return c.X < ChunksPerSide && c.Y < ChunksPerSide }

func (c ChunkID) String() string { return fmt.Sprintf("c%d,%d", c.X, c.Y) }

// Less orders chunks row-major, the iteration order of every world pass.
func (c ChunkID) Less(o ChunkID) bool {
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.X < o.X
}

// Less orders towers row-major.
func (id TowerID) Less(o TowerID) bool {
	if id.Y != o.Y {
		return id.Y < o.Y
	}
	return id.X < o.X
}

// Rect is an inclusive tower-space rectangle.
type Rect struct {
	Min TowerID `json:"min"`
	Max TowerID `json:"max"`
}

func (r Rect) Empty() bool { return r.Min.X > r.Max.X || r.Min.Y > r.Max.Y }

func (r Rect) Contains(id TowerID) bool {
	return id.X >= r.Min.X && id.X <= r.Max.X && id.Y >= r.Min.Y && id.Y <= r.Max.Y
}

// Grow extends r to cover id; an Empty rect becomes the single cell.
func (r Rect) Grow(id TowerID) Rect {
	if r.Empty() {
		return Rect{Min: id, Max: id}
	}
	if id.X < r.Min.X {
		r.Min.X = id.X
	}
	if id.Y < r.Min.Y {
		r.Min.Y = id.Y
	}
	if id.X > r.Max.X {
		r.Max.X = id.X
	}
	if id.Y > r.Max.Y {
		r.Max.Y = id.Y
	}
	return r
}

// EmptyRect is the identity for Grow.
func EmptyRect() Rect { return Rect{Min: TowerID{X: 1, Y: 1}, Max: TowerID{}} }

// IntersectsChunk reports whether any tower of chunk c lies in r.
func (r Rect) IntersectsChunk(c ChunkID) bool {
	if r.Empty() {
		return false
	}
	min := RelativeTowerID{}.Upgrade(c)
	max := RelativeTowerID{X: ChunkSize - 1, Y: ChunkSize - 1}.Upgrade(c)
	return !(max.X < r.Min.X || min.X > r.Max.X || max.Y < r.Min.Y || min.Y > r.Max.Y)
}
