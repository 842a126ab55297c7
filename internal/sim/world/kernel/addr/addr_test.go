package addr

import (
	"sync"
	"testing"
)

var (
	tablesOnce sync.Once
	tables     *Tables
)

func testTables(t *testing.T) *Tables {
	t.Helper()
	tablesOnce.Do(func() { tables = NewTables(42) })
	return tables
}

func TestSplitUpgrade_RoundTrip(t *testing.T) {
	for y := 0; y < WorldSize; y += 7 {
		for x := 0; x < WorldSize; x += 3 {
			id := Tower(x, y)
			c, r := id.Split()
			if !c.Valid() || !r.Valid() {
				t.Fatalf("invalid split of %v: %v %v", id, c, r)
			}
			if got := r.Upgrade(c); got != id {
				t.Fatalf("upgrade(split(%v)) = %v", id, got)
			}
			if got := RelativeFromIndex(r.Index()); got != r {
				t.Fatalf("relative index round trip %v -> %v", r, got)
			}
		}
	}
}

func TestRelativeUpgrade_AllCellsOfChunk(t *testing.T) {
	c := ChunkID{X: 3, Y: 17}
	for i := 0; i < TowersPerChunk; i++ {
		r := RelativeFromIndex(i)
		id := r.Upgrade(c)
		if id.Chunk() != c || id.Relative() != r {
			t.Fatalf("chunk %v rel %v -> %v splits to %v %v", c, r, id, id.Chunk(), id.Relative())
		}
	}
}

func TestConnectivity_AcyclicToCenter(t *testing.T) {
	tb := testTables(t)
	center := Center()
	if !tb.Exists(center) {
		t.Fatalf("center must exist")
	}
	if _, ok := tb.Connectivity(center); ok {
		t.Fatalf("center has no parent")
	}
	checked := 0
	for i := 0; i < WorldSize*WorldSize; i += 97 {
		id := TowerFromIndex(i)
		if !tb.Exists(id) {
			continue
		}
		seen := map[TowerID]bool{}
		cur := id
		for cur != center {
			if seen[cur] {
				t.Fatalf("cycle from %v at %v", id, cur)
			}
			seen[cur] = true
			next, ok := tb.Connectivity(cur)
			if !ok {
				t.Fatalf("dead end at %v from %v", cur, id)
			}
			if !tb.IsNeighbor(cur, next) {
				t.Fatalf("connectivity %v -> %v is not a road", cur, next)
			}
			cur = next
		}
		checked++
	}
	if checked == 0 {
		t.Fatalf("no towers checked")
	}
}

func TestRoads_SymmetricAndNonCrossing(t *testing.T) {
	tb := testTables(t)
	for y := 200; y < 260; y++ {
		for x := 200; x < 260; x++ {
			id := Tower(x, y)
			for _, n := range tb.Neighbors(nil, id) {
				if !tb.IsNeighbor(n, id) {
					t.Fatalf("road %v -> %v not symmetric", id, n)
				}
			}
			// Diagonals of the same unit square never both exist.
			a, _ := id.Offset(1, 1)
			b, okB := id.Offset(1, 0)
			c, okC := id.Offset(0, 1)
			if okB && okC && tb.IsNeighbor(id, a) && tb.IsNeighbor(b, c) {
				t.Fatalf("crossing diagonals at %v", id)
			}
		}
	}
}

func TestTables_Deterministic(t *testing.T) {
	tb := testTables(t)
	other := NewTables(42)
	if other.Count() != tb.Count() {
		t.Fatalf("count mismatch %d vs %d", other.Count(), tb.Count())
	}
	for i := 0; i < WorldSize*WorldSize; i += 31 {
		id := TowerFromIndex(i)
		if tb.RoadMask(id) != other.RoadMask(id) {
			t.Fatalf("road mask differs at %v", id)
		}
	}
}

func TestRect_GrowAndChunks(t *testing.T) {
	r := EmptyRect()
	if !r.Empty() {
		t.Fatalf("expected empty")
	}
	r = r.Grow(Tower(20, 40)).Grow(Tower(5, 50))
	if r.Min != Tower(5, 40) || r.Max != Tower(20, 50) {
		t.Fatalf("rect %+v", r)
	}
	if !r.IntersectsChunk(ChunkID{X: 0, Y: 2}) || r.IntersectsChunk(ChunkID{X: 2, Y: 2}) {
		t.Fatalf("chunk intersection wrong")
	}
}
