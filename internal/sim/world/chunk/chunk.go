// Package chunk holds one 16x16 partition of the tower grid and the per-tick
// state machine that advances it. A chunk only ever mutates its own towers;
// anything that crosses into another tower is emitted as an Event and
// delivered by the world in a later phase.
package chunk

import (
	"crypto/sha256"
	"fmt"

	"towerfront.ai/internal/sim/encoding"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
)

type Chunk struct {
	ID     addr.ChunkID
	Towers [addr.TowersPerChunk]model.Tower

	dirty bool
	hash  [32]byte
}

// Generate builds the untouched state of chunk id. Cells without a tower keep
// the zero Tower and are skipped by every tick step.
func Generate(id addr.ChunkID, t *addr.Tables) *Chunk {
	c := &Chunk{ID: id, dirty: true}
	for i := range c.Towers {
		tid := addr.RelativeFromIndex(i).Upgrade(id)
		if !t.Exists(tid) {
			continue
		}
		c.Towers[i] = model.NewTower(model.GenerateTowerType(t.Hash(tid)))
	}
	return c
}

// Tower returns the tower at rel.
func (c *Chunk) Tower(rel addr.RelativeTowerID) *model.Tower {
	return &c.Towers[rel.Index()]
}

// TowerAt returns the tower with absolute id, which must lie in c.
func (c *Chunk) TowerAt(id addr.TowerID) *model.Tower {
	return c.Tower(id.Relative())
}

// Each visits every existing tower in index order.
func (c *Chunk) Each(t *addr.Tables, fn func(id addr.TowerID, tw *model.Tower)) {
	for i := range c.Towers {
		id := addr.RelativeFromIndex(i).Upgrade(c.ID)
		if t.Exists(id) {
			fn(id, &c.Towers[i])
		}
	}
}

// Touch marks the chunk as changed after an out-of-band mutation.
func (c *Chunk) Touch() { c.dirty = true }

// Digest is the sha256 of the chunk encoding, recomputed only when dirty.
func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		w := encoding.NewWriter(1024)
		c.Encode(w)
		c.hash = sha256.Sum256(w.Bytes())
		c.dirty = false
	}
	return c.hash
}

func (c *Chunk) Encode(w *encoding.Writer) {
	w.Uint8(c.ID.X)
	w.Uint8(c.ID.Y)
	for i := range c.Towers {
		c.Towers[i].Encode(w)
	}
}

func Decode(r *encoding.Reader) (*Chunk, error) {
	c := &Chunk{dirty: true}
	c.ID.X = r.Uint8()
	c.ID.Y = r.Uint8()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if !c.ID.Valid() {
		return nil, fmt.Errorf("chunk: bad id %v", c.ID)
	}
	for i := range c.Towers {
		t, err := model.DecodeTower(r)
		if err != nil {
			return nil, fmt.Errorf("chunk %v tower %d: %w", c.ID, i, err)
		}
		c.Towers[i] = t
	}
	return c, nil
}
