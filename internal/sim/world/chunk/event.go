package chunk

import (
	"fmt"

	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
)

// Event adds a force to a tower. Exactly one of Inbound and Outbound is set.
// Dest is explicit so the world can route it without knowing why it was sent.
type Event struct {
	Dest     addr.ChunkID
	Tower    addr.RelativeTowerID
	Inbound  *model.Force
	Outbound *model.OutboundForce
}

// ForceRef names an inbound force by its position in a tower's list. Refs are
// only valid within the halt phase that produced them.
type ForceRef struct {
	Tower addr.RelativeTowerID
	Index int
}

// HaltEvent freezes inbound forces at their next arrival and clears supply lines.
type HaltEvent struct {
	Dest        addr.ChunkID
	Forces      []ForceRef
	SupplyLines []addr.RelativeTowerID
}

func (h *HaltEvent) Empty() bool { return len(h.Forces) == 0 && len(h.SupplyLines) == 0 }

type InfoKind uint8

const (
	GainTower InfoKind = iota
	LoseTower
	RulerKilled
	Explosion
)

func (k InfoKind) String() string {
	switch k {
	case GainTower:
		return "GAIN_TOWER"
	case LoseTower:
		return "LOSE_TOWER"
	case RulerKilled:
		return "RULER_KILLED"
	case Explosion:
		return "EXPLOSION"
	}
	return fmt.Sprintf("INFO(%d)", uint8(k))
}

// InfoEvent is a side channel for clients. The simulation never reads it back.
type InfoEvent struct {
	Kind   InfoKind
	Tower  addr.TowerID
	Player model.PlayerID // the player the event concerns
	Unit   model.Unit     // Explosion only
}

// Output collects everything a tick or an input produces.
type Output struct {
	Events []Event
	Info   []InfoEvent
	Deaths []model.PlayerID
}

func (o *Output) Reset() {
	o.Events = o.Events[:0]
	o.Info = o.Info[:0]
	o.Deaths = o.Deaths[:0]
}

func (o *Output) info(k InfoKind, id addr.TowerID, p model.PlayerID) {
	if p.Some() {
		o.Info = append(o.Info, InfoEvent{Kind: k, Tower: id, Player: p})
	}
}

func (o *Output) rulerKilled(id addr.TowerID, p model.PlayerID) {
	if !p.Some() {
		return
	}
	o.Info = append(o.Info, InfoEvent{Kind: RulerKilled, Tower: id, Player: p})
	o.Deaths = append(o.Deaths, p)
}

// depart routes a force leaving its current tower: the force itself goes to
// the inbound list of its target and a shadow stays at the source.
func (o *Output) depart(f model.Force) {
	src := f.Source()
	dc, dr := f.Target().Split()
	sc, sr := src.Split()
	shadow := f.Shadow()
	o.Events = append(o.Events,
		Event{Dest: dc, Tower: dr, Inbound: &f},
		Event{Dest: sc, Tower: sr, Outbound: &shadow},
	)
}

// ApplyEvent delivers ev, whose Dest must be c.
func (c *Chunk) ApplyEvent(ev Event) {
	t := c.Tower(ev.Tower)
	switch {
	case ev.Inbound != nil:
		t.Inbound = append(t.Inbound, *ev.Inbound)
	case ev.Outbound != nil:
		t.Outbound = append(t.Outbound, *ev.Outbound)
	}
	c.dirty = true
}

// ApplyHalt delivers a halt event. Refs past the end of a list are ignored.
func (c *Chunk) ApplyHalt(ev HaltEvent) {
	for _, ref := range ev.Forces {
		t := c.Tower(ref.Tower)
		if ref.Index >= 0 && ref.Index < len(t.Inbound) {
			t.Inbound[ref.Index].Halted = true
		}
	}
	for _, rel := range ev.SupplyLines {
		c.Tower(rel).SupplyLine = nil
	}
	c.dirty = true
}
