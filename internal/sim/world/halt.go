package world

import (
	"towerfront.ai/internal/sim/world/chunk"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
)

// haltScan finds every inbound force and supply line that must stop: a hop
// ahead of it no longer exists, or is owned by a player who just became an
// ally of the sender. The result holds at most one event per chunk, in chunk
// order, addressed to the chunk that owns the force or line.
func (w *World) haltScan() []chunk.HaltEvent {
	var events []chunk.HaltEvent
	newAllies := map[model.PlayerID]playerSet{}
	for id, p := range w.players {
		if len(p.NewAllies) > 0 {
			newAllies[id] = p.NewAllies
		}
	}

	// blocked checks every hop of path after the one being left.
	blocked := func(sender model.PlayerID, path model.Path) bool {
		allies := newAllies[sender]
		first, hit := true, false
		path.Each(func(h addr.TowerID) bool {
			if first {
				first = false
				return true
			}
			if !w.towerExists(h) {
				hit = true
			} else if allies != nil {
				t, _ := w.peekTower(h)
				hit = allies.has(t.Owner())
			}
			return !hit
		})
		return hit
	}

	for _, cid := range w.sortedChunkIDs() {
		c := w.chunks[cid]
		ev := chunk.HaltEvent{Dest: cid}
		c.Each(w.tables, func(id addr.TowerID, t *model.Tower) {
			rel := id.Relative()
			for i := range t.Inbound {
				f := &t.Inbound[i]
				if f.Halted {
					continue
				}
				if blocked(f.Player, f.Path) {
					ev.Forces = append(ev.Forces, chunk.ForceRef{Tower: rel, Index: i})
				}
			}
			if t.SupplyLine != nil && blocked(t.Owner(), *t.SupplyLine) {
				ev.SupplyLines = append(ev.SupplyLines, rel)
			}
		})
		if !ev.Empty() {
			events = append(events, ev)
		}
	}
	return events
}

func (w *World) applyHalts(events []chunk.HaltEvent) {
	for _, ev := range events {
		if c := w.chunks[ev.Dest]; c != nil {
			c.ApplyHalt(ev)
		}
	}
}
