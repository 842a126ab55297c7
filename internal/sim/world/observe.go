package world

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"

	"towerfront.ai/internal/protocol"
	"towerfront.ai/internal/sim/encoding"
	"towerfront.ai/internal/sim/world/chunk"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
)

type playerSummary struct {
	towers          map[model.TowerType]int
	bounds          addr.Rect
	rulerThreatened bool
	towerThreatened bool
}

// tickSummary is computed once per tick from every loaded chunk and shared by
// all player updates.
type tickSummary struct {
	players map[model.PlayerID]*playerSummary
	alive   int
	forces  int
}

func (w *World) hostile(a, b model.PlayerID) bool {
	if a == b {
		return false
	}
	return !(a.Some() && b.Some() && w.Allied(a, b))
}

func (w *World) summarize() tickSummary {
	sum := tickSummary{players: map[model.PlayerID]*playerSummary{}}
	for _, p := range w.players {
		if p.Alive {
			sum.alive++
		}
	}
	for _, cid := range w.sortedChunkIDs() {
		w.chunks[cid].Each(w.tables, func(id addr.TowerID, t *model.Tower) {
			sum.forces += len(t.Inbound)
			owner := t.Owner()
			if !owner.Some() {
				return
			}
			ps := sum.players[owner]
			if ps == nil {
				ps = &playerSummary{towers: map[model.TowerType]int{}, bounds: addr.EmptyRect()}
				sum.players[owner] = ps
			}
			ps.towers[t.Type]++
			ps.bounds = ps.bounds.Grow(id)
			for i := range t.Inbound {
				if w.hostile(t.Inbound[i].Player, owner) {
					ps.towerThreatened = true
					if t.Units.HasRuler() {
						ps.rulerThreatened = true
					}
				}
			}
		})
	}
	return sum
}

func (w *World) nonActor(p *Player, sum tickSummary) protocol.NonActorUpdate {
	na := protocol.NonActorUpdate{Alive: p.Alive, DeathReason: p.DeathReason}
	ps := sum.players[p.ID]
	if ps == nil {
		return na
	}
	na.TowerCounts = make(map[string]int, len(ps.towers))
	for tt, n := range ps.towers {
		na.TowerCounts[tt.String()] = n
	}
	if !ps.bounds.Empty() {
		na.Bounds = &[4]int{int(ps.bounds.Min.X), int(ps.bounds.Min.Y), int(ps.bounds.Max.X), int(ps.bounds.Max.Y)}
	}
	if ps.rulerThreatened {
		na.Alerts = append(na.Alerts, protocol.AlertRulerThreatened)
	}
	if ps.towerThreatened {
		na.Alerts = append(na.Alerts, protocol.AlertTowerThreatened)
	}
	return na
}

// buildUpdate diffs the world against what cl has already been sent.
func (w *World) buildUpdate(p *Player, cl *clientState, tick uint64, sum tickSummary, info []chunk.InfoEvent, results []protocol.CommandResult) protocol.UpdateMsg {
	msg := protocol.UpdateMsg{
		Type:            protocol.TypeUpdate,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		PlayerID:        uint16(p.ID),
		Results:         results,
	}

	for cid := range cl.sent {
		if !p.Viewport.IntersectsChunk(cid) {
			delete(cl.sent, cid)
		}
	}
	if !p.Viewport.Empty() {
		lo, hi := p.Viewport.Min.Chunk(), p.Viewport.Max.Chunk()
		for cy := int(lo.Y); cy <= int(hi.Y); cy++ {
			for cx := int(lo.X); cx <= int(hi.X); cx++ {
				cid := addr.ChunkID{X: uint8(cx), Y: uint8(cy)}
				c, ok := w.chunks[cid]
				if !ok {
					continue
				}
				d := c.Digest()
				if prev, seen := cl.sent[cid]; seen && prev == d {
					continue
				}
				cl.sent[cid] = d
				msg.Chunks = append(msg.Chunks, encodeChunkUpdate(c, d))
			}
		}
	}

	for _, id := range w.sortedPlayerIDs() {
		o := w.players[id]
		if cl.players[id] == o.version {
			continue
		}
		cl.players[id] = o.version
		msg.Players = append(msg.Players, protocol.PlayerUpdate{
			ID:     uint16(o.ID),
			Name:   o.Name,
			Alive:  o.Alive,
			Allies: o.Allies.sorted(),
		})
	}

	na := w.nonActor(p, sum)
	if b, err := json.Marshal(na); err == nil && string(b) != cl.nonActor {
		cl.nonActor = string(b)
		msg.NonActor = &na
	}

	for _, ev := range info {
		if ev.Player != p.ID && !p.Viewport.Contains(ev.Tower) {
			continue
		}
		iu := protocol.InfoUpdate{
			Kind:   ev.Kind.String(),
			Tower:  [2]int{int(ev.Tower.X), int(ev.Tower.Y)},
			Player: uint16(ev.Player),
		}
		if ev.Kind == chunk.Explosion {
			iu.Unit = ev.Unit.String()
		}
		msg.Info = append(msg.Info, iu)
	}
	return msg
}

func encodeChunkUpdate(c *chunk.Chunk, digest [32]byte) protocol.ChunkUpdate {
	owners := make([]uint16, addr.TowersPerChunk)
	types := make([]uint16, addr.TowersPerChunk)
	for i := range c.Towers {
		owners[i] = uint16(c.Towers[i].Owner())
		types[i] = uint16(c.Towers[i].Type)
	}
	wr := encoding.NewWriter(2048)
	c.Encode(wr)
	return protocol.ChunkUpdate{
		ID:     [2]int{int(c.ID.X), int(c.ID.Y)},
		Digest: hex.EncodeToString(digest[:]),
		Owners: encoding.EncodeRLE(owners),
		Types:  encoding.EncodeRLE(types),
		Data:   base64.StdEncoding.EncodeToString(wr.Bytes()),
	}
}

// DecodeChunkUpdate restores the chunk carried by an update.
func DecodeChunkUpdate(u protocol.ChunkUpdate) (*chunk.Chunk, error) {
	raw, err := base64.StdEncoding.DecodeString(u.Data)
	if err != nil {
		return nil, err
	}
	return chunk.Decode(encoding.NewReader(raw))
}
