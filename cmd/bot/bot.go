package main

import (
	"fmt"
	"sort"

	"towerfront.ai/internal/protocol"
	"towerfront.ai/internal/sim/world"
	"towerfront.ai/internal/sim/world/chunk"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
	"towerfront.ai/internal/sim/world/pathfind"
)

// bot keeps the chunks the server sent and expands toward the nearest
// unowned tower every few ticks. The road graph is regenerated locally from
// the seed in WELCOME.
type bot struct {
	id     model.PlayerID
	tables *addr.Tables
	finder *pathfind.Finder
	chunks map[addr.ChunkID]*chunk.Chunk
	allies map[model.PlayerID]bool
	every  uint64
	reach  int
	maxLen int
	seq    int
}

func newBot(w protocol.WelcomeMsg, every uint64, reach int) *bot {
	tables := addr.NewTablesWithDensity(w.WorldParams.Seed, w.WorldParams.DensityPermille)
	if every == 0 {
		every = 1
	}
	return &bot{
		id:     model.PlayerID(w.PlayerID),
		tables: tables,
		finder: pathfind.New(tables, pathfind.DefaultConfig()),
		chunks: map[addr.ChunkID]*chunk.Chunk{},
		allies: map[model.PlayerID]bool{},
		every:  every,
		reach:  reach,
		maxLen: w.WorldParams.MaxPathLen,
	}
}

func (b *bot) nextID(kind string) string {
	b.seq++
	return fmt.Sprintf("%s_%d", kind, b.seq)
}

func (b *bot) spawn() protocol.Command {
	return protocol.Command{ID: b.nextID("spawn"), Kind: protocol.CmdSpawn}
}

// Occupancy and Allied let the bot search its own picture of the world.
func (b *bot) Occupancy(id addr.TowerID) pathfind.Occupancy {
	c := b.chunks[id.Chunk()]
	if c == nil {
		return pathfind.Occupancy{}
	}
	t := c.TowerAt(id)
	return pathfind.Occupancy{Owner: t.Owner(), Garrisoned: !t.Owner().Some() && !t.Units.IsEmpty()}
}

func (b *bot) Allied(x, y model.PlayerID) bool {
	if x == b.id {
		return b.allies[y]
	}
	if y == b.id {
		return b.allies[x]
	}
	return false
}

// observe folds an UPDATE into the bot state and returns the commands to send.
func (b *bot) observe(u *protocol.UpdateMsg) []protocol.Command {
	for _, cu := range u.Chunks {
		c, err := world.DecodeChunkUpdate(cu)
		if err != nil {
			continue
		}
		b.chunks[c.ID] = c
	}
	for _, p := range u.Players {
		if model.PlayerID(p.ID) != b.id {
			continue
		}
		b.allies = map[model.PlayerID]bool{}
		for _, a := range p.Allies {
			b.allies[model.PlayerID(a)] = true
		}
	}
	if u.Tick%b.every != 0 {
		return nil
	}
	if cmd, ok := b.expand(); ok {
		return []protocol.Command{cmd}
	}
	return nil
}

// expand picks the owned tower with the largest deployable garrison, other
// than the Ruler's, and sends it to the closest tower the bot does not own.
func (b *bot) expand() (protocol.Command, bool) {
	var from addr.TowerID
	best := 0
	for _, cid := range b.sortedChunks() {
		b.chunks[cid].Each(b.tables, func(id addr.TowerID, t *model.Tower) {
			if t.Owner() != b.id || t.Units.HasRuler() {
				return
			}
			n := t.Units.Available(model.Soldier)
			if n > best {
				best, from = n, id
			}
		})
	}
	if best == 0 {
		return b.firstStep()
	}
	to, ok := b.target(from)
	if !ok {
		return protocol.Command{}, false
	}
	return b.deploy(from, to)
}

// firstStep points the supply line of the Ruler's tower at the nearest
// target. Supply lines never carry the Ruler.
func (b *bot) firstStep() (protocol.Command, bool) {
	home, ok := b.home()
	if !ok {
		return protocol.Command{}, false
	}
	if t := b.chunks[home.Chunk()].TowerAt(home); t.SupplyLine != nil {
		return protocol.Command{}, false
	}
	to, ok := b.target(home)
	if !ok {
		return protocol.Command{}, false
	}
	r := b.finder.Find(pathfind.Query{From: home, To: to, Player: b.id}, b)
	if !r.Complete || len(r.Path) < 2 {
		return protocol.Command{}, false
	}
	return protocol.Command{
		ID:    b.nextID("supply"),
		Kind:  protocol.CmdSetSupplyLine,
		Tower: &[2]int{int(home.X), int(home.Y)},
		Path:  refs(r.Path),
	}, true
}

// home is the tower holding the bot's Ruler.
func (b *bot) home() (addr.TowerID, bool) {
	var home addr.TowerID
	found := false
	for _, cid := range b.sortedChunks() {
		b.chunks[cid].Each(b.tables, func(id addr.TowerID, t *model.Tower) {
			if !found && t.Owner() == b.id && t.Units.HasRuler() {
				home, found = id, true
			}
		})
		if found {
			break
		}
	}
	return home, found
}

func (b *bot) target(from addr.TowerID) (addr.TowerID, bool) {
	var best addr.TowerID
	bestD := uint64(0)
	limit := uint64(b.reach * b.reach)
	for _, cid := range b.sortedChunks() {
		b.chunks[cid].Each(b.tables, func(id addr.TowerID, t *model.Tower) {
			if t.Owner() == b.id || (t.Owner().Some() && b.Allied(b.id, t.Owner())) {
				return
			}
			d := from.DistanceSquared(id)
			if d == 0 || d > limit {
				return
			}
			if bestD == 0 || d < bestD || (d == bestD && id.Less(best)) {
				best, bestD = id, d
			}
		})
	}
	return best, bestD != 0
}

func (b *bot) deploy(from, to addr.TowerID) (protocol.Command, bool) {
	r := b.finder.Find(pathfind.Query{From: from, To: to, Player: b.id}, b)
	if !r.Complete || len(r.Path) < 2 || (b.maxLen > 0 && len(r.Path) > b.maxLen) {
		return protocol.Command{}, false
	}
	return protocol.Command{
		ID:    b.nextID("deploy"),
		Kind:  protocol.CmdDeployForce,
		Tower: &[2]int{int(from.X), int(from.Y)},
		Path:  refs(r.Path),
	}, true
}

func (b *bot) sortedChunks() []addr.ChunkID {
	ids := make([]addr.ChunkID, 0, len(b.chunks))
	for id := range b.chunks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

func refs(path []addr.TowerID) [][2]int {
	out := make([][2]int, len(path))
	for i, id := range path {
		out[i] = [2]int{int(id.X), int(id.Y)}
	}
	return out
}
