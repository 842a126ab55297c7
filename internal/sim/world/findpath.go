package world

import (
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
	"towerfront.ai/internal/sim/world/pathfind"
)

// Occupancy implements pathfind.View without generating chunks.
func (w *World) Occupancy(id addr.TowerID) pathfind.Occupancy {
	t, ok := w.peekTower(id)
	if !ok {
		return pathfind.Occupancy{}
	}
	return pathfind.Occupancy{
		Owner:      t.Owner(),
		Garrisoned: !t.Owner().Some() && !t.Units.IsEmpty(),
	}
}

// FindPath searches a road path for player against the live world. Towers in
// destroyed chunks are impassable. Like every other World method it must run
// on the loop goroutine.
func (w *World) FindPath(from, to addr.TowerID, player model.PlayerID) pathfind.Result {
	return w.finder.Find(pathfind.Query{
		From:   from,
		To:     to,
		Player: player,
		Filter: w.towerExists,
	}, w)
}
