package world

import (
	"errors"
	"fmt"

	"towerfront.ai/internal/protocol"
	"towerfront.ai/internal/sim/world/chunk"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
	"towerfront.ai/internal/sim/world/logic/mathx"
)

type commandError struct {
	code string
	msg  string
}

func (e *commandError) Error() string { return e.code + ": " + e.msg }

func reject(code, format string, args ...any) error {
	return &commandError{code: code, msg: fmt.Sprintf(format, args...)}
}

// codeOf maps a command failure to its protocol code.
func codeOf(err error) (string, string) {
	var ce *commandError
	switch {
	case errors.As(err, &ce):
		return ce.code, ce.msg
	case errors.Is(err, chunk.ErrNoTower):
		return protocol.ErrInvalidTarget, err.Error()
	case errors.Is(err, chunk.ErrNotOwner):
		return protocol.ErrNoPermission, err.Error()
	case errors.Is(err, chunk.ErrBusy), errors.Is(err, chunk.ErrOccupied):
		return protocol.ErrConflict, err.Error()
	case errors.Is(err, chunk.ErrNothingToDo):
		return protocol.ErrNoResource, err.Error()
	case errors.Is(err, chunk.ErrBadUpgrade):
		return protocol.ErrBadRequest, err.Error()
	case errors.Is(err, model.ErrPathTooShort), errors.Is(err, model.ErrPathTooLong),
		errors.Is(err, model.ErrSourceMismatch), errors.Is(err, model.ErrDuplicateTower),
		errors.Is(err, model.ErrOutOfWorld), errors.Is(err, model.ErrNotAdjacent),
		errors.Is(err, model.ErrUngenerated):
		return protocol.ErrBadPath, err.Error()
	}
	return protocol.ErrInternal, err.Error()
}

func parseTower(v *[2]int) (addr.TowerID, error) {
	if v == nil {
		return addr.TowerID{}, reject(protocol.ErrBadRequest, "missing tower")
	}
	if v[0] < 0 || v[1] < 0 || v[0] >= addr.WorldSize || v[1] >= addr.WorldSize {
		return addr.TowerID{}, reject(protocol.ErrInvalidTarget, "tower %v outside the world", *v)
	}
	return addr.Tower(v[0], v[1]), nil
}

// parsePath validates a client path that must start at src.
func (w *World) parsePath(src addr.TowerID, raw [][2]int) (model.Path, error) {
	towers := make([]addr.TowerID, 0, len(raw))
	for _, v := range raw {
		if v[0] < 0 || v[1] < 0 || v[0] >= addr.WorldSize || v[1] >= addr.WorldSize {
			return model.Path{}, fmt.Errorf("%w: %v", model.ErrOutOfWorld, v)
		}
		id := addr.Tower(v[0], v[1])
		if !w.towerExists(id) {
			return model.Path{}, fmt.Errorf("%w: %v", model.ErrUngenerated, id)
		}
		towers = append(towers, id)
	}
	p := model.NewPath(towers)
	if err := p.Validate(w.tables, src, w.cfg.MaxPathLen); err != nil {
		return model.Path{}, err
	}
	return p, nil
}

// applyCommand validates and performs one command during the input phase.
func (w *World) applyCommand(ctx *chunk.Context, p *Player, cmd protocol.Command, out *chunk.Output) error {
	if cmd.Kind == protocol.CmdSpawn {
		return w.spawn(ctx, p, out)
	}
	if cmd.Kind == protocol.CmdSetViewport {
		return w.setViewport(p, cmd.Viewport)
	}
	if !p.Alive {
		return reject(protocol.ErrDead, "player %v is not alive", p.ID)
	}

	switch cmd.Kind {
	case protocol.CmdDeployForce:
		src, err := parseTower(cmd.Tower)
		if err != nil {
			return err
		}
		path, err := w.parsePath(src, cmd.Path)
		if err != nil {
			return err
		}
		c, rel, err := w.chunkFor(src)
		if err != nil {
			return err
		}
		return c.Apply(ctx, chunk.DeployForce{Tower: rel, Player: p.ID, Path: path}, out)

	case protocol.CmdSetSupplyLine:
		src, err := parseTower(cmd.Tower)
		if err != nil {
			return err
		}
		var line *model.Path
		if len(cmd.Path) > 0 {
			path, err := w.parsePath(src, cmd.Path)
			if err != nil {
				return err
			}
			line = &path
		}
		c, rel, err := w.chunkFor(src)
		if err != nil {
			return err
		}
		return c.Apply(ctx, chunk.SetSupplyLine{Tower: rel, Player: p.ID, Path: line}, out)

	case protocol.CmdUpgradeTower:
		src, err := parseTower(cmd.Tower)
		if err != nil {
			return err
		}
		to, ok := model.ParseTowerType(cmd.TowerType)
		if !ok {
			return reject(protocol.ErrBadRequest, "unknown tower type %q", cmd.TowerType)
		}
		c, rel, err := w.chunkFor(src)
		if err != nil {
			return err
		}
		return c.Apply(ctx, chunk.UpgradeTower{Tower: rel, Player: p.ID, To: to}, out)

	case protocol.CmdAlliance:
		target := model.PlayerID(cmd.Target)
		other, ok := w.players[target]
		if !target.Some() || target == p.ID || !ok {
			return reject(protocol.ErrInvalidTarget, "no player %d", cmd.Target)
		}
		if cmd.Break {
			w.breakAlliance(p.ID, target)
			return nil
		}
		if !other.Alive {
			return reject(protocol.ErrInvalidTarget, "player %v is not alive", target)
		}
		w.requestAlliance(p.ID, target)
		return nil
	}
	return reject(protocol.ErrBadRequest, "unknown command kind %q", cmd.Kind)
}

func (w *World) chunkFor(id addr.TowerID) (*chunk.Chunk, addr.RelativeTowerID, error) {
	if !w.towerExists(id) {
		return nil, addr.RelativeTowerID{}, chunk.ErrNoTower
	}
	cid, rel := id.Split()
	return w.chunk(cid), rel, nil
}

func (w *World) setViewport(p *Player, v *[4]int) error {
	if v == nil {
		return reject(protocol.ErrBadRequest, "missing viewport")
	}
	minX, minY := mathx.MaxInt(v[0], 0), mathx.MaxInt(v[1], 0)
	maxX, maxY := mathx.MinInt(v[2], addr.WorldSize-1), mathx.MinInt(v[3], addr.WorldSize-1)
	if minX > maxX || minY > maxY {
		return reject(protocol.ErrBadRequest, "empty viewport %v", *v)
	}
	limit := w.cfg.ViewportMaxChunks * addr.ChunkSize
	if maxX-minX >= limit || maxY-minY >= limit {
		return reject(protocol.ErrBadRequest, "viewport larger than %d towers", limit)
	}
	p.Viewport = addr.Rect{Min: addr.Tower(minX, minY), Max: addr.Tower(maxX, maxY)}
	return nil
}

// Spawn placement.
const (
	spawnMargin     = 64
	spawnSearch     = 48
	spawnClearRange = 3
)

func (w *World) spawn(ctx *chunk.Context, p *Player, out *chunk.Output) error {
	switch {
	case p.Alive:
		return reject(protocol.ErrConflict, "player %v already spawned", p.ID)
	case p.Spawned:
		return reject(protocol.ErrDead, "player %v is dead", p.ID)
	}
	at, ok := w.findSpawn(p.ID)
	if !ok {
		return reject(protocol.ErrNoResource, "no free spawn tower")
	}
	c, rel, err := w.chunkFor(at)
	if err != nil {
		return err
	}
	if err := c.Apply(ctx, chunk.SpawnPlayer{Tower: rel, Player: p.ID}, out); err != nil {
		return err
	}
	p.Alive = true
	p.Spawned = true
	p.version++
	half := addr.ChunkSize * 2
	p.Viewport = addr.Rect{
		Min: addr.Tower(mathx.MaxInt(int(at.X)-half, 0), mathx.MaxInt(int(at.Y)-half, 0)),
		Max: addr.Tower(mathx.MinInt(int(at.X)+half-1, addr.WorldSize-1), mathx.MinInt(int(at.Y)+half-1, addr.WorldSize-1)),
	}
	return nil
}

// findSpawn searches square rings around a point derived from the seed, the
// player and the tick for a connected, untouched tower with no owned tower
// nearby.
func (w *World) findSpawn(id model.PlayerID) (addr.TowerID, bool) {
	span := addr.WorldSize - 2*spawnMargin
	h := mathx.Hash2(w.cfg.Seed, int(id), int(w.singleton.Tick))
	cx := spawnMargin + int(h%uint64(span))
	cy := spawnMargin + int((h>>32)%uint64(span))

	for r := 0; r <= spawnSearch; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if mathx.MaxInt(mathx.AbsInt(dx), mathx.AbsInt(dy)) != r {
					continue
				}
				at := addr.Tower(cx+dx, cy+dy)
				if w.spawnable(at) {
					return at, true
				}
			}
		}
	}
	return addr.TowerID{}, false
}

func (w *World) spawnable(at addr.TowerID) bool {
	t, ok := w.peekTower(at)
	if !ok || t.Owner().Some() || !t.Type.Raw() {
		return false
	}
	if _, connected := w.tables.Connectivity(at); !connected && at != addr.Center() {
		return false
	}
	for dy := -spawnClearRange; dy <= spawnClearRange; dy++ {
		for dx := -spawnClearRange; dx <= spawnClearRange; dx++ {
			n, ok := at.Offset(dx, dy)
			if !ok {
				continue
			}
			if nt, exists := w.peekTower(n); exists && nt.Owner().Some() {
				return false
			}
		}
	}
	return true
}
