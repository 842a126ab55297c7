package chunk

import (
	"errors"
	"fmt"

	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
)

// Relations answers alliance queries during a tick.
type Relations interface {
	Allied(a, b model.PlayerID) bool
}

// Rules are the tunable constants of the chunk tick.
type Rules struct {
	// OverflowDecayPeriod is the number of ticks between overflow decay steps.
	OverflowDecayPeriod uint64
	// SpawnShields is the shield garrison of a fresh spawn tower.
	SpawnShields int
}

func DefaultRules() Rules {
	return Rules{OverflowDecayPeriod: 10, SpawnShields: 5}
}

// Context is the read-only world state a chunk sees while processing.
type Context struct {
	Tables    *addr.Tables
	Tick      uint64
	Relations Relations
	Rules     Rules
}

func (ctx *Context) hostile(a, b model.PlayerID) bool {
	if a == b {
		return false
	}
	if a.Some() && b.Some() && ctx.Relations != nil && ctx.Relations.Allied(a, b) {
		return false
	}
	return true
}

// Input is an externally driven change addressed to one chunk.
type Input interface {
	isInput()
}

// DeployForce sends the deployable units of Tower along Path: a projectile
// alone when the tower holds one, otherwise every mobile unit.
type DeployForce struct {
	Tower  addr.RelativeTowerID
	Player model.PlayerID
	Path   model.Path
}

// SetSupplyLine sets the supply line of Tower, or clears it when Path is nil.
type SetSupplyLine struct {
	Tower  addr.RelativeTowerID
	Player model.PlayerID
	Path   *model.Path
}

// UpgradeTower switches Tower to To, an upgrade or the prerequisite.
type UpgradeTower struct {
	Tower  addr.RelativeTowerID
	Player model.PlayerID
	To     model.TowerType
}

// SpawnPlayer gives Player a Ruler at an unowned tower.
type SpawnPlayer struct {
	Tower  addr.RelativeTowerID
	Player model.PlayerID
}

// KillPlayer releases every tower and force of a player whose Ruler died.
type KillPlayer struct {
	Player model.PlayerID
}

func (DeployForce) isInput()   {}
func (SetSupplyLine) isInput() {}
func (UpgradeTower) isInput()  {}
func (SpawnPlayer) isInput()   {}
func (KillPlayer) isInput()    {}

var (
	ErrNoTower      = errors.New("no tower")
	ErrNotOwner     = errors.New("tower not owned by player")
	ErrBusy         = errors.New("tower is upgrading")
	ErrNothingToDo  = errors.New("no units to deploy")
	ErrBadUpgrade   = errors.New("tower cannot change to that type")
	ErrOccupied     = errors.New("tower already owned")
	ErrUnknownInput = errors.New("unknown input")
)

// Apply performs in against c. Paths are validated by the caller; Apply only
// checks conditions local to the tower.
func (c *Chunk) Apply(ctx *Context, in Input, out *Output) error {
	switch in := in.(type) {
	case DeployForce:
		t, err := c.owned(ctx, in.Tower, in.Player)
		if err != nil {
			return err
		}
		if in.Path.Len() < 2 || in.Path.Source() != in.Tower.Upgrade(c.ID) {
			return model.ErrSourceMismatch
		}
		units := t.TakeDeployable()
		if units.IsEmpty() {
			return ErrNothingToDo
		}
		out.depart(model.NewForce(in.Player, units, in.Path.Clone()))
	case SetSupplyLine:
		t, err := c.owned(ctx, in.Tower, in.Player)
		if err != nil {
			return err
		}
		if in.Path == nil {
			t.SupplyLine = nil
		} else {
			line := in.Path.Clone()
			t.SupplyLine = &line
		}
	case UpgradeTower:
		t, err := c.owned(ctx, in.Tower, in.Player)
		if err != nil {
			return err
		}
		if t.IsBusy() {
			return ErrBusy
		}
		switch {
		case t.Type.CanUpgradeTo(in.To):
			t.Upgrade(in.To)
		case t.Type.CanDowngradeTo(in.To):
			t.Downgrade(in.To)
		default:
			return fmt.Errorf("%w: %v -> %v", ErrBadUpgrade, t.Type, in.To)
		}
	case SpawnPlayer:
		id := in.Tower.Upgrade(c.ID)
		if !ctx.Tables.Exists(id) {
			return ErrNoTower
		}
		t := c.Tower(in.Tower)
		if t.Owner().Some() {
			return ErrOccupied
		}
		t.SetOwner(in.Player)
		t.Units = model.Units{}
		t.Units.Add(model.Ruler, 1)
		t.Units.AddToTower(model.Soldier, t.Type.Capacity(model.Soldier), t.Type, false)
		t.Units.AddToTower(model.Shield, ctx.Rules.SpawnShields, t.Type, false)
		out.info(GainTower, id, in.Player)
	case KillPlayer:
		c.killPlayer(ctx, in.Player)
	default:
		return ErrUnknownInput
	}
	c.dirty = true
	return nil
}

func (c *Chunk) owned(ctx *Context, rel addr.RelativeTowerID, p model.PlayerID) (*model.Tower, error) {
	if !rel.Valid() || !ctx.Tables.Exists(rel.Upgrade(c.ID)) {
		return nil, ErrNoTower
	}
	t := c.Tower(rel)
	if !p.Some() || t.Owner() != p {
		return nil, ErrNotOwner
	}
	return t, nil
}

// killPlayer turns everything p owns into neutral territory and neutral
// forces. Both copies of a force crossing a chunk border see the same change
// because every chunk receives the same KillPlayer.
func (c *Chunk) killPlayer(ctx *Context, p model.PlayerID) {
	if !p.Some() {
		return
	}
	c.Each(ctx.Tables, func(_ addr.TowerID, t *model.Tower) {
		if t.Owner() == p {
			t.SetOwner(model.NoPlayer)
		}
		for i := range t.Inbound {
			if f := &t.Inbound[i]; f.Player == p {
				f.Player = model.NoPlayer
				f.Units.Subtract(model.Ruler, model.MaxCount)
			}
		}
		for i := range t.Outbound {
			if o := &t.Outbound[i]; o.Player == p {
				o.Player = model.NoPlayer
				o.Units.Subtract(model.Ruler, model.MaxCount)
			}
		}
		t.Inbound = dropEmptyForces(t.Inbound)
		t.Outbound = dropEmptyShadows(t.Outbound)
	})
}
