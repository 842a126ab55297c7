package chunk

import (
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
)

// Tick advances every tower of c by one tick. Cross-tower effects are
// appended to out and only become visible once the world applies them.
func (c *Chunk) Tick(ctx *Context, out *Output) {
	var nbuf [addr.NumDirections]addr.TowerID
	for i := range c.Towers {
		id := addr.RelativeFromIndex(i).Upgrade(c.ID)
		if !ctx.Tables.Exists(id) {
			continue
		}
		t := &c.Towers[i]
		if tickTower(ctx, id, t, out) {
			c.dirty = true
		}
		if len(t.Inbound) == 0 && len(t.Outbound) == 0 {
			continue
		}
		advance(t)
		roadBattles(ctx, id, t, ctx.Tables.Neighbors(nbuf[:0], id), out)
		arrivals(ctx, id, t, out)
		c.dirty = true
	}
}

// tickTower runs the stationary part of a tower tick: upgrade delay,
// production, overflow decay and supply dispatch. It reports whether t changed.
func tickTower(ctx *Context, id addr.TowerID, t *model.Tower, out *Output) bool {
	if t.Delay > 0 {
		t.Delay--
		return true
	}
	if !t.Owner().Some() {
		return false
	}
	changed := false
	if p := t.Type.Production(); p.Period > 0 {
		t.Clock++
		changed = true
		if t.Clock >= p.Period {
			t.Clock = 0
			t.Units.AddToTower(p.Unit, 1, t.Type, false)
		}
	}
	if period := ctx.Rules.OverflowDecayPeriod; period > 0 && ctx.Tick%period == 0 {
		if t.DecayOverflow() {
			changed = true
		}
	}
	if t.SupplyLine != nil && shouldSupply(t) {
		units := t.TakeSupply()
		if !units.IsEmpty() {
			out.depart(model.NewForce(t.Owner(), units, t.SupplyLine.Clone()))
			changed = true
		}
	}
	return changed
}

// shouldSupply reports whether a tower with a supply line sends its garrison:
// once any unit it may send reaches capacity, or always if it produces nothing.
func shouldSupply(t *model.Tower) bool {
	if t.Type.Production().Period == 0 {
		return true
	}
	full := false
	t.Units.Each(func(k model.Unit, _ int) {
		if k.Mobile() && k != model.Ruler && t.IsFull(k) {
			full = true
		}
	})
	return full
}

func advance(t *model.Tower) {
	for i := range t.Inbound {
		t.Inbound[i].RawTick()
	}
	for i := range t.Outbound {
		t.Outbound[i].RawTick()
	}
}

// roadBattles resolves fights between forces crossing on a road. A force
// heading into t from n and a shadow of a force leaving t toward n meet once
// their progress sums to the road length. The chunk at n holds the mirror
// image of the same pairs, so both sides iterate the forces travelling from
// the lower to the higher tower in the outer loop and reach identical results.
// A Ruler lost on the road is reported by the chunk holding its inbound copy.
func roadBattles(ctx *Context, id addr.TowerID, t *model.Tower, neighbors []addr.TowerID, out *Output) {
	if len(t.Inbound) == 0 || len(t.Outbound) == 0 {
		return
	}
	var in, sh []int
	for _, n := range neighbors {
		in, sh = in[:0], sh[:0]
		for i := range t.Inbound {
			if t.Inbound[i].Source() == n {
				in = append(in, i)
			}
		}
		for i := range t.Outbound {
			if t.Outbound[i].Target == n {
				sh = append(sh, i)
			}
		}
		if len(in) == 0 || len(sh) == 0 {
			continue
		}
		fight := func(fi, si int) {
			f := &t.Inbound[fi]
			s := &t.Outbound[si]
			if f.Units.IsEmpty() || s.Units.IsEmpty() || !ctx.hostile(f.Player, s.Player) ||
				f.Units.LoneProjectile() || s.Units.LoneProjectile() {
				return
			}
			if uint32(f.PathProgress)+uint32(s.PathProgress) < uint32(s.Required) {
				return
			}
			hadRuler := f.Units.HasRuler()
			f.Units, s.Units = model.Battle(f.Units, s.Units)
			if hadRuler && !f.Units.HasRuler() {
				out.rulerKilled(id, f.Player)
			}
		}
		if n.Less(id) {
			for _, fi := range in {
				for _, si := range sh {
					fight(fi, si)
				}
			}
		} else {
			for _, si := range sh {
				for _, fi := range in {
					fight(fi, si)
				}
			}
		}
	}
	t.Inbound = dropEmptyForces(t.Inbound)
	t.Outbound = dropEmptyShadows(t.Outbound)
}

// arrivals retires shadows whose force has arrived and resolves every inbound
// force that reached t this tick, in list order.
func arrivals(ctx *Context, id addr.TowerID, t *model.Tower, out *Output) {
	kept := t.Outbound[:0]
	for _, o := range t.Outbound {
		if o.PathProgress < o.Required {
			kept = append(kept, o)
		}
	}
	clearShadows(t.Outbound[len(kept):])
	t.Outbound = kept

	var arrived []model.Force
	staying := t.Inbound[:0]
	for _, f := range t.Inbound {
		if f.PathProgress >= f.ProgressRequired() {
			arrived = append(arrived, f)
		} else {
			staying = append(staying, f)
		}
	}
	clearForces(t.Inbound[len(staying):])
	t.Inbound = staying

	for _, f := range arrived {
		arrive(ctx, id, t, f, out)
	}
}

func arrive(ctx *Context, id addr.TowerID, t *model.Tower, f model.Force, out *Output) {
	owner := t.Owner()

	if !f.IsMultiUnit() {
		// Projectiles fly over every tower on the way.
		if f.TryMoveOn() {
			out.depart(f)
		} else if ctx.hostile(f.Player, owner) {
			detonate(id, t, f, out)
		} else {
			deposit(id, t, f, out)
		}
		return
	}

	if ctx.hostile(f.Player, owner) {
		capture(id, t, f, out)
		return
	}
	if f.TryMoveOn() {
		out.depart(f)
		return
	}
	if t.SupplyLine != nil && owner.Some() && !f.Halted && !f.Starved() {
		if f.Player != owner {
			// A force relayed by an ally's supply line joins that ally.
			if f.Units.HasRuler() {
				f.Units.Subtract(model.Ruler, 1)
				out.rulerKilled(id, f.Player)
			}
			f.Player = owner
		}
		if t.Type == model.Projector {
			n := f.Units.Add(model.Shield, t.Units.Available(model.Shield))
			t.Units.Subtract(model.Shield, n)
		}
		f.Reroute(*t.SupplyLine)
		if !f.Units.IsEmpty() {
			out.depart(f)
		}
		return
	}
	deposit(id, t, f, out)
}

// deposit merges a force into a friendly or allied garrison. A Ruler cannot
// serve in a foreign garrison and is lost.
func deposit(id addr.TowerID, t *model.Tower, f model.Force, out *Output) {
	owner := t.Owner()
	if f.Player != owner && f.Units.HasRuler() {
		f.Units.Subtract(model.Ruler, 1)
		out.rulerKilled(id, f.Player)
	}
	f.Units.Each(func(k model.Unit, n int) {
		if !owner.Some() && (k == model.Ruler || k == model.Shield) {
			return
		}
		t.Units.AddToTower(k, n, t.Type, true)
	})
}

// capture fights the garrison of a hostile tower. Survivors take the tower
// when the garrison is wiped out; a force without a player only neutralizes it.
func capture(id addr.TowerID, t *model.Tower, f model.Force, out *Output) {
	owner := t.Owner()
	hadRuler := t.Units.HasRuler()
	attackerRuler := f.Units.HasRuler()
	attackers, garrison := model.Battle(f.Units, t.Units)
	t.Units = garrison
	if hadRuler && !garrison.HasRuler() {
		out.rulerKilled(id, owner)
	}
	if attackerRuler && !attackers.HasRuler() {
		out.rulerKilled(id, f.Player)
	}
	if attackers.IsEmpty() || !garrison.IsEmpty() {
		return
	}
	if owner.Some() {
		out.info(LoseTower, id, owner)
	}
	t.SetOwner(f.Player)
	if !f.Player.Some() {
		return
	}
	out.info(GainTower, id, f.Player)
	attackers.Each(func(k model.Unit, n int) {
		t.Units.AddToTower(k, n, t.Type, true)
	})
}

// detonate applies a lone projectile to a hostile tower.
func detonate(id addr.TowerID, t *model.Tower, f model.Force, out *Output) {
	owner := t.Owner()
	hadRuler := t.Units.HasRuler()
	var kind model.Unit
	f.Units.Each(func(k model.Unit, _ int) { kind = k })
	switch kind {
	case model.Nuke:
		t.Units = model.Units{}
		if owner.Some() {
			out.info(LoseTower, id, owner)
		}
		t.SetOwner(model.NoPlayer)
	case model.Emp:
		t.Units.Subtract(model.Shield, model.MaxCount)
	default:
		_, t.Units = model.Fight(f.Units, t.Units)
	}
	if hadRuler && !t.Units.HasRuler() {
		out.rulerKilled(id, owner)
	}
	out.Info = append(out.Info, InfoEvent{Kind: Explosion, Tower: id, Player: owner, Unit: kind})
}

func dropEmptyForces(fs []model.Force) []model.Force {
	kept := fs[:0]
	for _, f := range fs {
		if !f.Units.IsEmpty() {
			kept = append(kept, f)
		}
	}
	clearForces(fs[len(kept):])
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func dropEmptyShadows(os []model.OutboundForce) []model.OutboundForce {
	kept := os[:0]
	for _, o := range os {
		if !o.Units.IsEmpty() {
			kept = append(kept, o)
		}
	}
	clearShadows(os[len(kept):])
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func clearForces(fs []model.Force) {
	for i := range fs {
		fs[i] = model.Force{}
	}
}

func clearShadows(os []model.OutboundForce) {
	for i := range os {
		os[i] = model.OutboundForce{}
	}
}
