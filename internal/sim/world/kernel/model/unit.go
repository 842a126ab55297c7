package model

import (
	"fmt"
	"strings"
)

// Unit is a kind of unit. The order is part of the wire format.
type Unit uint8

const (
	Soldier Unit = iota
	Tank
	Shield
	Fighter
	Bomber
	Chopper
	Shell
	Emp
	Nuke
	Ruler

	NumUnits
)

// Category decides where a kind is stored inside Units.
type Category uint8

const (
	// Always kinds have a dedicated slot in every Units.
	Always Category = iota
	// Many kinds share the rest slot with each other.
	Many
	// Single kinds are stored one kind at a time in the rest slot.
	Single
)

const (
	numAlways = 3
	numMany   = 3

	firstMany   = Fighter
	firstSingle = Shell

	// MaxCount bounds every per-kind count.
	MaxCount = 255

	// ChopperLift is the weight a single chopper carries.
	ChopperLift = 4
	// RulerShieldBonus is added to Shield capacity while a Ruler is present.
	RulerShieldBonus = 10
)

// restPriority of the Many layout as a whole.
const manyPriority = 2

type unitInfo struct {
	name     string
	category Category
	speed    Speed
	weight   int // carried by choppers when > 0
	damage   int
	health   int
	overflow int // extra units a tower may hold temporarily beyond capacity
	priority int // rest slot priority, unused for Always kinds
	air      bool
}

var unitInfos = [NumUnits]unitInfo{
	Soldier: {name: "SOLDIER", category: Always, speed: Normal, weight: 1, damage: 1, health: 1, overflow: 20},
	Tank:    {name: "TANK", category: Always, speed: Slow, weight: 2, damage: 3, health: 3, overflow: 10},
	Shield:  {name: "SHIELD", category: Always, speed: Immobile, damage: 0, health: 1},
	Fighter: {name: "FIGHTER", category: Many, speed: Fast, damage: 2, health: 2, overflow: 5, priority: manyPriority, air: true},
	Bomber:  {name: "BOMBER", category: Many, speed: Normal, damage: 4, health: 2, overflow: 5, priority: manyPriority, air: true},
	Chopper: {name: "CHOPPER", category: Many, speed: Fast, damage: 1, health: 2, overflow: 5, priority: manyPriority, air: true},
	Shell:   {name: "SHELL", category: Single, speed: Fast, damage: 6, health: 1, priority: 0},
	Emp:     {name: "EMP", category: Single, speed: Fast, damage: 0, health: 1, priority: 1},
	Nuke:    {name: "NUKE", category: Single, speed: Normal, damage: 0, health: 1, priority: 3},
	Ruler:   {name: "RULER", category: Single, speed: Normal, weight: 1, damage: 1, health: 2, priority: 4},
}

func (u Unit) Valid() bool { return u < NumUnits }

func (u Unit) String() string {
	if !u.Valid() {
		return fmt.Sprintf("UNIT(%d)", uint8(u))
	}
	return unitInfos[u].name
}

func (u Unit) Category() Category { return unitInfos[u].category }
func (u Unit) Speed() Speed       { return unitInfos[u].speed }
func (u Unit) Weight() int        { return unitInfos[u].weight }
func (u Unit) Damage() int        { return unitInfos[u].damage }
func (u Unit) Health() int        { return unitInfos[u].health }
func (u Unit) Overflow() int      { return unitInfos[u].overflow }
func (u Unit) IsAir() bool        { return unitInfos[u].air }

// IsProjectile reports kinds that fly alone and act on arrival.
func (u Unit) IsProjectile() bool { return u == Shell || u == Emp || u == Nuke }

// Mobile reports whether the kind leaves its tower when a force is deployed.
func (u Unit) Mobile() bool { return u != Shield }

// ParseUnit accepts the wire names of units.
func ParseUnit(s string) (Unit, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for u := Unit(0); u < NumUnits; u++ {
		if unitInfos[u].name == s {
			return u, true
		}
	}
	return 0, false
}

// defenseOrder is the order in which incoming damage is absorbed.
var defenseOrder = [NumUnits]Unit{Shield, Soldier, Tank, Chopper, Fighter, Bomber, Shell, Emp, Nuke, Ruler}
