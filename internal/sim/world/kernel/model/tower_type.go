package model

import (
	"fmt"
	"strings"
)

// TowerType is the building standing on a tower. The order is part of the wire format.
type TowerType uint8

const (
	Village TowerType = iota
	Town
	City
	Headquarters
	Mine
	Quarry
	Factory
	Airfield
	Helipad
	Projector
	Bunker
	Launcher
	Silo
	Ews

	NumTowerTypes
)

// Production is one unit every Period ticks; Period 0 produces nothing.
type Production struct {
	Unit   Unit
	Period uint16
}

type towerInfo struct {
	name         string
	raw          bool
	prerequisite TowerType
	delay        uint16
	capacity     [NumUnits]uint8
	production   Production
}

func caps(pairs ...int) [NumUnits]uint8 {
	var out [NumUnits]uint8
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = uint8(pairs[i+1])
	}
	out[Ruler] = 1
	return out
}

var towerInfos = [NumTowerTypes]towerInfo{
	Village: {name: "VILLAGE", raw: true,
		capacity:   caps(int(Soldier), 10, int(Shield), 5),
		production: Production{Unit: Soldier, Period: 20}},
	Town: {name: "TOWN", prerequisite: Village, delay: 100,
		capacity:   caps(int(Soldier), 20, int(Tank), 5, int(Shield), 10),
		production: Production{Unit: Soldier, Period: 15}},
	City: {name: "CITY", prerequisite: Town, delay: 200,
		capacity:   caps(int(Soldier), 30, int(Tank), 10, int(Shield), 15, int(Fighter), 5),
		production: Production{Unit: Soldier, Period: 10}},
	Headquarters: {name: "HEADQUARTERS", prerequisite: City, delay: 300,
		capacity:   caps(int(Soldier), 40, int(Tank), 15, int(Shield), 20, int(Fighter), 10, int(Bomber), 5, int(Chopper), 5),
		production: Production{Unit: Soldier, Period: 8}},
	Mine: {name: "MINE", raw: true,
		capacity:   caps(int(Soldier), 5, int(Shield), 5),
		production: Production{Unit: Soldier, Period: 40}},
	Quarry: {name: "QUARRY", raw: true,
		capacity:   caps(int(Soldier), 15, int(Shield), 10),
		production: Production{Unit: Soldier, Period: 30}},
	Factory: {name: "FACTORY", prerequisite: Village, delay: 150,
		capacity:   caps(int(Soldier), 10, int(Tank), 15, int(Shield), 5),
		production: Production{Unit: Tank, Period: 30}},
	Airfield: {name: "AIRFIELD", prerequisite: Town, delay: 200,
		capacity:   caps(int(Soldier), 10, int(Shield), 5, int(Fighter), 10, int(Bomber), 5),
		production: Production{Unit: Fighter, Period: 40}},
	Helipad: {name: "HELIPAD", prerequisite: Village, delay: 150,
		capacity:   caps(int(Soldier), 10, int(Tank), 5, int(Shield), 5, int(Chopper), 6),
		production: Production{Unit: Chopper, Period: 50}},
	Projector: {name: "PROJECTOR", prerequisite: Town, delay: 200,
		capacity:   caps(int(Soldier), 10, int(Shield), 30),
		production: Production{Unit: Shield, Period: 10}},
	Bunker: {name: "BUNKER", prerequisite: Quarry, delay: 100,
		capacity: caps(int(Soldier), 40, int(Tank), 10, int(Shield), 20)},
	Launcher: {name: "LAUNCHER", prerequisite: Factory, delay: 250,
		capacity:   caps(int(Soldier), 10, int(Tank), 5, int(Shield), 5, int(Shell), 3),
		production: Production{Unit: Shell, Period: 60}},
	Silo: {name: "SILO", prerequisite: Mine, delay: 400,
		capacity:   caps(int(Soldier), 5, int(Shield), 5, int(Nuke), 1),
		production: Production{Unit: Nuke, Period: 600}},
	Ews: {name: "EWS", prerequisite: Mine, delay: 200,
		capacity:   caps(int(Soldier), 5, int(Shield), 5, int(Emp), 2),
		production: Production{Unit: Emp, Period: 200}},
}

func (t TowerType) Valid() bool { return t < NumTowerTypes }

func (t TowerType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("TOWER(%d)", uint8(t))
	}
	return towerInfos[t].name
}

// Raw types are generated procedurally and have no prerequisite.
func (t TowerType) Raw() bool { return towerInfos[t].raw }

// Prerequisite is the type t upgrades from; raw types report false.
func (t TowerType) Prerequisite() (TowerType, bool) {
	if t.Raw() {
		return 0, false
	}
	return towerInfos[t].prerequisite, true
}

// Delay is the number of ticks a tower is busy after becoming t.
func (t TowerType) Delay() uint16 { return towerInfos[t].delay }

func (t TowerType) Capacity(u Unit) int { return int(towerInfos[t].capacity[u]) }

func (t TowerType) Production() Production { return towerInfos[t].production }

// Upgrades lists the types that have t as prerequisite, in type order.
func (t TowerType) Upgrades() []TowerType {
	var out []TowerType
	for c := TowerType(0); c < NumTowerTypes; c++ {
		if p, ok := c.Prerequisite(); ok && p == t {
			out = append(out, c)
		}
	}
	return out
}

// CanUpgradeTo reports if to is a direct upgrade of t.
func (t TowerType) CanUpgradeTo(to TowerType) bool {
	p, ok := to.Prerequisite()
	return ok && p == t
}

// CanDowngradeTo reports if to is t's prerequisite.
func (t TowerType) CanDowngradeTo(to TowerType) bool {
	p, ok := t.Prerequisite()
	return ok && p == to
}

func ParseTowerType(s string) (TowerType, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for t := TowerType(0); t < NumTowerTypes; t++ {
		if towerInfos[t].name == s {
			return t, true
		}
	}
	return 0, false
}

// GenerateTowerType is the type of an untouched tower, a pure function of its hash.
func GenerateTowerType(hash uint64) TowerType {
	switch r := hash % 100; {
	case r < 60:
		return Village
	case r < 80:
		return Quarry
	default:
		return Mine
	}
}
