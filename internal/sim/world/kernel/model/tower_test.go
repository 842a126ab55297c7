package model

import "testing"

func TestTakeDeployable_ProjectileLaunchesAlone(t *testing.T) {
	tw := NewTower(Silo)
	tw.SetOwner(1)
	tw.Units = UnitsOf(UnitCount{Unit: Soldier, Count: 2}, UnitCount{Unit: Shield, Count: 3}, UnitCount{Unit: Nuke, Count: 1})

	got := tw.TakeDeployable()
	if !got.LoneProjectile() || got.Available(Nuke) != 1 {
		t.Fatalf("deployed %v, want a lone nuke", got)
	}
	if tw.Units.Available(Soldier) != 2 || tw.Units.Available(Shield) != 3 || tw.Units.Contains(Nuke) {
		t.Fatalf("garrison after launch: %v", tw.Units)
	}

	// With the projectile gone the garrison deploys as usual.
	got = tw.TakeDeployable()
	if got.Available(Soldier) != 2 || got.Contains(Shield) {
		t.Fatalf("second deploy %v", got)
	}
}

func TestTakeSupply_KeepsRuler(t *testing.T) {
	tw := NewTower(Village)
	tw.SetOwner(1)
	tw.Units = UnitsOf(UnitCount{Unit: Ruler, Count: 1}, UnitCount{Unit: Soldier, Count: 4})
	got := tw.TakeSupply()
	if got.HasRuler() || got.Available(Soldier) != 4 {
		t.Fatalf("supply took %v", got)
	}
	if !tw.Units.HasRuler() {
		t.Fatalf("ruler left the tower")
	}
}
