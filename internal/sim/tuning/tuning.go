package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"towerfront.ai/internal/sim/world/chunk"
	"towerfront.ai/internal/sim/world/pathfind"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	DensityPermille    int `yaml:"density_permille"`
	MaxPathLen         int `yaml:"max_path_len"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	ViewportMaxChunks  int `yaml:"viewport_max_chunks"`

	Rules      Rules      `yaml:"rules"`
	Pathfind   Pathfind   `yaml:"pathfind"`
	RateLimits RateLimits `yaml:"rate_limits"`
}

type Rules struct {
	OverflowDecayPeriod uint64 `yaml:"overflow_decay_period"`
	SpawnShields        int    `yaml:"spawn_shields"`
}

type Pathfind struct {
	D2Scale        int64 `yaml:"d2_scale"`
	OwnDiscount    int64 `yaml:"own_discount"`
	ForeignPenalty int64 `yaml:"foreign_penalty"`
	BaseBudget     int   `yaml:"base_budget"`
	PerTowerBudget int   `yaml:"per_tower_budget"`
}

type RateLimits struct {
	CommandsPerTick int `yaml:"commands_per_tick"`
}

// Defaults matches configs/tuning.yaml.
func Defaults() Tuning {
	r := chunk.DefaultRules()
	p := pathfind.DefaultConfig()
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         10,
		DensityPermille:    820,
		MaxPathLen:         64,
		SnapshotEveryTicks: 3000,
		ViewportMaxChunks:  16,
		Rules: Rules{
			OverflowDecayPeriod: r.OverflowDecayPeriod,
			SpawnShields:        r.SpawnShields,
		},
		Pathfind: Pathfind{
			D2Scale:        p.D2Scale,
			OwnDiscount:    p.OwnDiscount,
			ForeignPenalty: p.ForeignPenalty,
			BaseBudget:     p.BaseBudget,
			PerTowerBudget: p.PerTowerBudget,
		},
		RateLimits: RateLimits{CommandsPerTick: 16},
	}
}

// Load reads a tuning file over Defaults, so a file only needs the keys it
// changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be positive, got %d", t.TickRateHz)
	case t.DensityPermille < 0 || t.DensityPermille > 1000:
		return fmt.Errorf("density_permille out of range: %d", t.DensityPermille)
	case t.MaxPathLen < 2:
		return fmt.Errorf("max_path_len must be at least 2, got %d", t.MaxPathLen)
	case t.Pathfind.D2Scale <= 0:
		return fmt.Errorf("pathfind.d2_scale must be positive, got %d", t.Pathfind.D2Scale)
	}
	return nil
}

func (t Tuning) ChunkRules() chunk.Rules {
	return chunk.Rules{
		OverflowDecayPeriod: t.Rules.OverflowDecayPeriod,
		SpawnShields:        t.Rules.SpawnShields,
	}
}

func (t Tuning) PathfindConfig() pathfind.Config {
	return pathfind.Config{
		D2Scale:        t.Pathfind.D2Scale,
		OwnDiscount:    t.Pathfind.OwnDiscount,
		ForeignPenalty: t.Pathfind.ForeignPenalty,
		BaseBudget:     t.Pathfind.BaseBudget,
		PerTowerBudget: t.Pathfind.PerTowerBudget,
	}
}
