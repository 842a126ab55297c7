package world

import (
	"towerfront.ai/internal/sim/world/chunk"
	"towerfront.ai/internal/sim/world/kernel/addr"
	"towerfront.ai/internal/sim/world/kernel/model"
	"towerfront.ai/internal/sim/world/pathfind"
)

type WorldConfig struct {
	ID              string
	Seed            int64
	TickRateHz      int
	DensityPermille int

	// MaxPathLen bounds client supplied paths in towers.
	MaxPathLen int
	// SnapshotEveryTicks controls how often a snapshot is offered to the sink.
	SnapshotEveryTicks int
	// ViewportMaxChunks bounds the side of a viewport, in chunks.
	ViewportMaxChunks int
	// CommandsPerTick is the number of commands a player may issue per tick.
	CommandsPerTick int

	Rules    chunk.Rules
	Pathfind pathfind.Config
}

func (cfg *WorldConfig) applyDefaults() {
	if cfg.ID == "" {
		cfg.ID = "main"
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 10
	}
	if cfg.DensityPermille <= 0 || cfg.DensityPermille > 1000 {
		cfg.DensityPermille = addr.DefaultDensityPermille
	}
	if cfg.MaxPathLen < 2 || cfg.MaxPathLen > model.MaxPathLen {
		cfg.MaxPathLen = model.MaxPathLen
	}
	if cfg.SnapshotEveryTicks <= 0 {
		cfg.SnapshotEveryTicks = 3000
	}
	if cfg.ViewportMaxChunks <= 0 {
		cfg.ViewportMaxChunks = 16
	}
	if cfg.CommandsPerTick <= 0 {
		cfg.CommandsPerTick = 16
	}
	if cfg.Rules == (chunk.Rules{}) {
		cfg.Rules = chunk.DefaultRules()
	}
	if cfg.Pathfind == (pathfind.Config{}) {
		cfg.Pathfind = pathfind.DefaultConfig()
	}
}
