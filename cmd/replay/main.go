package main

import (
	"flag"
	"fmt"
	"os"

	persistlog "towerfront.ai/internal/persistence/log"
	"towerfront.ai/internal/persistence/snapshot"
	"towerfront.ai/internal/sim/tuning"
	"towerfront.ai/internal/sim/world"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst to start from (optional)")
		worldDir   = flag.String("world_dir", "", "world data dir containing events/events-*.jsonl.zst")
		worldID    = flag.String("world", "world_1", "world id (fresh replay only)")
		seed       = flag.Int64("seed", 1337, "world seed (fresh replay only)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning.yaml (fresh replay only)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	w, err := openWorld(*snapPath, *worldID, *seed, *tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *worldDir == "" {
		return
	}

	files, err := persistlog.TickLogFiles(*worldDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *worldDir)
		os.Exit(1)
	}

	r := &replayer{w: w, start: w.CurrentTick(), verifyFrom: *fromTick, to: *toTick}
	for _, path := range files {
		if err := r.file(path); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if r.done() {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d ticks (start tick=%d, end tick=%d)\n", r.checked, r.start, w.CurrentTick())
}

func openWorld(snapPath, id string, seed int64, tuningPath string) (*world.World, error) {
	if snapPath == "" {
		tune, err := tuning.Load(tuningPath)
		if err != nil {
			return nil, fmt.Errorf("load tuning: %w", err)
		}
		return world.New(world.WorldConfig{
			ID:                 id,
			Seed:               seed,
			TickRateHz:         tune.TickRateHz,
			DensityPermille:    tune.DensityPermille,
			MaxPathLen:         tune.MaxPathLen,
			SnapshotEveryTicks: tune.SnapshotEveryTicks,
			ViewportMaxChunks:  tune.ViewportMaxChunks,
			CommandsPerTick:    tune.RateLimits.CommandsPerTick,
			Rules:              tune.ChunkRules(),
			Pathfind:           tune.PathfindConfig(),
		})
	}

	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	alive := 0
	for _, p := range snap.Players {
		if p.Alive {
			alive++
		}
	}
	fmt.Printf("snapshot v%d world=%s tick=%d seed=%d density=%d chunks=%d destroyed=%d players=%d alive=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed, snap.DensityPermille,
		len(snap.Chunks), len(snap.Destroyed), len(snap.Players), alive)

	w, err := world.New(world.ConfigFromSnapshot(snap))
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	return w, nil
}
