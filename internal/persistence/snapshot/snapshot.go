package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Digest  string `json:"digest,omitempty"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed            int64 `json:"seed"`
	DensityPermille int   `json:"density_permille"`
	TickRate        int   `json:"tick_rate_hz"`

	// Operational parameters (captured for deterministic replay/resume).
	MaxPathLen         int        `json:"max_path_len"`
	SnapshotEveryTicks int        `json:"snapshot_every_ticks,omitempty"`
	ViewportMaxChunks  int        `json:"viewport_max_chunks,omitempty"`
	CommandsPerTick    int        `json:"commands_per_tick,omitempty"`
	Rules              RulesV1    `json:"rules"`
	Pathfind           PathfindV1 `json:"pathfind"`

	Chunks    []ChunkV1    `json:"chunks"`
	Destroyed []ChunkKeyV1 `json:"destroyed,omitempty"`
	Players   []PlayerV1   `json:"players"`

	Counters CountersV1 `json:"counters"`
}

type RulesV1 struct {
	OverflowDecayPeriod uint64 `json:"overflow_decay_period"`
	SpawnShields        int    `json:"spawn_shields"`
}

type PathfindV1 struct {
	D2Scale        int64 `json:"d2_scale"`
	OwnDiscount    int64 `json:"own_discount"`
	ForeignPenalty int64 `json:"foreign_penalty"`
	BaseBudget     int   `json:"base_budget"`
	PerTowerBudget int   `json:"per_tower_budget"`
}

// ChunkV1 holds the binary chunk encoding.
type ChunkV1 struct {
	CX   int    `json:"cx"`
	CY   int    `json:"cy"`
	Data []byte `json:"data"`
}

type ChunkKeyV1 struct {
	CX int `json:"cx"`
	CY int `json:"cy"`
}

type PlayerV1 struct {
	ID          uint16   `json:"id"`
	Name        string   `json:"name"`
	Alive       bool     `json:"alive"`
	Spawned     bool     `json:"spawned,omitempty"`
	DeathReason string   `json:"death_reason,omitempty"`
	Allies      []uint16 `json:"allies,omitempty"`
	NewAllies   []uint16 `json:"new_allies,omitempty"`
	Requests    []uint16 `json:"requests,omitempty"`
	Viewport    [4]int   `json:"viewport"`
}

type CountersV1 struct {
	NextPlayer uint16 `json:"next_player"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is for tools that only need the tick; gob repeats it.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader returns only the header line of a snapshot file.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(line, &h)
	return h, err
}
