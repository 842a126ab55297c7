package protocol

// UPDATE (server -> client): everything that changed for one player this tick.
type UpdateMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Tick            uint64          `json:"tick"`
	PlayerID        uint16          `json:"player_id"`
	Chunks          []ChunkUpdate   `json:"chunks,omitempty"`
	Players         []PlayerUpdate  `json:"players,omitempty"`
	NonActor        *NonActorUpdate `json:"non_actor,omitempty"`
	Info            []InfoUpdate    `json:"info,omitempty"`
	Results         []CommandResult `json:"results,omitempty"`
}

// ChunkUpdate carries a chunk that changed since the client last saw it.
// Owners and Types are RLE summaries of the 256 towers in row-major order;
// Data is the full binary chunk encoding, base64.
type ChunkUpdate struct {
	ID     [2]int `json:"id"`
	Digest string `json:"digest"`
	Owners string `json:"owners"`
	Types  string `json:"types"`
	Data   string `json:"data"`
}

type PlayerUpdate struct {
	ID     uint16   `json:"id"`
	Name   string   `json:"name"`
	Alive  bool     `json:"alive"`
	Allies []uint16 `json:"allies,omitempty"`
}

// NonActorUpdate is the part of a player's view that is not tied to chunks.
// It is only sent when it changed.
type NonActorUpdate struct {
	Alive       bool           `json:"alive"`
	Alerts      []string       `json:"alerts,omitempty"`
	TowerCounts map[string]int `json:"tower_counts,omitempty"`
	DeathReason string         `json:"death_reason,omitempty"`
	Bounds      *[4]int        `json:"bounds,omitempty"`
}

type InfoUpdate struct {
	Kind   string `json:"kind"`
	Tower  [2]int `json:"tower"`
	Player uint16 `json:"player,omitempty"`
	Unit   string `json:"unit,omitempty"`
}

// Alerts.
const (
	AlertRulerThreatened = "RULER_THREATENED"
	AlertTowerThreatened = "TOWER_THREATENED"
)
