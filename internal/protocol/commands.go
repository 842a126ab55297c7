package protocol

// Command kinds.
const (
	CmdDeployForce   = "DEPLOY_FORCE"
	CmdSetSupplyLine = "SET_SUPPLY_LINE"
	CmdUpgradeTower  = "UPGRADE_TOWER"
	CmdAlliance      = "ALLIANCE"
	CmdSetViewport   = "SET_VIEWPORT"
	CmdSpawn         = "SPAWN"
)

// CMD (client -> server): commands applied during the next tick's input phase.
type CmdMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            uint64    `json:"tick"` // last tick the client observed
	Commands        []Command `json:"commands"`
}

// Command is one player command. Which fields apply depends on Kind:
//
//	DEPLOY_FORCE     tower, path
//	SET_SUPPLY_LINE  tower, path (empty clears the line)
//	UPGRADE_TOWER    tower, tower_type
//	ALLIANCE         target, break
//	SET_VIEWPORT     viewport
//	SPAWN            -
type Command struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Tower     *[2]int  `json:"tower,omitempty"`
	Path      [][2]int `json:"path,omitempty"`
	TowerType string   `json:"tower_type,omitempty"`
	Target    uint16   `json:"target,omitempty"`
	Break     bool     `json:"break,omitempty"`
	Viewport  *[4]int  `json:"viewport,omitempty"` // min_x, min_y, max_x, max_y
}

// CommandResult reports whether a command was applied.
type CommandResult struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}
