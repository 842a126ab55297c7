package world

import (
	"towerfront.ai/internal/protocol"
	"towerfront.ai/internal/sim/world/kernel/model"
)

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// CommandEnvelope carries one CMD message from a connected player.
type CommandEnvelope struct {
	Player model.PlayerID
	Cmd    protocol.CmdMsg
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick      uint64       `json:"tick"`
	Joins     []JoinLog    `json:"joins,omitempty"`
	Leaves    []uint16     `json:"leaves,omitempty"`
	Destroyed [][2]int     `json:"destroyed,omitempty"`
	Commands  []CommandLog `json:"commands,omitempty"`
	Digest    string       `json:"digest"`
}

type JoinLog struct {
	Player uint16 `json:"player"`
	Name   string `json:"name"`
}

type CommandLog struct {
	Player uint16           `json:"player"`
	Cmd    protocol.Command `json:"cmd"`
}

// Envelopes rebuilds the inbox order of a logged tick. Commands of one player
// that were adjacent in the log come back as one envelope.
func (e TickLogEntry) Envelopes() []CommandEnvelope {
	var out []CommandEnvelope
	for _, c := range e.Commands {
		p := model.PlayerID(c.Player)
		if n := len(out); n > 0 && out[n-1].Player == p {
			out[n-1].Cmd.Commands = append(out[n-1].Cmd.Commands, c.Cmd)
			continue
		}
		out = append(out, CommandEnvelope{
			Player: p,
			Cmd: protocol.CmdMsg{
				Type:            protocol.TypeCmd,
				ProtocolVersion: protocol.Version,
				Commands:        []protocol.Command{c.Cmd},
			},
		})
	}
	return out
}

// JoinRequests rebuilds the joins of a logged tick without client channels.
func (e TickLogEntry) JoinRequests() []JoinRequest {
	out := make([]JoinRequest, 0, len(e.Joins))
	for _, j := range e.Joins {
		out = append(out, JoinRequest{Name: j.Name})
	}
	return out
}

func (e TickLogEntry) LeaveIDs() []model.PlayerID {
	out := make([]model.PlayerID, 0, len(e.Leaves))
	for _, id := range e.Leaves {
		out = append(out, model.PlayerID(id))
	}
	return out
}
