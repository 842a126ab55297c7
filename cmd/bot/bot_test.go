package main

import (
	"encoding/json"
	"testing"

	"towerfront.ai/internal/protocol"
	"towerfront.ai/internal/sim/world"
	"towerfront.ai/internal/sim/world/kernel/model"
)

// drain feeds every queued UPDATE to b and returns the commands it produced
// plus the results the server reported.
func drain(t *testing.T, b *bot, out chan []byte) ([]protocol.Command, []protocol.CommandResult) {
	t.Helper()
	var cmds []protocol.Command
	var results []protocol.CommandResult
	for {
		select {
		case msg := <-out:
			var u protocol.UpdateMsg
			if err := json.Unmarshal(msg, &u); err != nil {
				t.Fatalf("update: %v", err)
			}
			results = append(results, u.Results...)
			cmds = append(cmds, b.observe(&u)...)
		default:
			return cmds, results
		}
	}
}

func envelope(p model.PlayerID, cmds []protocol.Command) []world.CommandEnvelope {
	return []world.CommandEnvelope{{
		Player: p,
		Cmd:    protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, Commands: cmds},
	}}
}

func TestBot_SpawnsAndSetsSupplyLine(t *testing.T) {
	w, err := world.New(world.WorldConfig{Seed: 3, DensityPermille: 1000})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	out := make(chan []byte, 64)
	resp := make(chan world.JoinResponse, 1)
	w.StepOnce([]world.JoinRequest{{Name: "bot", Out: out, Resp: resp}}, nil, nil)
	welcome := (<-resp).Welcome
	b := newBot(welcome, 1, 6)
	if b.id != model.PlayerID(welcome.PlayerID) || !b.id.Some() {
		t.Fatalf("bot id %d", b.id)
	}
	drain(t, b, out)

	spawn := b.spawn()
	w.StepOnce(nil, nil, envelope(b.id, []protocol.Command{spawn}))
	cmds, results := drain(t, b, out)
	if len(results) != 1 || results[0].ID != spawn.ID || !results[0].Accepted {
		t.Fatalf("spawn results: %+v", results)
	}
	if len(b.chunks) == 0 {
		t.Fatalf("no chunks received after spawn")
	}
	if len(cmds) == 0 || cmds[0].Kind != protocol.CmdSetSupplyLine {
		t.Fatalf("expected a supply line, got %+v", cmds)
	}
	if len(cmds[0].Path) < 2 || cmds[0].Path[0] != *cmds[0].Tower {
		t.Fatalf("supply path %+v from %v", cmds[0].Path, cmds[0].Tower)
	}

	w.StepOnce(nil, nil, envelope(b.id, cmds[:1]))
	_, results = drain(t, b, out)
	if len(results) != 1 || !results[0].Accepted {
		t.Fatalf("supply results: %+v", results)
	}
}

func TestBot_TargetSkipsOwnAndAllied(t *testing.T) {
	w, err := world.New(world.WorldConfig{Seed: 4, DensityPermille: 1000})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	out := make(chan []byte, 64)
	resp := make(chan world.JoinResponse, 1)
	w.StepOnce([]world.JoinRequest{{Name: "bot", Out: out, Resp: resp}}, nil, nil)
	b := newBot((<-resp).Welcome, 1000, 4)
	w.StepOnce(nil, nil, envelope(b.id, []protocol.Command{b.spawn()}))
	drain(t, b, out)

	home, ok := b.home()
	if !ok {
		t.Fatalf("no home tower")
	}
	to, ok := b.target(home)
	if !ok {
		t.Fatalf("no target")
	}
	if to == home || home.DistanceSquared(to) != 1 {
		t.Fatalf("target %v from %v", to, home)
	}
	if occ := b.Occupancy(home); occ.Owner != b.id {
		t.Fatalf("home occupancy %+v", occ)
	}
}
