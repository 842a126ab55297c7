package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"towerfront.ai/internal/protocol"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "player name")
		every = flag.Uint64("every", 20, "ticks between deployments")
		reach = flag.Int("reach", 12, "max distance to targets, in towers")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var b *bot
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME player_id=%d tick_rate=%d seed=%d", w.PlayerID, w.WorldParams.TickRateHz, w.WorldParams.Seed)
			b = newBot(w, *every, *reach)
			send(conn, logger, w.Tick, []protocol.Command{b.spawn()})

		case protocol.TypeUpdate:
			if b == nil {
				continue
			}
			var u protocol.UpdateMsg
			if err := json.Unmarshal(msg, &u); err != nil {
				continue
			}
			for _, r := range u.Results {
				if !r.Accepted {
					logger.Printf("command %s rejected: %s %s", r.ID, r.Code, r.Message)
				}
			}
			if u.NonActor != nil && !u.NonActor.Alive && u.NonActor.DeathReason != "" {
				logger.Printf("dead: %s", u.NonActor.DeathReason)
				return
			}
			if cmds := b.observe(&u); len(cmds) > 0 {
				send(conn, logger, u.Tick, cmds)
			}
		}
	}
}

func send(conn *websocket.Conn, logger *log.Logger, tick uint64, cmds []protocol.Command) {
	msg := protocol.CmdMsg{
		Type:            protocol.TypeCmd,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Commands:        cmds,
	}
	if err := conn.WriteJSON(msg); err != nil {
		logger.Printf("send CMD: %v", err)
	}
}
