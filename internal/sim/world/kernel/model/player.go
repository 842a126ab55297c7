package model

import "fmt"

// PlayerID identifies a player. The zero value means "no player".
type PlayerID uint16

const NoPlayer PlayerID = 0

func (p PlayerID) Some() bool { return p != NoPlayer }

func (p PlayerID) String() string {
	if p == NoPlayer {
		return "-"
	}
	return fmt.Sprintf("P%d", uint16(p))
}
