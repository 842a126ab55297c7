package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// stateDigest hashes the complete simulation state. Two worlds that ran the
// same inputs from the same seed report the same digest every tick.
func (w *World) stateDigest(tick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, tick)
	digestWriteI64(h, &tmp, w.cfg.Seed)
	digestWriteU64(h, &tmp, uint64(w.nextPlayer))
	w.digestChunks(h, &tmp)
	w.digestPlayers(h, &tmp)

	return hex.EncodeToString(h.Sum(nil))
}

// Digest is the state digest of the last completed tick.
func (w *World) Digest() string { return w.stateDigest(w.singleton.Tick) }

func (w *World) digestChunks(h hashWriter, tmp *[8]byte) {
	ids := w.sortedChunkIDs()
	digestWriteU64(h, tmp, uint64(len(ids)))
	for _, id := range ids {
		h.Write([]byte{id.X, id.Y})
		d := w.chunks[id].Digest()
		h.Write(d[:])
	}

	gone := sortedChunkKeys(w.destroyed)
	digestWriteU64(h, tmp, uint64(len(gone)))
	for _, id := range gone {
		h.Write([]byte{id.X, id.Y})
	}
}

func (w *World) digestPlayers(h hashWriter, tmp *[8]byte) {
	ids := w.sortedPlayerIDs()
	digestWriteU64(h, tmp, uint64(len(ids)))
	for _, id := range ids {
		p := w.players[id]
		digestWriteU64(h, tmp, uint64(p.ID))
		digestWriteString(h, tmp, p.Name)
		h.Write([]byte{boolByte(p.Alive), boolByte(p.Spawned)})
		digestWriteString(h, tmp, p.DeathReason)
		for _, set := range []playerSet{p.Allies, p.NewAllies, p.Requests} {
			members := set.sorted()
			digestWriteU64(h, tmp, uint64(len(members)))
			for _, o := range members {
				digestWriteU64(h, tmp, uint64(o))
			}
		}
		for _, v := range []uint16{p.Viewport.Min.X, p.Viewport.Min.Y, p.Viewport.Max.X, p.Viewport.Max.Y} {
			digestWriteU64(h, tmp, uint64(v))
		}
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteString(h hashWriter, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
