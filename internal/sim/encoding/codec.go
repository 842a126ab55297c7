package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a Reader runs out of input.
var ErrShortBuffer = errors.New("encoding: short buffer")

// Writer appends the compact binary form shared by server and client builds:
// unsigned varints for counters and ids, single bytes for enums and flags.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer { return &Writer{buf: make([]byte, 0, capacity)} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *Writer) Uvarint(v uint64) { w.buf = binary.AppendUvarint(w.buf, v) }

func (w *Writer) Blob(b []byte) {
	w.Uvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// Reader consumes what Writer produced. The first error sticks; callers check
// Err once after decoding a whole value.
type Reader struct {
	buf []byte
	off int
	err error
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

func (r *Reader) Err() error { return r.err }

func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) Uint8() uint8 {
	if r.err != nil {
		return 0
	}
	if r.off >= len(r.buf) {
		r.fail(ErrShortBuffer)
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *Reader) Bool() bool {
	v := r.Uint8()
	if v > 1 {
		r.fail(fmt.Errorf("encoding: bad bool %d at %d", v, r.off-1))
	}
	return v == 1
}

func (r *Reader) Uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		r.fail(fmt.Errorf("encoding: bad varint at %d", r.off))
		return 0
	}
	r.off += n
	return v
}

// Bounded reads a varint and fails if it exceeds max.
func (r *Reader) Bounded(max uint64, what string) uint64 {
	v := r.Uvarint()
	if v > max {
		r.fail(fmt.Errorf("encoding: %s %d exceeds %d", what, v, max))
		return 0
	}
	return v
}

func (r *Reader) Blob() []byte {
	n := r.Bounded(uint64(r.Remaining()), "length")
	if r.err != nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return out
}
