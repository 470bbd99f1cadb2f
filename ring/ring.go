// Package ring implements the fixed-capacity byte queue that sits between a
// serial line and its character-stream users.
//
// A Buffer is shared by exactly one writer goroutine and one reader
// goroutine. The writer owns end and is the only side that raises Overflow;
// the reader owns pos. Every field the other side looks at is an atomic, so
// no lock is taken on either path.
package ring

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Status is the observable condition of a Buffer.
type Status uint32

const (
	OK Status = 0

	// statusError marks every error condition of a buffer.
	statusError Status = 0x80000000
	// Overflow is sticky: once set, pushes are rejected until Reset.
	Overflow Status = statusError | 0x00000001
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Overflow:
		return "overflow"
	default:
		return fmt.Sprintf("status(%#x)", uint32(s))
	}
}

// ErrOverflow is returned by TryPush while the buffer is in the overflow state.
var ErrOverflow = errors.New("ring: buffer overflow")

// Buffer is a circular byte queue with a sticky overflow status.
//
// pos and end count modulo twice the capacity, so a full buffer
// (end-pos == size) and an empty one (end == pos) never look alike.
type Buffer struct {
	data   []byte
	pos    atomic.Uint32 // next byte to read, reader-owned
	end    atomic.Uint32 // next slot to write, writer-owned
	status atomic.Uint32
}

// New returns an empty buffer holding up to size bytes. It panics if size is
// smaller than 2.
func New(size int) *Buffer {
	if size < 2 {
		panic(fmt.Sprintf("ring: invalid size %d", size))
	}
	return &Buffer{data: make([]byte, size)}
}

// Cap returns the fixed capacity of the buffer.
func (b *Buffer) Cap() int {
	return len(b.data)
}

func (b *Buffer) used(pos, end uint32) uint32 {
	wrap := 2 * uint32(len(b.data))
	return (end + wrap - pos) % wrap
}

func (b *Buffer) next(i uint32) uint32 {
	return (i + 1) % (2 * uint32(len(b.data)))
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	pos := b.pos.Load()
	n := int(b.used(pos, b.end.Load()))
	if n > len(b.data) {
		// pos moved on after it was loaded.
		return len(b.data)
	}
	return n
}

// Status reports whether the buffer is overflowed.
func (b *Buffer) Status() Status {
	if Status(b.status.Load())&Overflow == Overflow {
		return Overflow
	}
	return OK
}

// TryPush appends c. It fails with ErrOverflow, leaving the buffer untouched,
// when the overflow status is set. The push that fills the last free slot is
// accepted and raises Overflow.
//
// TryPush must only be called from the writer goroutine.
func (b *Buffer) TryPush(c byte) error {
	if Status(b.status.Load())&Overflow == Overflow {
		return ErrOverflow
	}
	end := b.end.Load()
	// A stale pos only overstates how full the buffer is.
	used := b.used(b.pos.Load(), end)
	b.data[end%uint32(len(b.data))] = c
	if used+1 == uint32(len(b.data)) {
		b.status.Or(uint32(Overflow))
	}
	b.end.Store(b.next(end))
	return nil
}

// TryPop removes and returns the oldest byte. ok is false when the buffer is
// empty, in which case nothing changes.
//
// TryPop must only be called from the reader goroutine.
func (b *Buffer) TryPop() (c byte, ok bool) {
	pos := b.pos.Load()
	if pos == b.end.Load() {
		return 0, false
	}
	c = b.data[pos%uint32(len(b.data))]
	b.pos.Store(b.next(pos))
	return c, true
}

// Reset discards all content and clears the overflow status. The caller must
// make sure the other side is not pushing or popping while Reset runs.
func (b *Buffer) Reset() {
	b.pos.Store(0)
	b.end.Store(0)
	b.status.Store(uint32(OK))
}
