// Package event provides event-flag groups: named flags that a driver
// callback raises and a goroutine waits on.
//
// Each flag is a single-slot notification. Setting a flag that is already
// pending is a no-op, so two completions reported before anyone waits are
// observed once. Waiting consumes the flag.
package event

import (
	"context"
	"errors"
	"math/bits"
)

// Flags is a bitmask of flags in a Group.
type Flags uint32

// ErrUnknownFlag is returned by Wait for a flag the group was not created with.
var ErrUnknownFlag = errors.New("event: flag not declared in group")

// Group is a set of flags fixed at creation.
type Group struct {
	declared Flags
	slots    [32]chan struct{}
}

// NewGroup returns a group with every flag in declared cleared.
func NewGroup(declared Flags) *Group {
	g := &Group{declared: declared}
	for f := declared; f != 0; f &= f - 1 {
		g.slots[bits.TrailingZeros32(uint32(f))] = make(chan struct{}, 1)
	}
	return g
}

// Declared returns the flags the group was created with.
func (g *Group) Declared() Flags {
	return g.declared
}

// Set raises every declared flag in f and returns the flags pending
// afterwards. Undeclared bits are ignored. Set never blocks and is safe to
// call from a driver callback.
func (g *Group) Set(f Flags) Flags {
	for f &= g.declared; f != 0; f &= f - 1 {
		select {
		case g.slots[bits.TrailingZeros32(uint32(f))] <- struct{}{}:
		default:
		}
	}
	return g.Pending()
}

// Clear drops every flag in f without waiting.
func (g *Group) Clear(f Flags) {
	for f &= g.declared; f != 0; f &= f - 1 {
		select {
		case <-g.slots[bits.TrailingZeros32(uint32(f))]:
		default:
		}
	}
}

// Pending returns the flags currently raised.
func (g *Group) Pending() Flags {
	var p Flags
	for f := g.declared; f != 0; f &= f - 1 {
		i := bits.TrailingZeros32(uint32(f))
		if len(g.slots[i]) > 0 {
			p |= 1 << i
		}
	}
	return p
}

// Wait blocks until every flag in f has been raised and consumes them. It
// returns early with ctx.Err() if ctx is done; flags consumed up to that
// point are lost.
//
// Only one goroutine may wait on a given flag at a time.
func (g *Group) Wait(ctx context.Context, f Flags) error {
	if f&^g.declared != 0 || f == 0 {
		return ErrUnknownFlag
	}
	for ; f != 0; f &= f - 1 {
		select {
		case <-g.slots[bits.TrailingZeros32(uint32(f))]:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// TryWait consumes every flag in f if all of them are raised and reports
// whether it did. Otherwise nothing is consumed.
func (g *Group) TryWait(f Flags) bool {
	if f&^g.declared != 0 || f == 0 {
		return false
	}
	var taken Flags
	for rest := f; rest != 0; rest &= rest - 1 {
		i := bits.TrailingZeros32(uint32(rest))
		select {
		case <-g.slots[i]:
			taken |= 1 << i
		default:
			g.Set(taken)
			return false
		}
	}
	return true
}
