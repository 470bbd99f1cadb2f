package stdio

import (
	"fmt"

	"github.com/luhtfiimanal/go-serial-stdio/ring"
)

// Character-level results. Successful calls return the character itself.
const (
	// EOF is returned by reads with nothing to deliver and by invalid
	// stream operations.
	EOF = -1
	// OverflowCode is returned by PutOut when the output buffer has
	// overflowed: the buffer's overflow status word read as an int32.
	OverflowCode = -0x7fffffff
)

// Stream identifies one of the three standard streams.
type Stream uint8

const (
	Stdin Stream = iota
	Stdout
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("stream(%d)", uint8(s))
	}
}

// PutOut queues ch for the output pipeline and returns it, or returns
// OverflowCode if the output buffer is overflowed. It never waits for the
// hardware.
func (c *Channel) PutOut(ch byte) int {
	if err := c.out.TryPush(ch); err != nil {
		return OverflowCode
	}
	if g := c.flags.Load(); g != nil {
		g.Set(flagOutputReady)
	}
	if c.out.Status() == ring.Overflow {
		c.log.Warn("stdio: output buffer overflow, dropping output until reset")
	}
	return int(ch)
}

// PutErr sends ch straight to the hardware and waits for the transfer to
// complete, bypassing the output buffer. It returns ch, or EOF if the send
// could not be made.
func (c *Channel) PutErr(ch byte) int {
	if err := c.transmit(c.ctx, ch); err != nil {
		c.log.WithError(err).Debug("stdio: stderr write failed")
		return EOF
	}
	return int(ch)
}

// GetIn returns the next input byte, or EOF if none is buffered or the
// input buffer is overflowed. It never blocks; callers poll.
func (c *Channel) GetIn() int {
	if c.in.Status() == ring.Overflow {
		return EOF
	}
	b, ok := c.in.TryPop()
	if !ok {
		return EOF
	}
	return int(b)
}

// WriteChar writes ch to stream s.
func (c *Channel) WriteChar(s Stream, ch int) int {
	switch s {
	case Stdin:
		return EOF
	case Stdout:
		return c.PutOut(byte(ch))
	case Stderr:
		return c.PutErr(byte(ch))
	default:
		return EOF
	}
}

// ReadChar reads one character from stream s.
func (c *Channel) ReadChar(s Stream) int {
	switch s {
	case Stdin:
		return c.GetIn()
	case Stdout, Stderr:
		return EOF
	default:
		return EOF
	}
}

// QueryError reports the error indicator of s. Buffer overflow is not
// reported here; it is always 0.
func (c *Channel) QueryError(s Stream) int {
	return 0
}

// Pushback would return the last character read to s. Pushback is not
// supported: it does nothing and reports success.
func (c *Channel) Pushback(s Stream) int {
	return 0
}
