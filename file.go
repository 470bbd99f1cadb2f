package stdio

import (
	"fmt"
	"io"

	"github.com/luhtfiimanal/go-serial-stdio/ring"
)

// File is a standard stream of a Channel. It adapts the character-level
// calls to io.Reader and io.Writer.
//
// Reads never block: when no input is buffered Read returns io.EOF, which
// on a serial line only means "nothing yet".
type File struct {
	c      *Channel
	stream Stream
}

var (
	_ io.Reader     = (*File)(nil)
	_ io.Writer     = (*File)(nil)
	_ io.ByteReader = (*File)(nil)
	_ io.ByteWriter = (*File)(nil)
)

// Stdin returns the input stream of c.
func (c *Channel) Stdin() *File { return &File{c: c, stream: Stdin} }

// Stdout returns the buffered output stream of c.
func (c *Channel) Stdout() *File { return &File{c: c, stream: Stdout} }

// Stderr returns the unbuffered output stream of c.
func (c *Channel) Stderr() *File { return &File{c: c, stream: Stderr} }

// Stream returns the stream f is bound to.
func (f *File) Stream() Stream {
	return f.stream
}

// WriteByte writes b to the stream through WriteChar.
func (f *File) WriteByte(b byte) error {
	r := f.c.WriteChar(f.stream, int(b))
	switch {
	case r >= 0:
		return nil
	case f.stream == Stdin:
		return fmt.Errorf("write %s: %w", f.stream, ErrStreamMisuse)
	case r == OverflowCode:
		return fmt.Errorf("write %s: %w", f.stream, ring.ErrOverflow)
	default:
		return fmt.Errorf("write %s: %w", f.stream, ErrTransmit)
	}
}

// Write writes p one byte at a time and stops at the first rejected byte.
func (f *File) Write(p []byte) (int, error) {
	for i, b := range p {
		if err := f.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// ReadByte returns the next buffered input byte, or io.EOF if none has
// arrived yet.
func (f *File) ReadByte() (byte, error) {
	if f.stream != Stdin {
		return 0, fmt.Errorf("read %s: %w", f.stream, ErrStreamMisuse)
	}
	r := f.c.ReadChar(f.stream)
	if r < 0 {
		return 0, io.EOF
	}
	return byte(r), nil
}

// Read copies whatever input is buffered into p.
func (f *File) Read(p []byte) (int, error) {
	for i := range p {
		b, err := f.ReadByte()
		if err != nil {
			if i > 0 {
				return i, nil
			}
			return 0, err
		}
		p[i] = b
	}
	return len(p), nil
}
