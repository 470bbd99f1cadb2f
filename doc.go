// Package stdio carries a program's standard streams over a single
// asynchronous serial channel.
//
// The package is built for devices whose only console is one UART driven
// by an interrupt-style driver (see package usart): writes must not stall
// the caller on the line, and reads must not block waiting for a human.
//
// Features:
//   - Two 128-byte lock-free ring buffers, one per direction
//   - Input and output pipelines running as their own goroutines, woken by
//     driver completion events rather than polling
//   - Unbuffered, synchronous stderr that is never stuck behind stdout
//   - Sticky overflow status with explicit recovery (ResetInput/ResetOutput)
//   - Character-level hooks (PutOut, PutErr, GetIn, WriteChar, ReadChar)
//     and io.Reader/io.Writer streams on top of them
//   - Linux termios and go.bug.st/serial drivers
//
// Example usage:
//
//	ch, err := stdio.Open(stdio.Config{
//	    Driver: usart.NewTTY("/dev/ttyUSB0"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Fprintln(ch.Stdout(), "hello")
//
//	// Input is polled: EOF only means nothing has arrived yet.
//	for {
//	    if c := ch.GetIn(); c != stdio.EOF {
//	        fmt.Fprintf(ch.Stdout(), "got %q\n", c)
//	    }
//	}
//
// A failed Initialize leaves the driver powered off and uninitialized and
// returns the driver's usart.Status unchanged; use errors.As to get it.
package stdio
