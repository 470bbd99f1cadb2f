//go:build linux
// +build linux

package usart

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// TTY drives a Linux serial device through termios. Reads are killable: a
// self-pipe wakes any blocked receive when the driver is uninitialized.
type TTY struct {
	Device string
	Logger logrus.FieldLogger

	mu        sync.Mutex
	s         *ttySession
	powered   bool
	rxEnabled bool
	txEnabled bool
	xfer      transfer
}

// NewTTY returns a driver for device. Nothing is opened until Initialize.
func NewTTY(device string) *TTY {
	return &TTY{Device: device}
}

func (d *TTY) logger() logrus.FieldLogger {
	if d.Logger == nil {
		return logrus.StandardLogger().WithField("device", d.Device)
	}
	return d.Logger
}

// Initialize opens the device in raw mode with the receiver disabled.
func (d *TTY) Initialize(cb SignalEvent) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.xfer.log = d.logger()
	d.xfer.setCallback(cb)
	if d.s != nil {
		return StatusOK
	}

	fd, err := syscall.Open(d.Device, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		d.xfer.log.WithError(fmt.Errorf("open failed: %w", err)).Error("usart: initialize")
		return StatusError
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		d.xfer.log.WithError(fmt.Errorf("get termios: %w", err)).Error("usart: initialize")
		return StatusError
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CREAD
	termios.Cflag |= unix.CS8 | unix.CLOCAL

	// One byte at a time, no inter-byte timer
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		unix.Close(fd)
		d.xfer.log.WithError(fmt.Errorf("set termios: %w", err)).Error("usart: initialize")
		return StatusError
	}

	// Turn back into blocking mode now that config is done
	syscall.SetNonblock(fd, false)

	pipeFds := make([]int, 2)
	if err := unix.Pipe(pipeFds); err != nil {
		unix.Close(fd)
		d.xfer.log.WithError(fmt.Errorf("pipe: %w", err)).Error("usart: initialize")
		return StatusError
	}

	d.s = &ttySession{
		fd:    fd,
		file:  os.NewFile(uintptr(fd), d.Device),
		pipeR: pipeFds[0],
		pipeW: pipeFds[1],
	}
	return StatusOK
}

// Uninitialize closes the device and unblocks a pending receive. Safe to
// call multiple times.
func (d *TTY) Uninitialize() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.xfer.setCallback(nil)
	if d.s == nil {
		return StatusOK
	}
	err := d.s.close()
	d.s = nil
	d.powered, d.rxEnabled, d.txEnabled = false, false, false
	if err != nil {
		d.xfer.log.WithError(err).Warn("usart: close")
		return StatusError
	}
	return StatusOK
}

// PowerControl flushes both directions on PowerOff. PowerLow is unsupported.
func (d *TTY) PowerControl(state PowerState) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.s == nil {
		return StatusError
	}
	switch state {
	case PowerFull:
		if err := unix.IoctlSetInt(d.s.fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
			return StatusError
		}
		d.powered = true
	case PowerOff:
		unix.IoctlSetInt(d.s.fd, unix.TCFLSH, unix.TCIOFLUSH)
		d.powered, d.rxEnabled, d.txEnabled = false, false, false
	default:
		return StatusUnsupported
	}
	return StatusOK
}

// Control applies a mode word with arg as baud rate, or toggles the
// receiver (ControlRX) and transmitter (ControlTX).
func (d *TTY) Control(control Control, arg uint32) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.s == nil || !d.powered {
		return StatusError
	}
	switch control {
	case ControlTX:
		d.txEnabled = arg != 0
		return StatusOK
	case ControlRX:
		return d.setReceiver(arg != 0)
	}
	if control.IsCommand() {
		return StatusUnsupported
	}
	return d.setMode(control, arg)
}

func (d *TTY) setReceiver(on bool) Status {
	termios, err := unix.IoctlGetTermios(d.s.fd, unix.TCGETS)
	if err != nil {
		return StatusError
	}
	if on {
		termios.Cflag |= unix.CREAD
	} else {
		termios.Cflag &^= unix.CREAD
	}
	if err := unix.IoctlSetTermios(d.s.fd, unix.TCSETS, termios); err != nil {
		return StatusError
	}
	d.rxEnabled = on
	return StatusOK
}

func (d *TTY) setMode(control Control, baud uint32) Status {
	mode, st := control.Mode()
	if st != StatusOK {
		return st
	}
	if mode.Kind != ModeAsynchronous {
		return StatusMode
	}
	if mode.Flow != FlowControlNone {
		return StatusFlowControl
	}
	speed, ok := baudToUnix(baud)
	if !ok {
		return StatusBaudrate
	}

	termios, err := unix.IoctlGetTermios(d.s.fd, unix.TCGETS)
	if err != nil {
		return StatusError
	}

	termios.Cflag &^= unix.CSIZE
	switch mode.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	case 8:
		termios.Cflag |= unix.CS8
	default:
		return StatusDataBits
	}

	termios.Cflag &^= unix.PARENB | unix.PARODD
	switch mode.Parity {
	case EvenParity:
		termios.Cflag |= unix.PARENB
	case OddParity:
		termios.Cflag |= unix.PARENB | unix.PARODD
	}

	switch mode.StopBits {
	case OneStopBit:
		termios.Cflag &^= unix.CSTOPB
	case TwoStopBits:
		termios.Cflag |= unix.CSTOPB
	default:
		return StatusStopBits
	}

	// Baud rate
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= speed
	termios.Ispeed = speed
	termios.Ospeed = speed

	if err := unix.IoctlSetTermios(d.s.fd, unix.TCSETS, termios); err != nil {
		return StatusError
	}
	return StatusOK
}

// Send writes data from a transfer goroutine.
func (d *TTY) Send(data []byte) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.s == nil || !d.txEnabled {
		return StatusError
	}
	return d.xfer.send(d.s.file, data)
}

// Receive fills data from a transfer goroutine.
func (d *TTY) Receive(data []byte) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.s == nil || !d.rxEnabled {
		return StatusError
	}
	return d.xfer.receive(d.s, data)
}

// ttySession is one open device. The self-pipe stays open until the last
// in-flight reader has returned, so a woken poll never sees a reused fd.
type ttySession struct {
	fd    int
	file  *os.File
	pipeR int // self-pipe read fd
	pipeW int // self-pipe write fd

	mu     sync.Mutex
	active int
	closed bool
}

func (s *ttySession) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	// Wake up poll using self-pipe
	unix.Write(s.pipeW, []byte{1})
	err := s.file.Close()
	if s.active == 0 {
		s.closePipe()
	}
	return err
}

func (s *ttySession) closePipe() {
	unix.Close(s.pipeR)
	unix.Close(s.pipeW)
}

func (s *ttySession) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.active++
	return true
}

func (s *ttySession) leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	if s.closed && s.active == 0 {
		s.closePipe()
	}
}

// Read waits for input or the kill signal, then reads.
func (s *ttySession) Read(p []byte) (int, error) {
	if !s.enter() {
		return 0, errClosed
	}
	defer s.leave()
	for {
		// Use poll to wait for data or kill signal
		pfd := []unix.PollFd{
			{Fd: int32(s.fd), Events: unix.POLLIN},
			{Fd: int32(s.pipeR), Events: unix.POLLIN},
		}
		_, err := unix.Poll(pfd, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		if pfd[1].Revents != 0 || pfd[0].Revents&unix.POLLNVAL != 0 {
			return 0, errClosed
		}
		if pfd[0].Revents != 0 {
			n, err := s.file.Read(p)
			if err != nil && errors.Is(err, os.ErrClosed) {
				return n, errClosed
			}
			return n, err
		}
	}
}

func baudToUnix(baud uint32) (uint32, bool) {
	switch baud {
	case 1200:
		return unix.B1200, true
	case 2400:
		return unix.B2400, true
	case 4800:
		return unix.B4800, true
	case 9600:
		return unix.B9600, true
	case 19200:
		return unix.B19200, true
	case 38400:
		return unix.B38400, true
	case 57600:
		return unix.B57600, true
	case 115200:
		return unix.B115200, true
	case 230400:
		return unix.B230400, true
	default:
		return 0, false
	}
}
