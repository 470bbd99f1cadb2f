package usart

import (
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Port drives a serial port through go.bug.st/serial, so it works on every
// platform that package supports. The port is opened on PowerFull and
// closed on PowerOff.
type Port struct {
	Name   string
	Logger logrus.FieldLogger
	// Open is used to open the port; serial.Open when nil.
	Open func(name string, mode *serial.Mode) (serial.Port, error)

	mu          sync.Mutex
	initialized bool
	port        serial.Port
	mode        serial.Mode
	rxEnabled   bool
	txEnabled   bool
	xfer        transfer
}

// NewPort returns a driver for the named port.
func NewPort(name string) *Port {
	return &Port{Name: name}
}

// Initialize registers cb. The port itself is opened by PowerControl.
func (d *Port) Initialize(cb SignalEvent) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.xfer.log = d.Logger
	if d.xfer.log == nil {
		d.xfer.log = logrus.StandardLogger().WithField("port", d.Name)
	}
	d.xfer.setCallback(cb)
	if !d.initialized {
		d.mode = serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
		d.initialized = true
	}
	return StatusOK
}

// Uninitialize closes the port if it is still open.
func (d *Port) Uninitialize() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.xfer.setCallback(nil)
	st := d.powerOff()
	d.initialized = false
	return st
}

// PowerControl opens the port at PowerFull and closes it at PowerOff.
func (d *Port) PowerControl(state PowerState) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return StatusError
	}
	switch state {
	case PowerFull:
		if d.port != nil {
			return StatusOK
		}
		open := d.Open
		if open == nil {
			open = serial.Open
		}
		mode := d.mode
		port, err := open(d.Name, &mode)
		if err != nil {
			d.xfer.log.WithError(err).Error("usart: open port")
			return StatusError
		}
		d.port = port
		return StatusOK
	case PowerOff:
		return d.powerOff()
	default:
		return StatusUnsupported
	}
}

func (d *Port) powerOff() Status {
	d.rxEnabled, d.txEnabled = false, false
	if d.port == nil {
		return StatusOK
	}
	port := d.port
	d.port = nil
	port.ResetInputBuffer()
	port.ResetOutputBuffer()
	if err := port.Close(); err != nil {
		d.xfer.log.WithError(err).Warn("usart: close port")
		return StatusError
	}
	return StatusOK
}

// Control applies a mode word with arg as baud rate, or toggles the
// receiver (ControlRX) and transmitter (ControlTX).
func (d *Port) Control(control Control, arg uint32) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return StatusError
	}
	switch control {
	case ControlTX:
		d.txEnabled = arg != 0
		return StatusOK
	case ControlRX:
		if arg != 0 && !d.rxEnabled {
			d.port.ResetInputBuffer()
		}
		d.rxEnabled = arg != 0
		return StatusOK
	}
	if control.IsCommand() {
		return StatusUnsupported
	}

	mode, st := portMode(control, arg)
	if st != StatusOK {
		return st
	}
	if err := d.port.SetMode(&mode); err != nil {
		d.xfer.log.WithError(err).Error("usart: set mode")
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.InvalidSpeed {
			return StatusBaudrate
		}
		return StatusError
	}
	d.mode = mode
	return StatusOK
}

func portMode(control Control, baud uint32) (serial.Mode, Status) {
	m, st := control.Mode()
	if st != StatusOK {
		return serial.Mode{}, st
	}
	if m.Kind != ModeAsynchronous {
		return serial.Mode{}, StatusMode
	}
	if m.Flow != FlowControlNone {
		return serial.Mode{}, StatusFlowControl
	}
	if m.DataBits > 8 {
		return serial.Mode{}, StatusDataBits
	}
	if baud == 0 {
		return serial.Mode{}, StatusBaudrate
	}
	mode := serial.Mode{BaudRate: int(baud), DataBits: m.DataBits}
	switch m.Parity {
	case NoParity:
		mode.Parity = serial.NoParity
	case EvenParity:
		mode.Parity = serial.EvenParity
	case OddParity:
		mode.Parity = serial.OddParity
	}
	switch m.StopBits {
	case OneStopBit:
		mode.StopBits = serial.OneStopBit
	case TwoStopBits:
		mode.StopBits = serial.TwoStopBits
	case OnePointFiveStopBits:
		mode.StopBits = serial.OnePointFiveStopBits
	default:
		return serial.Mode{}, StatusStopBits
	}
	return mode, StatusOK
}

// Send writes data asynchronously; the transmitter must be enabled.
func (d *Port) Send(data []byte) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil || !d.txEnabled {
		return StatusError
	}
	return d.xfer.send(d.port, data)
}

// Receive reads len(data) bytes asynchronously; the receiver must be
// enabled.
func (d *Port) Receive(data []byte) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil || !d.rxEnabled {
		return StatusError
	}
	return d.xfer.receive(portReader{d.port}, data)
}

// portReader reports a closed port as errClosed so the transfer goroutine
// can tell shutdown from line errors.
type portReader struct {
	port io.Reader
}

func (r portReader) Read(p []byte) (int, error) {
	n, err := r.port.Read(p)
	var perr *serial.PortError
	if errors.As(err, &perr) && perr.Code() == serial.PortClosed {
		return n, errClosed
	}
	if err == nil && n == 0 {
		// go.bug.st/serial returns (0, nil) when the port is closed
		// under a blocked read.
		return 0, errClosed
	}
	return n, err
}
