package stdio

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/luhtfiimanal/go-serial-stdio/event"
	"github.com/luhtfiimanal/go-serial-stdio/usart"
)

// LineBaudRate is the speed of a bare line.
const LineBaudRate = 9600

// Event flags of a Line.
const (
	LineSendComplete    event.Flags = 0x01
	LineReceiveComplete event.Flags = 0x02
)

// LineConfig holds the parameters of a Line.
type LineConfig struct {
	Driver usart.Driver
	Kernel Kernel // default RuntimeKernel
	Logger logrus.FieldLogger
}

// Line is a serial channel without buffering: 9600 baud, 8N1, no flow
// control. Transfers are single bytes that block until the driver reports
// completion.
type Line struct {
	drv    usart.Driver
	events *event.Group
	log    logrus.FieldLogger

	txMu sync.Mutex
	tx   [1]byte
	rxMu sync.Mutex
	rx   [1]byte
}

// OpenLine allocates the line's event group and initializes the driver up
// to the line mode. The receiver and transmitter stay off until
// EnableTransfer. A failing driver status is returned unchanged and
// nothing is rolled back.
func OpenLine(cfg LineConfig) (*Line, error) {
	if cfg.Driver == nil {
		return nil, fmt.Errorf("stdio: no driver")
	}
	if cfg.Kernel == nil {
		cfg.Kernel = RuntimeKernel{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	g, err := cfg.Kernel.NewEventFlags(LineSendComplete | LineReceiveComplete)
	if err != nil {
		return nil, fmt.Errorf("%w: event flags: %w", ErrAllocation, err)
	}
	l := &Line{drv: cfg.Driver, events: g, log: cfg.Logger}

	if st := l.drv.Initialize(l.signalEvent); st != usart.StatusOK {
		return nil, st
	}
	if st := l.drv.PowerControl(usart.PowerFull); st != usart.StatusOK {
		return nil, st
	}
	if st := l.drv.Control(usart.ModeAsynchronous|usart.Framing8N1, LineBaudRate); st != usart.StatusOK {
		return nil, st
	}
	return l, nil
}

func (l *Line) signalEvent(e usart.Event) {
	switch e {
	case usart.EventSendComplete:
		l.events.Set(LineSendComplete)
	case usart.EventReceiveComplete:
		l.events.Set(LineReceiveComplete)
	}
}

// Events returns the line's event group.
func (l *Line) Events() *event.Group {
	return l.events
}

// EnableTransfer turns on the receiver, then the transmitter.
func (l *Line) EnableTransfer() error {
	if st := l.drv.Control(usart.ControlRX, 1); st != usart.StatusOK {
		return st
	}
	return l.drv.Control(usart.ControlTX, 1).Err()
}

// DisableTransfer turns off the receiver, then the transmitter.
func (l *Line) DisableTransfer() error {
	if st := l.drv.Control(usart.ControlRX, 0); st != usart.StatusOK {
		return st
	}
	return l.drv.Control(usart.ControlTX, 0).Err()
}

// SendByte transmits b and waits for completion.
func (l *Line) SendByte(ctx context.Context, b byte) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()
	l.tx[0] = b
	if st := l.drv.Send(l.tx[:]); st != usart.StatusOK {
		return st
	}
	return l.events.Wait(ctx, LineSendComplete)
}

// Write transmits p byte by byte.
func (l *Line) Write(ctx context.Context, p []byte) (int, error) {
	for i, b := range p {
		if err := l.SendByte(ctx, b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// ReceiveByte waits for one byte from the line.
func (l *Line) ReceiveByte(ctx context.Context) (byte, error) {
	l.rxMu.Lock()
	defer l.rxMu.Unlock()
	if st := l.drv.Receive(l.rx[:]); st != usart.StatusOK {
		return 0, st
	}
	if err := l.events.Wait(ctx, LineReceiveComplete); err != nil {
		return 0, err
	}
	return l.rx[0], nil
}

// Close powers the driver off and uninitializes it.
func (l *Line) Close() error {
	if st := l.drv.PowerControl(usart.PowerOff); st != usart.StatusOK {
		l.log.WithError(st).Warn("stdio: line power off")
	}
	return l.drv.Uninitialize().Err()
}
