package stdio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/luhtfiimanal/go-serial-stdio/event"
	"github.com/luhtfiimanal/go-serial-stdio/ring"
	"github.com/luhtfiimanal/go-serial-stdio/usart"
)

const (
	// BufferSize is the capacity of the input and output buffers.
	BufferSize = 128
	// DefaultBaudRate is the stdio line speed, framed 8N1 without flow control.
	DefaultBaudRate = 115200
)

// Flags of the stdio event group.
const (
	flagReceiveComplete event.Flags = 1 << iota
	flagSendComplete
	flagOutputReady
	flagInputReset
	flagInputResetDone
	flagOutputReset
	flagOutputResetDone

	stdioFlags = flagReceiveComplete | flagSendComplete | flagOutputReady |
		flagInputReset | flagInputResetDone | flagOutputReset | flagOutputResetDone
)

// State is the lifecycle state of a Channel's hardware session.
type State int32

const (
	Uninitialized State = iota
	DriverReady
	Transmitting
	RollingBack
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case DriverReady:
		return "driver-ready"
	case Transmitting:
		return "transmitting"
	case RollingBack:
		return "rolling-back"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds the parameters of a Channel.
type Config struct {
	Driver   usart.Driver
	BaudRate uint32 // default 115200
	Kernel   Kernel // default RuntimeKernel
	Logger   logrus.FieldLogger
}

// Channel is the serial line that carries stdin, stdout and stderr. It owns
// both buffers, the event group and the two pipeline goroutines.
//
// The input buffer is written only by the input pipeline and read only by
// the goroutine calling GetIn. The output buffer is written only by the
// goroutine calling PutOut and read only by the output pipeline. Callers
// must keep to one reading and one writing goroutine.
type Channel struct {
	drv    usart.Driver
	kernel Kernel
	log    logrus.FieldLogger
	baud   uint32

	in  *ring.Buffer
	out *ring.Buffer

	flags   atomic.Pointer[event.Group]
	state   atomic.Int32
	running atomic.Int32

	// txMu serializes Send + SendComplete between the output pipeline and
	// PutErr: the transmitter takes one transfer at a time.
	txMu sync.Mutex
	tx   [1]byte

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// New returns an uninitialized channel for cfg.Driver.
func New(cfg Config) (*Channel, error) {
	if cfg.Driver == nil {
		return nil, errors.New("stdio: no driver")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Kernel == nil {
		cfg.Kernel = RuntimeKernel{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		drv:    cfg.Driver,
		kernel: cfg.Kernel,
		log:    cfg.Logger,
		baud:   cfg.BaudRate,
		in:     ring.New(BufferSize),
		out:    ring.New(BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Open initializes the hardware and starts the pipelines.
func Open(cfg Config) (*Channel, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Initialize(); err != nil {
		return nil, err
	}
	if err := c.Start(); err != nil {
		// Stop whatever was spawned; the hardware stays up.
		c.cancel()
		c.wg.Wait()
		return nil, err
	}
	return c, nil
}

// State returns the current hardware session state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

func (c *Channel) setState(s State) {
	c.log.WithField("state", s).Debug("stdio: state change")
	c.state.Store(int32(s))
}

// Initialize brings the driver up: Initialize, power, line mode, then the
// receiver and transmitter. If any step fails the driver is powered off and
// uninitialized, and the failing usart.Status is returned as the error.
func (c *Channel) Initialize() error {
	if c.State() != Uninitialized {
		return fmt.Errorf("stdio: initialize in state %s", c.State())
	}
	if st := c.drv.Initialize(c.signalEvent); st != usart.StatusOK {
		return c.rollback("initialize", st)
	}
	if st := c.drv.PowerControl(usart.PowerFull); st != usart.StatusOK {
		return c.rollback("power", st)
	}
	if st := c.drv.Control(usart.ModeAsynchronous|usart.Framing8N1, c.baud); st != usart.StatusOK {
		return c.rollback("mode", st)
	}
	c.setState(DriverReady)

	if st := c.drv.Control(usart.ControlRX, 1); st != usart.StatusOK {
		return c.rollback("enable rx", st)
	}
	if st := c.drv.Control(usart.ControlTX, 1); st != usart.StatusOK {
		return c.rollback("enable tx", st)
	}
	c.setState(Transmitting)
	return nil
}

func (c *Channel) rollback(step string, st usart.Status) error {
	c.setState(RollingBack)
	c.log.WithField("step", step).WithError(st).Error("stdio: driver setup failed, rolling back")
	c.drv.PowerControl(usart.PowerOff)
	c.drv.Uninitialize()
	c.setState(Uninitialized)
	return st
}

// Start creates the event group and spawns the input and output pipelines.
// Failures wrap ErrAllocation; the hardware is left as it is.
func (c *Channel) Start() error {
	if c.State() != Transmitting {
		return ErrNotInitialized
	}
	if c.flags.Load() != nil {
		return fmt.Errorf("stdio: already started")
	}
	g, err := c.kernel.NewEventFlags(stdioFlags)
	if err != nil {
		return fmt.Errorf("%w: event flags: %w", ErrAllocation, err)
	}
	c.flags.Store(g)

	if err := c.spawn("stdin", c.inputLoop); err != nil {
		return err
	}
	if err := c.spawn("stdout", c.outputLoop); err != nil {
		return err
	}
	return nil
}

func (c *Channel) spawn(name string, loop func(ctx context.Context, log logrus.FieldLogger) error) error {
	log := c.log.WithField("thread", name)
	c.wg.Add(1)
	err := c.kernel.NewThread(name, func() {
		defer c.wg.Done()
		c.running.Add(1)
		defer c.running.Add(-1)
		log.Debug("stdio: pipeline started")
		if err := loop(c.ctx, log); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("stdio: pipeline stopped")
			c.fail(err)
		}
	})
	if err != nil {
		c.wg.Done()
		return fmt.Errorf("%w: %s thread: %w", ErrAllocation, name, err)
	}
	return nil
}

// fail records the first fatal pipeline error and stops the channel.
func (c *Channel) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.cancel()
}

// Err returns the error that stopped the pipelines, if any.
func (c *Channel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Running returns the number of pipeline goroutines currently running.
func (c *Channel) Running() int {
	return int(c.running.Load())
}

// signalEvent is the driver callback. It only raises flags.
func (c *Channel) signalEvent(e usart.Event) {
	g := c.flags.Load()
	if g == nil {
		return
	}
	switch e {
	case usart.EventReceiveComplete:
		g.Set(flagReceiveComplete)
	case usart.EventSendComplete:
		g.Set(flagSendComplete)
	}
}

// inputLoop moves received bytes into the input buffer. While the buffer is
// overflowed it sleeps until ResetInput.
func (c *Channel) inputLoop(ctx context.Context, log logrus.FieldLogger) error {
	g := c.flags.Load()
	var rx [1]byte
	for {
		if c.in.Status() == ring.Overflow {
			if err := g.Wait(ctx, flagInputReset); err != nil {
				return err
			}
			c.in.Reset()
			g.Set(flagInputResetDone)
			continue
		}
		if st := c.drv.Receive(rx[:]); st != usart.StatusOK {
			return fmt.Errorf("receive: %w", st)
		}
		if err := g.Wait(ctx, flagReceiveComplete); err != nil {
			return err
		}
		if err := c.in.TryPush(rx[0]); err != nil {
			continue
		}
		if c.in.Status() == ring.Overflow {
			log.Warn("stdio: input buffer overflow, dropping input until reset")
		}
	}
}

// outputLoop sends buffered output one byte at a time. It sleeps while the
// buffer is empty, and while it is overflowed until ResetOutput.
func (c *Channel) outputLoop(ctx context.Context, log logrus.FieldLogger) error {
	g := c.flags.Load()
	for {
		if g.TryWait(flagOutputReset) {
			c.resetOutput(g)
			continue
		}
		if c.out.Status() == ring.Overflow {
			log.Warn("stdio: output buffer overflow, output stalled until reset")
			if err := g.Wait(ctx, flagOutputReset); err != nil {
				return err
			}
			c.resetOutput(g)
			continue
		}
		b, ok := c.out.TryPop()
		if !ok {
			if err := g.Wait(ctx, flagOutputReady); err != nil {
				return err
			}
			continue
		}
		if err := c.transmit(ctx, b); err != nil {
			return err
		}
	}
}

func (c *Channel) resetOutput(g *event.Group) {
	c.out.Reset()
	g.Set(flagOutputResetDone)
}

// transmit sends one byte and waits for the driver to report completion.
func (c *Channel) transmit(ctx context.Context, b byte) error {
	g := c.flags.Load()
	if g == nil {
		return ErrNotStarted
	}
	c.txMu.Lock()
	defer c.txMu.Unlock()
	c.tx[0] = b
	if st := c.drv.Send(c.tx[:]); st != usart.StatusOK {
		return fmt.Errorf("send: %w", st)
	}
	return g.Wait(ctx, flagSendComplete)
}

// InputStatus reports whether the input buffer has overflowed.
func (c *Channel) InputStatus() ring.Status {
	return c.in.Status()
}

// OutputStatus reports whether the output buffer has overflowed.
func (c *Channel) OutputStatus() ring.Status {
	return c.out.Status()
}

// Buffered returns the number of unread input bytes.
func (c *Channel) Buffered() int {
	return c.in.Len()
}

// OutputPending returns the number of output bytes not yet handed to the
// driver.
func (c *Channel) OutputPending() int {
	return c.out.Len()
}

// ResetInput empties the input buffer and clears its overflow status. It
// must be called from the goroutine that reads input. An overflowed buffer
// is reset by the input pipeline, which is parked at that point; ResetInput
// waits for it.
func (c *Channel) ResetInput() error {
	for {
		if _, ok := c.in.TryPop(); !ok {
			break
		}
	}
	if c.in.Status() != ring.Overflow {
		return nil
	}
	g := c.flags.Load()
	if g == nil {
		return ErrNotStarted
	}
	g.Set(flagInputReset)
	if err := g.Wait(c.ctx, flagInputResetDone); err != nil {
		return c.stopped()
	}
	c.log.Info("stdio: input buffer reset")
	return nil
}

// ResetOutput drops pending output and clears the overflow status. It must
// be called from the goroutine that writes output, and waits for the output
// pipeline to finish its current transfer.
func (c *Channel) ResetOutput() error {
	g := c.flags.Load()
	if g == nil {
		return ErrNotStarted
	}
	g.Set(flagOutputReset | flagOutputReady)
	if err := g.Wait(c.ctx, flagOutputResetDone); err != nil {
		return c.stopped()
	}
	c.log.Info("stdio: output buffer reset")
	return nil
}

func (c *Channel) stopped() error {
	if err := c.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// Close stops the pipelines and shuts the driver down. The device normally
// runs for the life of the process; Close exists so a channel can be torn
// down in tests and tools.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		if c.State() != Uninitialized {
			c.drv.PowerControl(usart.PowerOff)
			c.drv.Uninitialize()
			c.setState(Uninitialized)
		}
	})
	return nil
}
