package stdio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-serial-stdio/event"
	"github.com/luhtfiimanal/go-serial-stdio/usart"
	"github.com/luhtfiimanal/go-serial-stdio/usart/usarttest"
)

// failingKernel fails the n-th allocation (0 = event flags, 1 = first thread, ...).
type failingKernel struct {
	failAt int
	n      int
}

func (k *failingKernel) NewEventFlags(flags event.Flags) (*event.Group, error) {
	defer func() { k.n++ }()
	if k.n == k.failAt {
		return nil, errors.New("out of memory")
	}
	return event.NewGroup(flags), nil
}

func (k *failingKernel) NewThread(name string, entry func()) error {
	defer func() { k.n++ }()
	if k.n == k.failAt {
		return errors.New("out of threads")
	}
	go entry()
	return nil
}

func openFake(t *testing.T) (*Channel, *usarttest.Driver) {
	t.Helper()
	drv := usarttest.New()
	ch, err := Open(Config{Driver: drv})
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })
	return ch, drv
}

func TestChannel_InitializeSuccess(t *testing.T) {
	ch, drv := openFake(t)

	require.Equal(t, Transmitting, ch.State())
	require.NotNil(t, ch.flags.Load())
	require.Eventually(t, func() bool { return ch.Running() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, drv.ReceiveOutstanding, time.Second, time.Millisecond)

	calls := drv.Calls()
	require.GreaterOrEqual(t, len(calls), 5)
	require.Equal(t, []usarttest.Call{
		{Op: usarttest.OpInitialize},
		{Op: usarttest.OpPowerControl, Power: usart.PowerFull},
		{Op: usarttest.OpControl, Control: usart.ModeAsynchronous | usart.Framing8N1, Arg: DefaultBaudRate},
		{Op: usarttest.OpControl, Control: usart.ControlRX, Arg: 1},
		{Op: usarttest.OpControl, Control: usart.ControlTX, Arg: 1},
	}, calls[:5])
}

func TestChannel_InitializeModeFailureRollsBack(t *testing.T) {
	drv := usarttest.New()
	drv.Script = func(c usarttest.Call) usart.Status {
		if c.Op == usarttest.OpControl && c.Control == usart.ModeAsynchronous|usart.Framing8N1 {
			return usart.StatusBaudrate
		}
		return usart.StatusOK
	}
	ch, err := New(Config{Driver: drv})
	require.NoError(t, err)

	err = ch.Initialize()
	require.Equal(t, usart.StatusBaudrate, err)
	var st usart.Status
	require.True(t, errors.As(err, &st))
	require.Equal(t, usart.StatusBaudrate, st)

	require.Equal(t, Uninitialized, ch.State())
	require.True(t, drv.Called(usarttest.Call{Op: usarttest.OpPowerControl, Power: usart.PowerOff}))
	require.Equal(t, 1, drv.Count(usarttest.OpUninitialize))
	require.False(t, drv.Called(usarttest.Call{Op: usarttest.OpControl, Control: usart.ControlRX, Arg: 1}))

	require.ErrorIs(t, ch.Start(), ErrNotInitialized)
}

func TestChannel_InitializeFailureAtEachStep(t *testing.T) {
	steps := []usarttest.Call{
		{Op: usarttest.OpInitialize},
		{Op: usarttest.OpPowerControl, Power: usart.PowerFull},
		{Op: usarttest.OpControl, Control: usart.ControlRX, Arg: 1},
		{Op: usarttest.OpControl, Control: usart.ControlTX, Arg: 1},
	}
	for _, step := range steps {
		t.Run(step.String(), func(t *testing.T) {
			drv := usarttest.New()
			drv.Script = func(c usarttest.Call) usart.Status {
				if c == step {
					return usart.StatusError
				}
				return usart.StatusOK
			}
			_, err := Open(Config{Driver: drv})
			require.ErrorIs(t, err, usart.StatusError)

			calls := drv.Calls()
			require.Equal(t, usarttest.Call{Op: usarttest.OpUninitialize}, calls[len(calls)-1])
			require.Equal(t, usarttest.Call{Op: usarttest.OpPowerControl, Power: usart.PowerOff}, calls[len(calls)-2])
		})
	}
}

func TestChannel_AllocationFailure(t *testing.T) {
	for failAt, what := range []string{"event flags", "stdin thread", "stdout thread"} {
		t.Run(what, func(t *testing.T) {
			drv := usarttest.New()
			ch, err := New(Config{Driver: drv, Kernel: &failingKernel{failAt: failAt}})
			require.NoError(t, err)
			require.NoError(t, ch.Initialize())

			err = ch.Start()
			require.ErrorIs(t, err, ErrAllocation)
			require.Contains(t, err.Error(), what)

			// No hardware rollback on allocation failure.
			require.Equal(t, Transmitting, ch.State())
			require.Zero(t, drv.Count(usarttest.OpUninitialize))
			require.False(t, drv.Called(usarttest.Call{Op: usarttest.OpPowerControl, Power: usart.PowerOff}))
			ch.Close()
		})
	}
}

func TestChannel_CloseShutsDown(t *testing.T) {
	drv := usarttest.New()
	ch, err := Open(Config{Driver: drv})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return ch.Running() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, ch.Close())
	require.Zero(t, ch.Running())
	require.Equal(t, Uninitialized, ch.State())
	require.Equal(t, 1, drv.Count(usarttest.OpUninitialize))
	require.NoError(t, ch.Err())

	require.NoError(t, ch.Close())
	require.Equal(t, 1, drv.Count(usarttest.OpUninitialize))
}

func TestChannel_ReceiveFailureStopsChannel(t *testing.T) {
	drv := usarttest.New()
	drv.Script = func(c usarttest.Call) usart.Status {
		if c.Op == usarttest.OpReceive {
			return usart.StatusError
		}
		return usart.StatusOK
	}
	ch, err := Open(Config{Driver: drv})
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })

	require.Eventually(t, func() bool { return ch.Err() != nil }, time.Second, time.Millisecond)
	require.ErrorIs(t, ch.Err(), usart.StatusError)
	require.Eventually(t, func() bool { return ch.Running() == 0 }, time.Second, time.Millisecond)
}

func TestChannel_IgnoresUnknownEvents(t *testing.T) {
	ch, drv := openFake(t)
	drv.Signal(usart.EventRxBreak)
	drv.Signal(usart.EventSendComplete | usart.EventReceiveComplete)
	require.Zero(t, ch.flags.Load().Pending()&(flagSendComplete|flagReceiveComplete))
}

func TestState_String(t *testing.T) {
	require.Equal(t, "transmitting", Transmitting.String())
	require.Equal(t, "rolling-back", RollingBack.String())
	require.Equal(t, "state(9)", State(9).String())
}
