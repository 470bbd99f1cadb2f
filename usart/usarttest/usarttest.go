// Package usarttest provides a scriptable usart.Driver for tests.
package usarttest

import (
	"fmt"
	"sync"

	"github.com/luhtfiimanal/go-serial-stdio/usart"
)

// Op names a driver entry point.
type Op string

const (
	OpInitialize   Op = "Initialize"
	OpUninitialize Op = "Uninitialize"
	OpPowerControl Op = "PowerControl"
	OpControl      Op = "Control"
	OpSend         Op = "Send"
	OpReceive      Op = "Receive"
)

// Call is one recorded driver call.
type Call struct {
	Op      Op
	Power   usart.PowerState
	Control usart.Control
	Arg     uint32
}

func (c Call) String() string {
	switch c.Op {
	case OpPowerControl:
		return fmt.Sprintf("%s(%s)", c.Op, c.Power)
	case OpControl:
		return fmt.Sprintf("%s(%s, %d)", c.Op, c.Control, c.Arg)
	default:
		return string(c.Op)
	}
}

// Driver is an in-memory usart.Driver. Sends complete immediately unless
// HoldSends is set; receives complete when bytes are delivered.
type Driver struct {
	// Script decides the status of each call. A nil Script, or a
	// StatusOK result, lets the call proceed normally.
	Script func(Call) usart.Status
	// HoldSends keeps every send outstanding until CompleteSend.
	HoldSends bool

	mu          sync.Mutex
	cb          usart.SignalEvent
	calls       []Call
	sent        []byte
	sendPending bool
	rxBuf       []byte
	rxQueue     []byte
	sendCh      chan struct{}
}

// New returns a driver that accepts every call.
func New() *Driver {
	return &Driver{sendCh: make(chan struct{}, 1)}
}

func (d *Driver) record(c Call) usart.Status {
	d.calls = append(d.calls, c)
	if d.Script != nil {
		return d.Script(c)
	}
	return usart.StatusOK
}

// Initialize records the call and keeps cb for completions.
func (d *Driver) Initialize(cb usart.SignalEvent) usart.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st := d.record(Call{Op: OpInitialize}); st != usart.StatusOK {
		return st
	}
	d.cb = cb
	return usart.StatusOK
}

// Uninitialize records the call and drops the callback.
func (d *Driver) Uninitialize() usart.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cb = nil
	return d.record(Call{Op: OpUninitialize})
}

// PowerControl records the call.
func (d *Driver) PowerControl(state usart.PowerState) usart.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record(Call{Op: OpPowerControl, Power: state})
}

// Control records the call.
func (d *Driver) Control(control usart.Control, arg uint32) usart.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record(Call{Op: OpControl, Control: control, Arg: arg})
}

// Send records data. Unless HoldSends is set, EventSendComplete is
// signalled before Send returns, as a fast interrupt would.
func (d *Driver) Send(data []byte) usart.Status {
	d.mu.Lock()
	if st := d.record(Call{Op: OpSend}); st != usart.StatusOK {
		d.mu.Unlock()
		return st
	}
	if d.sendPending {
		d.mu.Unlock()
		return usart.StatusBusy
	}
	d.sent = append(d.sent, data...)
	select {
	case d.sendCh <- struct{}{}:
	default:
	}
	if d.HoldSends {
		d.sendPending = true
		d.mu.Unlock()
		return usart.StatusOK
	}
	cb := d.cb
	d.mu.Unlock()
	if cb != nil {
		cb(usart.EventSendComplete)
	}
	return usart.StatusOK
}

// Receive starts a receive. Queued bytes from Deliver complete it at once.
func (d *Driver) Receive(data []byte) usart.Status {
	d.mu.Lock()
	if st := d.record(Call{Op: OpReceive}); st != usart.StatusOK {
		d.mu.Unlock()
		return st
	}
	if d.rxBuf != nil {
		d.mu.Unlock()
		return usart.StatusBusy
	}
	d.rxBuf = data
	cb := d.fill()
	d.mu.Unlock()
	if cb != nil {
		cb(usart.EventReceiveComplete)
	}
	return usart.StatusOK
}

// fill moves queued bytes into the outstanding receive and returns the
// callback to signal if it is now complete.
func (d *Driver) fill() usart.SignalEvent {
	if d.rxBuf == nil || len(d.rxQueue) < len(d.rxBuf) {
		return nil
	}
	n := copy(d.rxBuf, d.rxQueue)
	d.rxQueue = d.rxQueue[n:]
	d.rxBuf = nil
	return d.cb
}

// Deliver makes bytes arrive on the line.
func (d *Driver) Deliver(b ...byte) {
	for _, c := range b {
		d.mu.Lock()
		d.rxQueue = append(d.rxQueue, c)
		cb := d.fill()
		d.mu.Unlock()
		if cb != nil {
			cb(usart.EventReceiveComplete)
		}
	}
}

// Signal invokes the registered callback with an arbitrary event.
func (d *Driver) Signal(event usart.Event) {
	d.mu.Lock()
	cb := d.cb
	d.mu.Unlock()
	if cb != nil {
		cb(event)
	}
}

// SetHoldSends changes HoldSends while the driver is in use.
func (d *Driver) SetHoldSends(hold bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.HoldSends = hold
}

// CompleteSend finishes a held send.
func (d *Driver) CompleteSend() bool {
	d.mu.Lock()
	if !d.sendPending {
		d.mu.Unlock()
		return false
	}
	d.sendPending = false
	cb := d.cb
	d.mu.Unlock()
	if cb != nil {
		cb(usart.EventSendComplete)
	}
	return true
}

// SendStarted is signalled each time a send is accepted.
func (d *Driver) SendStarted() <-chan struct{} {
	return d.sendCh
}

// Sent returns every byte handed to Send so far.
func (d *Driver) Sent() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.sent...)
}

// Pending reports bytes delivered but not yet received.
func (d *Driver) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rxQueue)
}

// ReceiveOutstanding reports whether a receive is waiting for data.
func (d *Driver) ReceiveOutstanding() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rxBuf != nil
}

// Calls returns the recorded calls in order.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Count returns how many times op was called.
func (d *Driver) Count(op Op) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Called reports whether c was recorded.
func (d *Driver) Called(c Call) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.calls {
		if r == c {
			return true
		}
	}
	return false
}
