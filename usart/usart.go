// Package usart defines the asynchronous serial peripheral contract the
// stdio channel is built on, and drivers that implement it.
//
// The contract follows the CMSIS USART driver: every operation returns a
// Status, Send and Receive start a single transfer and return at once, and
// completion is reported through the callback given to Initialize. The
// callback may run on any goroutine and must not block.
package usart

import "fmt"

// Status is the result code of a driver operation. The zero value is
// StatusOK; every other value is an error.
type Status int32

const (
	StatusOK          Status = 0
	StatusError       Status = -1
	StatusBusy        Status = -2
	StatusTimeout     Status = -3
	StatusUnsupported Status = -4
	StatusParameter   Status = -5

	// Driver specific codes.
	StatusMode        Status = -6
	StatusBaudrate    Status = -7
	StatusDataBits    Status = -8
	StatusParity      Status = -9
	StatusStopBits    Status = -10
	StatusFlowControl Status = -11
)

var statusNames = map[Status]string{
	StatusOK:          "ok",
	StatusError:       "error",
	StatusBusy:        "busy",
	StatusTimeout:     "timeout",
	StatusUnsupported: "unsupported",
	StatusParameter:   "parameter error",
	StatusMode:        "unsupported mode",
	StatusBaudrate:    "unsupported baud rate",
	StatusDataBits:    "unsupported data bits",
	StatusParity:      "unsupported parity",
	StatusStopBits:    "unsupported stop bits",
	StatusFlowControl: "unsupported flow control",
}

// Error names the status.
func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return "usart: " + name
	}
	return fmt.Sprintf("usart: status %d", int32(s))
}

// Err returns nil for StatusOK and s otherwise.
func (s Status) Err() error {
	if s == StatusOK {
		return nil
	}
	return s
}

// PowerState is the argument of PowerControl.
type PowerState uint8

const (
	PowerOff PowerState = iota
	PowerLow
	PowerFull
)

func (p PowerState) String() string {
	switch p {
	case PowerOff:
		return "off"
	case PowerLow:
		return "low"
	case PowerFull:
		return "full"
	default:
		return fmt.Sprintf("power(%d)", uint8(p))
	}
}

// Event is the bitmask passed to a SignalEvent callback.
type Event uint32

const (
	EventSendComplete     Event = 1 << 0
	EventReceiveComplete  Event = 1 << 1
	EventTransferComplete Event = 1 << 2
	EventTxComplete       Event = 1 << 3
	EventTxUnderflow      Event = 1 << 4
	EventRxOverflow       Event = 1 << 5
	EventRxTimeout        Event = 1 << 6
	EventRxBreak          Event = 1 << 7
	EventRxFramingError   Event = 1 << 8
	EventRxParityError    Event = 1 << 9
)

// SignalEvent is the completion callback registered with Initialize.
type SignalEvent func(event Event)

// Driver is an asynchronous serial peripheral.
type Driver interface {
	Initialize(cb SignalEvent) Status
	Uninitialize() Status
	PowerControl(state PowerState) Status
	// Control either configures the line (a mode word combining ModeXxx,
	// DataBitsXxx, ParityXxx, StopBitsXxx and FlowControlXxx, with the
	// baud rate in arg) or runs a command such as ControlTX or ControlRX.
	Control(control Control, arg uint32) Status
	// Send starts transmitting data. data must not be modified until
	// EventSendComplete is signalled.
	Send(data []byte) Status
	// Receive starts filling data. data must not be read until
	// EventReceiveComplete is signalled.
	Receive(data []byte) Status
}
