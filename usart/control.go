package usart

import "fmt"

// Control is a Driver.Control code: either a line mode word or a command.
type Control uint32

const (
	controlMask Control = 0xff

	ModeAsynchronous      Control = 0x01
	ModeSynchronousMaster Control = 0x02
	ModeSynchronousSlave  Control = 0x03
	ModeSingleWire        Control = 0x04
	ModeIrDA              Control = 0x05
	ModeSmartCard         Control = 0x06

	ControlTX            Control = 0x15
	ControlRX            Control = 0x16
	ControlBreak         Control = 0x17
	ControlAbortSend     Control = 0x18
	ControlAbortReceive  Control = 0x19
	ControlAbortTransfer Control = 0x1a
)

const (
	dataBitsPos    = 8
	parityPos      = 12
	stopBitsPos    = 14
	flowControlPos = 16
)

const (
	dataBitsMask Control = 7 << dataBitsPos
	DataBits5    Control = 5 << dataBitsPos
	DataBits6    Control = 6 << dataBitsPos
	DataBits7    Control = 7 << dataBitsPos
	DataBits8    Control = 0 << dataBitsPos
	DataBits9    Control = 1 << dataBitsPos

	parityMask Control = 3 << parityPos
	ParityNone Control = 0 << parityPos
	ParityEven Control = 1 << parityPos
	ParityOdd  Control = 2 << parityPos

	stopBitsMask Control = 3 << stopBitsPos
	StopBits1    Control = 0 << stopBitsPos
	StopBits2    Control = 1 << stopBitsPos
	StopBits1_5  Control = 2 << stopBitsPos
	StopBits0_5  Control = 3 << stopBitsPos

	flowControlMask Control = 3 << flowControlPos
	FlowControlNone Control = 0 << flowControlPos
	FlowControlRTS  Control = 1 << flowControlPos
	FlowControlCTS  Control = 2 << flowControlPos
	FlowControlBoth Control = 3 << flowControlPos
)

// Framing8N1 is 8 data bits, no parity, one stop bit and no flow control.
const Framing8N1 = DataBits8 | ParityNone | StopBits1 | FlowControlNone

// Parity of a decoded Mode.
type Parity uint8

const (
	NoParity Parity = iota
	EvenParity
	OddParity
)

// StopBits of a decoded Mode.
type StopBits uint8

const (
	OneStopBit StopBits = iota
	TwoStopBits
	OnePointFiveStopBits
	HalfStopBit
)

// Mode is a decoded line mode word.
type Mode struct {
	Kind     Control
	DataBits int
	Parity   Parity
	StopBits StopBits
	Flow     Control
}

// IsCommand reports whether c is a command rather than a mode word.
func (c Control) IsCommand() bool {
	return c&controlMask > ModeSmartCard
}

// Mode decodes a mode word.
func (c Control) Mode() (Mode, Status) {
	m := Mode{Kind: c & controlMask, Flow: c & flowControlMask}
	if m.Kind == 0 || c.IsCommand() {
		return m, StatusParameter
	}
	switch c & dataBitsMask {
	case DataBits5:
		m.DataBits = 5
	case DataBits6:
		m.DataBits = 6
	case DataBits7:
		m.DataBits = 7
	case DataBits8:
		m.DataBits = 8
	case DataBits9:
		m.DataBits = 9
	default:
		return m, StatusDataBits
	}
	switch c & parityMask {
	case ParityNone:
		m.Parity = NoParity
	case ParityEven:
		m.Parity = EvenParity
	case ParityOdd:
		m.Parity = OddParity
	default:
		return m, StatusParity
	}
	m.StopBits = StopBits((c & stopBitsMask) >> stopBitsPos)
	return m, StatusOK
}

func (c Control) String() string {
	switch c {
	case ControlTX:
		return "tx"
	case ControlRX:
		return "rx"
	case ControlBreak:
		return "break"
	case ControlAbortSend:
		return "abort-send"
	case ControlAbortReceive:
		return "abort-receive"
	case ControlAbortTransfer:
		return "abort-transfer"
	}
	m, st := c.Mode()
	if st != StatusOK {
		return fmt.Sprintf("control(%#x)", uint32(c))
	}
	parity := [...]string{"N", "E", "O"}[m.Parity]
	stop := [...]string{"1", "2", "1.5", "0.5"}[m.StopBits]
	return fmt.Sprintf("mode(%#x) %d%s%s", uint32(m.Kind), m.DataBits, parity, stop)
}
