package usart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortMode(t *testing.T) {
	m, st := portMode(ModeAsynchronous|Framing8N1, 115200)
	require.Equal(t, StatusOK, st)
	require.Equal(t, serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}, m)

	m, st = portMode(ModeAsynchronous|DataBits7|ParityOdd|StopBits1_5, 9600)
	require.Equal(t, StatusOK, st)
	require.Equal(t, serial.Mode{BaudRate: 9600, DataBits: 7, Parity: serial.OddParity, StopBits: serial.OnePointFiveStopBits}, m)

	_, st = portMode(ModeAsynchronous|DataBits9, 9600)
	require.Equal(t, StatusDataBits, st)
	_, st = portMode(ModeIrDA|Framing8N1, 9600)
	require.Equal(t, StatusMode, st)
	_, st = portMode(ModeAsynchronous|FlowControlRTS, 9600)
	require.Equal(t, StatusFlowControl, st)
	_, st = portMode(ModeAsynchronous|StopBits0_5, 9600)
	require.Equal(t, StatusStopBits, st)
	_, st = portMode(ModeAsynchronous, 0)
	require.Equal(t, StatusBaudrate, st)
}

func TestPort_OpenFailure(t *testing.T) {
	d := NewPort("COM99")
	d.Open = func(name string, mode *serial.Mode) (serial.Port, error) {
		require.Equal(t, "COM99", name)
		require.Equal(t, 9600, mode.BaudRate)
		return nil, errors.New("no such port")
	}
	require.Equal(t, StatusError, d.PowerControl(PowerFull), "power before initialize")
	require.Equal(t, StatusOK, d.Initialize(nil))
	require.Equal(t, StatusError, d.PowerControl(PowerFull))
	require.Equal(t, StatusError, d.Control(ControlRX, 1))
	require.Equal(t, StatusError, d.Receive(make([]byte, 1)))
	require.Equal(t, StatusUnsupported, d.PowerControl(PowerLow))
	require.Equal(t, StatusOK, d.Uninitialize())
}
