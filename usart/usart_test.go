package usart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_Error(t *testing.T) {
	require.NoError(t, StatusOK.Err())
	require.Equal(t, "usart: unsupported baud rate", StatusBaudrate.Error())
	require.Equal(t, "usart: status -42", Status(-42).Error())

	var err error = StatusBusy
	var st Status
	require.True(t, errors.As(err, &st))
	require.Equal(t, StatusBusy, st)
}

func TestControl_Mode(t *testing.T) {
	m, st := (ModeAsynchronous | Framing8N1).Mode()
	require.Equal(t, StatusOK, st)
	require.Equal(t, Mode{Kind: ModeAsynchronous, DataBits: 8, Parity: NoParity, StopBits: OneStopBit, Flow: FlowControlNone}, m)

	m, st = (ModeAsynchronous | DataBits7 | ParityOdd | StopBits2).Mode()
	require.Equal(t, StatusOK, st)
	require.Equal(t, 7, m.DataBits)
	require.Equal(t, OddParity, m.Parity)
	require.Equal(t, TwoStopBits, m.StopBits)

	_, st = (ModeAsynchronous | 3<<dataBitsPos).Mode()
	require.Equal(t, StatusDataBits, st)
	_, st = (ModeAsynchronous | 3<<parityPos).Mode()
	require.Equal(t, StatusParity, st)
	_, st = ControlTX.Mode()
	require.Equal(t, StatusParameter, st)
}

func TestControl_String(t *testing.T) {
	require.Equal(t, "tx", ControlTX.String())
	require.Equal(t, "rx", ControlRX.String())
	require.Equal(t, "mode(0x1) 8N1", (ModeAsynchronous | Framing8N1).String())
	require.Equal(t, "mode(0x1) 7E2", (ModeAsynchronous | DataBits7 | ParityEven | StopBits2).String())
	require.True(t, ControlAbortReceive.IsCommand())
	require.False(t, ModeAsynchronous.IsCommand())
}

func TestPowerState_String(t *testing.T) {
	require.Equal(t, "full", PowerFull.String())
	require.Equal(t, "off", PowerOff.String())
}
