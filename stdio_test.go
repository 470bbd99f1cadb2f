package stdio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/go-serial-stdio/ring"
	"github.com/luhtfiimanal/go-serial-stdio/usart"
	"github.com/luhtfiimanal/go-serial-stdio/usart/usarttest"
)

func TestChannel_PutOutReachesLineInOrder(t *testing.T) {
	ch, drv := openFake(t)

	msg := []byte("hello, world\n")
	for _, b := range msg {
		require.Equal(t, int(b), ch.PutOut(b))
	}
	require.Eventually(t, func() bool { return len(drv.Sent()) == len(msg) }, time.Second, time.Millisecond)
	require.Equal(t, msg, drv.Sent())
	require.Equal(t, ring.OK, ch.OutputStatus())
}

func TestChannel_PutOutNeverBlocks(t *testing.T) {
	drv := usarttest.New()
	drv.HoldSends = true
	ch, err := Open(Config{Driver: drv})
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })

	// The first byte is stuck in a send that never completes.
	require.Equal(t, int('a'), ch.PutOut('a'))
	select {
	case <-drv.SendStarted():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the output pipeline to send")
	}

	done := make(chan []int, 1)
	go func() {
		var results []int
		for i := 0; i < BufferSize+10; i++ {
			results = append(results, ch.PutOut(byte(i)))
		}
		done <- results
	}()

	var results []int
	select {
	case results = <-done:
	case <-time.After(time.Second):
		t.Fatal("PutOut blocked on a stalled transmitter")
	}
	for i := 0; i < BufferSize; i++ {
		require.Equal(t, i, results[i])
	}
	for _, r := range results[BufferSize:] {
		require.Equal(t, OverflowCode, r)
	}
	require.Equal(t, ring.Overflow, ch.OutputStatus())
	require.Equal(t, []byte("a"), drv.Sent())
}

func TestChannel_PutErrIsSynchronous(t *testing.T) {
	drv := usarttest.New()
	drv.HoldSends = true
	ch, err := Open(Config{Driver: drv})
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })

	// Stall stdout on an overflowed buffer so its state cannot matter.
	ch.PutOut('o')
	<-drv.SendStarted()
	for i := 0; i <= BufferSize; i++ {
		ch.PutOut('o')
	}
	require.Equal(t, ring.Overflow, ch.OutputStatus())
	require.True(t, drv.CompleteSend())

	sendsBefore := drv.Count(usarttest.OpSend)
	done := make(chan int, 1)
	go func() { done <- ch.PutErr('!') }()

	select {
	case <-drv.SendStarted():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for stderr send")
	}
	select {
	case <-done:
		t.Fatal("PutErr returned before the send completed")
	case <-time.After(20 * time.Millisecond):
	}

	require.True(t, drv.CompleteSend())
	select {
	case r := <-done:
		require.Equal(t, int('!'), r)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for PutErr")
	}
	require.Equal(t, sendsBefore+1, drv.Count(usarttest.OpSend))
	require.Zero(t, ch.flags.Load().Pending()&flagSendComplete)
	require.Equal(t, byte('!'), drv.Sent()[len(drv.Sent())-1])
}

func TestChannel_PutErrSendRejected(t *testing.T) {
	drv := usarttest.New()
	drv.Script = func(c usarttest.Call) usart.Status {
		if c.Op == usarttest.OpSend {
			return usart.StatusBusy
		}
		return usart.StatusOK
	}
	ch, err := Open(Config{Driver: drv})
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })

	require.Equal(t, EOF, ch.PutErr('x'))
	require.ErrorIs(t, ch.Stderr().WriteByte('x'), ErrTransmit)
}

func TestChannel_GetIn(t *testing.T) {
	ch, drv := openFake(t)
	require.Equal(t, EOF, ch.GetIn())

	drv.Deliver([]byte("ping")...)
	require.Eventually(t, func() bool { return ch.Buffered() == 4 }, time.Second, time.Millisecond)
	for _, b := range []byte("ping") {
		require.Equal(t, int(b), ch.GetIn())
	}
	require.Equal(t, EOF, ch.GetIn())
}

func TestChannel_InputOverflowAndReset(t *testing.T) {
	ch, drv := openFake(t)

	in := make([]byte, 130)
	for i := range in {
		in[i] = byte(i)
	}
	drv.Deliver(in...)
	require.Eventually(t, func() bool { return ch.InputStatus() == ring.Overflow }, time.Second, time.Millisecond)

	// The pipeline parks instead of receiving the last two bytes.
	require.Equal(t, 2, drv.Pending())
	require.Equal(t, BufferSize, ch.Buffered())
	require.Equal(t, EOF, ch.GetIn())

	require.NoError(t, ch.ResetInput())
	require.Equal(t, ring.OK, ch.InputStatus())

	// Receiving resumes with the bytes still on the line.
	require.Eventually(t, func() bool { return ch.Buffered() == 2 }, time.Second, time.Millisecond)
	require.Equal(t, 128, ch.GetIn())
	require.Equal(t, 129, ch.GetIn())
	require.Equal(t, EOF, ch.GetIn())
}

func TestChannel_ResetInputWithoutOverflowDrains(t *testing.T) {
	ch, drv := openFake(t)
	drv.Deliver('a', 'b')
	require.Eventually(t, func() bool { return ch.Buffered() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, ch.ResetInput())
	require.Zero(t, ch.Buffered())
	require.Equal(t, EOF, ch.GetIn())
}

func TestChannel_OutputOverflowAndReset(t *testing.T) {
	drv := usarttest.New()
	drv.HoldSends = true
	ch, err := Open(Config{Driver: drv})
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })

	ch.PutOut('a')
	<-drv.SendStarted()
	for i := 0; i < BufferSize; i++ {
		ch.PutOut('b')
	}
	require.Equal(t, OverflowCode, ch.PutOut('c'))

	drv.SetHoldSends(false)
	require.True(t, drv.CompleteSend())

	require.NoError(t, ch.ResetOutput())
	require.Equal(t, ring.OK, ch.OutputStatus())

	require.Equal(t, int('z'), ch.PutOut('z'))
	require.Eventually(t, func() bool {
		sent := drv.Sent()
		return sent[len(sent)-1] == 'z'
	}, time.Second, time.Millisecond)
	require.Equal(t, []byte("az"), drv.Sent())
}

func TestChannel_Dispatch(t *testing.T) {
	ch, drv := openFake(t)

	require.Equal(t, EOF, ch.WriteChar(Stdin, 'x'))
	require.Equal(t, int('o'), ch.WriteChar(Stdout, 'o'))
	require.Equal(t, int('e'), ch.WriteChar(Stderr, 'e'))
	require.Equal(t, EOF, ch.WriteChar(Stream(7), 'x'))

	require.Equal(t, EOF, ch.ReadChar(Stdout))
	require.Equal(t, EOF, ch.ReadChar(Stderr))
	require.Equal(t, EOF, ch.ReadChar(Stdin))

	drv.Deliver('i')
	require.Eventually(t, func() bool { return ch.Buffered() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, int('i'), ch.ReadChar(Stdin))

	for _, s := range []Stream{Stdin, Stdout, Stderr} {
		require.Zero(t, ch.QueryError(s))
		require.Zero(t, ch.Pushback(s))
	}
	require.Eventually(t, func() bool { return len(drv.Sent()) == 2 }, time.Second, time.Millisecond)
	require.ElementsMatch(t, []byte("oe"), drv.Sent())
}

func TestStream_String(t *testing.T) {
	require.Equal(t, "stdin", Stdin.String())
	require.Equal(t, "stdout", Stdout.String())
	require.Equal(t, "stderr", Stderr.String())
	require.Equal(t, "stream(5)", Stream(5).String())
}
