package usart

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var errClosed = errors.New("usart: driver closed")

// transfer runs Send and Receive for drivers backed by a blocking reader and
// writer. At most one send and one receive are in flight; completion is
// reported from the transfer goroutine, which plays the part of the
// peripheral interrupt.
type transfer struct {
	cb        atomic.Pointer[SignalEvent]
	sending   atomic.Bool
	receiving atomic.Bool
	log       logrus.FieldLogger
}

func (t *transfer) setCallback(cb SignalEvent) {
	if cb == nil {
		t.cb.Store(nil)
		return
	}
	t.cb.Store(&cb)
}

func (t *transfer) signal(event Event) {
	if cb := t.cb.Load(); cb != nil {
		(*cb)(event)
	}
}

func (t *transfer) logger() logrus.FieldLogger {
	if t.log == nil {
		return logrus.StandardLogger()
	}
	return t.log
}

func (t *transfer) send(w io.Writer, data []byte) Status {
	if len(data) == 0 {
		return StatusParameter
	}
	if !t.sending.CompareAndSwap(false, true) {
		return StatusBusy
	}
	log := t.logger()
	go func() {
		_, err := w.Write(data)
		t.sending.Store(false)
		if err != nil {
			log.WithError(err).Error("usart: send failed")
			return
		}
		t.signal(EventSendComplete)
	}()
	return StatusOK
}

func (t *transfer) receive(r io.Reader, data []byte) Status {
	if len(data) == 0 {
		return StatusParameter
	}
	if !t.receiving.CompareAndSwap(false, true) {
		return StatusBusy
	}
	log := t.logger()
	go func() {
		_, err := io.ReadFull(r, data)
		t.receiving.Store(false)
		if err != nil {
			if errors.Is(err, errClosed) {
				log.Debug("usart: receive aborted, driver closed")
			} else {
				log.WithError(err).Error("usart: receive failed")
			}
			return
		}
		t.signal(EventReceiveComplete)
	}()
	return StatusOK
}
