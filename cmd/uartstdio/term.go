package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	stdio "github.com/luhtfiimanal/go-serial-stdio"
	"github.com/luhtfiimanal/go-serial-stdio/ring"
)

// runTerm copies in to the channel's stdout and the channel's stdin to out
// until in is exhausted, the context ends or the channel fails.
func runTerm(ctx context.Context, cfg config, in io.Reader, out io.Writer) error {
	drv, err := newDriver(cfg)
	if err != nil {
		return err
	}
	ch, err := stdio.Open(stdio.Config{
		Driver:   drv,
		BaudRate: cfg.BaudRate,
		Logger:   log.WithField("device", cfg.Device),
	})
	if err != nil {
		log.WithError(err).Error("open stdio channel")
		return err
	}
	defer ch.Close()
	log.WithField("baud", cfg.BaudRate).Info("stdio channel open")

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputDone := make(chan error, 1)
	go func() { inputDone <- forward(ch, in, cfg.AutoReset) }()

	w := bufio.NewWriter(out)
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := drain(ch, w, cfg.AutoReset); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case err := <-inputDone:
			if err != nil {
				return err
			}
			return flush(ctx, ch, w, cfg)
		case <-ticker.C:
		}
	}
}

// flush waits for pending output to go out, still echoing input.
func flush(ctx context.Context, ch *stdio.Channel, w *bufio.Writer, cfg config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	for ch.OutputPending() > 0 {
		if err := drain(ch, w, cfg.AutoReset); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			log.WithField("pending", ch.OutputPending()).Warn("output not flushed")
			return nil
		case <-time.After(cfg.PollInterval):
		}
	}
	return drain(ch, w, cfg.AutoReset)
}

// forward writes every byte of in to the channel's stdout. It is the only
// writer of the output buffer, so it may reset it.
func forward(ch *stdio.Channel, in io.Reader, autoReset bool) error {
	r := bufio.NewReader(in)
	for {
		b, err := r.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if ch.PutOut(b) != stdio.OverflowCode {
			continue
		}
		if !autoReset {
			return ring.ErrOverflow
		}
		if err := ch.ResetOutput(); err != nil {
			return err
		}
	}
}

// drain moves everything received so far to w.
func drain(ch *stdio.Channel, w *bufio.Writer, autoReset bool) error {
	for {
		c := ch.GetIn()
		if c == stdio.EOF {
			break
		}
		w.WriteByte(byte(c))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := ch.Err(); err != nil {
		return err
	}
	if ch.InputStatus() == ring.Overflow {
		if !autoReset {
			return ring.ErrOverflow
		}
		log.Warn("input overflow, resetting")
		return ch.ResetInput()
	}
	return nil
}
