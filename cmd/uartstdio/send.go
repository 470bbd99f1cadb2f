package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	stdio "github.com/luhtfiimanal/go-serial-stdio"
)

// runSend writes args, space separated, on a bare line and prints up to
// reply bytes of the answer.
func runSend(ctx context.Context, cfg config, args []string, reply int, out io.Writer) error {
	drv, err := newDriver(cfg)
	if err != nil {
		return err
	}
	line, err := stdio.OpenLine(stdio.LineConfig{Driver: drv, Logger: log.WithField("device", cfg.Device)})
	if err != nil {
		log.WithError(err).Error("open line")
		return err
	}
	defer line.Close()
	if err := line.EnableTransfer(); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	msg := strings.Join(args, " ")
	if _, err := line.Write(ctx, []byte(msg)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	log.WithField("bytes", len(msg)).Debug("sent")

	buf := make([]byte, 0, reply)
	for len(buf) < reply {
		b, err := line.ReceiveByte(ctx)
		if err != nil {
			out.Write(buf)
			return fmt.Errorf("reply after %d bytes: %w", len(buf), err)
		}
		buf = append(buf, b)
	}
	if reply > 0 {
		fmt.Fprintf(out, "%s\n", buf)
	}
	return nil
}
