package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/luhtfiimanal/go-serial-stdio/usart"
)

func newDriver(cfg config) (usart.Driver, error) {
	l := log.WithFields(logrus.Fields{"device": cfg.Device, "backend": cfg.Backend})
	switch cfg.Backend {
	case "tty":
		return newTTY(cfg.Device, l)
	case "port":
		d := usart.NewPort(cfg.Device)
		d.Logger = l
		return d, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
