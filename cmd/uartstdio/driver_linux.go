//go:build linux
// +build linux

package main

import (
	"github.com/sirupsen/logrus"

	"github.com/luhtfiimanal/go-serial-stdio/usart"
)

func newTTY(device string, log logrus.FieldLogger) (usart.Driver, error) {
	d := usart.NewTTY(device)
	d.Logger = log
	return d, nil
}
