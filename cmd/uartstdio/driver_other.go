//go:build !linux
// +build !linux

package main

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/luhtfiimanal/go-serial-stdio/usart"
)

func newTTY(device string, log logrus.FieldLogger) (usart.Driver, error) {
	return nil, errors.New("the tty backend needs linux, use --backend port")
}
