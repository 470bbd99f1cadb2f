package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// syslogFormatter prefixes each line with its kernel log priority, for
// consoles that feed /dev/kmsg or a syslog daemon.
type syslogFormatter struct{}

func (f *syslogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var prefix string
	switch entry.Level {
	case logrus.PanicLevel:
		prefix = "<0>"
	case logrus.FatalLevel:
		prefix = "<1>"
	case logrus.ErrorLevel:
		prefix = "<3>"
	case logrus.WarnLevel:
		prefix = "<4>"
	case logrus.InfoLevel:
		prefix = "<6>"
	default:
		prefix = "<7>"
	}
	msg := entry.Message
	for k, v := range entry.Data {
		msg += fmt.Sprintf(" %s=%v", k, v)
	}
	return []byte(prefix + msg + "\n"), nil
}

var log = &logrus.Logger{
	Level:     logrus.InfoLevel,
	Out:       os.Stderr,
	Formatter: &logrus.TextFormatter{FullTimestamp: true},
	Hooks:     make(logrus.LevelHooks),
}
