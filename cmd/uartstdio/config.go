package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type config struct {
	Device       string        `yaml:"device"`
	Backend      string        `yaml:"backend"`
	BaudRate     uint32        `yaml:"baud"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	AutoReset    bool          `yaml:"auto_reset"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

var defaultConfig = config{
	Device:       "/dev/ttyUSB0",
	Backend:      "tty",
	BaudRate:     115200,
	LogLevel:     "info",
	LogFormat:    "text",
	PollInterval: 5 * time.Millisecond,
	Timeout:      2 * time.Second,
}

type options struct {
	configPath string
	cfg        config
}

// load reads the config file, if any, and lets explicitly set flags win.
func (o *options) load(cmd *cobra.Command) error {
	cfg := defaultConfig
	if o.configPath != "" {
		var err error
		cfg, err = loadConfig(o.configPath)
		if err != nil {
			return err
		}
	}
	flagged := map[string]func(){
		"device":     func() { cfg.Device = o.cfg.Device },
		"backend":    func() { cfg.Backend = o.cfg.Backend },
		"baud":       func() { cfg.BaudRate = o.cfg.BaudRate },
		"log-level":  func() { cfg.LogLevel = o.cfg.LogLevel },
		"log-format": func() { cfg.LogFormat = o.cfg.LogFormat },
		"auto-reset": func() { cfg.AutoReset = o.cfg.AutoReset },
		"poll":       func() { cfg.PollInterval = o.cfg.PollInterval },
		"timeout":    func() { cfg.Timeout = o.cfg.Timeout },
	}
	for name, apply := range flagged {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	o.cfg = cfg
	return setupLogging(cfg)
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func setupLogging(cfg config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	switch cfg.LogFormat {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "syslog":
		log.SetFormatter(&syslogFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	return nil
}
