// Command uartstdio runs a terminal or sends a line of text over a serial
// port, using the buffered stdio channel or the bare 9600 baud line.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "uartstdio",
		Short:        "standard streams over a serial line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.StringVar(&opts.cfg.Device, "device", defaultConfig.Device, "serial device")
	flags.StringVar(&opts.cfg.Backend, "backend", defaultConfig.Backend, "driver backend: tty or port")
	flags.Uint32Var(&opts.cfg.BaudRate, "baud", defaultConfig.BaudRate, "stdio baud rate")
	flags.StringVar(&opts.cfg.LogLevel, "log-level", defaultConfig.LogLevel, "log level")
	flags.DurationVar(&opts.cfg.Timeout, "timeout", defaultConfig.Timeout, "reply and flush timeout")
	flags.StringVar(&opts.cfg.LogFormat, "log-format", defaultConfig.LogFormat, "log format: text or syslog")

	cc := &cobra.Command{
		Use:   "term",
		Short: "bridge this terminal to the stdio channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerm(cmd.Context(), opts.cfg, os.Stdin, os.Stdout)
		},
	}
	cc.Flags().BoolVar(&opts.cfg.AutoReset, "auto-reset", defaultConfig.AutoReset, "reset a buffer as soon as it overflows")
	cc.Flags().DurationVar(&opts.cfg.PollInterval, "poll", defaultConfig.PollInterval, "input poll interval")
	rootCmd.AddCommand(cc)

	var reply int
	cc = &cobra.Command{
		Use:   "send [text...]",
		Short: "send text on the bare 9600 baud line and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), opts.cfg, args, reply, os.Stdout)
		},
	}
	cc.Flags().IntVar(&reply, "reply", 0, "number of reply bytes to wait for")
	rootCmd.AddCommand(cc)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
