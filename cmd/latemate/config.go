package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// globalFlags are accepted before the subcommand name, mirroring
// periph-smoketest's "<args> <name> ..." shape.
type globalFlags struct {
	logFormat   string
	logLevel    string
	metricsAddr string
	cdcLogDev   string
	cdcLogBaud  int
	timeout     time.Duration
}

func parseGlobalFlags(args []string) (*globalFlags, []string) {
	fs := flag.NewFlagSet("latemate", flag.ExitOnError)
	logFormat := fs.String("log-format", "text", "Log format: text|json")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := fs.String("metrics-addr", "", "Metrics HTTP listen address; empty disables")
	cdcLogDev := fs.String("cdc-log-dev", "", "CDC-ACM device node to tail firmware debug logs from; empty disables")
	cdcLogBaud := fs.Int("cdc-log-baud", 115200, "CDC-ACM log device baud rate")
	timeout := fs.Duration("timeout", 0, "Per-request timeout; not applied: every request uses the library's fixed timeout")
	fs.Usage = func() { usage(fs) }
	_ = fs.Parse(args)

	g := &globalFlags{
		logFormat:   envOr("LATEMATE_LOG_FORMAT", *logFormat),
		logLevel:    envOr("LATEMATE_LOG_LEVEL", *logLevel),
		metricsAddr: envOr("LATEMATE_METRICS", *metricsAddr),
		cdcLogDev:   envOr("LATEMATE_CDC_LOG_DEV", *cdcLogDev),
		cdcLogBaud:  *cdcLogBaud,
		timeout:     *timeout,
	}
	return g, fs.Args()
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage: latemate [flags] <command> [args]")
	fs.PrintDefaults()
	fmt.Fprintln(os.Stderr, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.description)
	}
}
