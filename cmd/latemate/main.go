package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/late-mate/late-mate/internal/device"
	"github.com/late-mate/late-mate/internal/devicelog"
	"github.com/late-mate/late-mate/internal/dispatcher"
	"github.com/late-mate/late-mate/internal/metrics"
	"github.com/late-mate/late-mate/internal/transport"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-version" || os.Args[1] == "--version") {
		fmt.Printf("latemate %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	g, rest := parseGlobalFlags(os.Args[1:])
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "missing command. Commands:")
		for _, c := range commands {
			fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.description)
		}
		os.Exit(2)
	}
	cmd := findCommand(rest[0])
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", rest[0])
		os.Exit(2)
	}

	l := setupLogger(g.logFormat, g.logLevel)

	dev, err := transport.OpenFirst()
	if err != nil {
		l.Error("usb_open_error", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	disp := dispatcher.New()
	go disp.Run(ctx)
	go func() {
		if err := transport.RunRX(ctx, dev, disp); err != nil {
			l.Error("usb_rx_error", "error", err)
			cancel()
		}
	}()

	tx := transport.NewTX(ctx, dev, 16, transport.Hooks{OnError: func(err error) {
		l.Error("usb_tx_error", "error", err)
	}})
	defer tx.Close()

	d := device.New(tx, disp)

	if g.cdcLogDev != "" {
		tailer, err := devicelog.Open(g.cdcLogDev, g.cdcLogBaud)
		if err != nil {
			l.Warn("cdc_log_open_failed", "error", err)
		} else {
			defer tailer.Close()
			go func() {
				if err := tailer.Run(ctx); err != nil {
					l.Warn("cdc_log_tail_error", "error", err)
				}
			}()
		}
	}

	if g.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil })
		srvHTTP := metrics.StartHTTP(g.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	if err := cmd.run(ctx, d, rest[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.name, err)
		os.Exit(1)
	}
}
