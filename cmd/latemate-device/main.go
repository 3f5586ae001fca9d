//go:build linux

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/late-mate/late-mate/internal/adc"
	"github.com/late-mate/late-mate/internal/devusb"
	"github.com/late-mate/late-mate/internal/eventbuffer"
	"github.com/late-mate/late-mate/internal/executor"
	"github.com/late-mate/late-mate/internal/hidsender"
	"github.com/late-mate/late-mate/internal/metrics"
	"github.com/late-mate/late-mate/internal/reactor"
	"github.com/late-mate/late-mate/internal/serial"
	"github.com/late-mate/late-mate/internal/supervisor"
	"github.com/late-mate/late-mate/internal/wire"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("latemate-device %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}

	var cdcPort serial.Port
	if cfg.cdcLogDev != "" {
		port, err := serial.Open(cfg.cdcLogDev, cfg.cdcLogBaud, 0)
		if err != nil {
			fmt.Printf("cdc log open error: %v\n", err)
			os.Exit(1)
		}
		cdcPort = port
		defer port.Close()
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel, cdcPort)

	ffs, err := devusb.Open(cfg.ffsOut, cfg.ffsIn)
	if err != nil {
		l.Error("ffs_open_error", "error", err)
		os.Exit(1)
	}
	defer ffs.Close()

	mouseWriter, err := devusb.OpenHidWriter(cfg.hidMouse)
	if err != nil {
		l.Error("hid_mouse_open_error", "error", err)
		os.Exit(1)
	}
	defer mouseWriter.Close()
	keyboardWriter, err := devusb.OpenHidWriter(cfg.hidKeyboard)
	if err != nil {
		l.Error("hid_keyboard_open_error", "error", err)
		os.Exit(1)
	}
	defer keyboardWriter.Close()

	adcDev, closeADC, err := adc.Open(cfg.spiBus, cfg.drdyPin)
	if err != nil {
		l.Error("adc_open_error", "error", err)
		os.Exit(1)
	}
	defer closeADC()
	if err := adcDev.Configure(); err != nil {
		l.Error("adc_configure_error", "error", err)
		os.Exit(1)
	}

	topic := adc.NewTopic()
	recorderSub := topic.Subscribe()
	streamerSub := topic.Subscribe()

	buf := eventbuffer.New()
	sender := hidsender.New(mouseWriter, keyboardWriter)
	senderStop := make(chan struct{})
	go sender.Run(senderStop)
	defer close(senderStop)

	recorder := executor.NewRecorder(recorderSub, buf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replyTx := devusb.NewReplyTx(ctx, ffs, 16)
	defer replyTx.Close()

	streamer := executor.NewStreamer(streamerSub, func(rep wire.Reply) { _ = replyTx.SendReply(rep) })
	exec := executor.New(buf, sender, recorder, streamer)

	status := newStaticStatus(uint8(cfg.hardwareRev), cfg.serialNumber, commit, version == "dev")
	panics := filePanicSource{path: cfg.panicFile}
	react := reactor.New(sender, exec, streamer, status, panics, hostRebooter{})

	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil })
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		l.Info("shutdown_signal", "signal", s.String())
		cancel()
	}()

	sup := supervisor.New(
		supervisor.Agent{Name: "adc_sample_loop", Run: func(ctx context.Context) error {
			return runSampleLoop(ctx, adcDev, topic)
		}},
		supervisor.Agent{Name: "recorder", Run: func(ctx context.Context) error {
			recorder.Run(ctx)
			return nil
		}},
		supervisor.Agent{Name: "streamer", Run: func(ctx context.Context) error {
			streamer.Run(ctx)
			return nil
		}},
		supervisor.Agent{Name: "usb_rx", Run: func(ctx context.Context) error {
			return devusb.RunRX(ctx, ffs, replyTx, react.Handle)
		}},
	)
	if err := sup.Run(ctx); err != nil {
		l.Error("agent_failed", "error", err)
	}
	cancel()
	wg.Wait()
}
