package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/late-mate/late-mate/internal/logging"
	"github.com/late-mate/late-mate/internal/serial"
)

func setupLogger(format, level string, cdcPort serial.Port) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if cdcPort != nil {
		// Mirror every log line onto the CDC-ACM debug interface alongside
		// stderr (SPEC_FULL.md's supplemented CDC debug-log interface),
		// grounded on original_source/firmware/src/tasks/usb/cdc_logger.rs.
		w = io.MultiWriter(os.Stderr, portWriter{cdcPort})
	}

	l := logging.New(format, lvl, w).With("app", "latemate-device")
	logging.Set(l)
	return l
}

// portWriter adapts serial.Port's Write to io.Writer without exposing Read.
type portWriter struct{ p serial.Port }

func (w portWriter) Write(b []byte) (int, error) { return w.p.Write(b) }
