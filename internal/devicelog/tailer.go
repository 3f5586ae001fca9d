// Package devicelog optionally tails the device's secondary USB CDC-ACM
// debug-log interface for diagnostics (SPEC_FULL.md's supplemented "CDC
// debug-log interface" feature, grounded on
// original_source/firmware/src/tasks/usb/cdc_logger.rs for what flows over
// the wire: free-running defmt log lines, off the request/response
// protocol entirely). Reuses the teacher's internal/serial.Port
// (github.com/tarm/serial) rather than hand-rolling termios handling.
package devicelog

import (
	"bufio"
	"context"
	"io"

	"github.com/late-mate/late-mate/internal/logging"
	"github.com/late-mate/late-mate/internal/serial"
)

// Tailer reads newline-delimited firmware log lines off a CDC-ACM port and
// re-emits them through the host's own structured logger.
type Tailer struct {
	port serial.Port
}

// Open opens the named serial device at baud and wraps it as a Tailer.
func Open(name string, baud int) (*Tailer, error) {
	port, err := serial.Open(name, baud, 0)
	if err != nil {
		return nil, err
	}
	return &Tailer{port: port}, nil
}

// Close releases the underlying port.
func (t *Tailer) Close() error { return t.port.Close() }

// Run reads lines until ctx is canceled or the port returns an
// unrecoverable error (io.EOF on disconnect is treated as a clean exit).
func (t *Tailer) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = t.port.Close()
		close(done)
	}()

	scanner := bufio.NewScanner(readerFunc(t.port.Read))
	for scanner.Scan() {
		logging.L().Info("device_log", "line", scanner.Text())
	}

	select {
	case <-done:
		return nil
	default:
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// readerFunc adapts a Read method value to io.Reader so bufio.Scanner can
// consume it without Tailer itself implementing the interface.
type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
