// Package hidsender implements the device-side HID sender task: a one-slot
// request/reply pair guarding two independent HID writers (spec.md §4.7),
// grounded on
// original_source/firmware/src/tasks/usb/hid_sender.rs's CHANNEL_IN/
// CHANNEL_OUT pair and send() function.
package hidsender

import (
	"errors"
	"time"

	"github.com/late-mate/late-mate/internal/wire"
)

// MaxPacketSize is the HID report's maximum wire size (spec.md §4.7: "each
// with a 64-byte max packet").
const MaxPacketSize = 64

// ErrEndpointFailure is returned when the underlying writer reports a
// transfer error (spec.md §4.7: "or an endpoint error").
var ErrEndpointFailure = errors.New("hidsender: endpoint error")

// Writer abstracts one USB HID gadget endpoint. Real implementations live in
// internal/devusb; tests use a fake.
type Writer interface {
	WriteReport(descriptor []byte) error
}

// request/response flow down two independent one-slot channels, mirroring
// the Rust task's CHANNEL_IN/CHANNEL_OUT pair.
type request struct {
	hr     wire.HidRequest
	result chan result
}

type result struct {
	instant time.Time
	err     error
}

// Sender owns the mouse and keyboard writers and serializes every send
// through a single loop goroutine, so "HID writers are exclusively used
// from the HID sender task" (spec.md §5) holds even if multiple callers
// race to call Send.
type Sender struct {
	mouse    Writer
	keyboard Writer
	in       chan request
	done     chan struct{}
}

// New constructs a Sender. Call Run in its own goroutine before calling
// Send.
func New(mouse, keyboard Writer) *Sender {
	return &Sender{
		mouse:    mouse,
		keyboard: keyboard,
		in:       make(chan request),
		done:     make(chan struct{}),
	}
}

// Run drives the sender loop until stop is closed.
func (s *Sender) Run(stop <-chan struct{}) {
	defer close(s.done)
	for {
		select {
		case <-stop:
			return
		case req := <-s.in:
			req.result <- s.dispatch(req.hr)
		}
	}
}

func (s *Sender) dispatch(hr wire.HidRequest) result {
	descriptor, writer, err := encode(hr.Report, s.mouse, s.keyboard)
	if err != nil {
		return result{err: err}
	}
	if err := writer.WriteReport(descriptor); err != nil {
		return result{err: ErrEndpointFailure}
	}
	return result{instant: time.Now()}
}

// Send hands a HidRequest to the sender loop and blocks until the
// corresponding USB transfer completes, returning the instant the stack
// reported completion (spec.md §4.7 "returns the Instant immediately after
// the stack reports completion, or an endpoint error").
func (s *Sender) Send(hr wire.HidRequest) (time.Time, error) {
	req := request{hr: hr, result: make(chan result, 1)}
	select {
	case s.in <- req:
	case <-s.done:
		return time.Time{}, ErrEndpointFailure
	}
	select {
	case res := <-req.result:
		return res.instant, res.err
	case <-s.done:
		return time.Time{}, ErrEndpointFailure
	}
}

func encode(report wire.HidReport, mouse, keyboard Writer) ([]byte, Writer, error) {
	switch r := report.(type) {
	case wire.Mouse:
		return encodeMouseReport(r), mouse, nil
	case wire.Keyboard:
		return encodeKeyboardReport(r), keyboard, nil
	default:
		return nil, nil, errors.New("hidsender: unknown report variant")
	}
}
