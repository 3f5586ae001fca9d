// Package device implements the host-side facade named in spec.md §6: a
// typed Device exposing RunScenario, GetStatus, SendHidReport and
// ResetToFirmwareUpdate over the dispatcher and transport layers, grounded
// on original_source/host-and-shared/late-mate-device/src/lib.rs's
// Device::{init,one_off,get_status,reset_to_firmware_update,send_hid_report}.
package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/late-mate/late-mate/internal/dispatcher"
	"github.com/late-mate/late-mate/internal/transport"
	"github.com/late-mate/late-mate/internal/wire"
)

// requestTimeout bounds any single request/reply round trip, including the
// full run of a scenario (original_source's one_off uses
// MAX_SCENARIO_DURATION_MS + 1000ms).
const requestTimeout = time.Duration(wire.MaxScenarioDurationMs)*time.Millisecond + time.Second

// ErrUnexpectedPayload is returned when a reply carries a DeviceMessage
// variant the caller didn't ask for.
var ErrUnexpectedPayload = errors.New("device: unexpected reply payload")

// ErrIncompleteStream is returned when a RunScenario reply stream carries a
// non-BufferedMoment reply after at least one moment but before the moment
// whose Idx equals Total-1, so the caller cannot trust the partial timeline
// it already received (spec.md §8 testable property #6). A stream cut short
// by a dispatcher error reports that error (ErrDisconnected,
// dispatcher.ErrOnDeviceError) instead.
var ErrIncompleteStream = errors.New("device: scenario reply stream closed before final moment")

// Device is the host-side typed entry point over one connected probe.
type Device struct {
	tx   *transport.AsyncTx
	disp *dispatcher.Dispatcher
}

// New wires a Device over an already-running AsyncTx and Dispatcher.
func New(tx *transport.AsyncTx, disp *dispatcher.Dispatcher) *Device {
	return &Device{tx: tx, disp: disp}
}

// oneOff sends msg and returns the first reply, whatever its payload, the
// shape every request but GetStatus and RunScenario uses.
func (d *Device) oneOff(ctx context.Context, msg wire.Message) (wire.DeviceMessage, error) {
	recv := d.disp.RegisterRequest()
	defer recv.Close()

	env := wire.Envelope{RequestID: recv.RequestID, Request: msg}
	if err := d.tx.SendEnvelope(env); err != nil {
		return nil, fmt.Errorf("device: send request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	select {
	case res, ok := <-recv.C:
		if !ok {
			return nil, dispatcher.ErrDisconnected
		}
		return res.Payload, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetStatus fetches the device's Status, along with any PanicChunk bytes
// the device prefaced it with (spec.md §4.6 "optionally preface with panic
// bytes"). panicData is nil when nothing was pending.
func (d *Device) GetStatus(ctx context.Context) (status wire.Status, panicData []byte, err error) {
	recv := d.disp.RegisterRequest()
	defer recv.Close()

	env := wire.Envelope{RequestID: recv.RequestID, Request: wire.GetStatus{}}
	if err := d.tx.SendEnvelope(env); err != nil {
		return wire.Status{}, nil, fmt.Errorf("device: send request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	for {
		select {
		case res, ok := <-recv.C:
			if !ok {
				return wire.Status{}, nil, dispatcher.ErrDisconnected
			}
			if res.Err != nil {
				return wire.Status{}, nil, res.Err
			}
			switch payload := res.Payload.(type) {
			case wire.PanicChunk:
				panicData = append(panicData, payload.Data...)
			case wire.Status:
				return payload, panicData, nil
			default:
				return wire.Status{}, nil, ErrUnexpectedPayload
			}
		case <-ctx.Done():
			return wire.Status{}, nil, ctx.Err()
		}
	}
}

// ResetToFirmwareUpdate requests the device reboot into its bootloader.
func (d *Device) ResetToFirmwareUpdate(ctx context.Context) error {
	_, err := d.oneOff(ctx, wire.ResetToFirmwareUpdate{})
	return err
}

// SendHidReport emits one simulated input report outside of a scenario run.
func (d *Device) SendHidReport(ctx context.Context, report wire.HidReport) error {
	_, err := d.oneOff(ctx, wire.SendHidReport{Report: wire.HidRequest{Report: report}})
	return err
}

// StreamLightLevel asks the device to forward light readings as
// CurrentLightLevel replies for d and returns once the device acknowledges
// the request. The readings that follow on the same request id are not
// delivered to the caller: the receiver is closed when this call returns.
func (d *Device) StreamLightLevel(ctx context.Context, dur time.Duration) error {
	_, err := d.oneOff(ctx, wire.StreamLightLevel{DurationMs: uint16(dur.Milliseconds())})
	return err
}

// RunScenario sends one already-converted device scenario and returns a
// channel of BufferedMoment replies in arrival order, closed once the final
// moment (Idx == Total-1) has been delivered, the request errors, or ctx is
// canceled. A zero-moment run closes the channel, without delivering
// anything, when the device's Ok(None) terminal reply arrives.
//
// The returned err func blocks until the channel is fully drained and
// closed, then reports the terminal outcome: nil on a clean finish, or the
// reason the stream ended early (ErrIncompleteStream, a dispatcher error,
// or ctx's error) otherwise. Callers must drain the channel to completion
// before calling it.
func (d *Device) RunScenario(ctx context.Context, ds wire.DeviceScenario) (moments <-chan wire.BufferedMoment, err func() error, sendErr error) {
	recv := d.disp.RegisterRequest()

	env := wire.Envelope{RequestID: recv.RequestID, Request: wire.RunScenario{Scenario: ds}}
	if err := d.tx.SendEnvelope(env); err != nil {
		recv.Close()
		return nil, nil, fmt.Errorf("device: send request: %w", err)
	}

	out := make(chan wire.BufferedMoment)
	done := make(chan struct{})
	var terminalErr error
	go func() {
		defer close(done)
		defer close(out)
		defer recv.Close()

		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		sawMoment := false
		for {
			select {
			case res, ok := <-recv.C:
				if !ok {
					terminalErr = dispatcher.ErrDisconnected
					return
				}
				if res.Err != nil {
					terminalErr = res.Err
					return
				}
				bm, ok := res.Payload.(wire.BufferedMoment)
				if !ok {
					// Ok(None): the executor's terminal reply for a run
					// that recorded zero moments (spec.md §4.4). Anything
					// other than that after moments already arrived means
					// the stream ended before its last index.
					if sawMoment {
						terminalErr = ErrIncompleteStream
					}
					return
				}
				sawMoment = true
				select {
				case out <- bm:
				case <-ctx.Done():
					terminalErr = ctx.Err()
					return
				}
				if bm.Idx == bm.Total-1 {
					return
				}
			case <-ctx.Done():
				terminalErr = ctx.Err()
				return
			}
		}
	}()
	return out, func() error {
		<-done
		return terminalErr
	}, nil
}
