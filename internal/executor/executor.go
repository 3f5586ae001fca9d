package executor

import (
	"errors"
	"time"

	"github.com/late-mate/late-mate/internal/eventbuffer"
	"github.com/late-mate/late-mate/internal/hidsender"
	"github.com/late-mate/late-mate/internal/logging"
	"github.com/late-mate/late-mate/internal/metrics"
	"github.com/late-mate/late-mate/internal/wire"
)

// ErrScenarioFailed is returned (and rendered as an on-device Err(()) reply)
// when a HID send or buffer push fails partway through a run (spec.md §4.4
// "On buffer-push failure: stop the recorder and return error for this
// scenario, aborting remaining steps").
var ErrScenarioFailed = errors.New("executor: scenario aborted")

// Executor drives one device.RunScenario request end to end: it walks the
// wire-form step sequence, hands HID reports to the sender, starts/stops
// the recorder at the right point, and finally drains the event buffer
// into a sequence of BufferedMoment replies (spec.md §4.4).
type Executor struct {
	buf      *eventbuffer.Buffer
	sender   *hidsender.Sender
	recorder *Recorder
	streamer *Streamer
}

// New constructs an Executor over the shared event buffer and its
// collaborating tasks.
func New(buf *eventbuffer.Buffer, sender *hidsender.Sender, recorder *Recorder, streamer *Streamer) *Executor {
	return &Executor{buf: buf, sender: sender, recorder: recorder, streamer: streamer}
}

// RunScenario executes one device scenario (either the test section or the
// revert section — ToWire is called once per section, see
// internal/scenario/towire.go) and emits every recorded moment through
// emit, in order, terminated once the full count is known.
//
// The buffer is cleared unconditionally at the start of every run, not only
// when StartRecordingAtIdx is present. The literal algorithm in spec.md
// §4.4 only clears at the recording-start index, but a revert section never
// carries that marker (original_source's to_device_scenario skips
// StartTiming entirely for a section that has none) — so without an
// unconditional clear, a revert run's final buffer drain would replay
// whatever moments the preceding test run left behind. Recording itself
// still only starts when the marker is present; an un-marked run just walks
// its steps and always reports an empty moment sequence.
func (e *Executor) RunScenario(requestID uint32, ds wire.DeviceScenario, emit func(wire.Reply)) error {
	e.streamer.Stop()

	now := time.Now()
	e.buf.Clear(now)

	if ds.StartRecordingAtIdx != nil {
		startIdx := int(*ds.StartRecordingAtIdx)
		if startIdx > len(ds.Steps) {
			startIdx = len(ds.Steps)
		}
		if err := e.runSteps(ds.Steps[:startIdx], false); err != nil {
			e.recorder.Stop()
			return err
		}
		e.recorder.Start(time.Now())
		if err := e.runSteps(ds.Steps[startIdx:], true); err != nil {
			e.recorder.Stop()
			return err
		}
	} else if err := e.runSteps(ds.Steps, false); err != nil {
		return err
	}

	e.recorder.Stop()

	moments := e.buf.Moments()
	total := uint16(len(moments))
	if total == 0 {
		// No BufferedMoment carries Idx == Total-1 to terminate the stream
		// when there is nothing to report (an un-marked or empty-recording
		// run) — emit a single Ok(None) reply so the host-side consumer has
		// a definite end instead of waiting on a timeout.
		emit(wire.Reply{RequestID: requestID})
		return nil
	}
	for idx, m := range moments {
		emit(wire.Reply{
			RequestID: requestID,
			Payload: wire.BufferedMoment{
				Microsecond: m.Microsecond,
				Event:       m.Event,
				Idx:         uint16(idx),
				Total:       total,
			},
		})
	}
	return nil
}

// runSteps executes one contiguous slice of device steps. recording
// controls whether emitted HID instants are pushed into the event buffer
// (spec.md §4.4: "if recording is active, push (instant, HidReport(id))
// into the buffer").
func (e *Executor) runSteps(steps []wire.Step, recording bool) error {
	for _, step := range steps {
		switch s := step.(type) {
		case wire.StepWait:
			time.Sleep(time.Duration(s.Ms) * time.Millisecond)
		case wire.StepHidRequest:
			instant, err := e.sender.Send(s.Request)
			if err != nil {
				logging.L().Error("scenario_hid_send_failed", "error", err)
				metrics.IncScenarioRejection("hid_send_failed")
				return ErrScenarioFailed
			}
			if !recording {
				continue
			}
			if err := e.buf.Store(instant, wire.EventHidReport(s.Request.ID)); err != nil {
				logging.L().Error("scenario_buffer_push_failed", "error", err)
				metrics.IncEventBufferFull()
				return ErrScenarioFailed
			}
		}
	}
	return nil
}
