// Package reactor implements the device-side request dispatch table
// described in spec.md §4.6, grounded on
// original_source/firmware/src/tasks/reactor.rs (the GetStatus/dispatch
// shape) generalized to the full request set: StreamLightLevel,
// SendHidReport and RunScenario are handed to internal/executor and
// internal/hidsender rather than answered inline.
package reactor

import (
	"time"

	"github.com/late-mate/late-mate/internal/executor"
	"github.com/late-mate/late-mate/internal/hidsender"
	"github.com/late-mate/late-mate/internal/logging"
	"github.com/late-mate/late-mate/internal/metrics"
	"github.com/late-mate/late-mate/internal/wire"
)

// rebootGrace is the delay between acking ResetToFirmwareUpdate and
// actually invoking the bootloader reset, so the reply frame has time to
// leave the bulk IN endpoint (spec.md §4.6 "Schedule bootloader reboot
// after a 1-second grace").
const rebootGrace = time.Second

// StatusInfo is everything the reactor needs to assemble a Status reply
// that it cannot itself compute; the flash serial number and firmware
// build identity are external collaborators (spec.md §1, §6).
type StatusInfo struct {
	Hardware      uint8
	FirmwareHash  [5]byte
	FirmwareDirty bool
	SerialNumber  [8]byte
}

// StatusSource supplies the hardware/firmware identity baked in at build
// time plus the JEDEC-ID-derived serial number (spec.md §6 "the flash
// serial number, read once via a JEDEC-ID + unique-id helper").
type StatusSource interface {
	Status() StatusInfo
}

// PanicSource drains any panic record persisted across the last reset.
// TakePanicChunk returns ok false when nothing is pending; a true result
// must not be returned again on a subsequent call (spec.md §6 "an optional
// cross-reset panic buffer").
type PanicSource interface {
	TakePanicChunk() (data []byte, ok bool)
}

// Rebooter performs the actual hardware transition into the bootloader
// (spec.md §6 "a hardware watchdog path that signals mass-storage activity
// via a designated indicator GPIO"). The reactor only owns the grace-period
// timing, not the mechanism.
type Rebooter interface {
	RebootToBootloader()
}

// Reactor maps each incoming wire.Message to its handling sub-task and
// emits reply envelopes through the caller-supplied sink (spec.md §4.6).
type Reactor struct {
	sender   *hidsender.Sender
	exec     *executor.Executor
	streamer *executor.Streamer
	status   StatusSource
	panics   PanicSource
	reboot   Rebooter
}

// New wires a Reactor over its sub-tasks and external collaborators.
func New(sender *hidsender.Sender, exec *executor.Executor, streamer *executor.Streamer, status StatusSource, panics PanicSource, reboot Rebooter) *Reactor {
	return &Reactor{sender: sender, exec: exec, streamer: streamer, status: status, panics: panics, reboot: reboot}
}

// Handle dispatches one request, emitting one or more reply envelopes
// through emit before returning. GetStatus (pending PanicChunk replies, then
// Status) and RunScenario are the requests that can emit more than one reply.
func (r *Reactor) Handle(requestID uint32, msg wire.Message, emit func(wire.Reply)) {
	switch m := msg.(type) {
	case wire.GetStatus:
		r.handleGetStatus(requestID, emit)
	case wire.ResetToFirmwareUpdate:
		r.handleResetToFirmwareUpdate(requestID, emit)
	case wire.StreamLightLevel:
		r.handleStreamLightLevel(requestID, m, emit)
	case wire.SendHidReport:
		r.handleSendHidReport(requestID, m, emit)
	case wire.RunScenario:
		r.handleRunScenario(requestID, m, emit)
	default:
		logging.L().Error("reactor_unknown_request", "request_id", requestID)
		emit(wire.Reply{RequestID: requestID, Failed: true})
	}
}

// handleGetStatus prefaces the Status reply with any pending PanicChunk
// (spec.md §4.6 "optionally preface with panic bytes").
func (r *Reactor) handleGetStatus(requestID uint32, emit func(wire.Reply)) {
	if r.panics != nil {
		if data, ok := r.panics.TakePanicChunk(); ok {
			emit(wire.Reply{RequestID: requestID, Payload: wire.PanicChunk{Data: data}})
		}
	}

	info := r.status.Status()
	emit(wire.Reply{
		RequestID: requestID,
		Payload: wire.Status{
			Hardware:      info.Hardware,
			FirmwareHash:  info.FirmwareHash,
			FirmwareDirty: info.FirmwareDirty,
			MaxLightLevel: wire.MaxLightLevel,
			SerialNumber:  info.SerialNumber,
		},
	})
}

// handleResetToFirmwareUpdate acks immediately, then lets the grace period
// elapse in its own goroutine so the ack frame reaches the host first.
func (r *Reactor) handleResetToFirmwareUpdate(requestID uint32, emit func(wire.Reply)) {
	emit(wire.Reply{RequestID: requestID})
	metrics.IncRebootScheduled()
	go func() {
		time.Sleep(rebootGrace)
		r.reboot.RebootToBootloader()
	}()
}

func (r *Reactor) handleStreamLightLevel(requestID uint32, m wire.StreamLightLevel, emit func(wire.Reply)) {
	r.streamer.StreamFor(requestID, time.Duration(m.DurationMs)*time.Millisecond)
	emit(wire.Reply{RequestID: requestID})
}

func (r *Reactor) handleSendHidReport(requestID uint32, m wire.SendHidReport, emit func(wire.Reply)) {
	if _, err := r.sender.Send(m.Report); err != nil {
		logging.L().Error("reactor_hid_send_failed", "request_id", requestID, "error", err)
		metrics.IncHidSendFailure()
		emit(wire.Reply{RequestID: requestID, Failed: true})
		return
	}
	emit(wire.Reply{RequestID: requestID})
}

func (r *Reactor) handleRunScenario(requestID uint32, m wire.RunScenario, emit func(wire.Reply)) {
	if err := r.exec.RunScenario(requestID, m.Scenario, emit); err != nil {
		logging.L().Error("reactor_scenario_failed", "request_id", requestID, "error", err)
		emit(wire.Reply{RequestID: requestID, Failed: true})
	}
}
