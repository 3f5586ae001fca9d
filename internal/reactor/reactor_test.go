package reactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/late-mate/late-mate/internal/adc"
	"github.com/late-mate/late-mate/internal/eventbuffer"
	"github.com/late-mate/late-mate/internal/executor"
	"github.com/late-mate/late-mate/internal/hidsender"
	"github.com/late-mate/late-mate/internal/wire"
)

type fakeWriter struct{ err error }

func (f fakeWriter) WriteReport([]byte) error { return f.err }

type fakeStatusSource struct{ info StatusInfo }

func (f fakeStatusSource) Status() StatusInfo { return f.info }

type fakePanicSource struct {
	data []byte
	ok   bool
}

func (f *fakePanicSource) TakePanicChunk() ([]byte, bool) {
	if !f.ok {
		return nil, false
	}
	f.ok = false
	return f.data, true
}

type fakeRebooter struct{ called chan struct{} }

func newFakeRebooter() *fakeRebooter { return &fakeRebooter{called: make(chan struct{}, 1)} }

func (f *fakeRebooter) RebootToBootloader() { f.called <- struct{}{} }

func newTestReactor(t *testing.T, sendErr error, status StatusInfo, panics *fakePanicSource, reboot Rebooter) *Reactor {
	t.Helper()
	sender := hidsender.New(fakeWriter{err: sendErr}, fakeWriter{err: sendErr})
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go sender.Run(stop)

	buf := eventbuffer.New()
	topic := adc.NewTopic()
	sub := topic.Subscribe()
	recorder := executor.NewRecorder(sub, buf)
	streamer := executor.NewStreamer(sub, func(wire.Reply) {})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go recorder.Run(ctx)
	go streamer.Run(ctx)

	exec := executor.New(buf, sender, recorder, streamer)
	return New(sender, exec, streamer, fakeStatusSource{info: status}, panics, reboot)
}

func TestHandleGetStatusAssemblesStatusFromSource(t *testing.T) {
	r := newTestReactor(t, nil, StatusInfo{Hardware: 2, FirmwareHash: [5]byte{1, 2, 3, 4, 5}, FirmwareDirty: true, SerialNumber: [8]byte{9, 8, 7, 6, 5, 4, 3, 2}}, &fakePanicSource{}, newFakeRebooter())

	var replies []wire.Reply
	r.Handle(1, wire.GetStatus{}, func(rep wire.Reply) { replies = append(replies, rep) })

	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1 (no pending panic chunk)", len(replies))
	}
	st, ok := replies[0].Payload.(wire.Status)
	if !ok {
		t.Fatalf("unexpected payload type %T", replies[0].Payload)
	}
	if st.Hardware != 2 || !st.FirmwareDirty || st.MaxLightLevel != wire.MaxLightLevel {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestHandleGetStatusPrefacesWithPendingPanicChunk(t *testing.T) {
	panics := &fakePanicSource{data: []byte{0xDE, 0xAD}, ok: true}
	r := newTestReactor(t, nil, StatusInfo{}, panics, newFakeRebooter())

	var replies []wire.Reply
	r.Handle(5, wire.GetStatus{}, func(rep wire.Reply) { replies = append(replies, rep) })

	if len(replies) != 2 {
		t.Fatalf("got %d replies, want 2 (panic chunk then status)", len(replies))
	}
	if _, ok := replies[0].Payload.(wire.PanicChunk); !ok {
		t.Fatalf("first reply payload = %T, want wire.PanicChunk", replies[0].Payload)
	}
	if _, ok := replies[1].Payload.(wire.Status); !ok {
		t.Fatalf("second reply payload = %T, want wire.Status", replies[1].Payload)
	}

	// the panic chunk is a one-shot: a second GetStatus must not repeat it.
	replies = nil
	r.Handle(6, wire.GetStatus{}, func(rep wire.Reply) { replies = append(replies, rep) })
	if len(replies) != 1 {
		t.Fatalf("got %d replies on second GetStatus, want 1 (panic chunk already drained)", len(replies))
	}
}

func TestHandleResetToFirmwareUpdateAcksThenReboots(t *testing.T) {
	reboot := newFakeRebooter()
	r := newTestReactor(t, nil, StatusInfo{}, &fakePanicSource{}, reboot)

	var replies []wire.Reply
	r.Handle(3, wire.ResetToFirmwareUpdate{}, func(rep wire.Reply) { replies = append(replies, rep) })

	if len(replies) != 1 || replies[0].Failed {
		t.Fatalf("unexpected ack reply: %+v", replies)
	}

	select {
	case <-reboot.called:
	case <-time.After(rebootGrace + 500*time.Millisecond):
		t.Fatal("RebootToBootloader was not called within the grace period")
	}
}

func TestHandleSendHidReportSurfacesEndpointFailure(t *testing.T) {
	r := newTestReactor(t, errors.New("stall"), StatusInfo{}, &fakePanicSource{}, newFakeRebooter())

	var replies []wire.Reply
	r.Handle(8, wire.SendHidReport{Report: wire.HidRequest{Report: wire.Mouse{}}}, func(rep wire.Reply) { replies = append(replies, rep) })

	if len(replies) != 1 || !replies[0].Failed {
		t.Fatalf("want a single Failed reply, got %+v", replies)
	}
}

func TestHandleStreamLightLevelAcksImmediately(t *testing.T) {
	r := newTestReactor(t, nil, StatusInfo{}, &fakePanicSource{}, newFakeRebooter())

	var replies []wire.Reply
	r.Handle(4, wire.StreamLightLevel{DurationMs: 10}, func(rep wire.Reply) { replies = append(replies, rep) })

	if len(replies) != 1 || replies[0].Failed || replies[0].Payload != nil {
		t.Fatalf("want a single Ok(None) reply, got %+v", replies)
	}
}

func TestHandleRunScenarioReportsFailureOnBadHidSend(t *testing.T) {
	r := newTestReactor(t, errors.New("stall"), StatusInfo{}, &fakePanicSource{}, newFakeRebooter())

	one := uint8(0)
	ds := wire.DeviceScenario{
		StartRecordingAtIdx: &one,
		Steps: []wire.Step{
			wire.StepHidRequest{Request: wire.HidRequest{ID: 0, Report: wire.Mouse{}}},
		},
	}

	var replies []wire.Reply
	r.Handle(11, wire.RunScenario{Scenario: ds}, func(rep wire.Reply) { replies = append(replies, rep) })

	if len(replies) != 1 || !replies[0].Failed {
		t.Fatalf("want a single Failed reply, got %+v", replies)
	}
}
