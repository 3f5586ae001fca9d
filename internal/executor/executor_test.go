package executor

import (
	"context"
	"testing"
	"time"

	"github.com/late-mate/late-mate/internal/adc"
	"github.com/late-mate/late-mate/internal/eventbuffer"
	"github.com/late-mate/late-mate/internal/hidsender"
	"github.com/late-mate/late-mate/internal/wire"
)

type fakeWriter struct{}

func (fakeWriter) WriteReport([]byte) error { return nil }

func u8p(v uint8) *uint8 { return &v }

func TestRunScenarioRecordsOnlyAfterStartMarker(t *testing.T) {
	buf := eventbuffer.New()
	sender := hidsender.New(fakeWriter{}, fakeWriter{})
	stop := make(chan struct{})
	defer close(stop)
	go sender.Run(stop)

	topic := adc.NewTopic()
	sub := topic.Subscribe()
	recorder := NewRecorder(sub, buf)
	streamer := NewStreamer(sub, func(wire.Reply) {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recorder.Run(ctx)
	go streamer.Run(ctx)

	exec := New(buf, sender, recorder, streamer)

	ds := wire.DeviceScenario{
		StartRecordingAtIdx: u8p(1),
		Steps: []wire.Step{
			wire.StepHidRequest{Request: wire.HidRequest{ID: 0, Report: wire.Mouse{}}}, // before marker: not recorded
			wire.StepHidRequest{Request: wire.HidRequest{ID: 1, Report: wire.Mouse{}}}, // after marker: recorded
		},
	}

	var replies []wire.Reply
	err := exec.RunScenario(42, ds, func(r wire.Reply) { replies = append(replies, r) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("got %d buffered moments, want 1 (only the post-marker HID report)", len(replies))
	}
	bm, ok := replies[0].Payload.(wire.BufferedMoment)
	if !ok {
		t.Fatalf("unexpected payload type %T", replies[0].Payload)
	}
	if bm.Idx != 0 || bm.Total != 1 {
		t.Fatalf("unexpected idx/total: %+v", bm)
	}
	if ev, ok := bm.Event.(wire.EventHidReport); !ok || ev != 1 {
		t.Fatalf("unexpected event: %+v", bm.Event)
	}
	for _, r := range replies {
		if r.RequestID != 42 {
			t.Fatalf("reply request id = %d, want 42", r.RequestID)
		}
	}
}

func TestRunScenarioWithoutMarkerRecordsNothing(t *testing.T) {
	buf := eventbuffer.New()
	sender := hidsender.New(fakeWriter{}, fakeWriter{})
	stop := make(chan struct{})
	defer close(stop)
	go sender.Run(stop)

	topic := adc.NewTopic()
	sub := topic.Subscribe()
	recorder := NewRecorder(sub, buf)
	streamer := NewStreamer(sub, func(wire.Reply) {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recorder.Run(ctx)
	go streamer.Run(ctx)

	exec := New(buf, sender, recorder, streamer)

	ds := wire.DeviceScenario{
		Steps: []wire.Step{
			wire.StepWait{Ms: 1},
			wire.StepHidRequest{Request: wire.HidRequest{ID: 0, Report: wire.Mouse{}}},
		},
	}

	var replies []wire.Reply
	if err := exec.RunScenario(7, ds, func(r wire.Reply) { replies = append(replies, r) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 1 || replies[0].Failed || replies[0].Payload != nil {
		t.Fatalf("want a single Ok(None) terminator for an un-marked (revert) run, got %+v", replies)
	}
}

func TestRunScenarioClearsStaleBufferFromPriorRun(t *testing.T) {
	buf := eventbuffer.New()
	sender := hidsender.New(fakeWriter{}, fakeWriter{})
	stop := make(chan struct{})
	defer close(stop)
	go sender.Run(stop)

	topic := adc.NewTopic()
	sub := topic.Subscribe()
	recorder := NewRecorder(sub, buf)
	streamer := NewStreamer(sub, func(wire.Reply) {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recorder.Run(ctx)
	go streamer.Run(ctx)

	exec := New(buf, sender, recorder, streamer)

	testDs := wire.DeviceScenario{
		StartRecordingAtIdx: u8p(0),
		Steps: []wire.Step{
			wire.StepHidRequest{Request: wire.HidRequest{ID: 0, Report: wire.Mouse{}}},
		},
	}
	var testReplies []wire.Reply
	if err := exec.RunScenario(1, testDs, func(r wire.Reply) { testReplies = append(testReplies, r) }); err != nil {
		t.Fatalf("unexpected error on test run: %v", err)
	}
	if len(testReplies) != 1 {
		t.Fatalf("test run produced %d moments, want 1", len(testReplies))
	}

	revertDs := wire.DeviceScenario{
		Steps: []wire.Step{wire.StepWait{Ms: 1}},
	}
	var revertReplies []wire.Reply
	if err := exec.RunScenario(2, revertDs, func(r wire.Reply) { revertReplies = append(revertReplies, r) }); err != nil {
		t.Fatalf("unexpected error on revert run: %v", err)
	}
	if len(revertReplies) != 1 || revertReplies[0].Payload != nil {
		t.Fatalf("revert run leaked stale moments from the prior test run: %+v", revertReplies)
	}
}

func TestRunScenarioAbortsOnHidSendFailure(t *testing.T) {
	buf := eventbuffer.New()
	sender := hidsender.New(failingWriter{}, failingWriter{})
	stop := make(chan struct{})
	defer close(stop)
	go sender.Run(stop)

	topic := adc.NewTopic()
	sub := topic.Subscribe()
	recorder := NewRecorder(sub, buf)
	streamer := NewStreamer(sub, func(wire.Reply) {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recorder.Run(ctx)
	go streamer.Run(ctx)

	exec := New(buf, sender, recorder, streamer)

	ds := wire.DeviceScenario{
		StartRecordingAtIdx: u8p(0),
		Steps: []wire.Step{
			wire.StepHidRequest{Request: wire.HidRequest{ID: 0, Report: wire.Mouse{}}},
		},
	}
	err := exec.RunScenario(9, ds, func(wire.Reply) {})
	if err != ErrScenarioFailed {
		t.Fatalf("want ErrScenarioFailed, got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) WriteReport([]byte) error { return errWriteFailed }

var errWriteFailed = errTestSentinel("write failed")

type errTestSentinel string

func (e errTestSentinel) Error() string { return string(e) }

func TestRecorderDiscardsReadingsBeforeSince(t *testing.T) {
	buf := eventbuffer.New()
	buf.Clear(time.Now())
	topic := adc.NewTopic()
	sub := topic.Subscribe()
	recorder := NewRecorder(sub, buf)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recorder.Run(ctx)

	since := time.Now().Add(10 * time.Millisecond)
	recorder.Start(since)

	topic.Publish(adc.LightReading{Instant: since.Add(-time.Millisecond), Reading: 1})
	time.Sleep(5 * time.Millisecond)
	topic.Publish(adc.LightReading{Instant: since.Add(time.Millisecond), Reading: 2})
	time.Sleep(5 * time.Millisecond)

	if buf.Len() != 1 {
		t.Fatalf("buffer len = %d, want 1 (stale reading must be discarded)", buf.Len())
	}
}
