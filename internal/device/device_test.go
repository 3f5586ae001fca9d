package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/late-mate/late-mate/internal/dispatcher"
	"github.com/late-mate/late-mate/internal/transport"
	"github.com/late-mate/late-mate/internal/wire"
)

// fakeWire wires a Device's AsyncTx straight back into its own Dispatcher,
// as if a loopback USB link echoed one canned reply sequence per request.
type fakeWire struct {
	mu  sync.Mutex
	rep map[uint32][]wire.Reply
}

func newHarness(t *testing.T, rep map[uint32][]wire.Reply) (*Device, context.CancelFunc) {
	t.Helper()
	disp := dispatcher.New()
	ctx, cancel := context.WithCancel(context.Background())
	go disp.Run(ctx)

	fw := &fakeWire{rep: rep}
	send := func(env wire.Envelope) error {
		fw.mu.Lock()
		replies := fw.rep[env.RequestID]
		fw.mu.Unlock()
		for _, r := range replies {
			r.RequestID = env.RequestID
			disp.HandleReply(r)
		}
		return nil
	}
	tx := transport.NewAsyncTx(ctx, 8, send, transport.Hooks{})
	t.Cleanup(tx.Close)

	return New(tx, disp), cancel
}

func TestGetStatusReturnsStatusWithoutPanicChunk(t *testing.T) {
	want := wire.Status{Hardware: 1, MaxLightLevel: 123}
	d, cancel := newHarness(t, map[uint32][]wire.Reply{
		0: {{Payload: want}},
	})
	defer cancel()

	st, panicData, err := d.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if panicData != nil {
		t.Fatalf("panicData = %v, want nil", panicData)
	}
	if st != want {
		t.Fatalf("status = %+v, want %+v", st, want)
	}
}

func TestGetStatusCollectsPrecedingPanicChunk(t *testing.T) {
	want := wire.Status{Hardware: 2}
	d, cancel := newHarness(t, map[uint32][]wire.Reply{
		0: {
			{Payload: wire.PanicChunk{Data: []byte{1, 2}}},
			{Payload: wire.PanicChunk{Data: []byte{3}}},
			{Payload: want},
		},
	})
	defer cancel()

	st, panicData, err := d.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(panicData) != string([]byte{1, 2, 3}) {
		t.Fatalf("panicData = %v, want [1 2 3]", panicData)
	}
	if st != want {
		t.Fatalf("status = %+v, want %+v", st, want)
	}
}

func TestSendHidReportPropagatesOnDeviceError(t *testing.T) {
	d, cancel := newHarness(t, map[uint32][]wire.Reply{
		0: {{Failed: true}},
	})
	defer cancel()

	err := d.SendHidReport(context.Background(), wire.Mouse{})
	if err != dispatcher.ErrOnDeviceError {
		t.Fatalf("want ErrOnDeviceError, got %v", err)
	}
}

func TestRunScenarioClosesChannelAfterFinalMoment(t *testing.T) {
	d, cancel := newHarness(t, map[uint32][]wire.Reply{
		0: {
			{Payload: wire.BufferedMoment{Microsecond: 10, Event: wire.EventHidReport(0), Idx: 0, Total: 2}},
			{Payload: wire.BufferedMoment{Microsecond: 20, Event: wire.EventLightLevel(5), Idx: 1, Total: 2}},
		},
	})
	defer cancel()

	moments, streamErr, err := d.RunScenario(context.Background(), wire.DeviceScenario{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []wire.BufferedMoment
	for m := range moments {
		got = append(got, m)
	}
	if len(got) != 2 {
		t.Fatalf("got %d moments, want 2", len(got))
	}
	if err := streamErr(); err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
}

func TestRunScenarioReturnsOnDeviceErrorOnDeviceFailureMidStream(t *testing.T) {
	d, cancel := newHarness(t, map[uint32][]wire.Reply{
		0: {
			{Payload: wire.BufferedMoment{Microsecond: 10, Event: wire.EventHidReport(0), Idx: 0, Total: 2}},
			{Failed: true},
		},
	})
	defer cancel()

	moments, streamErr, err := d.RunScenario(context.Background(), wire.DeviceScenario{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []wire.BufferedMoment
	for m := range moments {
		got = append(got, m)
	}
	if len(got) != 1 {
		t.Fatalf("got %d moments, want 1", len(got))
	}
	if streamErr := streamErr(); streamErr != dispatcher.ErrOnDeviceError {
		t.Fatalf("streamErr = %v, want ErrOnDeviceError", streamErr)
	}
}

func TestRunScenarioReturnsDisconnectedWhenStreamEndsBeforeFinalMoment(t *testing.T) {
	d, cancel := newHarness(t, map[uint32][]wire.Reply{
		0: {
			{Payload: wire.BufferedMoment{Microsecond: 10, Event: wire.EventHidReport(0), Idx: 0, Total: 2}},
		},
	})

	moments, streamErr, err := d.RunScenario(context.Background(), wire.DeviceScenario{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := <-moments; !ok {
		t.Fatal("expected the first moment")
	}

	// No second reply ever arrives; tearing down the dispatcher simulates
	// the USB RX stream ending, which drains the pending request with
	// ErrDisconnected before the final moment (Idx == Total-1) was seen.
	cancel()

	if _, ok := <-moments; ok {
		t.Fatal("expected channel to close")
	}
	if err := streamErr(); err != dispatcher.ErrDisconnected {
		t.Fatalf("streamErr() = %v, want ErrDisconnected", err)
	}
}

func TestRunOneRepeatErrorsOnIncompleteStream(t *testing.T) {
	d, cancel := newHarness(t, map[uint32][]wire.Reply{
		0: {
			{Payload: wire.BufferedMoment{Microsecond: 10, Event: wire.EventHidReport(0), Idx: 0, Total: 2}},
			{Failed: true},
		},
	})
	defer cancel()

	if _, err := runOneRepeat(context.Background(), d, wire.DeviceScenario{}); err == nil {
		t.Fatal("expected an error, got nil")
	}
}

func TestRunScenarioClosesImmediatelyOnZeroTotal(t *testing.T) {
	d, cancel := newHarness(t, map[uint32][]wire.Reply{
		0: {{}},
	})
	defer cancel()

	moments, streamErr, err := d.RunScenario(context.Background(), wire.DeviceScenario{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case _, ok := <-moments:
		if ok {
			t.Fatal("expected no moments")
		}
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
	if err := streamErr(); err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
}
