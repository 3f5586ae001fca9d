package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/late-mate/late-mate/internal/wire"
)

var (
	errOverflow = errors.New("overflow")
	errSendFail = errors.New("send fail")
)

func TestAsyncTxSuccess(t *testing.T) {
	var sent atomic.Int64
	var after atomic.Int64
	ax := NewAsyncTx(context.Background(), 4, func(env wire.Envelope) error {
		sent.Add(1)
		return nil
	}, Hooks{OnAfter: func() { after.Add(1) }})
	defer ax.Close()
	for i := 0; i < 3; i++ {
		env := wire.Envelope{RequestID: uint32(i), Request: wire.GetStatus{}}
		if err := ax.SendEnvelope(env); err != nil {
			t.Fatalf("unexpected send error: %v", err)
		}
	}
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && sent.Load() < 3 {
		time.Sleep(5 * time.Millisecond)
	}
	if sent.Load() != 3 || after.Load() != 3 {
		t.Fatalf("expected 3 sent & after, got sent=%d after=%d", sent.Load(), after.Load())
	}
}

func TestAsyncTxOverflow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var drops atomic.Int64
	ax := NewAsyncTx(ctx, 1, func(env wire.Envelope) error {
		time.Sleep(150 * time.Millisecond)
		return nil
	}, Hooks{OnDrop: func() error { drops.Add(1); return errOverflow }})
	defer ax.Close()
	if err := ax.SendEnvelope(wire.Envelope{Request: wire.GetStatus{}}); err != nil {
		t.Fatalf("unexpected error enqueue first: %v", err)
	}
	if err := ax.SendEnvelope(wire.Envelope{Request: wire.GetStatus{}}); !errors.Is(err, errOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if drops.Load() != 1 {
		t.Fatalf("expected 1 drop, got %d", drops.Load())
	}
}

func TestAsyncTxSendError(t *testing.T) {
	var errs atomic.Int64
	ax := NewAsyncTx(context.Background(), 2, func(env wire.Envelope) error { return errSendFail },
		Hooks{OnError: func(error) { errs.Add(1) }})
	defer ax.Close()
	_ = ax.SendEnvelope(wire.Envelope{Request: wire.GetStatus{}})
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && errs.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if errs.Load() == 0 {
		t.Fatalf("expected error hook invocation")
	}
}

func TestAsyncTxClose(t *testing.T) {
	var sent atomic.Int64
	ax := NewAsyncTx(context.Background(), 2, func(env wire.Envelope) error { sent.Add(1); return nil }, Hooks{})
	_ = ax.SendEnvelope(wire.Envelope{Request: wire.GetStatus{}})
	ax.Close()
	countAfterClose := sent.Load()
	_ = ax.SendEnvelope(wire.Envelope{Request: wire.GetStatus{}})
	time.Sleep(50 * time.Millisecond)
	if sent.Load() != countAfterClose {
		t.Fatalf("envelope processed after close: before=%d after=%d", countAfterClose, sent.Load())
	}
}

func TestAsyncTxSendAfterClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tx := NewAsyncTx(ctx, 2, func(env wire.Envelope) error { return nil }, Hooks{})
	tx.Close()
	if err := tx.SendEnvelope(wire.Envelope{RequestID: 123}); !errors.Is(err, ErrAsyncTxClosed) {
		t.Fatalf("expected ErrAsyncTxClosed, got %v", err)
	}
}

func TestAsyncTxCloseConcurrentSend(t *testing.T) {
	for i := 0; i < 100; i++ {
		ax := NewAsyncTx(context.Background(), 1, func(env wire.Envelope) error { return nil }, Hooks{})
		done := make(chan error, 1)
		go func() {
			done <- ax.SendEnvelope(wire.Envelope{Request: wire.GetStatus{}})
		}()
		time.Sleep(1 * time.Millisecond)
		ax.Close()
		if err := <-done; err != nil && !errors.Is(err, ErrAsyncTxClosed) {
			t.Fatalf("iteration %d: unexpected send error %v", i, err)
		}
	}
}
