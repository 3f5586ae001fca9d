// Package transport implements the host-side USB bulk-endpoint pump: claim
// the vendor interface (via github.com/google/gousb, grounded on
// guiperry-HASHER/internal/driver/device/usb_device.go), encode/frame
// outgoing envelopes through a single-goroutine funnel, and decode/dispatch
// incoming replies (spec.md §4.9).
package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/late-mate/late-mate/internal/wire"
)

// ErrAsyncTxClosed is returned by SendEnvelope once Close has been called,
// mirroring the teacher's internal/transport.AsyncTx.
var ErrAsyncTxClosed = errors.New("transport: async tx closed")

// Hooks customize AsyncTx behavior without coupling it to a specific metrics
// or logging backend, the same shape as the teacher's Hooks.
type Hooks struct {
	OnError func(error)
	OnAfter func()
	OnDrop  func() error
}

// AsyncTx funnels envelope writes through one goroutine so that no two
// writers ever address the bulk OUT endpoint concurrently (spec.md §5
// "Shared-resource policy... No two writers address the same endpoint"),
// adapted from the teacher's internal/transport.AsyncTx (can.Frame → wire.Envelope).
type AsyncTx struct {
	mu     sync.Mutex
	ch     chan wire.Envelope
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	send   func(wire.Envelope) error
	hooks  Hooks
	closed atomic.Bool
}

// NewAsyncTx constructs an AsyncTx with a buffered channel of size buf.
func NewAsyncTx(parent context.Context, buf int, send func(wire.Envelope) error, hooks Hooks) *AsyncTx {
	ctx, cancel := context.WithCancel(parent)
	a := &AsyncTx{
		ch:     make(chan wire.Envelope, buf),
		ctx:    ctx,
		cancel: cancel,
		send:   send,
		hooks:  hooks,
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *AsyncTx) loop() {
	defer a.wg.Done()
	for {
		select {
		case env, ok := <-a.ch:
			if !ok {
				return
			}
			if err := a.send(env); err != nil {
				if a.hooks.OnError != nil {
					a.hooks.OnError(err)
				}
				continue
			}
			if a.hooks.OnAfter != nil {
				a.hooks.OnAfter()
			}
		case <-a.ctx.Done():
			return
		}
	}
}

// SendEnvelope queues an envelope for asynchronous transmission, or invokes
// OnDrop and returns its error if the buffer is full.
func (a *AsyncTx) SendEnvelope(env wire.Envelope) error {
	if a.closed.Load() {
		return ErrAsyncTxClosed
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Load() {
		return ErrAsyncTxClosed
	}
	select {
	case a.ch <- env:
		return nil
	default:
		if a.hooks.OnDrop != nil {
			return a.hooks.OnDrop()
		}
		return nil
	}
}

// Close stops the worker and waits for it to finish.
func (a *AsyncTx) Close() {
	if a.closed.Swap(true) {
		return
	}
	a.cancel()
	a.mu.Lock()
	close(a.ch)
	a.mu.Unlock()
	a.wg.Wait()
}
