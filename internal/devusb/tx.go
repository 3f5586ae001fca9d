//go:build linux

package devusb

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/late-mate/late-mate/internal/metrics"
	"github.com/late-mate/late-mate/internal/wire"
)

// ErrReplyTxClosed is returned by SendReply once Close has been called.
var ErrReplyTxClosed = errors.New("devusb: reply tx closed")

// ReplyTx funnels reply envelopes through one goroutine so that only one
// writer ever addresses the bulk IN endpoint, the Reply-side twin of
// internal/transport.AsyncTx (spec.md §5 "no two writers address the same
// endpoint").
type ReplyTx struct {
	mu     sync.Mutex
	ch     chan wire.Reply
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ep     *Endpoints
	closed atomic.Bool
}

// NewReplyTx constructs a ReplyTx with a buffered channel of size buf,
// draining to ep's IN endpoint.
func NewReplyTx(parent context.Context, ep *Endpoints, buf int) *ReplyTx {
	ctx, cancel := context.WithCancel(parent)
	t := &ReplyTx{
		ch:     make(chan wire.Reply, buf),
		ctx:    ctx,
		cancel: cancel,
		ep:     ep,
	}
	t.wg.Add(1)
	go t.loop()
	return t
}

func (t *ReplyTx) loop() {
	defer t.wg.Done()
	for {
		select {
		case rep, ok := <-t.ch:
			if !ok {
				return
			}
			body := wire.EncodeReply(rep)
			framed := wire.Frame(body)
			padded := padToPacketSize(framed)
			if _, err := t.ep.WritePacket(padded); err != nil {
				metrics.IncUsbTransferError("in")
				continue
			}
			metrics.IncUsbTx()
		case <-t.ctx.Done():
			return
		}
	}
}

// SendReply queues a reply envelope for asynchronous transmission. A full
// buffer drops the reply; the host-side dispatcher's reap loop is the
// backstop for a request that never completes.
func (t *ReplyTx) SendReply(rep wire.Reply) error {
	if t.closed.Load() {
		return ErrReplyTxClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return ErrReplyTxClosed
	}
	select {
	case t.ch <- rep:
		return nil
	default:
		metrics.IncUsbTransferError("in_dropped")
		return nil
	}
}

// Close stops the worker and waits for it to finish.
func (t *ReplyTx) Close() {
	if t.closed.Swap(true) {
		return
	}
	t.cancel()
	t.mu.Lock()
	close(t.ch)
	t.mu.Unlock()
	t.wg.Wait()
}

// padToPacketSize rounds p up to the next multiple of PacketSize, matching
// internal/transport's host-side framing so both endpoints agree on where a
// frame's pad bytes begin.
func padToPacketSize(p []byte) []byte {
	rem := len(p) % PacketSize
	if rem == 0 {
		return p
	}
	padded := make([]byte, len(p)+(PacketSize-rem))
	copy(padded, p)
	return padded
}
