// Package dispatcher implements the host-side agent that correlates inbound
// device replies with outstanding requests by request id (spec.md §4.8),
// grounded on the teacher's single-goroutine-owns-state loop pattern
// (internal/transport.AsyncTx) and on
// original_source/host-and-shared/late-mate-device/src/agents/dispatcher.rs.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/late-mate/late-mate/internal/logging"
	"github.com/late-mate/late-mate/internal/metrics"
	"github.com/late-mate/late-mate/internal/wire"
)

// ErrDisconnected is sent to every pending receiver when the USB RX stream
// ends (spec.md §7).
var ErrDisconnected = errors.New("dispatcher: device disconnected")

// ErrOnDeviceError wraps a device-reported Err(()) reply.
var ErrOnDeviceError = errors.New("dispatcher: on-device error")

const reapInterval = 5 * time.Second

// Result is delivered to a registered receiver for each reply sharing its
// request id. Err is ErrOnDeviceError for a device failure, or nil with
// Payload possibly nil for Ok(None)/Ok(Some(...)).
type Result struct {
	Payload wire.DeviceMessage
	Err     error
}

type pendingSlot struct {
	ch chan Result
}

// Receiver is returned by RegisterRequest. Results arrive on C; callers that
// stop reading before the device has sent every expected reply must call
// Close so the dispatcher reclaims the slot. The periodic reap tick does not
// reclaim slots: without Close, a slot is only released when a reply finds
// its buffer full or when the dispatcher stops.
type Receiver struct {
	C         <-chan Result
	RequestID uint32
	close     func()
}

// Close abandons the request. Safe to call multiple times.
func (r *Receiver) Close() { r.close() }

// registerCmd, inboundCmd and closeCmd are the three commands the
// dispatcher loop consumes; all pending-map mutation happens on the loop
// goroutine, per spec.md §5 "Dispatcher state is owned by its loop".
type registerCmd struct {
	id   uint32
	slot pendingSlot
}

type inboundCmd struct {
	reply wire.Reply
}

type closeCmd struct {
	id uint32
}

// Dispatcher owns the map of outstanding requests. Run it in its own
// goroutine; interact with it only through RegisterRequest and HandleReply.
type Dispatcher struct {
	nextID uint32
	nextMu sync.Mutex
	cmds   chan any
	done   chan struct{}
}

// New allocates a Dispatcher. Call Run in its own goroutine before issuing
// any requests.
func New() *Dispatcher {
	return &Dispatcher{
		cmds: make(chan any, 64),
		done: make(chan struct{}),
	}
}

// allocID returns the next request id, wrapping around at 2^32 (spec.md §9
// "Wrap-around request ids").
func (d *Dispatcher) allocID() uint32 {
	d.nextMu.Lock()
	defer d.nextMu.Unlock()
	id := d.nextID
	d.nextID++
	return id
}

// RegisterRequest allocates a request id and a bounded result channel. The
// caller must stamp the returned id onto the outgoing envelope before
// handing it to the TX funnel. Streamed replies (BufferedMoment) may
// deliver multiple Results before the channel is closed.
func (d *Dispatcher) RegisterRequest() *Receiver {
	id := d.allocID()
	ch := make(chan Result, 16)
	d.cmds <- registerCmd{id: id, slot: pendingSlot{ch: ch}}
	var once sync.Once
	return &Receiver{
		C:         ch,
		RequestID: id,
		close: func() {
			once.Do(func() {
				select {
				case d.cmds <- closeCmd{id: id}:
				case <-d.done:
				}
			})
		},
	}
}

// HandleReply is called by the USB RX loop for every decoded reply.
func (d *Dispatcher) HandleReply(reply wire.Reply) {
	select {
	case d.cmds <- inboundCmd{reply: reply}:
	case <-d.done:
	}
}

// Run drives the dispatcher's single goroutine until ctx is canceled. On
// exit it drains pending slots with ErrDisconnected, matching spec.md's "on
// USB-RX stream end: drain pending, send Err(Disconnected) to each, exit."
func (d *Dispatcher) Run(ctx context.Context) {
	pending := make(map[uint32]pendingSlot)
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	defer close(d.done)
	defer func() {
		for id, slot := range pending {
			d.deliver(slot, Result{Err: ErrDisconnected})
			close(slot.ch)
			delete(pending, id)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.reap(pending)
		case cmd := <-d.cmds:
			switch c := cmd.(type) {
			case registerCmd:
				if _, exists := pending[c.id]; exists {
					// 2^32 concurrent requests is impossible in practice;
					// treat as a programming error rather than silently
					// overwriting the older slot.
					logging.L().Error("dispatcher_duplicate_slot", "request_id", c.id)
					continue
				}
				pending[c.id] = c.slot
			case inboundCmd:
				d.route(pending, c.reply)
			case closeCmd:
				if slot, ok := pending[c.id]; ok {
					close(slot.ch)
					delete(pending, c.id)
				}
			}
		}
	}
}

func (d *Dispatcher) route(pending map[uint32]pendingSlot, reply wire.Reply) {
	slot, ok := pending[reply.RequestID]
	if !ok {
		metrics.IncDispatcherUnroutable()
		return
	}
	var result Result
	if reply.Failed {
		result = Result{Err: ErrOnDeviceError}
	} else {
		result = Result{Payload: reply.Payload}
	}
	if !d.deliver(slot, result) {
		// receiver buffer is full and not draining; treat as abandoned.
		close(slot.ch)
		delete(pending, reply.RequestID)
	}
}

func (d *Dispatcher) deliver(slot pendingSlot, result Result) bool {
	select {
	case slot.ch <- result:
		return true
	default:
		return false
	}
}

// reap is the periodic tick spec.md §4.8 calls for ("periodic reap (every
// 5s, missed-tick coalesced): remove entries whose receiver is closed").
// Go gives no signal when a channel's reader goroutine stops reading
// without telling anyone, so the actual reclamation path is the explicit
// Receiver.Close call, which reaps its slot immediately through closeCmd.
// This tick is kept as the documented cadence slot for that cleanup and as
// the natural place to log/metric a pending-count high-water mark.
func (d *Dispatcher) reap(pending map[uint32]pendingSlot) {
	metrics.SetDispatcherPending(len(pending))
}
