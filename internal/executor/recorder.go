// Package executor implements the device-side scenario executor, light
// recorder and light streamer described in spec.md §4.4/§4.5, grounded on
// original_source/firmware/src/tasks/reactor/{light_recorder_loop.rs,
// light_stream_loop.rs} and
// original_source/host-and-shared/late-mate-device/src/scenario.rs.
package executor

import (
	"context"
	"time"

	"github.com/late-mate/late-mate/internal/adc"
	"github.com/late-mate/late-mate/internal/eventbuffer"
	"github.com/late-mate/late-mate/internal/logging"
	"github.com/late-mate/late-mate/internal/metrics"
	"github.com/late-mate/late-mate/internal/wire"
)

// recorderTimeout bounds one wait for a light reading (spec.md §4.3/§4.4:
// "Timeouts are bounded by the expected inter-sample interval plus slack").
const recorderTimeout = 20 * time.Millisecond

// recorderCmd mirrors the Rust loop's one-slot Option<Instant> command:
// Active false means stop; Active true carries the since-instant.
type recorderCmd struct {
	active bool
	since  time.Time
}

// Recorder pulls light readings off its topic subscription and pushes them
// into the shared event buffer while active, discarding anything older than
// its start instant (spec.md §4.5 "discard any with instant < since").
type Recorder struct {
	sub *adc.Subscription
	buf *eventbuffer.Buffer
	cmd chan recorderCmd
}

// NewRecorder constructs a Recorder bound to one topic subscription and the
// shared event buffer.
func NewRecorder(sub *adc.Subscription, buf *eventbuffer.Buffer) *Recorder {
	return &Recorder{sub: sub, buf: buf, cmd: make(chan recorderCmd, 1)}
}

// Start begins recording readings with instant >= since.
func (r *Recorder) Start(since time.Time) {
	r.setCmd(recorderCmd{active: true, since: since})
}

// Stop idempotently halts recording.
func (r *Recorder) Stop() {
	r.setCmd(recorderCmd{active: false})
}

// setCmd overwrites the one-slot command mailbox, matching the Rust
// Channel<_, _, 1>::send semantics (overwrite any unread command).
func (r *Recorder) setCmd(c recorderCmd) {
	select {
	case r.cmd <- c:
	default:
		select {
		case <-r.cmd:
		default:
		}
		select {
		case r.cmd <- c:
		default:
		}
	}
}

// Run drives the recorder loop until ctx is canceled.
func (r *Recorder) Run(ctx context.Context) {
	var state recorderCmd
	for {
		for !state.active {
			select {
			case state = <-r.cmd:
			case <-ctx.Done():
				return
			}
		}

		for state.active {
			select {
			case <-ctx.Done():
				return
			case newState := <-r.cmd:
				state = newState
				continue
			case reading := <-r.sub.C:
				if reading.Instant.Before(state.since) {
					continue
				}
				err := r.buf.Store(reading.Instant, wire.EventLightLevel(reading.Reading))
				if err != nil {
					logging.L().Error("recorder_buffer_push_failed", "error", err)
					metrics.IncEventBufferFull()
					state.active = false
				}
			case <-time.After(recorderTimeout):
				logging.L().Error("recorder_timeout")
				state.active = false
			}
		}
	}
}
