package executor

import (
	"context"
	"time"

	"github.com/late-mate/late-mate/internal/adc"
	"github.com/late-mate/late-mate/internal/logging"
	"github.com/late-mate/late-mate/internal/wire"
)

// streamerTimeout mirrors recorderTimeout for the streamer's own reads off
// the light topic (spec.md §4.5 "Timeouts on the source stream end the
// stream").
const streamerTimeout = recorderTimeout

// streamCmd is the streamer's one-slot command: Active false stops the
// stream; Active true carries the request id to tag replies with and the
// deadline to stop at.
type streamCmd struct {
	active    bool
	requestID uint32
	until     time.Time
}

// Emit is called by the streamer for each reading while active, to hand a
// CurrentLightLevel reply envelope to the TX funnel.
type Emit func(reply wire.Reply)

// Streamer forwards light readings as CurrentLightLevel replies for a
// bounded duration (spec.md §4.5, §4.6 StreamLightLevel).
type Streamer struct {
	sub  *adc.Subscription
	emit Emit
	cmd  chan streamCmd
}

// NewStreamer constructs a Streamer bound to one topic subscription.
func NewStreamer(sub *adc.Subscription, emit Emit) *Streamer {
	return &Streamer{sub: sub, emit: emit, cmd: make(chan streamCmd, 1)}
}

// StreamFor starts (or retargets) streaming for requestID until now+d.
func (s *Streamer) StreamFor(requestID uint32, d time.Duration) {
	s.setCmd(streamCmd{active: true, requestID: requestID, until: time.Now().Add(d)})
}

// Stop idempotently halts streaming.
func (s *Streamer) Stop() {
	s.setCmd(streamCmd{active: false})
}

func (s *Streamer) setCmd(c streamCmd) {
	select {
	case s.cmd <- c:
	default:
		select {
		case <-s.cmd:
		default:
		}
		select {
		case s.cmd <- c:
		default:
		}
	}
}

// Run drives the streamer loop until ctx is canceled.
func (s *Streamer) Run(ctx context.Context) {
	var state streamCmd
	for {
		for !state.active {
			select {
			case state = <-s.cmd:
			case <-ctx.Done():
				return
			}
		}

		for state.active {
			if !state.until.After(time.Now()) {
				state.active = false
				break
			}
			select {
			case <-ctx.Done():
				return
			case newState := <-s.cmd:
				state = newState
				continue
			case reading := <-s.sub.C:
				s.emit(wire.Reply{
					RequestID: state.requestID,
					Payload:   wire.CurrentLightLevel{Level: reading.Reading},
				})
			case <-time.After(streamerTimeout):
				logging.L().Error("streamer_timeout")
				state.active = false
			}

			if state.active {
				select {
				case newState := <-s.cmd:
					state = newState
				default:
				}
			}
		}
	}
}
