//go:build linux

package devusb

import (
	"context"

	"github.com/late-mate/late-mate/internal/logging"
	"github.com/late-mate/late-mate/internal/metrics"
	"github.com/late-mate/late-mate/internal/wire"
)

// rxAccumulatorCapacity matches internal/transport's host-side accumulator
// bound; both ends tolerate the same amount of leading garbage before a
// forced resync.
const rxAccumulatorCapacity = 4096

// Handler dispatches one decoded request and emits zero or more replies
// through emit. internal/reactor.Reactor.Handle satisfies this signature.
type Handler func(requestID uint32, msg wire.Message, emit func(wire.Reply))

// RunRX pumps packets from the bulk OUT endpoint into an Accumulator,
// decodes each complete frame as an Envelope, and dispatches it to handle,
// forwarding every reply it emits to tx. Mirrors internal/transport.RunRX's
// loop shape with the direction and payload type reversed.
func RunRX(ctx context.Context, ep *Endpoints, tx *ReplyTx, handle Handler) error {
	acc := wire.NewAccumulator(rxAccumulatorCapacity)
	buf := make([]byte, PacketSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := ep.ReadPacket(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.IncUsbTransferError("out")
			return err
		}
		if n == 0 {
			continue
		}
		metrics.IncUsbRx()

		chunk := buf[:n]
		for {
			result := acc.Feed(chunk)
			switch result.Outcome {
			case wire.Success:
				env, derr := wire.DecodeEnvelope(result.Frame)
				if derr != nil {
					metrics.IncFramerDecodeError()
					logging.L().Warn("devusb_rx_decode_error", "error", derr)
				} else {
					handle(env.RequestID, env.Request, func(rep wire.Reply) {
						_ = tx.SendReply(rep)
					})
				}
			case wire.DecodeError:
				metrics.IncFramerDecodeError()
				logging.L().Warn("devusb_rx_frame_error", "error", result.Err)
			case wire.OverFull:
				metrics.IncFramerDecodeError()
				logging.L().Warn("devusb_rx_accumulator_overfull")
			case wire.Consumed:
			}
			if result.Outcome == wire.Consumed {
				break
			}
			chunk = result.Remaining
			if len(chunk) == 0 {
				break
			}
		}
	}
}
