package transport

import (
	"context"

	"github.com/late-mate/late-mate/internal/dispatcher"
	"github.com/late-mate/late-mate/internal/logging"
	"github.com/late-mate/late-mate/internal/metrics"
	"github.com/late-mate/late-mate/internal/wire"
)

// rxAccumulatorCapacity bounds how much garbage the accumulator tolerates
// before forcing a resync (spec.md §4.9's "decoder tolerates leading garbage
// and resyncs at the next zero byte").
const rxAccumulatorCapacity = 4096

// RunRX pumps packets from the bulk IN endpoint into an Accumulator and
// forwards every decoded reply to disp, until ctx is canceled or the
// endpoint returns an unrecoverable error. Grounded on the teacher's
// internal/server/reader.go read loop shape and on
// guiperry-HASHER/internal/driver/device/usb_device.go's ReadPacket.
func RunRX(ctx context.Context, dev *Device, disp *dispatcher.Dispatcher) error {
	acc := wire.NewAccumulator(rxAccumulatorCapacity)
	buf := make([]byte, PacketSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := dev.ReadPacket(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.IncUsbTransferError("in")
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
				reply, derr := wire.DecodeReply(result.Frame)
				if derr != nil {
					metrics.IncFramerDecodeError()
					logging.L().Warn("rx_decode_error", "error", derr)
				} else {
					disp.HandleReply(reply)
				}
			case wire.DecodeError:
				metrics.IncFramerDecodeError()
				logging.L().Warn("rx_frame_error", "error", result.Err)
			case wire.OverFull:
				metrics.IncFramerDecodeError()
				logging.L().Warn("rx_accumulator_overfull")
			case wire.Consumed:
				// whole chunk absorbed; no complete frame yet.
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
