package transport

import (
	"context"

	"github.com/late-mate/late-mate/internal/metrics"
	"github.com/late-mate/late-mate/internal/wire"
)

// NewTX builds an AsyncTx that frames, pads to a multiple of PacketSize, and
// writes each outgoing envelope to dev's bulk OUT endpoint (spec.md §4.9:
// "the encode buffer is rounded up to a multiple of 64 before the bulk
// write"). Grounded on the teacher's internal/transport.AsyncTx funnel,
// adapted from can.Frame to wire.Envelope.
func NewTX(ctx context.Context, dev *Device, buf int, hooks Hooks) *AsyncTx {
	send := func(env wire.Envelope) error {
		body := wire.EncodeEnvelope(env)
		framed := wire.Frame(body)
		padded := padToPacketSize(framed)
		if _, err := dev.WritePacket(padded); err != nil {
			metrics.IncUsbTransferError("out")
			return err
		}
		metrics.IncUsbTx()
		return nil
	}
	return NewAsyncTx(ctx, buf, send, hooks)
}

// padToPacketSize rounds p up to the next multiple of PacketSize, padding
// with zero bytes. Since Frame never embeds an interior zero, the pad bytes
// are indistinguishable from the frame terminator, which is what lets the
// device-side accumulator treat the first pad byte as end-of-frame and
// silently absorb the rest on the next Feed call.
func padToPacketSize(p []byte) []byte {
	rem := len(p) % PacketSize
	if rem == 0 {
		return p
	}
	padded := make([]byte, len(p)+(PacketSize-rem))
	copy(padded, p)
	return padded
}
