package hidsender

import "github.com/late-mate/late-mate/internal/wire"

// encodeMouseReport serializes a usbd_hid-compatible mouse report:
// buttons, x, y, wheel, pan, one byte each (original_source
// host-and-shared/late-mate-shared/src/types/hid.rs MouseReport).
func encodeMouseReport(m wire.Mouse) []byte {
	return []byte{m.Buttons, byte(m.X), byte(m.Y), byte(m.Wheel), byte(m.Pan)}
}

// encodeKeyboardReport serializes a usbd_hid-compatible boot keyboard
// report: modifier, reserved(0), leds(0), six keycodes (original_source
// host-and-shared/late-mate-shared/src/types/hid.rs KeyboardReport,
// via usbd_hid::descriptor::KeyboardReport).
func encodeKeyboardReport(k wire.Keyboard) []byte {
	out := make([]byte, 0, 9)
	out = append(out, k.Modifier, 0, 0)
	out = append(out, k.Keycodes[:]...)
	return out
}
