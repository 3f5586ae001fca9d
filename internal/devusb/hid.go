//go:build linux

package devusb

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// HidWriter writes HID report descriptors to one USB HID gadget function's
// device node (e.g. /dev/hidg0), satisfying hidsender.Writer. It is the
// other half of the FunctionFS-based gadget transport: RunScenario and
// SendHidReport traffic goes over the vendor bulk interface, but simulated
// HID reports must land on the gadget's separate HID function (spec.md
// §4.7: "two independent HID writers"), grounded on the same raw-fd
// ownership style as Endpoints.
type HidWriter struct {
	fd int
}

// OpenHidWriter opens a HID gadget device node for writing.
func OpenHidWriter(path string) (*HidWriter, error) {
	fd, err := unix.Open(path, unix.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open hid gadget %q: %w", path, err)
	}
	return &HidWriter{fd: fd}, nil
}

// WriteReport writes one complete HID report to the gadget endpoint.
func (w *HidWriter) WriteReport(descriptor []byte) error {
	_, err := unix.Write(w.fd, descriptor)
	if err != nil {
		return fmt.Errorf("write hid gadget report: %w", err)
	}
	return nil
}

// Close releases the device node.
func (w *HidWriter) Close() error {
	return unix.Close(w.fd)
}
