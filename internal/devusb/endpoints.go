//go:build linux

package devusb

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Endpoints holds the two FunctionFS endpoint file descriptors bound to a
// gadget's vendor bulk interface: ep1 (OUT, host-to-device) and ep2
// (IN, device-to-host), following the same raw-fd ownership shape as the
// teacher's socketcan.Device.
type Endpoints struct {
	outFd int
	inFd  int
}

// Open opens the OUT and IN endpoint device nodes FunctionFS exposes once
// the gadget's descriptors are written (e.g. /dev/ffs-latemate/ep1 and
// .../ep2). Mirrors socketcan.Open's all-or-nothing cleanup on partial
// failure.
func Open(outPath, inPath string) (*Endpoints, error) {
	outFd, err := unix.Open(outPath, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open bulk OUT endpoint %q: %w", outPath, err)
	}
	inFd, err := unix.Open(inPath, unix.O_RDWR, 0)
	if err != nil {
		_ = unix.Close(outFd)
		return nil, fmt.Errorf("open bulk IN endpoint %q: %w", inPath, err)
	}
	return &Endpoints{outFd: outFd, inFd: inFd}, nil
}

// Close releases both endpoint file descriptors.
func (e *Endpoints) Close() error {
	outErr := unix.Close(e.outFd)
	inErr := unix.Close(e.inFd)
	if outErr != nil {
		return outErr
	}
	return inErr
}

// ReadPacket reads one bulk transfer's worth of bytes from the OUT endpoint
// (host-to-device traffic arrives here).
func (e *Endpoints) ReadPacket(buf []byte) (int, error) {
	n, err := unix.Read(e.outFd, buf)
	if err != nil {
		return 0, fmt.Errorf("read bulk OUT endpoint: %w", err)
	}
	return n, nil
}

// WritePacket writes one bulk transfer's worth of bytes to the IN endpoint
// (device-to-host traffic leaves here).
func (e *Endpoints) WritePacket(p []byte) (int, error) {
	n, err := unix.Write(e.inFd, p)
	if err != nil {
		return 0, fmt.Errorf("write bulk IN endpoint: %w", err)
	}
	return n, nil
}
