//go:build linux

package main

import (
	"os"

	"github.com/late-mate/late-mate/internal/reactor"
	"golang.org/x/sys/unix"
)

// staticStatus implements reactor.StatusSource from build-time and
// configured values. The real hardware/firmware identity (chip revision,
// flash-stored firmware hash, factory serial number) lives outside this
// rewrite's scope (spec.md §1: "only their interfaces to the core are
// specified"); this binary reports its own build identity in their place.
type staticStatus struct {
	hardware     uint8
	firmwareHash [5]byte
	dirty        bool
	serial       [8]byte
}

func newStaticStatus(hardwareRev uint8, serialNumber string, commit string, dirty bool) staticStatus {
	var fw [5]byte
	copy(fw[:], commit)
	var sn [8]byte
	copy(sn[:], serialNumber)
	return staticStatus{hardware: hardwareRev, firmwareHash: fw, dirty: dirty, serial: sn}
}

func (s staticStatus) Status() reactor.StatusInfo {
	return reactor.StatusInfo{
		Hardware:      s.hardware,
		FirmwareHash:  s.firmwareHash,
		FirmwareDirty: s.dirty,
		SerialNumber:  s.serial,
	}
}

// filePanicSource implements reactor.PanicSource by draining a file that a
// crash handler would have written before the last reset. It is a one-shot
// read: the file is removed once consumed, so a later GetStatus only sees
// genuinely new panic data.
type filePanicSource struct {
	path string
}

func (f filePanicSource) TakePanicChunk() ([]byte, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	_ = os.Remove(f.path)
	return data, true
}

// hostRebooter implements reactor.Rebooter with the Linux kernel's warm
// reboot syscall, asking the bootloader for a named target the way an
// Android-style gadget kernel honors LINUX_REBOOT_CMD_RESTART2 with a
// "bootloader" argument. A real microcontroller would instead pulse its own
// watchdog/GPIO bootloader-select line (spec.md §6); this is this rewrite's
// nearest Linux equivalent.
type hostRebooter struct{}

func (hostRebooter) RebootToBootloader() {
	arg, err := unix.ByteSliceFromString("bootloader")
	if err != nil {
		return
	}
	_ = unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART2, arg)
}
