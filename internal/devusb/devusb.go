//go:build linux

// Package devusb implements the device-side half of the USB bulk-endpoint
// pump: raw fd reads/writes against a Linux USB FunctionFS gadget endpoint
// pair, grounded on the teacher's internal/socketcan.Device (fd-based
// unix.Read/unix.Write against a bound socket, adapted from a CAN_RAW
// socket to a FunctionFS bulk endpoint file), reusing the same
// golang.org/x/sys/unix raw-syscall style the teacher uses for its
// transport layer for the half of spec.md §4.9 that runs on the
// microcontroller-equivalent side of the wire.
package devusb

// PacketSize is the USB full-speed bulk endpoint maximum packet size
// (spec.md §6 "Wire maximum packet size: 64 bytes").
const PacketSize = 64
