package transport

import (
	"fmt"
	"sort"

	"github.com/google/gousb"
)

// VendorID and ProductID identify the device's vendor-class bulk interface
// (spec.md §6: "a vendor-class interface exposing two bulk endpoints").
const (
	VendorID  = gousb.ID(0x1209) // pid.codes shared VID
	ProductID = gousb.ID(0x0001)

	endpointOut = 0x01
	endpointIn  = 0x81

	// PacketSize is the wire maximum USB packet size (spec.md §6/§4.9).
	PacketSize = 64
)

// Device wraps a claimed vendor interface and its two bulk endpoints,
// grounded on guiperry-HASHER/internal/driver/device/usb_device.go's
// OpenUSBDevice/claimInterface chain (gousb.NewContext -> OpenDeviceWithVIDPID
// -> Config -> Interface -> {In,Out}Endpoint), adapted to open-first-match
// enumeration instead of a single fixed VID:PID.
type Device struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	out    *gousb.OutEndpoint
	in     *gousb.InEndpoint
}

// OpenFirst enumerates every device matching VendorID/ProductID, opens the
// one with the lowest (bus, address), and closes the rest. A Late Mate host
// only ever expects one probe attached; finding more than one is the
// multi-device enumeration guard named in SPEC_FULL.md's supplemented
// features, grounded on
// original_source/host-and-shared/late-mate-cli/src/device.rs acquire_device().
func OpenFirst() (*Device, error) {
	usbCtx := gousb.NewContext()

	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == VendorID && desc.Product == ProductID
	})
	if err != nil {
		usbCtx.Close()
		return nil, fmt.Errorf("transport: enumerate usb devices: %w", err)
	}
	if len(devs) == 0 {
		usbCtx.Close()
		return nil, fmt.Errorf("transport: no device matching VID:PID %s:%s", VendorID, ProductID)
	}
	sort.Slice(devs, func(i, j int) bool {
		if devs[i].Desc.Bus != devs[j].Desc.Bus {
			return devs[i].Desc.Bus < devs[j].Desc.Bus
		}
		return devs[i].Desc.Address < devs[j].Desc.Address
	})
	chosen := devs[0]
	for _, extra := range devs[1:] {
		_ = extra.Close()
	}

	config, err := chosen.Config(1)
	if err != nil {
		chosen.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("transport: set config: %w", err)
	}
	intf, err := config.Interface(0, 0)
	if err != nil {
		config.Close()
		chosen.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("transport: claim interface: %w", err)
	}
	out, err := intf.OutEndpoint(endpointOut)
	if err != nil {
		intf.Close()
		config.Close()
		chosen.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("transport: open out endpoint: %w", err)
	}
	in, err := intf.InEndpoint(endpointIn)
	if err != nil {
		intf.Close()
		config.Close()
		chosen.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("transport: open in endpoint: %w", err)
	}

	return &Device{ctx: usbCtx, dev: chosen, config: config, intf: intf, out: out, in: in}, nil
}

// Close releases the interface, config, device and context, in that order.
func (d *Device) Close() error {
	d.intf.Close()
	if err := d.config.Close(); err != nil {
		return err
	}
	if err := d.dev.Close(); err != nil {
		return err
	}
	return d.ctx.Close()
}

// WritePacket writes one already-framed, already-padded packet to the bulk
// OUT endpoint.
func (d *Device) WritePacket(p []byte) (int, error) {
	return d.out.Write(p)
}

// ReadPacket blocks until one packet arrives on the bulk IN endpoint.
func (d *Device) ReadPacket(buf []byte) (int, error) {
	return d.in.Read(buf)
}
