package main

import (
	"context"
	"fmt"

	"github.com/late-mate/late-mate/internal/device"
)

func runStatus(ctx context.Context, d *device.Device, args []string) error {
	st, panicData, err := d.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	fmt.Printf("hardware:       %d\n", st.Hardware)
	fmt.Printf("firmware hash:  %x\n", st.FirmwareHash)
	fmt.Printf("firmware dirty: %t\n", st.FirmwareDirty)
	fmt.Printf("max light:      %d\n", st.MaxLightLevel)
	fmt.Printf("serial number:  %x\n", st.SerialNumber)
	if len(panicData) > 0 {
		fmt.Printf("panic data (%d bytes): %x\n", len(panicData), panicData)
	}
	return nil
}

func runReset(ctx context.Context, d *device.Device, args []string) error {
	if err := d.ResetToFirmwareUpdate(ctx); err != nil {
		return fmt.Errorf("reset to firmware update: %w", err)
	}
	fmt.Println("bootloader reboot scheduled")
	return nil
}
