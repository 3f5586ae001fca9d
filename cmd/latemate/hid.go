package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/late-mate/late-mate/internal/device"
	"github.com/late-mate/late-mate/internal/wire"
)

func runHid(ctx context.Context, d *device.Device, args []string) error {
	fs := flag.NewFlagSet("hid", flag.ExitOnError)
	kind := fs.String("kind", "mouse", "Report kind: mouse|keyboard")
	buttons := fs.Int("buttons", 0, "Mouse button bitmask")
	x := fs.Int("x", 0, "Mouse relative X")
	y := fs.Int("y", 0, "Mouse relative Y")
	wheel := fs.Int("wheel", 0, "Mouse wheel delta")
	modifier := fs.Int("modifier", 0, "Keyboard modifier bitmask")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var report wire.HidReport
	switch *kind {
	case "mouse":
		report = wire.Mouse{Buttons: byte(*buttons), X: int8(*x), Y: int8(*y), Wheel: int8(*wheel)}
	case "keyboard":
		report = wire.Keyboard{Modifier: byte(*modifier)}
	default:
		return fmt.Errorf("unknown hid kind %q", *kind)
	}

	if err := d.SendHidReport(ctx, report); err != nil {
		return fmt.Errorf("send hid report: %w", err)
	}
	fmt.Println("hid report sent")
	return nil
}
