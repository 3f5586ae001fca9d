package main

import (
	"context"

	"github.com/late-mate/late-mate/internal/device"
)

// command is one latemate subcommand, grounded on the SmokeTest interface
// in google-periph/cmd/periph-smoketest/main.go (a name, a description and
// a Run entry point keyed off a registered list instead of a switch).
type command struct {
	name        string
	description string
	run         func(ctx context.Context, d *device.Device, args []string) error
}

var commands = []command{
	{name: "status", description: "Fetch and print device status", run: runStatus},
	{name: "reset", description: "Reboot the device into its firmware update bootloader", run: runReset},
	{name: "hid", description: "Send one simulated HID report outside of a scenario", run: runHid},
	{name: "run", description: "Run a scenario file and print aggregate latency statistics", run: runScenarioCmd},
}

func findCommand(name string) *command {
	for i := range commands {
		if commands[i].name == name {
			return &commands[i]
		}
	}
	return nil
}
