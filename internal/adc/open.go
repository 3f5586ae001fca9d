package adc

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// Open initializes the periph.io host drivers, opens busName at
// SPISpeed/SPIMode, configures drdyPin for falling-edge detection, and
// returns a ready-to-Configure ADS1220. Grounded on
// google-periph/cmd/spi-io/main.go (host.Init + spireg.Open + DevParams) and
// google-periph/cmd/cap1188/main.go (gpioreg.ByName + In(pull, edge)).
func Open(busName, drdyPin string) (*ADS1220, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("adc: host init: %w", err)
	}
	bus, err := spireg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("adc: open spi bus %s: %w", busName, err)
	}
	conn, err := bus.Connect(int64(SPISpeed), SPIMode, 8)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("adc: connect: %w", err)
	}
	drdy := gpioreg.ByName(drdyPin)
	if drdy == nil {
		bus.Close()
		return nil, nil, fmt.Errorf("adc: unknown gpio pin %s", drdyPin)
	}
	if err := drdy.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("adc: configure drdy pin: %w", err)
	}
	return New(conn, drdy), bus.Close, nil
}
