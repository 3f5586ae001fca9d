package adc

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
)

// ErrReadbackMismatch is returned by Configure when the register read-back
// does not byte-equal what was written (spec.md §4.3: "a read-back after
// write must byte-equal the written configuration; mismatch is fatal").
var ErrReadbackMismatch = errors.New("adc: register readback mismatch")

// ErrSampleTimeout is returned by Sample when the data-ready line does not
// fall within the deadline (spec.md §4.3/§4.4: "ADC read timeout... stop the
// recorder and abort the scenario").
var ErrSampleTimeout = errors.New("adc: sample timeout")

// sampleTimeout bounds a single WaitForEdge call. At 2000 SPS the expected
// inter-sample interval is 500µs; this leaves generous slack (spec.md §4.3
// "Timeouts are bounded by the expected inter-sample interval plus slack").
const sampleTimeout = 20 * time.Millisecond

// MaxLightLevel is the ceiling a fully saturated 24-bit reading can report
// (spec.md §4.3).
const MaxLightLevel uint32 = 1<<23 - 1

// LightReading is one sample off the sampling loop, timestamped immediately
// after the 3-byte read completes (spec.md §4.3).
type LightReading struct {
	Instant time.Time
	Reading uint32
}

// ADS1220 owns the SPI connection and data-ready GPIO pin for one ADC.
type ADS1220 struct {
	conn spi.Conn
	drdy gpio.PinIn
}

// New wraps an already-opened SPI connection and data-ready pin. The pin
// must already be configured for falling-edge detection by the caller's bus
// setup (spec.md §4.3 "await falling edge of the data-ready line").
func New(conn spi.Conn, drdy gpio.PinIn) *ADS1220 {
	return &ADS1220{conn: conn, drdy: drdy}
}

// Configure resets the device, writes the four control registers required
// by spec.md §4.3, and verifies the write by reading them back. It issues
// StartOrSync last, since continuous-conversion mode begins on that command.
func (a *ADS1220) Configure() error {
	if err := a.xfer([]byte{byte(cmdReset)}, nil); err != nil {
		return fmt.Errorf("adc: reset: %w", err)
	}
	time.Sleep(time.Millisecond) // t_RST recovery time, per the datasheet's reset timing

	want := configRegisters()
	wreg := append([]byte{byte(cmdWreg(reg0, len4))}, want[:]...)
	if err := a.xfer(wreg, nil); err != nil {
		return fmt.Errorf("adc: write config: %w", err)
	}

	got := make([]byte, 1+len(want))
	rreg := append([]byte{byte(cmdRreg(reg0, len4))}, make([]byte, len(want))...)
	if err := a.xfer(rreg, got); err != nil {
		return fmt.Errorf("adc: readback config: %w", err)
	}
	for i := range want {
		if got[1+i] != want[i] {
			return ErrReadbackMismatch
		}
	}

	return a.xfer([]byte{byte(cmdStartOrSync)}, nil)
}

// Sample blocks for one falling data-ready edge, reads the 24-bit
// conversion result, and returns it assembled big-endian into the low bits
// of a uint32, timestamped immediately after the read (spec.md §4.3).
func (a *ADS1220) Sample() (LightReading, error) {
	if !a.drdy.WaitForEdge(sampleTimeout) {
		return LightReading{}, ErrSampleTimeout
	}
	tx := []byte{byte(cmdRdata), 0, 0, 0}
	rx := make([]byte, len(tx))
	if err := a.xfer(tx, rx); err != nil {
		return LightReading{}, fmt.Errorf("adc: rdata: %w", err)
	}
	instant := time.Now()
	value := uint32(rx[1])<<16 | uint32(rx[2])<<8 | uint32(rx[3])
	return LightReading{Instant: instant, Reading: value}, nil
}

func (a *ADS1220) xfer(w, r []byte) error {
	if r == nil {
		r = make([]byte, len(w))
	}
	return a.conn.Tx(w, r)
}

// SPIMode and SPISpeed are the bus parameters spec.md §4.3 mandates:
// "phase-1/polarity-0 mode at 1 MHz".
const (
	SPIMode  = spi.Mode1
	SPISpeed = 1 * physic.MegaHertz
)
