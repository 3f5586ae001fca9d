// Package adc drives the ADS1220 24-bit delta-sigma ADC over SPI, producing
// the timestamped light-reading stream described in spec.md §4.3. Grounded
// on periph.io/x/periph's SPI/GPIO conventions (google-periph/cmd/spi-io,
// google-periph/cmd/cap1188) and on the register/command layouts in
// original_source/firmware/src/ads1220/{command.rs,config.rs,config/*.rs}.
package adc

// command is a one-byte ADS1220 command frame (original_source
// firmware/src/ads1220/command.rs).
type command byte

const (
	cmdReset       command = 0b0000_0110
	cmdStartOrSync command = 0b0000_1000
	cmdPowerdown   command = 0b0000_1010
	cmdRdata       command = 0b0001_0000
)

// regOffset identifies which of the four 8-bit configuration registers a
// Rreg/Wreg command addresses.
type regOffset byte

const (
	reg0 regOffset = 0b00
	reg1 regOffset = 0b01
	reg2 regOffset = 0b10
	reg3 regOffset = 0b11
)

// regLength encodes "length - 1" registers for a Rreg/Wreg burst.
type regLength byte

const (
	len1 regLength = 0b00
	len4 regLength = 0b11
)

func cmdWreg(offset regOffset, length regLength) command {
	return command(0b0100_0000 | byte(offset)<<2 | byte(length))
}

func cmdRreg(offset regOffset, length regLength) command {
	return command(0b0010_0000 | byte(offset)<<2 | byte(length))
}

// Mux selects the input multiplexer routing (config/register0.rs). Late Mate
// always uses a single-ended channel referenced to AVSS (spec.md §4.3
// "input multiplexer routed to one single-ended channel referenced to
// ground").
const muxAin0Avss byte = 0b1000

// gain1 and pgaBypassed configure register 0's remaining fields
// (spec.md §4.3 "gain 1, PGA bypassed").
const (
	gain1       byte = 0b000
	pgaBypassed byte = 0b1
)

// register0 packs Mux(4)|Gain(3)|PGA(1), MSB-first, per
// firmware/src/ads1220/config/register0.rs.
func register0() byte {
	return muxAin0Avss<<4 | gain1<<1 | pgaBypassed
}

// dataRate2000SpsTurbo selects the DataRate bit pattern that yields 2000 SPS
// when combined with Turbo mode (config/register1.rs: Normal1000 = 1000 SPS
// in Normal mode, 2000 SPS in Turbo mode).
const dataRate2000SpsTurbo byte = 0b110

const (
	modeTurbo                byte = 0b10
	conversionModeContinuous byte = 0b1
)

// register1 packs DataRate(3)|Mode(2)|ConversionMode(1)|TempSensor(1)|Bcs(1).
// TempSensor and Bcs stay at their disabled defaults (spec.md §4.3
// "continuous-conversion turbo mode at 2,000 samples/second").
func register1() byte {
	return dataRate2000SpsTurbo<<5 | modeTurbo<<3 | conversionModeContinuous<<2
}

// vrefExternalRefp0Refn0 selects the dedicated external reference pins
// (spec.md §4.3 "external voltage reference").
const vrefExternalRefp0Refn0 byte = 0b01

// register2 packs Vref(2)|FirFilter(2)|LowSidePower(1)|IdacCurrent(3). FIR
// filter, low-side power switch and IDAC current all stay at their disabled
// defaults.
func register2() byte {
	return vrefExternalRefp0Refn0 << 6
}

// register3 has no Late Mate-relevant fields; every bit stays at its
// disabled/reserved default (firmware/src/ads1220/config/register3.rs).
func register3() byte {
	return 0
}

// configRegisters returns the four bytes programmed into the ADS1220 at
// startup, in register order.
func configRegisters() [4]byte {
	return [4]byte{register0(), register1(), register2(), register3()}
}
