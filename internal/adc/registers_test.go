package adc

import "testing"

func TestCmdWregMatchesDatasheetExample(t *testing.T) {
	// original_source/shared/ads1220/src/command.rs test_wreg: Wreg(Register0, L2) == 0b0100_0001.
	got := cmdWreg(reg0, regLength(0b01))
	if got != 0b0100_0001 {
		t.Fatalf("cmdWreg(reg0, L2) = %08b, want 0b0100_0001", got)
	}
}

func TestCmdRregMatchesDatasheetExample(t *testing.T) {
	// original_source/shared/ads1220/src/command.rs test_rreg: Rreg(Register1, L3) == 0b0010_0110.
	got := cmdRreg(reg1, regLength(0b10))
	if got != 0b0010_0110 {
		t.Fatalf("cmdRreg(reg1, L3) = %08b, want 0b0010_0110", got)
	}
}

func TestRegister0EncodesSingleEndedGain1PgaBypassed(t *testing.T) {
	got := register0()
	want := byte(muxAin0Avss<<4 | gain1<<1 | pgaBypassed)
	if got != want {
		t.Fatalf("register0() = %08b, want %08b", got, want)
	}
	if got&0b0000_0001 == 0 {
		t.Fatalf("register0() must set PGA bypass bit")
	}
}

func TestRegister1EncodesTurboContinuous2000Sps(t *testing.T) {
	got := register1()
	if got>>5 != dataRate2000SpsTurbo {
		t.Fatalf("register1() data rate bits = %03b, want %03b", got>>5, dataRate2000SpsTurbo)
	}
	if (got>>3)&0b11 != modeTurbo {
		t.Fatalf("register1() mode bits = %02b, want turbo", (got>>3)&0b11)
	}
	if (got>>2)&1 != conversionModeContinuous {
		t.Fatalf("register1() conversion mode bit not set to continuous")
	}
}

func TestRegister2SelectsExternalReference(t *testing.T) {
	got := register2()
	if got>>6 != vrefExternalRefp0Refn0 {
		t.Fatalf("register2() vref bits = %02b, want %02b", got>>6, vrefExternalRefp0Refn0)
	}
}

func TestRegister3AllReservedFieldsZero(t *testing.T) {
	if register3() != 0 {
		t.Fatalf("register3() = %08b, want 0", register3())
	}
}

func TestConfigRegistersOrder(t *testing.T) {
	regs := configRegisters()
	if regs[0] != register0() || regs[1] != register1() || regs[2] != register2() || regs[3] != register3() {
		t.Fatalf("configRegisters() out of order: %v", regs)
	}
}
