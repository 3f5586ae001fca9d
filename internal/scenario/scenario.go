// Package scenario holds the host-side canonical scenario model: the
// declarative description of one latency trial, its pre-flight validator
// (spec.md §4.11), and its conversion into the device wire form (spec.md §3
// "Device-side Scenario").
package scenario

import "github.com/late-mate/late-mate/internal/wire"

// Step is one instruction of the host-side canonical scenario.
type Step interface {
	isStep()
}

type Wait struct {
	Ms uint16
}

type HidReport struct {
	Report wire.HidReport
}

type StartTiming struct{}

func (Wait) isStep()        {}
func (HidReport) isStep()   {}
func (StartTiming) isStep() {}

// DelayRange is the inclusive [Lo, Hi] millisecond range the host sleeps
// between repeats.
type DelayRange struct {
	Lo, Hi uint32
}

// Scenario is the host-side canonical form accepted by Validate.
type Scenario struct {
	Test           []Step
	Revert         []Step // nil means no revert sequence
	Repeats        uint64
	DelayBetweenMs DelayRange
}
