package scenario

import (
	"errors"
	"fmt"

	"github.com/late-mate/late-mate/internal/wire"
)

// ValidationError classifies why a scenario was rejected (spec.md §4.11).
// Construct with the package-level helpers so callers can compare with
// errors.Is/errors.As.
type ValidationError struct {
	Kind string
	N    int // populated for size-related kinds
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindTestTooLarge:
		return fmt.Sprintf("scenario: test has %d steps, max %d", e.N, wire.MaxScenarioSteps)
	case KindRevertTooLarge:
		return fmt.Sprintf("scenario: revert has %d steps, max %d", e.N, wire.MaxScenarioSteps)
	case KindDurationTooLong:
		return fmt.Sprintf("scenario: test duration %dms exceeds %dms", e.N, wire.MaxScenarioDurationMs)
	default:
		return "scenario: " + e.Kind
	}
}

const (
	KindTestTooLarge        = "test_too_large"
	KindRevertTooLarge      = "revert_too_large"
	KindDurationTooLong     = "duration_too_long"
	KindNoStartTiming       = "no_start_timing"
	KindMultipleStartTiming = "multiple_start_timing"
	KindStartTimingInRevert = "start_timing_in_revert"
	KindInvalidDelayRange   = "invalid_delay_range"
	KindNoRepeats           = "no_repeats"
)

var errKinds = map[string]bool{
	KindTestTooLarge: true, KindRevertTooLarge: true, KindDurationTooLong: true,
	KindNoStartTiming: true, KindMultipleStartTiming: true,
	KindStartTimingInRevert: true, KindInvalidDelayRange: true, KindNoRepeats: true,
}

// Is lets errors.Is match by Kind alone, so callers can write
// errors.Is(err, scenario.KindError(scenario.KindTestTooLarge)).
func (e *ValidationError) Is(target error) bool {
	other, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// KindError builds a sentinel usable with errors.Is to test for a Kind
// regardless of the N payload.
func KindError(kind string) error { return &ValidationError{Kind: kind} }

// Validate rejects any scenario violating spec.md §3's invariants.
func Validate(s Scenario) error {
	if len(s.Test) > wire.MaxScenarioSteps {
		return &ValidationError{Kind: KindTestTooLarge, N: len(s.Test)}
	}
	if len(s.Revert) > wire.MaxScenarioSteps {
		return &ValidationError{Kind: KindRevertTooLarge, N: len(s.Revert)}
	}
	if s.Repeats < 1 {
		return &ValidationError{Kind: KindNoRepeats}
	}
	if s.DelayBetweenMs.Lo > s.DelayBetweenMs.Hi {
		return &ValidationError{Kind: KindInvalidDelayRange}
	}

	startCount := 0
	durationMs := 0
	for _, step := range s.Test {
		switch v := step.(type) {
		case StartTiming:
			startCount++
		case Wait:
			durationMs += int(v.Ms)
		case HidReport:
			// A 2ms margin per simulated input report, matching the
			// original's Duration::from(&ScenarioStep) costing.
			durationMs += 2
		}
	}
	if startCount == 0 {
		return &ValidationError{Kind: KindNoStartTiming}
	}
	if startCount > 1 {
		return &ValidationError{Kind: KindMultipleStartTiming}
	}
	if durationMs > wire.MaxScenarioDurationMs {
		return &ValidationError{Kind: KindDurationTooLong, N: durationMs}
	}
	for _, step := range s.Revert {
		if _, ok := step.(StartTiming); ok {
			return &ValidationError{Kind: KindStartTimingInRevert}
		}
	}
	return nil
}

// errInvalidStep is returned by ToWire if called on an unvalidated scenario
// whose step set somehow still contains an unrecognized type.
var errInvalidStep = errors.New("scenario: unrecognized step type")
