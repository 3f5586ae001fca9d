package scenario

import "github.com/late-mate/late-mate/internal/wire"

// ToWire converts one step sequence (either the test section or the revert
// section) into its device wire form plus the host-side index mapping
// HidRequestId → original report, used to reinterpret BufferedMoment events
// returned later (spec.md §3 "A HidRequestId is an 8-bit index private to
// one scenario; the host maintains the mapping id → original HidReport").
//
// Called once per section: the test section (which carries the one
// StartTiming marker) is recorded, while a revert section run afterwards
// carries none and therefore never starts the recorder.
func ToWire(steps []Step) (wire.DeviceScenario, []wire.HidReport, error) {
	var startIdx *uint8
	deviceSteps := make([]wire.Step, 0, len(steps))
	hidIndex := make([]wire.HidReport, 0)

	for idx, step := range steps {
		switch v := step.(type) {
		case Wait:
			deviceSteps = append(deviceSteps, wire.StepWait{Ms: v.Ms})
		case HidReport:
			id := uint8(len(hidIndex))
			hidIndex = append(hidIndex, v.Report)
			deviceSteps = append(deviceSteps, wire.StepHidRequest{
				Request: wire.HidRequest{ID: id, Report: v.Report},
			})
		case StartTiming:
			i := uint8(idx)
			startIdx = &i
		default:
			return wire.DeviceScenario{}, nil, errInvalidStep
		}
	}

	return wire.DeviceScenario{StartRecordingAtIdx: startIdx, Steps: deviceSteps}, hidIndex, nil
}
