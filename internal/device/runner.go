package device

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/late-mate/late-mate/internal/analysis"
	"github.com/late-mate/late-mate/internal/eventbuffer"
	"github.com/late-mate/late-mate/internal/metrics"
	"github.com/late-mate/late-mate/internal/scenario"
	"github.com/late-mate/late-mate/internal/wire"
)

// RunScenarios drives scenario.Scenario's repeat loop against d: for each
// repeat it runs the test section (recording into a Recording), then the
// revert section if present (never recorded, since ToWire only assigns a
// StartRecordingAtIdx to the test section), then sleeps a random delay
// drawn from DelayBetweenMs before the next repeat (spec.md §6
// "Device::run_scenario(Scenario) → Stream<Recording>").
//
// hidIndex maps a test-section HidRequestId back to the HidReport the
// caller originally supplied (spec.md §3: "the host maintains the mapping
// id → original HidReport"); it is constant across repeats and returned
// once up front rather than per Recording.
//
// The returned channel is closed once every repeat has completed or the
// first error occurs; a send on errs always terminates the run.
func RunScenarios(ctx context.Context, d *Device, s scenario.Scenario) (recordings <-chan analysis.Recording, hidIndex []wire.HidReport, errs <-chan error, err error) {
	testWire, hidIndex, err := scenario.ToWire(s.Test)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("device: convert test section: %w", err)
	}
	var revertWire wire.DeviceScenario
	if s.Revert != nil {
		revertWire, _, err = scenario.ToWire(s.Revert)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("device: convert revert section: %w", err)
		}
	}

	out := make(chan analysis.Recording)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		for repeat := uint64(0); repeat < s.Repeats; repeat++ {
			if ctx.Err() != nil {
				return
			}
			metrics.IncScenarioRun()

			recording, err := runOneRepeat(ctx, d, testWire)
			if err != nil {
				errCh <- fmt.Errorf("device: repeat %d: %w", repeat, err)
				return
			}
			select {
			case out <- recording:
			case <-ctx.Done():
				return
			}

			if s.Revert != nil {
				if _, err := runOneRepeat(ctx, d, revertWire); err != nil {
					errCh <- fmt.Errorf("device: revert after repeat %d: %w", repeat, err)
					return
				}
			}

			if repeat == s.Repeats-1 {
				continue
			}
			if err := sleepDelay(ctx, s.DelayBetweenMs); err != nil {
				errCh <- err
				return
			}
		}
	}()

	return out, hidIndex, errCh, nil
}

// runOneRepeat executes one device-side scenario run and reassembles its
// BufferedMoment stream into a host-side Recording.
func runOneRepeat(ctx context.Context, d *Device, ds wire.DeviceScenario) (analysis.Recording, error) {
	moments, streamErr, err := d.RunScenario(ctx, ds)
	if err != nil {
		return analysis.Recording{}, err
	}

	var timeline []eventbuffer.Moment
	for bm := range moments {
		timeline = append(timeline, eventbuffer.Moment{Microsecond: bm.Microsecond, Event: bm.Event})
	}

	if err := streamErr(); err != nil {
		return analysis.Recording{}, fmt.Errorf("device: scenario stream: %w", err)
	}

	analysis.SortTimeline(timeline)
	return analysis.Recording{MaxLightLevel: wire.MaxLightLevel, Timeline: timeline}, nil
}

func sleepDelay(ctx context.Context, r scenario.DelayRange) error {
	delayMs := r.Lo
	if r.Hi > r.Lo {
		delayMs += uint32(rand.Int64N(int64(r.Hi-r.Lo) + 1))
	}
	select {
	case <-time.After(time.Duration(delayMs) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
