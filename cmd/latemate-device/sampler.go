//go:build linux

package main

import (
	"context"
	"fmt"

	"github.com/late-mate/late-mate/internal/adc"
)

// runSampleLoop is the ADC's sole publisher (spec.md §4.3/§5): it samples
// continuously and pushes every reading onto topic. A read timeout is
// treated as fatal to the whole device process (spec.md §4.3/§4.4's "ADC
// read timeout: stop the recorder and abort the scenario"), which the
// supervisor enforces by cancelling every other agent once this one
// returns.
func runSampleLoop(ctx context.Context, dev *adc.ADS1220, topic *adc.Topic) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		reading, err := dev.Sample()
		if err != nil {
			return fmt.Errorf("adc sample: %w", err)
		}
		topic.Publish(reading)
	}
}
