package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/late-mate/late-mate/internal/analysis"
	"github.com/late-mate/late-mate/internal/device"
	"github.com/late-mate/late-mate/internal/scenario"
)

func runScenarioCmd(ctx context.Context, d *device.Device, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	repeatsOverride := fs.Uint64("repeats", 0, "Override the scenario file's repeats field (0 = use file value)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: latemate run [flags] <scenario.json|->")
	}

	s, err := loadScenarioFile(fs.Arg(0))
	if err != nil {
		return err
	}
	if *repeatsOverride > 0 {
		s.Repeats = *repeatsOverride
	}
	if err := scenario.Validate(s); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}

	recordings, _, errs, err := device.RunScenarios(ctx, d, s)
	if err != nil {
		return fmt.Errorf("start scenario: %w", err)
	}

	var changepoints []*uint32
	repeat := 0
	for recordings != nil || errs != nil {
		select {
		case rec, ok := <-recordings:
			if !ok {
				recordings = nil
				continue
			}
			cp := analysis.FindChangepoint(rec.Timeline)
			changepoints = append(changepoints, cp)
			if cp == nil {
				fmt.Printf("repeat %d: no changepoint detected\n", repeat)
			} else {
				fmt.Printf("repeat %d: %.3fms\n", repeat, float64(*cp)/1000.0)
			}
			repeat++
		case e, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if e != nil {
				return fmt.Errorf("scenario run: %w", e)
			}
		}
	}

	stats, ok := analysis.Aggregate(changepoints)
	if !ok {
		fmt.Println("no successful repeats")
		return nil
	}
	fmt.Printf("\nsamples=%d mean=%.3fms median=%.3fms stddev=%.3fms min=%.3fms max=%.3fms missing=%t\n",
		stats.NSamples, stats.Mean, stats.Median, stats.Stddev, stats.Min, stats.Max, stats.HasMissing)
	return nil
}
