// Package analysis implements the deterministic post-processing that turns
// a device Recording into a latency estimate: noise-window changepoint
// detection plus aggregate statistics across repeats (spec.md §4.10).
package analysis

import (
	"sort"

	"github.com/late-mate/late-mate/internal/eventbuffer"
	"github.com/late-mate/late-mate/internal/wire"
)

// Fixed parameters of the detector (spec.md §4.10).
const (
	noiseWindowUs       = 7000
	detectGapMultiplier = 2
	changeGapMultiplier = 1
)

// Recording is the host-side timeline for one trial, sorted by microsecond
// before analysis (spec.md §3).
type Recording struct {
	MaxLightLevel uint32
	Timeline      []eventbuffer.Moment
}

// SortTimeline reorders the timeline by microsecond ascending. The recorder
// and the scenario executor push into the same device-side buffer from two
// tasks, so arrival order can race by a handful of microseconds (spec.md
// §4.4 "Ordering").
func SortTimeline(timeline []eventbuffer.Moment) {
	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Microsecond < timeline[j].Microsecond
	})
}

func lightLevel(m eventbuffer.Moment) (uint32, bool) {
	v, ok := m.Event.(wire.EventLightLevel)
	if !ok {
		return 0, false
	}
	return uint32(v), true
}

func minMaxInWindow(timeline []eventbuffer.Moment, in func(us uint32) bool) (min, max uint32, any bool) {
	min = ^uint32(0)
	for _, m := range timeline {
		if !in(m.Microsecond) {
			continue
		}
		v, ok := lightLevel(m)
		if !ok {
			continue
		}
		any = true
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if !any {
		min = 0
	}
	return min, max, any
}

// FindChangepoint returns the estimated microsecond of the optical
// transition, or nil if the trace shows no reaction (spec.md §4.10).
//
// Photodiode saturation before the noise window ends is an explicit open
// question in spec.md §9; this implementation treats a saturated (flat)
// start window the same as any other flat window — start_min == start_max
// — which makes change_gap zero and requires only end_min > start_max (or
// the falling symmetric case) to declare a reaction, exactly as the rising/
// falling branches already compute. See DESIGN.md for the decision record.
func FindChangepoint(timeline []eventbuffer.Moment) *uint32 {
	if len(timeline) == 0 {
		return nil
	}
	startMin, startMax, any := minMaxInWindow(timeline, func(us uint32) bool { return us < noiseWindowUs })
	if !any {
		return nil
	}

	last := timeline[len(timeline)-1].Microsecond
	var lowerBound uint32
	if last > noiseWindowUs {
		lowerBound = last - noiseWindowUs
	}
	endMin, endMax, anyEnd := minMaxInWindow(timeline, func(us uint32) bool { return us > lowerBound })
	if !anyEnd {
		return nil
	}

	detectGap := (startMax - startMin) * detectGapMultiplier
	if !(endMin > startMax+detectGap || startMin > endMax+detectGap) {
		return nil
	}

	changeGap := (startMax - startMin) * changeGapMultiplier
	if endMin > startMax {
		threshold := startMax + changeGap
		for _, m := range timeline {
			if v, ok := lightLevel(m); ok && v > threshold {
				us := m.Microsecond
				return &us
			}
		}
		return nil
	}

	// falling signal; the gap check above guarantees startMin > changeGap.
	threshold := startMin - changeGap
	for _, m := range timeline {
		if v, ok := lightLevel(m); ok && v < threshold {
			us := m.Microsecond
			return &us
		}
	}
	return nil
}
