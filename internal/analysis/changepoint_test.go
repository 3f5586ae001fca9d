package analysis

import (
	"testing"

	"github.com/late-mate/late-mate/internal/eventbuffer"
	"github.com/late-mate/late-mate/internal/wire"
)

func light(us uint32, level uint32) eventbuffer.Moment {
	return eventbuffer.Moment{Microsecond: us, Event: wire.EventLightLevel(level)}
}

func TestFindChangepointFlatTraceIsNone(t *testing.T) {
	var timeline []eventbuffer.Moment
	for us := uint32(0); us <= 200000; us += 1000 {
		timeline = append(timeline, light(us, 1000))
	}
	if got := FindChangepoint(timeline); got != nil {
		t.Fatalf("flat trace should be None, got %d", *got)
	}
}

func TestFindChangepointRisingTransition(t *testing.T) {
	var timeline []eventbuffer.Moment
	transitionAt := uint32(100_000)
	for us := uint32(0); us <= 200000; us += 1000 {
		level := uint32(1000)
		if us >= transitionAt {
			level = 50000
		}
		timeline = append(timeline, light(us, level))
	}
	got := FindChangepoint(timeline)
	if got == nil {
		t.Fatalf("expected a changepoint")
	}
	if *got != transitionAt {
		t.Fatalf("changepoint = %d, want %d", *got, transitionAt)
	}
}

func TestFindChangepointFallingTransition(t *testing.T) {
	var timeline []eventbuffer.Moment
	transitionAt := uint32(80_000)
	for us := uint32(0); us <= 160000; us += 1000 {
		level := uint32(50000)
		if us >= transitionAt {
			level = 1000
		}
		timeline = append(timeline, light(us, level))
	}
	got := FindChangepoint(timeline)
	if got == nil {
		t.Fatalf("expected a changepoint")
	}
	if *got != transitionAt {
		t.Fatalf("changepoint = %d, want %d", *got, transitionAt)
	}
}

func TestFindChangepointWithHidReportInterleaved(t *testing.T) {
	timeline := []eventbuffer.Moment{
		{Microsecond: 0, Event: wire.EventHidReport(0)},
	}
	for us := uint32(1000); us <= 200000; us += 1000 {
		level := uint32(1000)
		if us >= 100000 {
			level = 50000
		}
		timeline = append(timeline, light(us, level))
	}
	got := FindChangepoint(timeline)
	if got == nil || *got != 100000 {
		t.Fatalf("got %v, want 100000", got)
	}
}

func TestAggregateWithMissing(t *testing.T) {
	a := uint32(10000)
	b := uint32(12000)
	stats, ok := Aggregate([]*uint32{&a, &b, nil})
	if !ok {
		t.Fatalf("expected aggregate")
	}
	if stats.NSamples != 2 || !stats.HasMissing {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Min != 10 || stats.Max != 12 {
		t.Fatalf("unexpected min/max: %+v", stats)
	}
}

func TestAggregateNoSuccesses(t *testing.T) {
	_, ok := Aggregate([]*uint32{nil, nil})
	if ok {
		t.Fatalf("expected no aggregate for all-missing repeats")
	}
}
