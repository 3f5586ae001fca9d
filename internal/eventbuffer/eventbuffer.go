// Package eventbuffer implements the bounded, time-ordered scenario log
// described in spec.md §4.2: a fixed-capacity append-only buffer, cleared
// and reused once per scenario run, with single-writer/single-reader access
// enforced by its caller's mutex (spec.md §3 "Ownership").
package eventbuffer

import (
	"errors"
	"time"

	"github.com/late-mate/late-mate/internal/wire"
)

// Capacity is N = ceil(MaxScenarioDurationMs * 2 * 1.1), the slot count the
// device-side buffer is sized to (spec.md §3).
const Capacity = 11000

// ErrFull is returned by Store when the buffer has no headroom left, or the
// delta from startedAt would not fit in a uint32 microsecond count.
var ErrFull = errors.New("eventbuffer: full")

// Moment is one timestamped event, relative to the buffer's current epoch.
type Moment struct {
	Microsecond uint32
	Event       wire.Event
}

// Buffer is a fixed-capacity, time-ordered append-only log. It is not safe
// for concurrent use by itself; callers serialize access with their own
// mutex, matching spec.md's single-writer/single-reader discipline.
type Buffer struct {
	startedAt time.Time
	data      []Moment
}

// New allocates a buffer with its backing array pre-sized to Capacity so
// that Store never reallocates mid-scenario.
func New() *Buffer {
	return &Buffer{data: make([]Moment, 0, Capacity)}
}

// Clear empties the buffer and sets a new epoch. It is the only way to
// change startedAt; every Moment stored afterwards is relative to newStart.
func (b *Buffer) Clear(newStart time.Time) {
	b.data = b.data[:0]
	b.startedAt = newStart
}

// StartedAt returns the buffer's current epoch.
func (b *Buffer) StartedAt() time.Time { return b.startedAt }

// Store appends one event at happenedAt, provided happenedAt is not before
// the epoch, the delta fits in a uint32 microsecond count, and the buffer
// has at least one slot of headroom below Capacity (spec.md §4.2: "fails...
// if either data is one below capacity... or the delta exceeds u32").
func (b *Buffer) Store(happenedAt time.Time, event wire.Event) error {
	if happenedAt.Before(b.startedAt) {
		return ErrFull
	}
	if len(b.data) >= Capacity-1 {
		return ErrFull
	}
	delta := happenedAt.Sub(b.startedAt)
	us := delta.Microseconds()
	if us < 0 || us > int64(^uint32(0)) {
		return ErrFull
	}
	b.data = append(b.data, Moment{Microsecond: uint32(us), Event: event})
	return nil
}

// Len reports the number of stored moments.
func (b *Buffer) Len() int { return len(b.data) }

// Moments returns the stored moments in arrival order. The slice aliases the
// buffer's internal storage and must not be retained across the next Clear.
func (b *Buffer) Moments() []Moment { return b.data }
