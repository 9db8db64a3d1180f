package model

import (
	"errors"
	"time"
)

// ErrInvalidWindow is returned when a window's start is not strictly before
// its end once both are truncated to the minute.
var ErrInvalidWindow = errors.New("window start must be before end")

// TimeWindow is a half-open interval [Start, End). Both instants are kept in
// UTC at minute resolution so every component compares them the same way.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow normalizes start and end and rejects empty or inverted
// intervals.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	w := TimeWindow{Start: start.UTC().Truncate(time.Minute), End: end.UTC().Truncate(time.Minute)}
	if !w.Start.Before(w.End) {
		return TimeWindow{}, ErrInvalidWindow
	}
	return w, nil
}

// Overlaps reports whether w and o share at least one instant. Adjacent
// windows (w.End == o.Start) do not overlap.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Equal compares both bounds as instants.
func (w TimeWindow) Equal(o TimeWindow) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// Started reports whether now is at or past the window start.
func (w TimeWindow) Started(now time.Time) bool { return !now.Before(w.Start) }

// Elapsed reports whether now is at or past the window end.
func (w TimeWindow) Elapsed(now time.Time) bool { return !now.Before(w.End) }
