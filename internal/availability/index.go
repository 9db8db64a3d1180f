// Package availability tracks which (model, window) pairs are occupied by
// confirmed bookings. It is the only shared mutable schedule state in the
// service; every reservation goes through Reserve, which is atomic per model.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/iliyamo/model-booking/internal/model"
)

// ErrConflict matches any *ConflictError via errors.Is.
var ErrConflict = errors.New("window already reserved")

// ConflictError names the occupied window that blocked a reservation.
type ConflictError struct {
	ModelID   string
	Requested model.TimeWindow
	Occupied  model.TimeWindow
	HolderID  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("model %s: window [%s, %s) overlaps reserved [%s, %s)",
		e.ModelID,
		e.Requested.Start.Format(timeLayout), e.Requested.End.Format(timeLayout),
		e.Occupied.Start.Format(timeLayout), e.Occupied.End.Format(timeLayout))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

const timeLayout = "2006-01-02T15:04Z07:00"

// Entry is one occupied window and the booking holding it.
type Entry struct {
	BookingID string
	Window    model.TimeWindow
}

// Token is returned by a successful Reserve.
type Token struct {
	ID        string
	ModelID   string
	BookingID string
	Window    model.TimeWindow
}

// Index is implemented by the in-process and the Redis backed indexes.
//
// Reserve must be linearizable per model: two concurrent calls with
// overlapping windows on the same model never both succeed. Calls for
// different models must not block each other.
type Index interface {
	Reserve(ctx context.Context, modelID string, w model.TimeWindow, bookingID string) (Token, error)
	// Release removes the window if present. Releasing an absent window is a no-op.
	Release(ctx context.Context, modelID string, w model.TimeWindow) error
	// Overlaps is advisory only and never a substitute for Reserve.
	Overlaps(ctx context.Context, modelID string, w model.TimeWindow) (bool, error)
	// Replace swaps the model's occupied set for entries, used when rebuilding
	// from durable confirmed bookings.
	Replace(ctx context.Context, modelID string, entries []Entry) error
}

// sortedDisjoint orders entries by start and rejects overlapping pairs, which
// would mean the durable store already violates the no-double-booking rule.
func sortedDisjoint(modelID string, entries []Entry) ([]Entry, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Window.Start.Before(sorted[j].Window.Start)
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Window.Overlaps(sorted[i].Window) {
			return nil, fmt.Errorf("model %s: confirmed bookings %s and %s overlap",
				modelID, sorted[i-1].BookingID, sorted[i].BookingID)
		}
	}
	return sorted, nil
}
