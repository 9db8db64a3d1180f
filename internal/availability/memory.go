package availability

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/model-booking/internal/model"
)

// MemoryIndex keeps one sorted shard per model, each behind its own mutex.
// The top-level lock only guards the shard map.
type MemoryIndex struct {
	mu     sync.Mutex
	shards map[string]*shard
}

type shard struct {
	mu      sync.Mutex
	entries []Entry // sorted by Window.Start, pairwise non-overlapping
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{shards: make(map[string]*shard)}
}

func (ix *MemoryIndex) shard(modelID string) *shard {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	s, ok := ix.shards[modelID]
	if !ok {
		s = &shard{}
		ix.shards[modelID] = s
	}
	return s
}

// blocker returns the position where w would be inserted and the entry that
// overlaps w, if any. Entries are disjoint and sorted, so their ends are
// sorted too and only the last entry starting before w.End can overlap.
func (s *shard) blocker(w model.TimeWindow) (int, *Entry) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].Window.Start.Before(w.End)
	})
	if i > 0 && s.entries[i-1].Window.Overlaps(w) {
		return i, &s.entries[i-1]
	}
	return i, nil
}

func (ix *MemoryIndex) Reserve(ctx context.Context, modelID string, w model.TimeWindow, bookingID string) (Token, error) {
	s := ix.shard(modelID)
	s.mu.Lock()
	defer s.mu.Unlock()

	i, held := s.blocker(w)
	if held != nil {
		return Token{}, &ConflictError{ModelID: modelID, Requested: w, Occupied: held.Window, HolderID: held.BookingID}
	}
	s.entries = append(s.entries, Entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = Entry{BookingID: bookingID, Window: w}

	return Token{ID: uuid.NewString(), ModelID: modelID, BookingID: bookingID, Window: w}, nil
}

func (ix *MemoryIndex) Release(ctx context.Context, modelID string, w model.TimeWindow) error {
	s := ix.shard(modelID)
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].Window.Start.Before(w.Start)
	})
	if i < len(s.entries) && s.entries[i].Window.Equal(w) {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
	return nil
}

func (ix *MemoryIndex) Overlaps(ctx context.Context, modelID string, w model.TimeWindow) (bool, error) {
	s := ix.shard(modelID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, held := s.blocker(w)
	return held != nil, nil
}

func (ix *MemoryIndex) Replace(ctx context.Context, modelID string, entries []Entry) error {
	sorted, err := sortedDisjoint(modelID, entries)
	if err != nil {
		return err
	}
	s := ix.shard(modelID)
	s.mu.Lock()
	s.entries = sorted
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the model's occupied entries in start order.
func (ix *MemoryIndex) Snapshot(modelID string) []Entry {
	s := ix.shard(modelID)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
