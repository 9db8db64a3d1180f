package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
}

func TestNewTimeWindow(t *testing.T) {
	w, err := NewTimeWindow(at(10, 0).Add(42*time.Second), at(11, 0))
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), w.Start)
	assert.Equal(t, time.Hour, w.Duration())

	_, err = NewTimeWindow(at(11, 0), at(11, 0))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	// Sub-minute windows collapse to empty.
	_, err = NewTimeWindow(at(11, 0), at(11, 0).Add(30*time.Second))
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestTimeWindow_Overlaps(t *testing.T) {
	base := TimeWindow{Start: at(10, 0), End: at(11, 0)}
	tests := []struct {
		name  string
		other TimeWindow
		want  bool
	}{
		{"identical", base, true},
		{"tail overlap", TimeWindow{at(10, 30), at(11, 30)}, true},
		{"head overlap", TimeWindow{at(9, 30), at(10, 1)}, true},
		{"contained", TimeWindow{at(10, 15), at(10, 45)}, true},
		{"containing", TimeWindow{at(9, 0), at(12, 0)}, true},
		{"adjacent after", TimeWindow{at(11, 0), at(12, 0)}, false},
		{"adjacent before", TimeWindow{at(9, 0), at(10, 0)}, false},
		{"disjoint", TimeWindow{at(13, 0), at(14, 0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestModel_Quote(t *testing.T) {
	m := Model{PricePerHour: 100}
	quote := func(w TimeWindow) int64 {
		t.Helper()
		p, ok := m.Quote(w)
		require.True(t, ok)
		return p
	}
	assert.Equal(t, int64(100), quote(TimeWindow{at(10, 0), at(11, 0)}))
	assert.Equal(t, int64(150), quote(TimeWindow{at(10, 0), at(11, 30)}))
	// 7 minutes at 100/h is 11.67, rounded up.
	assert.Equal(t, int64(12), quote(TimeWindow{at(10, 0), at(10, 7)}))
}

func TestModel_QuoteOverflow(t *testing.T) {
	m := Model{PricePerHour: 1e17}
	_, ok := m.Quote(TimeWindow{at(10, 0), at(12, 0)})
	assert.False(t, ok)

	m.PricePerHour = MaxPricePerHour
	p, ok := m.Quote(TimeWindow{at(10, 0), at(12, 0)})
	require.True(t, ok)
	assert.Equal(t, 2*MaxPricePerHour, p)
}

func TestBooking_EffectiveStatus(t *testing.T) {
	b := Booking{Status: StatusConfirmed, Window: TimeWindow{at(14, 0), at(15, 0)}}
	assert.Equal(t, StatusConfirmed, b.EffectiveStatus(at(14, 59)))
	assert.Equal(t, StatusCompleted, b.EffectiveStatus(at(15, 0)))

	b.Status = StatusRequested
	assert.Equal(t, StatusRequested, b.EffectiveStatus(at(16, 0)))
}

func TestBookingStatus_Terminal(t *testing.T) {
	assert.False(t, StatusRequested.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, BookingStatus("PENDING").Valid())
}
