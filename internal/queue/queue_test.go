package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/model-booking/internal/logger"
	"github.com/iliyamo/model-booking/internal/model"
)

func sampleBooking() model.Booking {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	return model.Booking{
		ID:           "b1",
		ModelID:      "m1",
		RequesterID:  "u1",
		Window:       model.TimeWindow{Start: start, End: start.Add(time.Hour)},
		QuotedPrice:  150,
		Status:       model.StatusCancelled,
		CancelReason: model.ReasonConflict,
		Version:      2,
	}
}

func TestNewBookingEvent(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	ev := NewBookingEvent(EventConflicted, sampleBooking(), "admin-1", at)

	assert.Equal(t, EventConflicted, ev.Type)
	assert.Equal(t, "CANCELLED", ev.Status)
	assert.Equal(t, "2025-03-10T10:00:00Z", ev.StartsAt)
	assert.Equal(t, "2025-03-10T11:00:00Z", ev.EndsAt)
	assert.Equal(t, "conflict", ev.Reason)
	assert.Equal(t, "2025-03-10T09:00:00Z", ev.OccurredAt)
}

func TestFormatAuditLine(t *testing.T) {
	ev := NewBookingEvent(EventConflicted, sampleBooking(), "admin-1", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	line := FormatAuditLine(ev)

	assert.True(t, strings.HasPrefix(line, "[2025-03-10T09:00:00Z] booking.conflicted | booking_id=b1"))
	assert.Contains(t, line, "actor_id=admin-1")
	assert.Contains(t, line, `reason="conflict"`)
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestAuditConsumer_HandleMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "booking.log")
	c := &AuditConsumer{LogPath: path, Log: logger.Discard()}

	ev := NewBookingEvent(EventConfirmed, sampleBooking(), "", time.Now())
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, c.handleMessage(body))
	require.NoError(t, c.handleMessage(body))
	assert.Error(t, c.handleMessage([]byte("{not json")))
	assert.Error(t, c.handleMessage([]byte(`{"type":""}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), BookingEvent{}))
	assert.NoError(t, p.Close())
}
