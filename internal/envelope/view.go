package envelope

import (
	"time"

	"github.com/iliyamo/model-booking/internal/booking"
	"github.com/iliyamo/model-booking/internal/model"
)

type BookingView struct {
	ID           string    `json:"id"`
	ModelID      string    `json:"model_id"`
	RequesterID  string    `json:"requester_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	QuotedPrice  int64     `json:"quoted_price"`
	Notes        string    `json:"notes,omitempty"`
	Status       string    `json:"status"`
	CancelReason string    `json:"cancel_reason,omitempty"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewBookingView(b model.Booking) BookingView {
	return BookingView{
		ID:           b.ID,
		ModelID:      b.ModelID,
		RequesterID:  b.RequesterID,
		Start:        b.Window.Start,
		End:          b.Window.End,
		QuotedPrice:  b.QuotedPrice,
		Notes:        b.Notes,
		Status:       string(b.Status),
		CancelReason: b.CancelReason,
		Version:      b.Version,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

type ListView struct {
	Items []BookingView `json:"items"`
	Count int           `json:"count"`
}

// ConflictView is returned when a confirmation lost its window to another
// booking.
type ConflictView struct {
	Booking  BookingView `json:"booking"`
	HeldBy   string      `json:"held_by,omitempty"`
	Occupied struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"occupied"`
}

func NewConflictView(res booking.ConfirmResult) ConflictView {
	v := ConflictView{Booking: NewBookingView(res.Booking)}
	if res.Conflict != nil {
		v.HeldBy = res.Conflict.HolderID
		v.Occupied.Start = res.Conflict.Occupied.Start
		v.Occupied.End = res.Conflict.Occupied.End
	}
	return v
}
