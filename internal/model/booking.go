package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusRequested BookingStatus = "REQUESTED"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusCompleted BookingStatus = "COMPLETED"
)

// Terminal reports whether no further transition is allowed from s.
func (s BookingStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Valid reports whether s is one of the known states.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Booking represents a row in the `bookings` table. Window is written once
// on insert; updates only touch Status, CancelReason, Version and UpdatedAt.
//
// Fields:
//
//	ID           – UUID primary key.
//	ModelID      – the booked model (reference only).
//	RequesterID  – subject that submitted the booking.
//	Window       – reserved interval, stored as start_at/end_at.
//	QuotedPrice  – price the requester agreed to, in minor units.
//	Notes        – free text from the requester, at most 500 characters.
//	Status       – lifecycle state.
//	CancelReason – why the booking was cancelled (conflict, requester, admin).
//	Version      – optimistic concurrency counter, starts at 1.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last transition.
type Booking struct {
	ID           string        // bookings.id
	ModelID      string        // bookings.model_id
	RequesterID  string        // bookings.requester_id
	Window       TimeWindow    // bookings.start_at, bookings.end_at
	QuotedPrice  int64         // bookings.quoted_price
	Notes        string        // bookings.notes
	Status       BookingStatus // bookings.status
	CancelReason string        // bookings.cancel_reason
	Version      int64         // bookings.version
	CreatedAt    time.Time     // bookings.created_at
	UpdatedAt    time.Time     // bookings.updated_at
}

// EffectiveStatus treats a Confirmed booking whose window has elapsed as
// Completed, whether or not the sweep has persisted that yet.
func (b Booking) EffectiveStatus(now time.Time) BookingStatus {
	if b.Status == StatusConfirmed && b.Window.Elapsed(now) {
		return StatusCompleted
	}
	return b.Status
}

// Cancel reasons recorded on the booking.
const (
	ReasonConflict  = "conflict"
	ReasonRequester = "cancelled by requester"
	ReasonAdmin     = "cancelled by admin"
)

// BookingFilter narrows a booking listing. Zero values mean "any".
// When AsOf is set, Status is matched against the effective status at AsOf,
// so an elapsed CONFIRMED booking is listed under COMPLETED.
type BookingFilter struct {
	RequesterID string
	ModelID     string
	Status      BookingStatus
	AsOf        time.Time
	Offset      int
	Limit       int
}

// BookingStats counts bookings by effective status at AsOf.
type BookingStats struct {
	AsOf     time.Time             `json:"as_of"`
	Total    int                   `json:"total"`
	ByStatus map[BookingStatus]int `json:"by_status"`
}

// Matches reports whether b passes every field of the filter except paging.
func (f BookingFilter) Matches(b Booking) bool {
	if f.RequesterID != "" && b.RequesterID != f.RequesterID {
		return false
	}
	if f.ModelID != "" && b.ModelID != f.ModelID {
		return false
	}
	if f.Status == "" {
		return true
	}
	if f.AsOf.IsZero() {
		return b.Status == f.Status
	}
	return b.EffectiveStatus(f.AsOf) == f.Status
}
