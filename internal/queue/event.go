// Package queue defines the booking lifecycle events and the brokers they
// are published to.
package queue

import (
	"time"

	"github.com/iliyamo/model-booking/internal/model"
)

// EventType doubles as the routing key on the AMQP exchange.
type EventType string

const (
	EventSubmitted  EventType = "booking.submitted"
	EventConfirmed  EventType = "booking.confirmed"
	EventConflicted EventType = "booking.conflicted"
	EventCancelled  EventType = "booking.cancelled"
	EventCompleted  EventType = "booking.completed"
)

// BookingEvent is published after a lifecycle transition has been
// committed. It carries enough for consumers to log or notify without
// querying the store.
type BookingEvent struct {
	Type        EventType `json:"type"`
	BookingID   string    `json:"booking_id"`
	ModelID     string    `json:"model_id"`
	RequesterID string    `json:"requester_id"`
	ActorID     string    `json:"actor_id,omitempty"`
	Status      string    `json:"status"`
	StartsAt    string    `json:"starts_at"`
	EndsAt      string    `json:"ends_at"`
	QuotedPrice int64     `json:"quoted_price"`
	Reason      string    `json:"reason,omitempty"`
	Version     int64     `json:"version"`
	OccurredAt  string    `json:"occurred_at"`
}

// NewBookingEvent snapshots b as an event of type t.
func NewBookingEvent(t EventType, b model.Booking, actorID string, at time.Time) BookingEvent {
	return BookingEvent{
		Type:        t,
		BookingID:   b.ID,
		ModelID:     b.ModelID,
		RequesterID: b.RequesterID,
		ActorID:     actorID,
		Status:      string(b.Status),
		StartsAt:    b.Window.Start.Format(time.RFC3339),
		EndsAt:      b.Window.End.Format(time.RFC3339),
		QuotedPrice: b.QuotedPrice,
		Reason:      b.CancelReason,
		Version:     b.Version,
		OccurredAt:  at.UTC().Format(time.RFC3339),
	}
}
