package model

import (
	"math"
	"math/bits"
	"time"
)

// Model is a bookable entity in the catalog, stored in the `models` table.
// Only admins create or mutate rows; IsAvailable is an operator kill switch
// that blocks new submissions without touching existing bookings.
//
// Fields:
//
//	ID           – UUID primary key.
//	Name         – display name.
//	PricePerHour – hourly rate in minor currency units, at least the configured floor.
//	IsAvailable  – whether new bookings may be submitted.
//	OwnerID      – id of the admin that created the model.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type Model struct {
	ID           string    // models.id
	Name         string    // models.name
	PricePerHour int64     // models.price_per_hour
	IsAvailable  bool      // models.is_available
	OwnerID      string    // models.owner_id
	CreatedAt    time.Time // models.created_at
	UpdatedAt    time.Time // models.updated_at
}

// MaxPricePerHour caps the hourly rate a model may carry.
const MaxPricePerHour int64 = 10_000_000_000

// Quote returns the minimum acceptable price for booking m over w: the hourly
// rate prorated per minute and rounded up. ok is false when the product does
// not fit in an int64; callers must treat that window as unpriceable.
func (m Model) Quote(w TimeWindow) (price int64, ok bool) {
	minutes := int64(w.Duration() / time.Minute)
	if m.PricePerHour < 0 || minutes < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(m.PricePerHour), uint64(minutes))
	if hi != 0 || lo > math.MaxInt64-59 {
		return 0, false
	}
	return (int64(lo) + 59) / 60, true
}
