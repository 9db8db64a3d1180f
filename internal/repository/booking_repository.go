package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/model-booking/internal/model"
)

// BookingStore is the durable store contract the booking manager depends on.
// Put inserts when b.Version is zero and otherwise performs a compare-and-set
// update against b.Version; on success b.Version holds the stored version.
type BookingStore interface {
	Get(ctx context.Context, id string) (model.Booking, error)
	Put(ctx context.Context, b *model.Booking) error
	QueryConfirmed(ctx context.Context, modelID string) ([]model.Booking, error)
	ListElapsed(ctx context.Context, now time.Time, limit int) ([]model.Booking, error)
	List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	ConfirmedModelIDs(ctx context.Context) ([]string, error)
	CountByStatus(ctx context.Context, asOf time.Time) (map[model.BookingStatus]int, error)
}

// BookingRepo persists bookings in the `bookings` table.
type BookingRepo struct{ db *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, model_id, requester_id, start_at, end_at, quoted_price, notes,
	status, cancel_reason, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var (
		b      model.Booking
		status string
	)
	err := s.Scan(&b.ID, &b.ModelID, &b.RequesterID, &b.Window.Start, &b.Window.End,
		&b.QuotedPrice, &b.Notes, &status, &b.CancelReason, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	return b, nil
}

func (r *BookingRepo) Get(ctx context.Context, id string) (model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	return b, classify(err)
}

func (r *BookingRepo) Put(ctx context.Context, b *model.Booking) error {
	if b.Version == 0 {
		return r.insert(ctx, b)
	}
	return r.update(ctx, b)
}

func (r *BookingRepo) insert(ctx context.Context, b *model.Booking) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		b.ID, b.ModelID, b.RequesterID, b.Window.Start, b.Window.End, b.QuotedPrice, b.Notes,
		string(b.Status), b.CancelReason, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	b.Version = 1
	return nil
}

// update never writes the window columns; a booking's window is fixed at
// insert time.
func (r *BookingRepo) update(ctx context.Context, b *model.Booking) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, cancel_reason = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(b.Status), b.CancelReason, b.UpdatedAt, b.ID, b.Version)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, b.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return classify(err)
		}
		return ErrStaleVersion
	}
	b.Version++
	return nil
}

func (r *BookingRepo) query(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, b)
	}
	return out, classify(rows.Err())
}

// QueryConfirmed returns the model's confirmed bookings ordered by start.
func (r *BookingRepo) QueryConfirmed(ctx context.Context, modelID string) ([]model.Booking, error) {
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE model_id = ? AND status = ? ORDER BY start_at`,
		modelID, string(model.StatusConfirmed))
}

// ListElapsed returns confirmed bookings whose window ended at or before now.
func (r *BookingRepo) ListElapsed(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
	return r.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = ? AND end_at <= ? ORDER BY end_at LIMIT ?`,
		string(model.StatusConfirmed), now, limit)
}

func (r *BookingRepo) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []any
	)
	if f.RequesterID != "" {
		where = append(where, "requester_id = ?")
		args = append(args, f.RequesterID)
	}
	if f.ModelID != "" {
		where = append(where, "model_id = ?")
		args = append(args, f.ModelID)
	}
	switch {
	case f.Status == "":
	case f.AsOf.IsZero():
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	case f.Status == model.StatusCompleted:
		where = append(where, "(status = ? OR (status = ? AND end_at <= ?))")
		args = append(args, string(model.StatusCompleted), string(model.StatusConfirmed), f.AsOf)
	case f.Status == model.StatusConfirmed:
		where = append(where, "status = ? AND end_at > ?")
		args = append(args, string(model.StatusConfirmed), f.AsOf)
	default:
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	q := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)
	return r.query(ctx, q, args...)
}

func (r *BookingRepo) ConfirmedModelIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT model_id FROM bookings WHERE status = ?`, string(model.StatusConfirmed))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err)
		}
		ids = append(ids, id)
	}
	return ids, classify(rows.Err())
}

// CountByStatus groups every booking by its effective status at asOf.
func (r *BookingRepo) CountByStatus(ctx context.Context, asOf time.Time) (map[model.BookingStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CASE WHEN status = ? AND end_at <= ? THEN ? ELSE status END AS effective, COUNT(*)
		FROM bookings GROUP BY effective`,
		string(model.StatusConfirmed), asOf, string(model.StatusCompleted))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make(map[model.BookingStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, classify(err)
		}
		out[model.BookingStatus(status)] = n
	}
	return out, classify(rows.Err())
}
