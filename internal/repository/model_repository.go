package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/model-booking/internal/model"
)

// ModelStore is the catalog persistence contract.
type ModelStore interface {
	Create(ctx context.Context, m *model.Model) error
	GetModel(ctx context.Context, id string) (model.Model, error)
	List(ctx context.Context, onlyAvailable bool, offset, limit int) ([]model.Model, error)
	Update(ctx context.Context, m *model.Model) error
	// Delete removes the model unless it has confirmed bookings ending after
	// now, in which case ErrConflict is returned.
	Delete(ctx context.Context, id string, now time.Time) error
}

// ModelRepo persists catalog entries in the `models` table.
type ModelRepo struct{ db *sql.DB }

func NewModelRepo(db *sql.DB) *ModelRepo { return &ModelRepo{db: db} }

const modelColumns = `id, name, price_per_hour, is_available, owner_id, created_at, updated_at`

func scanModel(s rowScanner) (model.Model, error) {
	var m model.Model
	err := s.Scan(&m.ID, &m.Name, &m.PricePerHour, &m.IsAvailable, &m.OwnerID, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *ModelRepo) Create(ctx context.Context, m *model.Model) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO models (`+modelColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.PricePerHour, m.IsAvailable, m.OwnerID, m.CreatedAt, m.UpdatedAt)
	return classify(err)
}

func (r *ModelRepo) GetModel(ctx context.Context, id string) (model.Model, error) {
	m, err := scanModel(r.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM models WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Model{}, ErrNotFound
	}
	return m, classify(err)
}

func (r *ModelRepo) List(ctx context.Context, onlyAvailable bool, offset, limit int) ([]model.Model, error) {
	q := `SELECT ` + modelColumns + ` FROM models`
	if onlyAvailable {
		q += ` WHERE is_available = TRUE`
	}
	q += ` ORDER BY name, id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []model.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, m)
	}
	return out, classify(rows.Err())
}

func (r *ModelRepo) Update(ctx context.Context, m *model.Model) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE models SET name = ?, price_per_hour = ?, is_available = ?, updated_at = ? WHERE id = ?`,
		m.Name, m.PricePerHour, m.IsAvailable, m.UpdatedAt, m.ID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports zero affected rows when nothing changed, so check
		// existence before calling it missing.
		if _, err := r.GetModel(ctx, m.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete runs in a transaction that locks the model's confirmed bookings so
// a concurrent confirmation cannot slip in between the check and the delete.
func (r *ModelRepo) Delete(ctx context.Context, id string, now time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = classify(tx.Commit())
		}
	}()

	var one int
	if err = tx.QueryRowContext(ctx, `SELECT 1 FROM models WHERE id = ? FOR UPDATE`, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return classify(err)
	}
	var upcoming int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE model_id = ? AND status = ? AND end_at > ? FOR UPDATE`,
		id, string(model.StatusConfirmed), now).Scan(&upcoming); err != nil {
		return classify(err)
	}
	if upcoming > 0 {
		return ErrConflict
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id); err != nil {
		return classify(err)
	}
	return nil
}
