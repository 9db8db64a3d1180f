// Package catalog manages the bookable models. Reads are public; writes are
// admin only and keep every hourly rate at or above the configured floor.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/apperror"
	"github.com/iliyamo/model-booking/internal/clock"
	"github.com/iliyamo/model-booking/internal/logger"
	"github.com/iliyamo/model-booking/internal/model"
	"github.com/iliyamo/model-booking/internal/repository"
)

type Service struct {
	store      repository.ModelStore
	gate       access.Gate
	clock      clock.Clock
	log        *logger.Logger
	priceFloor int64
	onChange   func(ctx context.Context)
}

type Option func(*Service)

// WithChangeHook registers fn to run after every successful write, e.g. to
// purge cached catalog responses.
func WithChangeHook(fn func(ctx context.Context)) Option {
	return func(s *Service) { s.onChange = fn }
}

func NewService(store repository.ModelStore, gate access.Gate, clk clock.Clock, log *logger.Logger, priceFloor int64, opts ...Option) *Service {
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = logger.Discard()
	}
	s := &Service{store: store, gate: gate, clock: clk, log: log.With("component", "catalog"), priceFloor: priceFloor}
	for _, o := range opts {
		o(s)
	}
	return s
}

type CreateInput struct {
	Name         string `json:"name" validate:"required,max=120"`
	PricePerHour int64  `json:"price_per_hour" validate:"gt=0,lte=10000000000"`
	IsAvailable  *bool  `json:"is_available,omitempty"`
}

// UpdateInput is a partial update; nil fields are left as they are.
type UpdateInput struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	PricePerHour *int64  `json:"price_per_hour,omitempty" validate:"omitempty,gt=0,lte=10000000000"`
	IsAvailable  *bool   `json:"is_available,omitempty"`
}

// GetModel satisfies booking.Catalog without an access check.
func (s *Service) GetModel(ctx context.Context, id string) (model.Model, error) {
	return s.store.GetModel(ctx, id)
}

func (s *Service) Get(ctx context.Context, actor access.Subject, id string) (model.Model, error) {
	if err := s.gate.Check(actor.Role, access.ViewCatalog, "", actor.ID); err != nil {
		return model.Model{}, err
	}
	m, err := s.store.GetModel(ctx, id)
	if err != nil {
		return model.Model{}, mapErr(err, id)
	}
	// Only catalog managers see models that are switched off.
	if !m.IsAvailable && !s.gate.Allow(actor.Role, access.ManageCatalog, "", actor.ID) {
		return model.Model{}, apperror.NotFound("model", id)
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, actor access.Subject, offset, limit int) ([]model.Model, error) {
	if err := s.gate.Check(actor.Role, access.ViewCatalog, "", actor.ID); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	onlyAvailable := !s.gate.Allow(actor.Role, access.ManageCatalog, "", actor.ID)
	items, err := s.store.List(ctx, onlyAvailable, offset, limit)
	if err != nil {
		return nil, mapErr(err, "")
	}
	return items, nil
}

func (s *Service) Create(ctx context.Context, actor access.Subject, in CreateInput) (model.Model, error) {
	if err := s.gate.Check(actor.Role, access.ManageCatalog, "", actor.ID); err != nil {
		return model.Model{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Model{}, apperror.Validation("name is required", nil)
	}
	if err := s.checkPrice(in.PricePerHour); err != nil {
		return model.Model{}, err
	}
	now := s.clock.Now()
	m := model.Model{
		ID:           uuid.NewString(),
		Name:         name,
		PricePerHour: in.PricePerHour,
		IsAvailable:  in.IsAvailable == nil || *in.IsAvailable,
		OwnerID:      actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, &m); err != nil {
		return model.Model{}, mapErr(err, m.ID)
	}
	s.log.Info("model created", "model_id", m.ID, "actor_id", actor.ID)
	s.changed(ctx)
	return m, nil
}

func (s *Service) Update(ctx context.Context, actor access.Subject, id string, in UpdateInput) (model.Model, error) {
	if err := s.gate.Check(actor.Role, access.ManageCatalog, "", actor.ID); err != nil {
		return model.Model{}, err
	}
	m, err := s.store.GetModel(ctx, id)
	if err != nil {
		return model.Model{}, mapErr(err, id)
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return model.Model{}, apperror.Validation("name must not be blank", nil)
		}
		m.Name = name
	}
	if in.PricePerHour != nil {
		if err := s.checkPrice(*in.PricePerHour); err != nil {
			return model.Model{}, err
		}
		m.PricePerHour = *in.PricePerHour
	}
	if in.IsAvailable != nil {
		m.IsAvailable = *in.IsAvailable
	}
	m.UpdatedAt = s.clock.Now()
	if err := s.store.Update(ctx, &m); err != nil {
		return model.Model{}, mapErr(err, id)
	}
	s.log.Info("model updated", "model_id", id, "actor_id", actor.ID)
	s.changed(ctx)
	return m, nil
}

// Delete removes a model that has no confirmed bookings still to come.
func (s *Service) Delete(ctx context.Context, actor access.Subject, id string) error {
	if err := s.gate.Check(actor.Role, access.ManageCatalog, "", actor.ID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id, s.clock.Now()); err != nil {
		return mapErr(err, id)
	}
	s.log.Info("model deleted", "model_id", id, "actor_id", actor.ID)
	s.changed(ctx)
	return nil
}

func (s *Service) checkPrice(p int64) error {
	if p < s.priceFloor {
		return apperror.Validation("price_per_hour is below the floor", map[string]any{"price_floor": s.priceFloor})
	}
	if p > model.MaxPricePerHour {
		return apperror.Validation("price_per_hour is above the maximum", map[string]any{"max_price": model.MaxPricePerHour})
	}
	return nil
}

func (s *Service) changed(ctx context.Context) {
	if s.onChange != nil {
		s.onChange(context.WithoutCancel(ctx))
	}
}

func mapErr(err error, id string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("model", id)
	case errors.Is(err, repository.ErrConflict):
		return apperror.Conflict("model has upcoming confirmed bookings")
	case errors.Is(err, repository.ErrDuplicate):
		return apperror.Conflict("model already exists")
	case repository.IsTransient(err):
		return apperror.StoreUnavailable(err)
	default:
		return apperror.Internal("catalog store failure", err)
	}
}
