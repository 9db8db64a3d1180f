// Package booking owns the reservation state machine:
//
//	REQUESTED -> CONFIRMED -> COMPLETED
//	REQUESTED -> CANCELLED
//	CONFIRMED -> CANCELLED
//
// Submissions never touch the availability index; contention is resolved at
// confirmation, where the first caller to reserve the window wins and every
// overlapping competitor is cancelled with a conflict reason.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/apperror"
	"github.com/iliyamo/model-booking/internal/availability"
	"github.com/iliyamo/model-booking/internal/clock"
	"github.com/iliyamo/model-booking/internal/logger"
	"github.com/iliyamo/model-booking/internal/model"
	"github.com/iliyamo/model-booking/internal/queue"
	"github.com/iliyamo/model-booking/internal/repository"
)

// Store is the durable booking store. Put inserts when Version is zero and
// otherwise compare-and-sets on Version.
type Store interface {
	Get(ctx context.Context, id string) (model.Booking, error)
	Put(ctx context.Context, b *model.Booking) error
	QueryConfirmed(ctx context.Context, modelID string) ([]model.Booking, error)
	ListElapsed(ctx context.Context, now time.Time, limit int) ([]model.Booking, error)
	List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	ConfirmedModelIDs(ctx context.Context) ([]string, error)
	CountByStatus(ctx context.Context, asOf time.Time) (map[model.BookingStatus]int, error)
}

// Catalog looks up bookable models.
type Catalog interface {
	GetModel(ctx context.Context, id string) (model.Model, error)
}

// Events receives lifecycle events after each committed transition.
type Events interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// Policy holds the submission guards.
type Policy struct {
	MinLeadTime  time.Duration
	MinDuration  time.Duration
	MaxNotesLen  int
	SweepBatch   int
	PublishLimit time.Duration
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		MinLeadTime:  2 * time.Hour,
		MinDuration:  30 * time.Minute,
		MaxNotesLen:  500,
		SweepBatch:   100,
		PublishLimit: 3 * time.Second,
	}
}

// Outcome of a confirmation attempt that did not fail.
type Outcome string

const (
	OutcomeConfirmed Outcome = "CONFIRMED"
	OutcomeConflict  Outcome = "CONFLICT"
)

// ConfirmResult reports a confirmation. Losing the race for a window is an
// expected result, so it is reported here instead of as an error.
type ConfirmResult struct {
	Outcome  Outcome
	Booking  model.Booking
	Conflict *availability.ConflictError
}

// SubmitRequest carries a new booking. RequesterID defaults to the actor.
type SubmitRequest struct {
	ModelID     string
	RequesterID string
	Start       time.Time
	End         time.Time
	QuotedPrice int64
	Notes       string
}

type Manager struct {
	store   Store
	catalog Catalog
	index   availability.Index
	gate    access.Gate
	clock   clock.Clock
	events  Events
	log     *logger.Logger
	policy  Policy

	bookingLocks *keyedLocks // one transition per booking at a time
	modelLocks   *keyedLocks // shared by transitions, exclusive for rebuilds

	dirtyMu sync.Mutex
	dirty   map[string]struct{} // models whose index may disagree with the store
}

type Deps struct {
	Store   Store
	Catalog Catalog
	Index   availability.Index
	Gate    access.Gate
	Clock   clock.Clock
	Events  Events
	Log     *logger.Logger
	Policy  Policy
}

func NewManager(d Deps) *Manager {
	if d.Clock == nil {
		d.Clock = clock.System()
	}
	if d.Events == nil {
		d.Events = queue.NopPublisher{}
	}
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	if d.Policy.MaxNotesLen <= 0 {
		d.Policy.MaxNotesLen = 500
	}
	if d.Policy.SweepBatch <= 0 {
		d.Policy.SweepBatch = 100
	}
	if d.Policy.PublishLimit <= 0 {
		d.Policy.PublishLimit = 3 * time.Second
	}
	return &Manager{
		store:        d.Store,
		catalog:      d.Catalog,
		index:        d.Index,
		gate:         d.Gate,
		clock:        d.Clock,
		events:       d.Events,
		log:          d.Log.With("component", "booking"),
		policy:       d.Policy,
		bookingLocks: newKeyedLocks(),
		modelLocks:   newKeyedLocks(),
		dirty:        make(map[string]struct{}),
	}
}

// Submit validates req and stores it as REQUESTED.
func (m *Manager) Submit(ctx context.Context, actor access.Subject, req SubmitRequest) (model.Booking, error) {
	if req.RequesterID == "" {
		req.RequesterID = actor.ID
	}
	if err := m.gate.Check(actor.Role, access.SubmitBooking, req.RequesterID, actor.ID); err != nil {
		return model.Booking{}, err
	}

	now := m.clock.Now()
	w, err := m.validateSubmit(req, now)
	if err != nil {
		return model.Booking{}, err
	}

	entity, err := m.catalog.GetModel(ctx, req.ModelID)
	if err != nil {
		return model.Booking{}, storeError(err, "model", req.ModelID)
	}
	if !entity.IsAvailable {
		return model.Booking{}, apperror.EntityUnavailable(entity.ID)
	}
	floor, ok := entity.Quote(w)
	if !ok {
		return model.Booking{}, apperror.Validation("window cannot be priced at the model's rate",
			map[string]any{"price_per_hour": entity.PricePerHour})
	}
	if req.QuotedPrice < floor {
		return model.Booking{}, apperror.Validation("quoted price is below the model's rate for this window",
			map[string]any{"quoted_price": req.QuotedPrice, "minimum_price": floor})
	}

	b := model.Booking{
		ID:          uuid.NewString(),
		ModelID:     entity.ID,
		RequesterID: req.RequesterID,
		Window:      w,
		QuotedPrice: req.QuotedPrice,
		Notes:       req.Notes,
		Status:      model.StatusRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.Put(ctx, &b); err != nil {
		return model.Booking{}, storeError(err, "booking", b.ID)
	}
	m.log.Info("booking submitted", "booking_id", b.ID, "model_id", b.ModelID, "requester_id", b.RequesterID)
	m.publish(ctx, queue.EventSubmitted, b, actor.ID)
	return b, nil
}

func (m *Manager) validateSubmit(req SubmitRequest, now time.Time) (model.TimeWindow, error) {
	if req.ModelID == "" {
		return model.TimeWindow{}, apperror.Validation("model_id is required", nil)
	}
	w, err := model.NewTimeWindow(req.Start, req.End)
	if err != nil {
		return model.TimeWindow{}, apperror.Validation("window start must be before end", nil)
	}
	if w.Duration() < m.policy.MinDuration {
		return model.TimeWindow{}, apperror.Validation("window is shorter than the minimum duration",
			map[string]any{"minimum_minutes": int(m.policy.MinDuration / time.Minute)})
	}
	if earliest := now.Add(m.policy.MinLeadTime); w.Start.Before(earliest) {
		return model.TimeWindow{}, apperror.Validation("window starts too soon",
			map[string]any{"earliest_start": earliest.Format(time.RFC3339)})
	}
	if req.QuotedPrice <= 0 {
		return model.TimeWindow{}, apperror.Validation("quoted_price must be positive", nil)
	}
	if utf8.RuneCountInString(req.Notes) > m.policy.MaxNotesLen {
		return model.TimeWindow{}, apperror.Validation("notes are too long",
			map[string]any{"max_length": m.policy.MaxNotesLen})
	}
	return w, nil
}

// Confirm reserves the booking's window. Once the reservation is attempted
// the rest of the operation ignores cancellation of ctx, so a reservation is
// always followed by its commit or its release.
func (m *Manager) Confirm(ctx context.Context, actor access.Subject, id string) (ConfirmResult, error) {
	if err := m.gate.Check(actor.Role, access.ConfirmBooking, "", actor.ID); err != nil {
		return ConfirmResult{}, err
	}
	unlock := m.bookingLocks.Lock(id)
	defer unlock()

	b, err := m.store.Get(ctx, id)
	if err != nil {
		return ConfirmResult{}, storeError(err, "booking", id)
	}
	now := m.clock.Now()
	if b.Status != model.StatusRequested {
		return ConfirmResult{}, apperror.InvalidTransition(string(b.EffectiveStatus(now)), "confirm")
	}
	if b.Window.Elapsed(now) {
		return ConfirmResult{}, apperror.InvalidTransition(string(b.Status), "confirm").
			WithDetails(map[string]any{"reason": "window has already ended"})
	}

	ctx = context.WithoutCancel(ctx)
	unlockModel, err := m.reserveWindow(ctx, b)
	defer unlockModel()
	var (
		conflict *availability.ConflictError
		appErr   *apperror.AppError
	)
	switch {
	case errors.As(err, &appErr):
		return ConfirmResult{}, err
	case errors.As(err, &conflict) && conflict.HolderID == b.ID:
		// Left behind by an earlier attempt whose commit outcome was unknown.
	case errors.As(err, &conflict):
		return m.loseConfirmation(ctx, actor, b, conflict, now)
	case err != nil:
		return ConfirmResult{}, apperror.StoreUnavailable(fmt.Errorf("reserve window: %w", err))
	}

	b.Status = model.StatusConfirmed
	b.UpdatedAt = now
	if err := m.store.Put(ctx, &b); err != nil {
		return ConfirmResult{}, m.afterFailedConfirmCommit(ctx, b, err)
	}
	m.log.Info("booking confirmed", "booking_id", b.ID, "model_id", b.ModelID, "actor_id", actor.ID)
	m.publish(ctx, queue.EventConfirmed, b, actor.ID)
	return ConfirmResult{Outcome: OutcomeConfirmed, Booking: b}, nil
}

// reserveWindow reserves b's window under the shared model lock and returns
// that lock's unlock. A model left dirty by an ambiguous commit is rebuilt
// from the store first, so an entry whose write never landed cannot beat b.
// A conflict seen on a model that went dirty during the attempt is retried
// once after another rebuild.
func (m *Manager) reserveWindow(ctx context.Context, b model.Booking) (func(), error) {
	for attempt := 0; ; attempt++ {
		if m.Dirty(b.ModelID) {
			if err := m.rebuildModel(ctx, b.ModelID); err != nil {
				return func() {}, err
			}
		}
		unlock := m.modelLocks.RLock(b.ModelID)
		_, err := m.index.Reserve(ctx, b.ModelID, b.Window, b.ID)
		var conflict *availability.ConflictError
		if errors.As(err, &conflict) && conflict.HolderID != b.ID && attempt == 0 && m.Dirty(b.ModelID) {
			unlock()
			continue
		}
		return unlock, err
	}
}

func (m *Manager) loseConfirmation(ctx context.Context, actor access.Subject, b model.Booking, conflict *availability.ConflictError, now time.Time) (ConfirmResult, error) {
	b.Status = model.StatusCancelled
	b.CancelReason = model.ReasonConflict
	b.UpdatedAt = now
	if err := m.store.Put(ctx, &b); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return ConfirmResult{}, m.staleTransition(ctx, b.ID, "confirm")
		}
		return ConfirmResult{}, storeError(err, "booking", b.ID)
	}
	m.log.Info("booking lost confirmation", "booking_id", b.ID, "model_id", b.ModelID, "holder_id", conflict.HolderID)
	m.publish(ctx, queue.EventConflicted, b, actor.ID)
	return ConfirmResult{Outcome: OutcomeConflict, Booking: b, Conflict: conflict}, nil
}

// afterFailedConfirmCommit decides what to do with a reservation whose
// commit failed. A definite failure releases it. An ambiguous one keeps it
// and marks the model for reconciliation, because the booking may in fact
// be confirmed in the store.
func (m *Manager) afterFailedConfirmCommit(ctx context.Context, b model.Booking, err error) error {
	switch {
	case errors.Is(err, apperror.ErrStoreUnavailable):
		m.markDirty(b.ModelID)
		m.log.Error("confirm commit outcome unknown, model queued for reconcile",
			"booking_id", b.ID, "model_id", b.ModelID, "error", err)
		return err
	case errors.Is(err, repository.ErrStaleVersion):
		cur, gerr := m.store.Get(ctx, b.ID)
		if gerr != nil || cur.Status != model.StatusConfirmed {
			m.release(ctx, b)
		}
		if gerr != nil {
			return storeError(gerr, "booking", b.ID)
		}
		return apperror.InvalidTransition(string(cur.EffectiveStatus(m.clock.Now())), "confirm")
	default:
		m.release(ctx, b)
		return storeError(err, "booking", b.ID)
	}
}

// Cancel moves a REQUESTED or CONFIRMED booking to CANCELLED. Requesters may
// cancel until the window starts; admins until it ends. The store commit
// happens before the index release so a concurrent confirmation can never
// see the window free while the booking is still confirmed.
func (m *Manager) Cancel(ctx context.Context, actor access.Subject, id string) (model.Booking, error) {
	unlock := m.bookingLocks.Lock(id)
	defer unlock()

	b, err := m.store.Get(ctx, id)
	if err != nil {
		return model.Booking{}, storeError(err, "booking", id)
	}
	if err := m.gate.Check(actor.Role, access.CancelBooking, b.RequesterID, actor.ID); err != nil {
		return model.Booking{}, err
	}

	now := m.clock.Now()
	if status := b.EffectiveStatus(now); status.Terminal() {
		return model.Booking{}, apperror.InvalidTransition(string(status), "cancel")
	}
	if b.Window.Started(now) && actor.Role != access.RoleAdmin {
		return model.Booking{}, apperror.InvalidTransition(string(b.Status), "cancel").
			WithDetails(map[string]any{"reason": "window has already started"})
	}

	wasConfirmed := b.Status == model.StatusConfirmed
	if wasConfirmed {
		unlockModel := m.modelLocks.RLock(b.ModelID)
		defer unlockModel()
	}

	b.Status = model.StatusCancelled
	b.CancelReason = model.ReasonAdmin
	if actor.ID == b.RequesterID {
		b.CancelReason = model.ReasonRequester
	}
	b.UpdatedAt = now
	if err := m.store.Put(ctx, &b); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleVersion):
			return model.Booking{}, m.staleTransition(ctx, id, "cancel")
		case errors.Is(err, apperror.ErrStoreUnavailable) && wasConfirmed:
			m.markDirty(b.ModelID)
		}
		return model.Booking{}, storeError(err, "booking", id)
	}
	if wasConfirmed {
		m.release(ctx, b)
	}
	m.log.Info("booking cancelled", "booking_id", b.ID, "actor_id", actor.ID, "was_confirmed", wasConfirmed)
	m.publish(ctx, queue.EventCancelled, b, actor.ID)
	return b, nil
}

// Complete lets an admin close out an elapsed CONFIRMED booking without
// waiting for the sweep.
func (m *Manager) Complete(ctx context.Context, actor access.Subject, id string) (model.Booking, error) {
	if err := m.gate.Check(actor.Role, access.CompleteBooking, "", actor.ID); err != nil {
		return model.Booking{}, err
	}
	b, done, err := m.completeOne(ctx, id, actor.ID)
	if err != nil {
		return model.Booking{}, err
	}
	if !done {
		appErr := apperror.InvalidTransition(string(b.Status), "complete")
		if b.Status == model.StatusConfirmed {
			appErr = appErr.WithDetails(map[string]any{"reason": "window has not ended"})
		}
		return model.Booking{}, appErr
	}
	return b, nil
}

// completeOne transitions id to COMPLETED if it is CONFIRMED and elapsed.
// done is false when the booking did not qualify.
func (m *Manager) completeOne(ctx context.Context, id, actorID string) (model.Booking, bool, error) {
	unlock := m.bookingLocks.Lock(id)
	defer unlock()

	b, err := m.store.Get(ctx, id)
	if err != nil {
		return model.Booking{}, false, storeError(err, "booking", id)
	}
	now := m.clock.Now()
	if b.Status.Terminal() {
		return model.Booking{}, false, apperror.InvalidTransition(string(b.Status), "complete")
	}
	if b.Status != model.StatusConfirmed || !b.Window.Elapsed(now) {
		return b, false, nil
	}

	b.Status = model.StatusCompleted
	b.UpdatedAt = now
	if err := m.store.Put(ctx, &b); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return model.Booking{}, false, m.staleTransition(ctx, id, "complete")
		}
		return model.Booking{}, false, storeError(err, "booking", id)
	}
	// Elapsed windows can no longer collide with anything bookable; drop
	// them to keep the index small.
	m.release(ctx, b)
	m.log.Info("booking completed", "booking_id", b.ID)
	m.publish(ctx, queue.EventCompleted, b, actorID)
	return b, true, nil
}

// SweepElapsed completes every CONFIRMED booking whose window has ended and
// returns how many it moved. Running it again, or concurrently, is harmless:
// a booking already completed or cancelled is skipped.
func (m *Manager) SweepElapsed(ctx context.Context) (int, error) {
	now := m.clock.Now()
	completed := 0
	for {
		batch, err := m.store.ListElapsed(ctx, now, m.policy.SweepBatch)
		if err != nil {
			return completed, storeError(err, "booking", "")
		}
		progressed := 0
		for _, b := range batch {
			_, done, err := m.completeOne(ctx, b.ID, "")
			switch {
			case err == nil && done:
				completed++
				progressed++
			case errors.Is(err, apperror.ErrInvalidTransition), errors.Is(err, apperror.ErrNotFound):
				// Somebody else moved it first.
			case err != nil:
				return completed, err
			}
		}
		if len(batch) < m.policy.SweepBatch || progressed == 0 {
			return completed, nil
		}
	}
}

// Get returns the booking as the actor is allowed to see it. An elapsed
// CONFIRMED booking is reported as COMPLETED even before the sweep has
// persisted that.
func (m *Manager) Get(ctx context.Context, actor access.Subject, id string) (model.Booking, error) {
	b, err := m.store.Get(ctx, id)
	if err != nil {
		return model.Booking{}, storeError(err, "booking", id)
	}
	if err := m.gate.Check(actor.Role, access.ViewBooking, b.RequesterID, actor.ID); err != nil {
		return model.Booking{}, err
	}
	b.Status = b.EffectiveStatus(m.clock.Now())
	return b, nil
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// List returns bookings matching f. Users only ever see their own.
func (m *Manager) List(ctx context.Context, actor access.Subject, f model.BookingFilter) ([]model.Booking, error) {
	if m.gate.Scoped(actor.Role, access.ListBookings) {
		f.RequesterID = actor.ID
	}
	if err := m.gate.Check(actor.Role, access.ListBookings, f.RequesterID, actor.ID); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperror.Validation("unknown status", map[string]any{"status": string(f.Status)})
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}

	now := m.clock.Now()
	f.AsOf = now
	items, err := m.store.List(ctx, f)
	if err != nil {
		return nil, storeError(err, "booking", "")
	}
	for i := range items {
		items[i].Status = items[i].EffectiveStatus(now)
	}
	return items, nil
}

// Stats counts every booking by effective status. Admins only.
func (m *Manager) Stats(ctx context.Context, actor access.Subject) (model.BookingStats, error) {
	if err := m.gate.Check(actor.Role, access.ViewStats, "", actor.ID); err != nil {
		return model.BookingStats{}, err
	}
	now := m.clock.Now()
	counts, err := m.store.CountByStatus(ctx, now)
	if err != nil {
		return model.BookingStats{}, storeError(err, "booking", "")
	}
	stats := model.BookingStats{AsOf: now, ByStatus: make(map[model.BookingStatus]int, 4)}
	for _, st := range []model.BookingStatus{model.StatusRequested, model.StatusConfirmed, model.StatusCancelled, model.StatusCompleted} {
		stats.ByStatus[st] = counts[st]
		stats.Total += counts[st]
	}
	return stats, nil
}

// Rebuild reloads the index from the store for every model with confirmed
// bookings plus any model already queued for reconciliation. Run it at
// startup, before serving traffic.
func (m *Manager) Rebuild(ctx context.Context) error {
	ids, err := m.store.ConfirmedModelIDs(ctx)
	if err != nil {
		return storeError(err, "booking", "")
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	m.dirtyMu.Lock()
	for id := range m.dirty {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	m.dirtyMu.Unlock()

	for _, id := range ids {
		if err := m.rebuildModel(ctx, id); err != nil {
			return err
		}
	}
	m.log.Info("availability index rebuilt", "models", len(ids))
	return nil
}

// Reconcile rebuilds the index of every model marked dirty by an ambiguous
// commit. It returns the number of models rebuilt.
func (m *Manager) Reconcile(ctx context.Context) (int, error) {
	m.dirtyMu.Lock()
	ids := make([]string, 0, len(m.dirty))
	for id := range m.dirty {
		ids = append(ids, id)
	}
	m.dirtyMu.Unlock()

	for i, id := range ids {
		if err := m.rebuildModel(ctx, id); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

// rebuildModel holds the model lock exclusively, so no confirmation can sit
// between its reserve and its commit while the shard is replaced.
func (m *Manager) rebuildModel(ctx context.Context, modelID string) error {
	unlock := m.modelLocks.Lock(modelID)
	defer unlock()

	confirmed, err := m.store.QueryConfirmed(ctx, modelID)
	if err != nil {
		return storeError(err, "booking", "")
	}
	now := m.clock.Now()
	entries := make([]availability.Entry, 0, len(confirmed))
	for _, b := range confirmed {
		if !b.Window.Elapsed(now) {
			entries = append(entries, availability.Entry{BookingID: b.ID, Window: b.Window})
		}
	}
	if err := m.index.Replace(ctx, modelID, entries); err != nil {
		m.log.Error("index rebuild failed", "model_id", modelID, "error", err)
		return apperror.Internal("availability index rebuild failed", err)
	}

	m.dirtyMu.Lock()
	delete(m.dirty, modelID)
	m.dirtyMu.Unlock()
	return nil
}

// Dirty reports whether modelID is queued for reconciliation.
func (m *Manager) Dirty(modelID string) bool {
	m.dirtyMu.Lock()
	defer m.dirtyMu.Unlock()
	_, ok := m.dirty[modelID]
	return ok
}

func (m *Manager) markDirty(modelID string) {
	m.dirtyMu.Lock()
	m.dirty[modelID] = struct{}{}
	m.dirtyMu.Unlock()
}

func (m *Manager) release(ctx context.Context, b model.Booking) {
	if err := m.index.Release(ctx, b.ModelID, b.Window); err != nil {
		m.markDirty(b.ModelID)
		m.log.Error("index release failed, model queued for reconcile",
			"booking_id", b.ID, "model_id", b.ModelID, "error", err)
	}
}

// staleTransition reports the state that beat us to a booking.
func (m *Manager) staleTransition(ctx context.Context, id, event string) error {
	cur, err := m.store.Get(ctx, id)
	if err != nil {
		return storeError(err, "booking", id)
	}
	return apperror.InvalidTransition(string(cur.EffectiveStatus(m.clock.Now())), event)
}

func (m *Manager) publish(ctx context.Context, t queue.EventType, b model.Booking, actorID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.policy.PublishLimit)
	defer cancel()
	if err := m.events.Publish(ctx, queue.NewBookingEvent(t, b, actorID, m.clock.Now())); err != nil {
		m.log.Warn("event publish failed", "type", string(t), "booking_id", b.ID, "error", err)
	}
}

// storeError maps repository errors onto the service taxonomy.
func storeError(err error, resource, id string) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(resource, id)
	case repository.IsTransient(err):
		return apperror.StoreUnavailable(err)
	default:
		return apperror.Internal("booking store failure", err)
	}
}
