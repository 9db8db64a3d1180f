package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/model-booking/internal/apperror"
	"github.com/iliyamo/model-booking/internal/logger"
	"github.com/iliyamo/model-booking/internal/model"
)

// RetryPolicy bounds how hard RetryingStore tries before giving up.
type RetryPolicy struct {
	MaxAttempts int
	Timeout     time.Duration // per attempt
	Backoff     time.Duration // first delay, doubled per attempt
	MaxBackoff  time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = 50 * time.Millisecond
	}
	if p.MaxBackoff < p.Backoff {
		p.MaxBackoff = p.Backoff
	}
	return p
}

// RetryingStore wraps a BookingStore and retries transient failures with
// exponential backoff. A mutation that fails ambiguously is never blindly
// replayed: the stored row is read back first to learn whether the write
// landed. Once the budget is spent the caller gets STORE_UNAVAILABLE; every
// other error passes through untouched.
type RetryingStore struct {
	inner  BookingStore
	policy RetryPolicy
	log    *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetryingStore(inner BookingStore, policy RetryPolicy, log *logger.Logger) *RetryingStore {
	return &RetryingStore{inner: inner, policy: policy.normalized(), log: log, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attempt runs fn with a per-attempt timeout, mapping a timeout of the
// attempt (not of the caller) to ErrTransient.
func (s *RetryingStore) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	actx := ctx
	if s.policy.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, s.policy.Timeout)
		defer cancel()
	}
	err := fn(actx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && !IsTransient(err) {
		err = fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// do retries fn while it fails transiently.
func (s *RetryingStore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := s.policy.Backoff
	var last error
	for i := 1; i <= s.policy.MaxAttempts; i++ {
		last = s.attempt(ctx, fn)
		if last == nil || !IsTransient(last) {
			return last
		}
		if i == s.policy.MaxAttempts {
			break
		}
		s.log.Warn("store: transient failure, retrying", "op", op, "attempt", i, "backoff", delay, "error", last)
		if err := s.sleep(ctx, delay); err != nil {
			return apperror.StoreUnavailable(err)
		}
		if delay < s.policy.MaxBackoff {
			delay = min(delay*2, s.policy.MaxBackoff)
		}
	}
	s.log.Error("store: giving up", "op", op, "attempts", s.policy.MaxAttempts, "error", last)
	return apperror.StoreUnavailable(last)
}

func (s *RetryingStore) Get(ctx context.Context, id string) (model.Booking, error) {
	var b model.Booking
	err := s.do(ctx, "get", func(ctx context.Context) error {
		var err error
		b, err = s.inner.Get(ctx, id)
		return err
	})
	return b, err
}

// Put writes b at most once. After each ambiguous failure the stored row is
// compared with what we tried to write: if it already reflects our write we
// report success, if it is unchanged we retry, and if somebody else moved it
// on we report ErrStaleVersion.
func (s *RetryingStore) Put(ctx context.Context, b *model.Booking) error {
	expected := b.Version
	delay := s.policy.Backoff
	var last error
	for i := 1; i <= s.policy.MaxAttempts; i++ {
		candidate := *b
		last = s.attempt(ctx, func(ctx context.Context) error { return s.inner.Put(ctx, &candidate) })
		if last == nil {
			b.Version = candidate.Version
			return nil
		}
		// After an ambiguous attempt, a duplicate insert or a stale update
		// may be our own earlier write showing up.
		replayed := i > 1 && (errors.Is(last, ErrDuplicate) || errors.Is(last, ErrStaleVersion))
		if !IsTransient(last) && !replayed {
			return last
		}

		landed, err := s.reconcile(ctx, b, expected)
		switch {
		case err == nil && landed:
			s.log.Info("store: ambiguous write had committed", "booking_id", b.ID, "attempt", i)
			return nil
		case errors.Is(err, ErrStaleVersion), errors.Is(err, ErrDuplicate):
			return err
		case err != nil && !IsTransient(err) && !errors.Is(err, apperror.ErrStoreUnavailable):
			return err
		case err == nil && !IsTransient(last):
			// Read back fine and our write is not there: the replay
			// error stands on its own.
			return last
		}

		if i == s.policy.MaxAttempts {
			break
		}
		s.log.Warn("store: write not committed, retrying", "booking_id", b.ID, "attempt", i, "backoff", delay, "error", last)
		if err := s.sleep(ctx, delay); err != nil {
			return apperror.StoreUnavailable(err)
		}
		if delay < s.policy.MaxBackoff {
			delay = min(delay*2, s.policy.MaxBackoff)
		}
	}
	s.log.Error("store: write outcome unknown, giving up", "booking_id", b.ID, "error", last)
	return apperror.StoreUnavailable(last)
}

// reconcile reads the stored booking and reports whether it already holds
// the write of b made against version expected.
func (s *RetryingStore) reconcile(ctx context.Context, b *model.Booking, expected int64) (bool, error) {
	cur, err := s.Get(ctx, b.ID)
	if expected == 0 {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if cur.Version >= 1 && cur.Status == b.Status && cur.RequesterID == b.RequesterID && cur.Window.Equal(b.Window) {
			b.Version = cur.Version
			return true, nil
		}
		return false, ErrDuplicate
	}
	if err != nil {
		return false, err
	}
	switch {
	case cur.Version == expected:
		return false, nil
	case cur.Version == expected+1 && cur.Status == b.Status && cur.CancelReason == b.CancelReason:
		b.Version = cur.Version
		return true, nil
	default:
		return false, ErrStaleVersion
	}
}

func (s *RetryingStore) QueryConfirmed(ctx context.Context, modelID string) ([]model.Booking, error) {
	var out []model.Booking
	err := s.do(ctx, "query_confirmed", func(ctx context.Context) error {
		var err error
		out, err = s.inner.QueryConfirmed(ctx, modelID)
		return err
	})
	return out, err
}

func (s *RetryingStore) ListElapsed(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
	var out []model.Booking
	err := s.do(ctx, "list_elapsed", func(ctx context.Context) error {
		var err error
		out, err = s.inner.ListElapsed(ctx, now, limit)
		return err
	})
	return out, err
}

func (s *RetryingStore) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	var out []model.Booking
	err := s.do(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = s.inner.List(ctx, f)
		return err
	})
	return out, err
}

func (s *RetryingStore) CountByStatus(ctx context.Context, asOf time.Time) (map[model.BookingStatus]int, error) {
	var out map[model.BookingStatus]int
	err := s.do(ctx, "count_by_status", func(ctx context.Context) error {
		var err error
		out, err = s.inner.CountByStatus(ctx, asOf)
		return err
	})
	return out, err
}

func (s *RetryingStore) ConfirmedModelIDs(ctx context.Context) ([]string, error) {
	var out []string
	err := s.do(ctx, "confirmed_model_ids", func(ctx context.Context) error {
		var err error
		out, err = s.inner.ConfirmedModelIDs(ctx)
		return err
	})
	return out, err
}
