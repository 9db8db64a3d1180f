package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/model-booking/internal/model"
	"github.com/iliyamo/model-booking/internal/utils"
)

// MemoryBookingStore keeps bookings in a map with the same versioning rules
// as BookingRepo. Tests use it in place of MySQL.
type MemoryBookingStore struct {
	mu       sync.RWMutex
	bookings map[string]model.Booking
}

func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{bookings: make(map[string]model.Booking)}
}

func (s *MemoryBookingStore) Get(ctx context.Context, id string) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryBookingStore) Put(ctx context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.bookings[b.ID]
	if b.Version == 0 {
		if exists {
			return ErrDuplicate
		}
		stored := *b
		stored.Version = 1
		s.bookings[b.ID] = stored
		b.Version = 1
		return nil
	}
	if !exists {
		return ErrNotFound
	}
	if cur.Version != b.Version {
		return ErrStaleVersion
	}
	cur.Status = b.Status
	cur.CancelReason = b.CancelReason
	cur.UpdatedAt = b.UpdatedAt
	cur.Version++
	s.bookings[b.ID] = cur
	b.Version = cur.Version
	return nil
}

func (s *MemoryBookingStore) collect(keep func(model.Booking) bool, less func(a, b model.Booking) bool) []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byStart(a, b model.Booking) bool { return a.Window.Start.Before(b.Window.Start) }

func (s *MemoryBookingStore) QueryConfirmed(ctx context.Context, modelID string) ([]model.Booking, error) {
	return s.collect(func(b model.Booking) bool {
		return b.ModelID == modelID && b.Status == model.StatusConfirmed
	}, byStart), nil
}

func (s *MemoryBookingStore) ListElapsed(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
	out := s.collect(func(b model.Booking) bool {
		return b.Status == model.StatusConfirmed && !b.Window.End.After(now)
	}, func(a, b model.Booking) bool { return a.Window.End.Before(b.Window.End) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryBookingStore) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	out := s.collect(f.Matches, func(a, b model.Booking) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryBookingStore) ConfirmedModelIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	var ids []string
	for _, b := range s.bookings {
		if b.Status == model.StatusConfirmed && !seen[b.ModelID] {
			seen[b.ModelID] = true
			ids = append(ids, b.ModelID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryBookingStore) CountByStatus(ctx context.Context, asOf time.Time) (map[model.BookingStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.BookingStatus]int)
	for _, b := range s.bookings {
		out[b.EffectiveStatus(asOf)]++
	}
	return out, nil
}

// MemoryModelStore is the in-memory catalog. Delete consults bookings for
// upcoming confirmed reservations.
type MemoryModelStore struct {
	mu       sync.RWMutex
	models   map[string]model.Model
	bookings *MemoryBookingStore
}

func NewMemoryModelStore(bookings *MemoryBookingStore) *MemoryModelStore {
	return &MemoryModelStore{models: make(map[string]model.Model), bookings: bookings}
}

func (s *MemoryModelStore) Create(ctx context.Context, m *model.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[m.ID]; ok {
		return ErrDuplicate
	}
	s.models[m.ID] = *m
	return nil
}

func (s *MemoryModelStore) GetModel(ctx context.Context, id string) (model.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	if !ok {
		return model.Model{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryModelStore) List(ctx context.Context, onlyAvailable bool, offset, limit int) ([]model.Model, error) {
	s.mu.RLock()
	var out []model.Model
	for _, m := range s.models {
		if !onlyAvailable || m.IsAvailable {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryModelStore) Update(ctx context.Context, m *model.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.models[m.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = m.Name
	cur.PricePerHour = m.PricePerHour
	cur.IsAvailable = m.IsAvailable
	cur.UpdatedAt = m.UpdatedAt
	s.models[m.ID] = cur
	return nil
}

func (s *MemoryModelStore) Delete(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[id]; !ok {
		return ErrNotFound
	}
	if s.bookings != nil {
		confirmed, _ := s.bookings.QueryConfirmed(ctx, id)
		for _, b := range confirmed {
			if b.Window.End.After(now) {
				return ErrConflict
			}
		}
	}
	delete(s.models, id)
	return nil
}

// MemoryUserStore is the in-memory account store.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]model.User
	byEmail map[string]string
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{byID: map[string]model.User{}, byEmail: map[string]string{}}
}

func (s *MemoryUserStore) Create(ctx context.Context, email, password, role string, cost int) (string, error) {
	email = normalizeEmail(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return "", ErrEmailExists
	}
	now := time.Now().UTC()
	u := model.User{ID: uuid.NewString(), Email: email, PasswordHash: hash, Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return u.ID, nil
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryUserStore) UpdatePassword(ctx context.Context, id, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	s.byID[id] = u
	return nil
}

// MemoryTokenStore is the in-memory refresh token store.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]model.RefreshToken{}}
}

func (s *MemoryTokenStore) StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenHash] = model.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: exp, CreatedAt: time.Now().UTC()}
	return nil
}

func (s *MemoryTokenStore) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok || !t.Live(time.Now().UTC()) {
		return "", ErrNotFound
	}
	return t.UserID, nil
}

func (s *MemoryTokenStore) RevokeByHash(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := time.Now().UTC()
		t.RevokedAt = &now
		s.tokens[tokenHash] = t
	}
	return nil
}

func (s *MemoryTokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for h, t := range s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			s.tokens[h] = t
		}
	}
	return nil
}
