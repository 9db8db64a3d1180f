package envelope

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/apperror"
	"github.com/iliyamo/model-booking/internal/availability"
	"github.com/iliyamo/model-booking/internal/booking"
	"github.com/iliyamo/model-booking/internal/clock"
	"github.com/iliyamo/model-booking/internal/model"
	"github.com/iliyamo/model-booking/internal/repository"
	"github.com/iliyamo/model-booking/internal/session"
)

const secret = "envelope-test-secret"

type harness struct {
	d      *Dispatcher
	clock  *clock.Manual
	issuer *session.Issuer
	revs   *session.MemoryRevocations
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	bookings := repository.NewMemoryBookingStore()
	models := repository.NewMemoryModelStore(bookings)
	require.NoError(t, models.Create(context.Background(), &model.Model{ID: "M1", Name: "Ava", PricePerHour: 6000, IsAvailable: true}))

	mgr := booking.NewManager(booking.Deps{
		Store:   bookings,
		Catalog: models,
		Index:   availability.NewMemoryIndex(),
		Gate:    access.NewGate(),
		Clock:   clk,
		Policy:  booking.Policy{MinLeadTime: time.Hour, MinDuration: 30 * time.Minute},
	})
	revs := session.NewMemoryRevocations(clk)
	return &harness{
		d:      NewDispatcher(session.NewValidator(secret, revs, clk), mgr, nil, nil),
		clock:  clk,
		issuer: session.NewIssuer(secret, time.Hour, clk),
		revs:   revs,
	}
}

func (h *harness) token(t *testing.T, id string, role access.Role) string {
	t.Helper()
	cred, err := h.issuer.Issue(id, role)
	require.NoError(t, err)
	return cred.Token
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func submitBody(start, end string) map[string]any {
	return map[string]any{
		"model_id":     "M1",
		"start":        "2026-03-02T" + start + ":00Z",
		"end":          "2026-03-02T" + end + ":00Z",
		"quoted_price": 6000,
	}
}

func (h *harness) submit(t *testing.T, token, start, end string) BookingView {
	t.Helper()
	resp := h.d.Dispatch(context.Background(), Request{
		Credential: token,
		Action:     ActionSubmit,
		Payload:    payload(t, submitBody(start, end)),
	})
	require.Equal(t, StatusOK, resp.Status, "%+v", resp.Body)
	assert.Equal(t, http.StatusCreated, resp.HTTPStatus)
	return resp.Body.(BookingView)
}

func TestDispatch_ConfirmRaceSurfacesConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.token(t, "alice", access.RoleUser)
	admin := h.token(t, "root", access.RoleAdmin)

	first := h.submit(t, user, "10:00", "11:00")
	second := h.submit(t, user, "10:30", "11:30")

	resp := h.d.Dispatch(ctx, Request{Credential: admin, Action: ActionConfirm, Payload: payload(t, IDPayload{ID: first.ID})})
	require.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "CONFIRMED", resp.Body.(BookingView).Status)

	resp = h.d.Dispatch(ctx, Request{Credential: admin, Action: ActionConfirm, Payload: payload(t, IDPayload{ID: second.ID})})
	require.Equal(t, StatusConflict, resp.Status)
	assert.Equal(t, http.StatusConflict, resp.HTTPStatus)
	view := resp.Body.(ConflictView)
	assert.Equal(t, "CANCELLED", view.Booking.Status)
	assert.Equal(t, first.ID, view.HeldBy)
	assert.True(t, view.Occupied.Start.Equal(first.Start))
}

func TestDispatch_Statuses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.token(t, "alice", access.RoleUser)
	bob := h.token(t, "bob", access.RoleUser)
	mine := h.submit(t, alice, "12:00", "13:00")

	tests := []struct {
		name string
		req  Request
		want Status
	}{
		{"guest submit", Request{Action: ActionSubmit, Payload: payload(t, submitBody("12:00", "13:00"))}, StatusForbidden},
		{"garbage credential", Request{Credential: "xyz", Action: ActionList}, StatusUnauthorized},
		{"user confirm", Request{Credential: alice, Action: ActionConfirm, Payload: payload(t, IDPayload{ID: mine.ID})}, StatusForbidden},
		{"other user's booking", Request{Credential: bob, Action: ActionGet, Payload: payload(t, IDPayload{ID: mine.ID})}, StatusForbidden},
		{"other user cancels", Request{Credential: bob, Action: ActionCancel, Payload: payload(t, IDPayload{ID: mine.ID})}, StatusForbidden},
		{"missing booking", Request{Credential: alice, Action: ActionGet, Payload: payload(t, IDPayload{ID: "nope"})}, StatusNotFound},
		{"missing id", Request{Credential: alice, Action: ActionGet}, StatusInvalid},
		{"unknown field", Request{Credential: alice, Action: ActionGet, Payload: json.RawMessage(`{"id":"x","extra":1}`)}, StatusInvalid},
		{"unknown action", Request{Credential: alice, Action: "booking.teleport"}, StatusInvalid},
		{"lead time", Request{Credential: alice, Action: ActionSubmit, Payload: payload(t, submitBody("08:30", "10:00"))}, StatusInvalid},
		{"bad list limit", Request{Credential: alice, Action: ActionList, Payload: json.RawMessage(`{"limit":1000}`)}, StatusInvalid},
		{"own booking", Request{Credential: alice, Action: ActionGet, Payload: payload(t, IDPayload{ID: mine.ID})}, StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.d.Dispatch(ctx, tt.req)
			assert.Equal(t, tt.want, resp.Status, "%+v", resp.Body)
			if tt.want != StatusOK {
				_, isErr := resp.Body.(apperror.ErrorResponse)
				assert.True(t, isErr)
			}
		})
	}
}

func TestDispatch_RevokedAndExpiredCredentials(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred, err := h.issuer.Issue("alice", access.RoleUser)
	require.NoError(t, err)

	require.NoError(t, h.revs.Revoke(ctx, cred.Session.ID, cred.Session.ExpiresAt))
	resp := h.d.Dispatch(ctx, Request{Credential: cred.Token, Action: ActionList})
	assert.Equal(t, StatusUnauthorized, resp.Status)
	assert.Equal(t, apperror.CodeAuthRevoked, resp.Body.(apperror.ErrorResponse).Code)

	other := h.token(t, "bob", access.RoleUser)
	h.clock.Advance(2 * time.Hour)
	resp = h.d.Dispatch(ctx, Request{Credential: other, Action: ActionList})
	assert.Equal(t, apperror.CodeAuthExpired, resp.Body.(apperror.ErrorResponse).Code)
}

func TestDispatch_ListAndCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.token(t, "alice", access.RoleUser)
	bob := h.token(t, "bob", access.RoleUser)

	a := h.submit(t, alice, "10:00", "11:00")
	h.submit(t, bob, "12:00", "13:00")

	resp := h.d.Dispatch(ctx, Request{Credential: alice, Action: ActionList})
	require.Equal(t, StatusOK, resp.Status)
	list := resp.Body.(ListView)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, a.ID, list.Items[0].ID)

	resp = h.d.Dispatch(ctx, Request{Credential: alice, Action: ActionCancel, Payload: payload(t, IDPayload{ID: a.ID})})
	require.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "CANCELLED", resp.Body.(BookingView).Status)

	resp = h.d.Dispatch(ctx, Request{Credential: alice, Action: ActionCancel, Payload: payload(t, IDPayload{ID: a.ID})})
	assert.Equal(t, StatusInvalid, resp.Status)
	assert.Equal(t, apperror.CodeInvalidTransition, resp.Body.(apperror.ErrorResponse).Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusConflict, StatusFor(apperror.Conflict("taken")))
	assert.Equal(t, StatusInvalid, StatusFor(apperror.EntityUnavailable("M1")))
	assert.Equal(t, StatusUnauthorized, StatusFor(apperror.AuthExpired()))
	assert.Equal(t, StatusUnavailable, StatusFor(apperror.StoreUnavailable(errors.New("down"))))
	assert.Equal(t, StatusUnavailable, StatusFor(errors.New("boom")))
}
