package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/model-booking/internal/access"
	"github.com/iliyamo/model-booking/internal/availability"
	"github.com/iliyamo/model-booking/internal/booking"
	"github.com/iliyamo/model-booking/internal/catalog"
	"github.com/iliyamo/model-booking/internal/clock"
	"github.com/iliyamo/model-booking/internal/config"
	"github.com/iliyamo/model-booking/internal/envelope"
	"github.com/iliyamo/model-booking/internal/handler"
	"github.com/iliyamo/model-booking/internal/repository"
	"github.com/iliyamo/model-booking/internal/session"
	"github.com/iliyamo/model-booking/internal/validation"
)

const secret = "router-test-secret-0123"

type app struct {
	e      *echo.Echo
	now    time.Time
	issuer *session.Issuer
	users  *repository.MemoryUserStore
}

func newApp(t *testing.T) *app {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Hour)
	clk := clock.NewManual(now)
	gate := access.NewGate()
	v := validation.New()

	bookings := repository.NewMemoryBookingStore()
	models := repository.NewMemoryModelStore(bookings)
	users := repository.NewMemoryUserStore()
	tokens := repository.NewMemoryTokenStore()
	revs := session.NewMemoryRevocations(clk)
	issuer := session.NewIssuer(secret, 15*time.Minute, clk)
	validator := session.NewValidator(secret, revs, clk)

	cat := catalog.NewService(models, gate, clk, nil, 1000)
	mgr := booking.NewManager(booking.Deps{
		Store:   bookings,
		Catalog: cat,
		Index:   availability.NewMemoryIndex(),
		Gate:    gate,
		Clock:   clk,
		Policy:  booking.Policy{MinLeadTime: time.Hour, MinDuration: 30 * time.Minute},
	})

	e := echo.New()
	e.Validator = v
	RegisterRoutes(e)
	v1 := e.Group("/v1")
	authCfg := config.AuthConfig{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	RegisterAuth(v1, handler.NewAuthHandler(authCfg, users, tokens, issuer, revs, clk), validator)
	RegisterCatalog(v1, handler.NewModelHandler(cat), validator, gate, nil)
	RegisterBookings(v1, handler.NewBookingHandler(envelope.NewDispatcher(validator, mgr, v, nil)))
	RegisterAdmin(v1, handler.NewAdminHandler(mgr), validator, gate)

	return &app{e: e, now: now, issuer: issuer, users: users}
}

func (a *app) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) token(t *testing.T, id string, role access.Role) string {
	t.Helper()
	cred, err := a.issuer.Issue(id, role)
	require.NoError(t, err)
	return cred.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	a := newApp(t)
	creds := map[string]string{"email": "Alice@Example.com", "password": "correct-horse"}

	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode(t, rec)
	assert.Equal(t, "alice@example.com", reg["user"].(map[string]any)["email"])
	assert.Equal(t, "USER", reg["user"].(map[string]any)["role"])

	rec = a.do(t, http.MethodPost, "/v1/auth/register", "", creds)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{"email": "bob@example.com", "password": "short"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec)["code"])

	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong-horse"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, rec)["code"])

	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode(t, rec)
	accessTok := login["access"].(map[string]any)["token"].(string)
	refresh := login["refresh"].(map[string]any)["token"].(string)

	rec = a.do(t, http.MethodGet, "/v1/me", accessTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", decode(t, rec)["email"])

	// Rotation: the old refresh token stops working.
	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode(t, rec)["refresh"].(map[string]any)["token"].(string)
	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/refresh-access", "", map[string]string{"refresh_token": rotated})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["access"].(map[string]any)["token"])

	rec = a.do(t, http.MethodPost, "/v1/auth/logout", accessTok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/v1/me", accessTok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_REVOKED", decode(t, rec)["code"])

	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": rotated})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_RequiresSession(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodPost, "/v1/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func (a *app) createModel(t *testing.T, admin string, price int64) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/models", admin, map[string]any{"name": "Ava", "price_per_hour": price})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["id"].(string)
}

func TestCatalogRoutes(t *testing.T) {
	a := newApp(t)
	admin := a.token(t, "root", access.RoleAdmin)
	user := a.token(t, "alice", access.RoleUser)

	rec := a.do(t, http.MethodPost, "/v1/models", user, map[string]any{"name": "Ava", "price_per_hour": 6000})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, http.MethodPost, "/v1/models", "", map[string]any{"name": "Ava", "price_per_hour": 6000})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(t, http.MethodPost, "/v1/models", admin, map[string]any{"name": "Cheap", "price_per_hour": 500})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	id := a.createModel(t, admin, 6000)

	rec = a.do(t, http.MethodGet, "/v1/models", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)

	rec = a.do(t, http.MethodPatch, "/v1/models/"+id, admin, map[string]any{"is_available": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["is_available"])

	// Switched-off models disappear for everyone but admins.
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/v1/models/"+id, "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/v1/models/"+id, admin, nil).Code)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/v1/models/"+id, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/v1/models/"+id, admin, nil).Code)
}

func (a *app) submit(t *testing.T, token, modelID string, from, to time.Duration) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, http.MethodPost, "/v1/bookings", token, map[string]any{
		"model_id":     modelID,
		"start":        a.now.Add(from).Format(time.RFC3339),
		"end":          a.now.Add(to).Format(time.RFC3339),
		"quoted_price": 6000,
	})
}

func TestBookingRoutes(t *testing.T) {
	a := newApp(t)
	admin := a.token(t, "root", access.RoleAdmin)
	alice := a.token(t, "alice", access.RoleUser)
	bob := a.token(t, "bob", access.RoleUser)
	modelID := a.createModel(t, admin, 6000)

	assert.Equal(t, http.StatusForbidden, a.submit(t, "", modelID, 3*time.Hour, 4*time.Hour).Code)

	rec := a.submit(t, alice, modelID, 3*time.Hour, 4*time.Hour)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode(t, rec)
	assert.Equal(t, "REQUESTED", first["status"])
	firstID := first["id"].(string)

	rec = a.submit(t, bob, modelID, 3*time.Hour+30*time.Minute, 4*time.Hour+30*time.Minute)
	require.Equal(t, http.StatusCreated, rec.Code)
	secondID := decode(t, rec)["id"].(string)

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, "/v1/bookings/"+firstID+"/confirm", alice, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/v1/bookings/"+firstID, bob, nil).Code)

	rec = a.do(t, http.MethodPost, "/v1/bookings/"+firstID+"/confirm", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CONFIRMED", decode(t, rec)["status"])

	rec = a.do(t, http.MethodPost, "/v1/bookings/"+secondID+"/confirm", admin, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	lost := decode(t, rec)
	assert.Equal(t, firstID, lost["held_by"])
	assert.Equal(t, "CANCELLED", lost["booking"].(map[string]any)["status"])

	rec = a.do(t, http.MethodGet, "/v1/bookings?status=confirmed", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = a.do(t, http.MethodGet, "/v1/bookings?limit=abc", alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/bookings/"+firstID+"/cancel", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decode(t, rec)["status"])

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/v1/bookings/missing", admin, nil).Code)
}

func TestEnvelopeRoute(t *testing.T) {
	a := newApp(t)
	admin := a.token(t, "root", access.RoleAdmin)
	alice := a.token(t, "alice", access.RoleUser)
	modelID := a.createModel(t, admin, 6000)

	rec := a.submit(t, alice, modelID, 2*time.Hour, 3*time.Hour)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["id"].(string)

	rec = a.do(t, http.MethodPost, "/v1/envelope", "", map[string]any{
		"credential": alice,
		"action":     "booking.get",
		"payload":    map[string]string{"id": id},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "OK", out["status"])
	assert.Equal(t, id, out["body"].(map[string]any)["id"])

	// The bearer header stands in for a missing credential.
	rec = a.do(t, http.MethodPost, "/v1/envelope", alice, map[string]any{"action": "booking.list"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["body"].(map[string]any)["count"])

	rec = a.do(t, http.MethodPost, "/v1/envelope", "", map[string]any{"credential": "garbage", "action": "booking.list"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["status"])
}

func TestAdminBootstrap(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	created, err := repository.EnsureUser(ctx, a.users, "admin@example.com", "bootstrap-pass", string(access.RoleAdmin), 4)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repository.EnsureUser(ctx, a.users, "ADMIN@example.com", "other", string(access.RoleAdmin), 4)
	require.NoError(t, err)
	assert.False(t, created)

	rec := a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "admin@example.com", "password": "bootstrap-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ADMIN", decode(t, rec)["user"].(map[string]any)["role"])
}

func TestChangePassword(t *testing.T) {
	a := newApp(t)
	creds := map[string]string{"email": "alice@example.com", "password": "correct-horse"}
	rec := a.do(t, http.MethodPost, "/v1/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code)
	reg := decode(t, rec)
	accessTok := reg["access"].(map[string]any)["token"].(string)
	refresh := reg["refresh"].(map[string]any)["token"].(string)

	rec = a.do(t, http.MethodPost, "/v1/auth/password", "", map[string]string{"current_password": "correct-horse", "new_password": "battery-staple"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/password", accessTok, map[string]string{"current_password": "wrong-horse", "new_password": "battery-staple"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, rec)["code"])

	rec = a.do(t, http.MethodPost, "/v1/auth/password", accessTok, map[string]string{"current_password": "correct-horse", "new_password": "correct-horse"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/password", accessTok, map[string]string{"current_password": "correct-horse", "new_password": "battery-staple"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// Refresh tokens minted under the old password are gone.
	rec = a.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", creds)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "battery-staple"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminStats(t *testing.T) {
	a := newApp(t)
	admin := a.token(t, "root", access.RoleAdmin)
	alice := a.token(t, "alice", access.RoleUser)
	modelID := a.createModel(t, admin, 6000)

	rec := a.submit(t, alice, modelID, 2*time.Hour, 3*time.Hour)
	require.Equal(t, http.StatusCreated, rec.Code)
	confirmed := decode(t, rec)["id"].(string)
	require.Equal(t, http.StatusCreated, a.submit(t, alice, modelID, 4*time.Hour, 5*time.Hour).Code)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/v1/bookings/"+confirmed+"/confirm", admin, nil).Code)

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/v1/admin/stats", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/v1/admin/stats", alice, nil).Code)

	rec = a.do(t, http.MethodGet, "/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode(t, rec)
	assert.EqualValues(t, 2, stats["total"])
	byStatus := stats["by_status"].(map[string]any)
	assert.EqualValues(t, 1, byStatus["REQUESTED"])
	assert.EqualValues(t, 1, byStatus["CONFIRMED"])
	assert.EqualValues(t, 0, byStatus["CANCELLED"])
	assert.EqualValues(t, 0, byStatus["COMPLETED"])
}

func TestBookingRoutes_OversizedBodyIsRefused(t *testing.T) {
	a := newApp(t)
	alice := a.token(t, "alice", access.RoleUser)
	notes := strings.Repeat("x", 70<<10)

	rec := a.do(t, http.MethodPost, "/v1/bookings", alice, map[string]any{"model_id": "m", "notes": notes})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decode(t, rec)["code"])

	rec = a.do(t, http.MethodPost, "/v1/envelope", alice, map[string]any{
		"action":  "booking.submit",
		"payload": map[string]any{"model_id": "m", "notes": notes},
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
