package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/model-booking/internal/apperror"
)

func TestGate_Table(t *testing.T) {
	g := NewGate()
	tests := []struct {
		role    Role
		action  Action
		owner   string
		subject string
		want    bool
	}{
		{RoleGuest, ViewCatalog, "", "", true},
		{RoleGuest, SubmitBooking, "", "", false},
		{RoleGuest, CancelBooking, "u1", "u1", false},

		{RoleUser, SubmitBooking, "u1", "u1", true},
		{RoleUser, SubmitBooking, "u2", "u1", false},
		{RoleUser, CancelBooking, "u1", "u1", true},
		{RoleUser, CancelBooking, "u2", "u1", false},
		{RoleUser, ViewBooking, "u2", "u1", false},
		{RoleUser, ConfirmBooking, "u1", "u1", false},
		{RoleUser, CompleteBooking, "u1", "u1", false},
		{RoleUser, ViewStats, "", "u1", false},
		{RoleUser, ManageCatalog, "u1", "u1", false},
		{RoleUser, CancelBooking, "", "", false},

		{RoleAdmin, ConfirmBooking, "u1", "a1", true},
		{RoleAdmin, CancelBooking, "u1", "a1", true},
		{RoleAdmin, CompleteBooking, "u1", "a1", true},
		{RoleAdmin, ViewStats, "", "a1", true},
		{RoleAdmin, ManageCatalog, "", "a1", true},

		{Role("ROOT"), ConfirmBooking, "", "x", false},
		{RoleAdmin, Action("booking.delete"), "", "a1", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, g.Allow(tt.role, tt.action, tt.owner, tt.subject))
		})
	}
}

func TestGate_CheckReturnsForbidden(t *testing.T) {
	g := NewGate()
	err := g.Check(RoleUser, CancelBooking, "someone-else", "u1")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.NoError(t, g.Check(RoleUser, CancelBooking, "u1", "u1"))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("ADMIN"))
	assert.Equal(t, RoleUser, ParseRole("USER"))
	assert.Equal(t, RoleGuest, ParseRole("admin"))
	assert.Equal(t, RoleGuest, ParseRole(""))
}

func TestGate_Scoped(t *testing.T) {
	g := NewGate()
	assert.True(t, g.Scoped(RoleUser, ListBookings))
	assert.False(t, g.Scoped(RoleAdmin, ListBookings))
}
