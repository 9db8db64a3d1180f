// Package access holds the single authorization table for the service.
// Every mutating booking operation asks the Gate exactly once.
package access

import (
	"github.com/iliyamo/model-booking/internal/apperror"
)

type Role string

const (
	RoleGuest Role = "GUEST"
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole maps a stored or claimed role name to a Role. Anything
// unrecognised becomes Guest.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s)
	}
	return RoleGuest
}

type Action string

const (
	ViewCatalog     Action = "catalog.view"
	ManageCatalog   Action = "catalog.manage"
	ViewBooking     Action = "booking.view"
	ListBookings    Action = "booking.list"
	SubmitBooking   Action = "booking.submit"
	CancelBooking   Action = "booking.cancel"
	ConfirmBooking  Action = "booking.confirm"
	CompleteBooking Action = "booking.complete"
	ViewStats       Action = "booking.stats"
)

type scope uint8

const (
	scopeDeny scope = iota
	scopeOwn        // allowed when the subject owns the resource
	scopeAny        // allowed regardless of owner
)

// table is the whole policy. Missing (role, action) pairs deny.
var table = map[Role]map[Action]scope{
	RoleGuest: {
		ViewCatalog: scopeAny,
	},
	RoleUser: {
		ViewCatalog:   scopeAny,
		ViewBooking:   scopeOwn,
		ListBookings:  scopeOwn,
		SubmitBooking: scopeOwn,
		CancelBooking: scopeOwn,
	},
	RoleAdmin: {
		ViewCatalog:     scopeAny,
		ManageCatalog:   scopeAny,
		ViewBooking:     scopeAny,
		ListBookings:    scopeAny,
		SubmitBooking:   scopeAny,
		CancelBooking:   scopeAny,
		ConfirmBooking:  scopeAny,
		CompleteBooking: scopeAny,
		ViewStats:       scopeAny,
	},
}

// Gate evaluates the table. It has no state; the zero value is ready to use.
type Gate struct{}

func NewGate() Gate { return Gate{} }

// Allow reports whether a subject with role may perform action on a resource
// owned by resourceOwnerID. The owner is only consulted for own-scoped
// entries, and an empty subject never owns anything.
func (Gate) Allow(role Role, action Action, resourceOwnerID, subjectID string) bool {
	switch table[role][action] {
	case scopeAny:
		return true
	case scopeOwn:
		return subjectID != "" && resourceOwnerID == subjectID
	}
	return false
}

// Check is Allow returning a Forbidden error on denial.
func (g Gate) Check(role Role, action Action, resourceOwnerID, subjectID string) error {
	if g.Allow(role, action, resourceOwnerID, subjectID) {
		return nil
	}
	return apperror.Forbidden("not allowed to " + string(action)).WithDetails(map[string]any{
		"role":   string(role),
		"action": string(action),
	})
}

// Scoped reports whether action is limited to the subject's own resources
// for role. List operations use it to decide whether to filter by owner.
func (Gate) Scoped(role Role, action Action) bool {
	return table[role][action] == scopeOwn
}

// Subject is the authenticated caller of an operation.
type Subject struct {
	ID   string
	Role Role
}

// Guest is the subject used when no credential was presented.
var Guest = Subject{Role: RoleGuest}
