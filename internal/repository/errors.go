// Package repository defines the persistence layer: MySQL repositories for
// bookings, models, users and refresh tokens, in-memory equivalents used by
// tests and the memory store driver, and the retrying wrapper that sits
// between the booking manager and the durable store.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist. Handlers
// translate it into a 404 through the service layer.
var ErrNotFound = errors.New("not found")

// ErrStaleVersion is returned by a versioned update whose expected version
// no longer matches the stored row: somebody else committed first.
var ErrStaleVersion = errors.New("stale version")

// ErrConflict is returned when a delete or update cannot be performed
// because of dependent records, such as deleting a model that still has
// upcoming confirmed bookings.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert hits a unique key.
var ErrDuplicate = errors.New("duplicate key")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrTransient marks failures worth retrying: timeouts, dropped
// connections, lock waits and deadlocks.
var ErrTransient = errors.New("transient store failure")
