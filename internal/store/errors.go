// Package store defines the persistence contract for the marketplace
// ledger: listings, applications and payments.  Two implementations
// exist — mysql for production and memory for tests and local
// development.  The sentinel errors below allow the lifecycle and
// reconciler layers to map storage outcomes onto the error taxonomy
// without knowing which backend is in use.
package store

import "errors"

// ErrNotFound is returned when a listing, application or payment does
// not exist.  Handlers translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrInvalidState is returned when a conditional update finds the
// record in a status other than the one the transition requires, for
// example moderating a listing that is not PENDING or hiring a
// listing that is not APPROVED.
var ErrInvalidState = errors.New("invalid state")

// ErrConflict is returned when a uniqueness rule blocks an insert,
// such as a tutor applying twice to the same listing.  Handlers
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrDuplicateTransaction is returned when a payment insert hits the
// unique index on transaction_ref.  The reconciler resolves this
// internally by re-reading the winning payment; it is never surfaced
// to external callers.
var ErrDuplicateTransaction = errors.New("duplicate transaction reference")
