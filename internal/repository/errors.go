// Package repository provides data access for accounts and refresh
// tokens.  The marketplace ledger (listings, applications, payments)
// lives in internal/store instead, behind an interface, because the
// reconciler needs a swappable backend; account persistence is plain
// MySQL-only CRUD and keeps the simpler direct shape.
package repository

import "errors"

// ErrEmailExists is returned when registering with an email that is
// already taken.  Handlers translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")
