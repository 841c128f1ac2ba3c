// Package mysql implements store.Store on top of database/sql with
// the MySQL driver.  Every status transition is a conditional UPDATE
// keyed on the expected current status, so concurrent writers cannot
// both move the same record.  Multi-record operations (ConfirmHire,
// DeleteListing) run inside an explicit transaction.
package mysql

import (
    "database/sql"
    "strings"
)

// Store wraps the shared connection pool.  It is safe for concurrent
// use; database/sql manages the pooling.
type Store struct {
    db *sql.DB
}

// New returns a Store bound to the given database.  The pool should
// have been opened via database.Open so that parseTime and UTC are in
// effect.
func New(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// isDuplicate reports whether err is a MySQL duplicate-entry error
// (1062) raised by one of the unique indexes.
func isDuplicate(err error) bool {
    return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
