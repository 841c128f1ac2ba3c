package mysql

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

const applicationColumns = `id, listing_id, tutor_id, qualifications, experience,
    expected_salary_cents, status, checkout_ref, applied_at, decided_at`

// CreateApplication inserts a PENDING application.  The unique index
// on (listing_id, tutor_id, active) makes the duplicate check and the
// insert one atomic step: a second non-withdrawn application by the
// same tutor fails with store.ErrConflict even under concurrency.
func (s *Store) CreateApplication(ctx context.Context, a *model.Application) error {
    const q = `INSERT INTO applications
        (listing_id, tutor_id, qualifications, experience, expected_salary_cents, status, active)
        VALUES (?, ?, ?, ?, ?, 'PENDING', 1)`
    res, err := s.db.ExecContext(ctx, q,
        a.ListingID, a.TutorID, a.Qualifications, a.Experience, a.ExpectedSalaryCents)
    if err != nil {
        if isDuplicate(err) {
            return store.ErrConflict
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    a.ID = uint64(id)
    a.Status = model.ApplicationPending
    const sel = `SELECT applied_at FROM applications WHERE id = ?`
    return s.db.QueryRowContext(ctx, sel, a.ID).Scan(&a.AppliedAt)
}

// GetApplication returns an application by id or store.ErrNotFound.
func (s *Store) GetApplication(ctx context.Context, id uint64) (*model.Application, error) {
    const q = `SELECT ` + applicationColumns + ` FROM applications WHERE id = ?`
    a, err := scanApplication(s.db.QueryRowContext(ctx, q, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, store.ErrNotFound
        }
        return nil, err
    }
    return a, nil
}

// AmendApplication overwrites the bid of a still-PENDING application.
// The status condition is part of the UPDATE so a concurrent decision
// cannot be overwritten.
func (s *Store) AmendApplication(ctx context.Context, id uint64, bid model.ApplicationBid) error {
    const q = `UPDATE applications
        SET qualifications = ?, experience = ?, expected_salary_cents = ?
        WHERE id = ? AND status = 'PENDING'`
    res, err := s.db.ExecContext(ctx, q, bid.Qualifications, bid.Experience, bid.ExpectedSalaryCents, id)
    if err != nil {
        return err
    }
    return s.requirePendingRow(ctx, res, id)
}

// DecideApplication moves a PENDING application to REJECTED or
// WITHDRAWN.  Withdrawing clears the active marker so the tutor may
// apply to the listing again later; rejection keeps it, blocking a
// re-apply.
func (s *Store) DecideApplication(ctx context.Context, id uint64, to string, at time.Time) error {
    var q string
    switch to {
    case model.ApplicationRejected:
        q = `UPDATE applications SET status = 'REJECTED', decided_at = ? WHERE id = ? AND status = 'PENDING'`
    case model.ApplicationWithdrawn:
        q = `UPDATE applications SET status = 'WITHDRAWN', decided_at = ?, active = NULL WHERE id = ? AND status = 'PENDING'`
    default:
        return store.ErrInvalidState
    }
    res, err := s.db.ExecContext(ctx, q, at.UTC(), id)
    if err != nil {
        return err
    }
    return s.requirePendingRow(ctx, res, id)
}

// SetApplicationCheckoutRef records the gateway session reference on
// the application so a crashed reconciliation can be re-derived.
func (s *Store) SetApplicationCheckoutRef(ctx context.Context, id uint64, ref string) error {
    const q = `UPDATE applications SET checkout_ref = ? WHERE id = ?`
    res, err := s.db.ExecContext(ctx, q, ref, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        var exists uint64
        if err := s.db.QueryRowContext(ctx, `SELECT id FROM applications WHERE id = ?`, id).Scan(&exists); err != nil {
            if errors.Is(err, sql.ErrNoRows) {
                return store.ErrNotFound
            }
            return err
        }
    }
    return nil
}

// ListApplicationsByListing returns all applications on a listing in
// application order.
func (s *Store) ListApplicationsByListing(ctx context.Context, listingID uint64) ([]model.Application, error) {
    const q = `SELECT ` + applicationColumns + ` FROM applications WHERE listing_id = ? ORDER BY id`
    rows, err := s.db.QueryContext(ctx, q, listingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return collectApplications(rows)
}

// ListApplicationsByTutor returns all of a tutor's applications,
// newest first.
func (s *Store) ListApplicationsByTutor(ctx context.Context, tutorID uint64) ([]model.Application, error) {
    const q = `SELECT ` + applicationColumns + ` FROM applications WHERE tutor_id = ? ORDER BY id DESC`
    rows, err := s.db.QueryContext(ctx, q, tutorID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return collectApplications(rows)
}

// ApprovedApplicationForListing returns the one APPROVED application
// of a listing.  The hire transition guarantees at most one exists.
func (s *Store) ApprovedApplicationForListing(ctx context.Context, listingID uint64) (*model.Application, error) {
    const q = `SELECT ` + applicationColumns + ` FROM applications
        WHERE listing_id = ? AND status = 'APPROVED' LIMIT 1`
    a, err := scanApplication(s.db.QueryRowContext(ctx, q, listingID))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, store.ErrNotFound
        }
        return nil, err
    }
    return a, nil
}

// requirePendingRow maps a zero-row conditional update onto
// ErrNotFound (row missing) or ErrInvalidState (row no longer
// PENDING).
func (s *Store) requirePendingRow(ctx context.Context, res sql.Result, id uint64) error {
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n > 0 {
        return nil
    }
    var status string
    if err := s.db.QueryRowContext(ctx, `SELECT status FROM applications WHERE id = ?`, id).Scan(&status); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return store.ErrNotFound
        }
        return err
    }
    if status != model.ApplicationPending {
        return store.ErrInvalidState
    }
    // The row is PENDING but the update touched nothing: identical
    // values were written back, which is not an error.
    return nil
}

func scanApplication(r rowScanner) (*model.Application, error) {
    var a model.Application
    var checkoutRef sql.NullString
    var decidedAt sql.NullTime
    err := r.Scan(
        &a.ID, &a.ListingID, &a.TutorID, &a.Qualifications, &a.Experience,
        &a.ExpectedSalaryCents, &a.Status, &checkoutRef, &a.AppliedAt, &decidedAt,
    )
    if err != nil {
        return nil, err
    }
    if checkoutRef.Valid {
        ref := checkoutRef.String
        a.CheckoutRef = &ref
    }
    if decidedAt.Valid {
        t := decidedAt.Time
        a.DecidedAt = &t
    }
    return &a, nil
}

func collectApplications(rows *sql.Rows) ([]model.Application, error) {
    out := make([]model.Application, 0)
    for rows.Next() {
        a, err := scanApplication(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *a)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
