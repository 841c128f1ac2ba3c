package mysql

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

const listingColumns = `id, student_id, subject, class_level, location, schedule,
    days_per_week, salary_cents, details, status, hired_tutor_id,
    created_at, approved_at, rejected_at, hired_at`

// CreateListing inserts a new PENDING listing and populates the
// generated ID and created_at on the provided record.
func (s *Store) CreateListing(ctx context.Context, l *model.Listing) error {
    const q = `INSERT INTO listings
        (student_id, subject, class_level, location, schedule, days_per_week, salary_cents, details, status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'PENDING')`
    res, err := s.db.ExecContext(ctx, q,
        l.StudentID, l.Subject, l.ClassLevel, l.Location, l.Schedule,
        l.DaysPerWeek, l.SalaryCents, l.Details)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    l.ID = uint64(id)
    l.Status = model.ListingPending
    // Query back to populate the DB-assigned created_at.
    const sel = `SELECT created_at FROM listings WHERE id = ?`
    return s.db.QueryRowContext(ctx, sel, l.ID).Scan(&l.CreatedAt)
}

// GetListing returns a listing by id or store.ErrNotFound.
func (s *Store) GetListing(ctx context.Context, id uint64) (*model.Listing, error) {
    const q = `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`
    l, err := scanListing(s.db.QueryRowContext(ctx, q, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, store.ErrNotFound
        }
        return nil, err
    }
    return l, nil
}

// UpdateListingAttrs overwrites the student-editable attributes.
// Status guards (owner, not APPROVED/HIRED) are enforced by the
// lifecycle layer before this is called.
func (s *Store) UpdateListingAttrs(ctx context.Context, id uint64, attrs model.ListingAttrs) error {
    const q = `UPDATE listings
        SET subject = ?, class_level = ?, location = ?, schedule = ?,
            days_per_week = ?, salary_cents = ?, details = ?
        WHERE id = ?`
    res, err := s.db.ExecContext(ctx, q,
        attrs.Subject, attrs.ClassLevel, attrs.Location, attrs.Schedule,
        attrs.DaysPerWeek, attrs.SalaryCents, attrs.Details, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        // Distinguish "missing" from "same values written back".
        var exists uint64
        if err := s.db.QueryRowContext(ctx, `SELECT id FROM listings WHERE id = ?`, id).Scan(&exists); err != nil {
            if errors.Is(err, sql.ErrNoRows) {
                return store.ErrNotFound
            }
            return err
        }
    }
    return nil
}

// ModerateListing moves a PENDING listing to APPROVED or REJECTED with
// a conditional update, stamping the matching decision timestamp.  A
// listing in any other status reports store.ErrInvalidState.
func (s *Store) ModerateListing(ctx context.Context, id uint64, to string, at time.Time) error {
    var q string
    switch to {
    case model.ListingApproved:
        q = `UPDATE listings SET status = 'APPROVED', approved_at = ? WHERE id = ? AND status = 'PENDING'`
    case model.ListingRejected:
        q = `UPDATE listings SET status = 'REJECTED', rejected_at = ? WHERE id = ? AND status = 'PENDING'`
    default:
        return store.ErrInvalidState
    }
    res, err := s.db.ExecContext(ctx, q, at.UTC(), id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        var status string
        if err := s.db.QueryRowContext(ctx, `SELECT status FROM listings WHERE id = ?`, id).Scan(&status); err != nil {
            if errors.Is(err, sql.ErrNoRows) {
                return store.ErrNotFound
            }
            return err
        }
        return store.ErrInvalidState
    }
    return nil
}

// DeleteListing removes a listing and marks all of its PENDING
// applications WITHDRAWN inside one transaction, clearing their
// uniqueness marker so the tutors could apply elsewhere.  The
// application rows are kept; they remain visible in each tutor's
// history after the listing is gone.
func (s *Store) DeleteListing(ctx context.Context, id uint64, at time.Time) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    const withdraw = `UPDATE applications
        SET status = 'WITHDRAWN', decided_at = ?, active = NULL
        WHERE listing_id = ? AND status = 'PENDING'`
    if _, err := tx.ExecContext(ctx, withdraw, at.UTC(), id); err != nil {
        return err
    }
    res, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return store.ErrNotFound
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// ListListingsByStudent returns every listing posted by the student,
// newest first.
func (s *Store) ListListingsByStudent(ctx context.Context, studentID uint64) ([]model.Listing, error) {
    const q = `SELECT ` + listingColumns + ` FROM listings WHERE student_id = ? ORDER BY created_at DESC, id DESC`
    rows, err := s.db.QueryContext(ctx, q, studentID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return collectListings(rows)
}

// SearchListings returns APPROVED listings matching the filter.  It
// builds the WHERE clause dynamically from the non-zero filter fields.
func (s *Store) SearchListings(ctx context.Context, f store.ListingFilter) ([]model.Listing, error) {
    var sb strings.Builder
    sb.WriteString(`SELECT ` + listingColumns + ` FROM listings WHERE status = 'APPROVED'`)
    args := make([]interface{}, 0, 6)
    if f.Subject != "" {
        sb.WriteString(` AND LOWER(subject) = LOWER(?)`)
        args = append(args, f.Subject)
    }
    if f.ClassLevel != "" {
        sb.WriteString(` AND LOWER(class_level) = LOWER(?)`)
        args = append(args, f.ClassLevel)
    }
    if f.Location != "" {
        sb.WriteString(` AND location LIKE ?`)
        args = append(args, "%"+f.Location+"%")
    }
    if f.MaxSalaryCents > 0 {
        sb.WriteString(` AND salary_cents <= ?`)
        args = append(args, f.MaxSalaryCents)
    }
    sb.WriteString(` ORDER BY created_at DESC, id DESC`)
    limit := f.Limit
    if limit <= 0 || limit > 100 {
        limit = 50
    }
    sb.WriteString(` LIMIT ? OFFSET ?`)
    args = append(args, limit, f.Offset)
    rows, err := s.db.QueryContext(ctx, sb.String(), args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return collectListings(rows)
}

// ListHiredListingsMissingPayment returns listings in HIRED status
// with no payment row.  A non-empty result means a hire committed but
// the payment record is missing, which the recovery pass repairs.
func (s *Store) ListHiredListingsMissingPayment(ctx context.Context) ([]model.Listing, error) {
    const q = `SELECT ` + listingPrefixedColumns + `
        FROM listings l
        LEFT JOIN payments p ON p.listing_id = l.id
        WHERE l.status = 'HIRED' AND p.id IS NULL`
    rows, err := s.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return collectListings(rows)
}

const listingPrefixedColumns = `l.id, l.student_id, l.subject, l.class_level, l.location, l.schedule,
    l.days_per_week, l.salary_cents, l.details, l.status, l.hired_tutor_id,
    l.created_at, l.approved_at, l.rejected_at, l.hired_at`

type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanListing(r rowScanner) (*model.Listing, error) {
    var l model.Listing
    var hiredTutor sql.NullInt64
    var approvedAt, rejectedAt, hiredAt sql.NullTime
    err := r.Scan(
        &l.ID, &l.StudentID, &l.Subject, &l.ClassLevel, &l.Location, &l.Schedule,
        &l.DaysPerWeek, &l.SalaryCents, &l.Details, &l.Status, &hiredTutor,
        &l.CreatedAt, &approvedAt, &rejectedAt, &hiredAt,
    )
    if err != nil {
        return nil, err
    }
    if hiredTutor.Valid {
        id := uint64(hiredTutor.Int64)
        l.HiredTutorID = &id
    }
    if approvedAt.Valid {
        t := approvedAt.Time
        l.ApprovedAt = &t
    }
    if rejectedAt.Valid {
        t := rejectedAt.Time
        l.RejectedAt = &t
    }
    if hiredAt.Valid {
        t := hiredAt.Time
        l.HiredAt = &t
    }
    return &l, nil
}

func collectListings(rows *sql.Rows) ([]model.Listing, error) {
    out := make([]model.Listing, 0)
    for rows.Next() {
        l, err := scanListing(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *l)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
