package mysql

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

const paymentColumns = `id, transaction_ref, listing_id, application_id,
    payer_id, payee_id, amount_cents, status, paid_at`

// GetPaymentByRef looks up a payment by its external transaction
// reference, the idempotency key.
func (s *Store) GetPaymentByRef(ctx context.Context, transactionRef string) (*model.Payment, error) {
    const q = `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_ref = ?`
    p, err := scanPayment(s.db.QueryRowContext(ctx, q, transactionRef))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, store.ErrNotFound
        }
        return nil, err
    }
    return p, nil
}

// CreatePayment inserts a completed payment row outside of a hire
// transaction.  Only the recovery pass uses it, to forward-complete a
// hire whose payment insert was lost.
func (s *Store) CreatePayment(ctx context.Context, p *model.Payment) error {
    const q = `INSERT INTO payments
        (transaction_ref, listing_id, application_id, payer_id, payee_id, amount_cents, status, paid_at)
        VALUES (?, ?, ?, ?, ?, ?, 'COMPLETED', ?)`
    res, err := s.db.ExecContext(ctx, q,
        p.TransactionRef, p.ListingID, p.ApplicationID, p.PayerID, p.PayeeID,
        p.AmountCents, p.PaidAt.UTC())
    if err != nil {
        if isDuplicate(err) {
            return store.ErrDuplicateTransaction
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    p.ID = uint64(id)
    p.Status = model.PaymentCompleted
    return nil
}

// ListPaymentsByUser returns payments where the user is payer or
// payee, newest first.
func (s *Store) ListPaymentsByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
    const q = `SELECT ` + paymentColumns + ` FROM payments
        WHERE payer_id = ? OR payee_id = ? ORDER BY id DESC`
    rows, err := s.db.QueryContext(ctx, q, userID, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Payment, 0)
    for rows.Next() {
        p, err := scanPayment(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *p)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// ConfirmHire applies the full hire transition and the payment insert
// in one transaction.  The conditional updates re-check listing and
// application status inside the transaction, so a reconciliation that
// lost a race observes zero affected rows and reports ErrInvalidState
// instead of double-hiring.  The payment insert runs last; a 1062 on
// transaction_ref rolls the whole unit back and reports
// ErrDuplicateTransaction for the reconciler to resolve by re-read.
func (s *Store) ConfirmHire(ctx context.Context, h store.HireConfirmation) (*model.Payment, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    now := h.Now.UTC()

    // Approve the winning application, conditionally on it still being
    // PENDING on this listing.
    const approve = `UPDATE applications
        SET status = 'APPROVED', decided_at = ?
        WHERE id = ? AND listing_id = ? AND status = 'PENDING'`
    res, err := tx.ExecContext(ctx, approve, now, h.ApplicationID, h.ListingID)
    if err != nil {
        return nil, err
    }
    if n, err := res.RowsAffected(); err != nil {
        return nil, err
    } else if n == 0 {
        return nil, store.ErrInvalidState
    }

    // Close out every losing bid in the same unit.
    const rejectOthers = `UPDATE applications
        SET status = 'REJECTED', decided_at = ?
        WHERE listing_id = ? AND id <> ? AND status = 'PENDING'`
    if _, err := tx.ExecContext(ctx, rejectOthers, now, h.ListingID, h.ApplicationID); err != nil {
        return nil, err
    }

    // Hire the listing, conditionally on it still being APPROVED.
    // This is the only statement anywhere that sets HIRED.
    const hire = `UPDATE listings
        SET status = 'HIRED', hired_tutor_id = ?, hired_at = ?
        WHERE id = ? AND status = 'APPROVED'`
    res, err = tx.ExecContext(ctx, hire, h.TutorID, now, h.ListingID)
    if err != nil {
        return nil, err
    }
    if n, err := res.RowsAffected(); err != nil {
        return nil, err
    } else if n == 0 {
        return nil, store.ErrInvalidState
    }

    // Payment insert last: the idempotency guard must not commit
    // before the state updates it guards are guaranteed to apply.
    const insert = `INSERT INTO payments
        (transaction_ref, listing_id, application_id, payer_id, payee_id, amount_cents, status, paid_at)
        VALUES (?, ?, ?, ?, ?, ?, 'COMPLETED', ?)`
    res, err = tx.ExecContext(ctx, insert,
        h.TransactionRef, h.ListingID, h.ApplicationID, h.PayerID, h.PayeeID,
        h.AmountCents, now)
    if err != nil {
        if isDuplicate(err) {
            return nil, store.ErrDuplicateTransaction
        }
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return &model.Payment{
        ID:             uint64(id),
        TransactionRef: h.TransactionRef,
        ListingID:      h.ListingID,
        ApplicationID:  h.ApplicationID,
        PayerID:        h.PayerID,
        PayeeID:        h.PayeeID,
        AmountCents:    h.AmountCents,
        Status:         model.PaymentCompleted,
        PaidAt:         now,
    }, nil
}

func scanPayment(r rowScanner) (*model.Payment, error) {
    var p model.Payment
    err := r.Scan(
        &p.ID, &p.TransactionRef, &p.ListingID, &p.ApplicationID,
        &p.PayerID, &p.PayeeID, &p.AmountCents, &p.Status, &p.PaidAt,
    )
    if err != nil {
        return nil, err
    }
    return &p, nil
}
