// Package reconciler turns a payment confirmation into consistent
// listing, application and payment state.  It is safe to invoke any
// number of times for the same transaction reference: the first
// invocation creates the payment and applies the hire, every replay
// returns the same payment with no further state change.
package reconciler

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strconv"
    "time"

    "github.com/iliyamo/tuition-marketplace/internal/checkout"
    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

// ErrUnpaid is returned when a session is reconciled before the
// gateway reports it settled.  The caller may retry after payment.
var ErrUnpaid = errors.New("session not paid")

// Event is one payment-confirmation delivery.  TransactionRef and
// AmountCents come from the gateway and are trusted; the identifiers
// originate from checkout metadata and are treated as routing hints,
// re-validated against current state before anything is mutated.
type Event struct {
    TransactionRef string
    ListingID      uint64
    ApplicationID  uint64
    AmountCents    int64
}

// Reconciler drives the hire transition off confirmation events.
type Reconciler struct {
    store   store.Store
    gateway checkout.Gateway
    now     func() time.Time
}

// New constructs a reconciler.  The gateway may be nil when only
// Reconcile (not FromSession/Recover) is used, e.g. in tests feeding
// events directly.
func New(s store.Store, gw checkout.Gateway) *Reconciler {
    if s == nil {
        panic("nil store passed to reconciler.New")
    }
    return &Reconciler{store: s, gateway: gw, now: func() time.Time { return time.Now().UTC() }}
}

// FromSession retrieves the session from the gateway and reconciles
// it.  This is the path behind the success-redirect and webhook
// endpoints: the session id is the only client-supplied input, and
// everything acted on is re-read from the gateway.
func (r *Reconciler) FromSession(ctx context.Context, sessionID string) (*model.Payment, error) {
    conf, err := r.gateway.RetrieveSession(ctx, sessionID)
    if err != nil {
        return nil, err
    }
    ev, err := eventFromConfirmation(conf)
    if err != nil {
        return nil, err
    }
    return r.Reconcile(ctx, ev)
}

// Reconcile processes one confirmation event.  Exactly one of two
// outcomes is produced: the newly created payment together with the
// hire applied, or the previously created payment for the same
// transaction reference with no other visible state change.
func (r *Reconciler) Reconcile(ctx context.Context, ev Event) (*model.Payment, error) {
    // Step 1: idempotency check.  A payment for this reference means
    // the event was already processed; nothing else runs.
    existing, err := r.store.GetPaymentByRef(ctx, ev.TransactionRef)
    if err == nil {
        return r.replay(existing, ev)
    }
    if !errors.Is(err, store.ErrNotFound) {
        return nil, err
    }

    // Step 2: precondition validation against current state.  A stale
    // or duplicate checkout session referencing an already-hired
    // listing or decided application stops here.
    listing, err := r.store.GetListing(ctx, ev.ListingID)
    if err != nil {
        return nil, err
    }
    app, err := r.store.GetApplication(ctx, ev.ApplicationID)
    if err != nil {
        return nil, err
    }
    if app.ListingID != listing.ID ||
        listing.Status != model.ListingApproved ||
        app.Status != model.ApplicationPending {
        // The state may have been changed by a concurrent
        // reconciliation of this very reference that committed between
        // step 1 and here.  Re-check before calling the event stale:
        // a payment for the reference means this is the idempotent
        // replay case, not a forged or outdated confirmation.
        if winner, rerr := r.store.GetPaymentByRef(ctx, ev.TransactionRef); rerr == nil {
            return r.replay(winner, ev)
        }
        log.Printf("reconciler: integrity anomaly: stale confirmation ref=%s listing=%d(%s) application=%d(%s)",
            ev.TransactionRef, listing.ID, listing.Status, app.ID, app.Status)
        return nil, store.ErrInvalidState
    }

    // Steps 4+5: the hire transition and the payment insert as one
    // atomic unit.  The payer and payee come from the loaded records,
    // not from the event — metadata identifiers are hints, and the
    // settled amount comes from the gateway (step 3), never from a
    // client request.
    p, err := r.store.ConfirmHire(ctx, store.HireConfirmation{
        ListingID:      listing.ID,
        ApplicationID:  app.ID,
        TutorID:        app.TutorID,
        TransactionRef: ev.TransactionRef,
        PayerID:        listing.StudentID,
        PayeeID:        app.TutorID,
        AmountCents:    ev.AmountCents,
        Now:            r.now(),
    })
    if err != nil {
        if errors.Is(err, store.ErrDuplicateTransaction) || errors.Is(err, store.ErrInvalidState) {
            // A concurrent reconciliation may have won the race after
            // our reads: on the unique-reference collision it was this
            // same reference; on a failed conditional transition it
            // could have been either this reference or a different
            // one.  A payment for the reference settles it — resolve
            // internally and return the winning payment, not an error.
            winner, rerr := r.store.GetPaymentByRef(ctx, ev.TransactionRef)
            if rerr == nil {
                return r.replay(winner, ev)
            }
            if errors.Is(err, store.ErrDuplicateTransaction) {
                return nil, rerr
            }
        }
        return nil, err
    }
    return p, nil
}

// replay handles a confirmation whose payment already exists.  A
// matching amount returns the stored payment unchanged; a differing
// amount (a gateway correction) is a conflict that needs manual
// reconciliation, never a silent overwrite.
func (r *Reconciler) replay(p *model.Payment, ev Event) (*model.Payment, error) {
    if p.AmountCents != ev.AmountCents {
        log.Printf("reconciler: integrity anomaly: replay of ref=%s with amount %d, stored %d",
            ev.TransactionRef, ev.AmountCents, p.AmountCents)
        return nil, fmt.Errorf("replay amount mismatch for %s: %w", ev.TransactionRef, store.ErrConflict)
    }
    return p, nil
}

func eventFromConfirmation(conf *checkout.Confirmation) (Event, error) {
    if !conf.Paid {
        return Event{}, ErrUnpaid
    }
    if conf.AmountCents <= 0 {
        return Event{}, fmt.Errorf("confirmation %s: non-positive settled amount %d", conf.SessionID, conf.AmountCents)
    }
    listingID, err := strconv.ParseUint(conf.Metadata[checkout.MetaListingID], 10, 64)
    if err != nil {
        return Event{}, fmt.Errorf("confirmation %s: bad listing_id metadata: %w", conf.SessionID, err)
    }
    applicationID, err := strconv.ParseUint(conf.Metadata[checkout.MetaApplicationID], 10, 64)
    if err != nil {
        return Event{}, fmt.Errorf("confirmation %s: bad application_id metadata: %w", conf.SessionID, err)
    }
    return Event{
        TransactionRef: conf.TransactionRef,
        ListingID:      listingID,
        ApplicationID:  applicationID,
        AmountCents:    conf.AmountCents,
    }, nil
}
