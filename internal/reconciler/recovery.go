package reconciler

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

// Recover repairs listings stuck in HIRED with no payment row, the
// state a crash between the hire commit and the payment insert would
// leave behind on a store without multi-record transactions.  The
// policy is forward-completion: the money has already moved, so the
// missing payment is re-created from the gateway's view of the
// session rather than the hire being rolled back.  Every anomaly is
// logged; none is dropped.  It returns the number of payments
// repaired.
func (r *Reconciler) Recover(ctx context.Context) (int, error) {
    stuck, err := r.store.ListHiredListingsMissingPayment(ctx)
    if err != nil {
        return 0, err
    }
    repaired := 0
    for _, listing := range stuck {
        app, err := r.store.ApprovedApplicationForListing(ctx, listing.ID)
        if err != nil {
            // A hired listing with no approved application violates
            // the hire invariant outright; operator follow-up needed.
            log.Printf("reconciler: recovery anomaly: listing %d is HIRED with no approved application: %v", listing.ID, err)
            continue
        }
        if app.CheckoutRef == nil {
            log.Printf("reconciler: recovery anomaly: listing %d application %d has no checkout reference", listing.ID, app.ID)
            continue
        }
        conf, err := r.gateway.RetrieveSession(ctx, *app.CheckoutRef)
        if err != nil {
            log.Printf("reconciler: recovery: gateway lookup failed for listing %d session %s: %v", listing.ID, *app.CheckoutRef, err)
            continue
        }
        if !conf.Paid {
            log.Printf("reconciler: recovery anomaly: listing %d is HIRED but session %s is unpaid", listing.ID, conf.SessionID)
            continue
        }
        p := paymentForRecovery(listing.StudentID, app.TutorID, listing.ID, app.ID, conf.TransactionRef, conf.AmountCents, r.now())
        if err := r.store.CreatePayment(ctx, p); err != nil {
            if errors.Is(err, store.ErrDuplicateTransaction) {
                // Someone else completed it between our scan and the
                // insert; that is the outcome we wanted.
                continue
            }
            log.Printf("reconciler: recovery: payment insert failed for listing %d ref %s: %v", listing.ID, conf.TransactionRef, err)
            continue
        }
        log.Printf("reconciler: recovery: forward-completed payment ref=%s for listing %d", conf.TransactionRef, listing.ID)
        repaired++
    }
    return repaired, nil
}

func paymentForRecovery(payerID, payeeID, listingID, applicationID uint64, ref string, amountCents int64, at time.Time) *model.Payment {
    return &model.Payment{
        TransactionRef: ref,
        ListingID:      listingID,
        ApplicationID:  applicationID,
        PayerID:        payerID,
        PayeeID:        payeeID,
        AmountCents:    amountCents,
        Status:         model.PaymentCompleted,
        PaidAt:         at,
    }
}
