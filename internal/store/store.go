package store

import (
    "context"
    "time"

    "github.com/iliyamo/tuition-marketplace/internal/model"
)

// ListingFilter narrows SearchListings.  Zero values mean "no
// constraint".  Only APPROVED listings are ever returned by search;
// the other statuses are not publicly visible.
type ListingFilter struct {
    Subject        string // exact, case-insensitive match on subject
    ClassLevel     string // exact, case-insensitive match on class level
    Location       string // substring match on location
    MaxSalaryCents uint32 // inclusive upper bound on offered salary
    Limit          int    // page size; implementations cap this
    Offset         int    // page offset
}

// HireConfirmation carries everything ConfirmHire needs to apply the
// hire transition and record the settlement as one atomic unit.  The
// identifiers must already have been validated against current state
// by the reconciler; ConfirmHire re-checks them conditionally so a
// concurrent reconciliation cannot slip past.
type HireConfirmation struct {
    ListingID      uint64    // listing moving APPROVED -> HIRED
    ApplicationID  uint64    // winning application moving PENDING -> APPROVED
    TutorID        uint64    // tutor bound to the listing
    TransactionRef string    // gateway idempotency key
    PayerID        uint64    // paying student
    PayeeID        uint64    // hired tutor (payee on the payment row)
    AmountCents    int64     // gateway settled total
    Now            time.Time // decided_at / hired_at / paid_at timestamp
}

// Store is the persistence interface for the marketplace ledger.  All
// status transitions are conditional on the expected current status
// (update-if-status-equals); an update that matches no row reports
// ErrInvalidState rather than silently writing.  Implementations must
// enforce a unique index on payments.transaction_ref and on
// (listing_id, tutor_id) among non-withdrawn applications.
type Store interface {
    // Listings.
    CreateListing(ctx context.Context, l *model.Listing) error
    GetListing(ctx context.Context, id uint64) (*model.Listing, error)
    UpdateListingAttrs(ctx context.Context, id uint64, attrs model.ListingAttrs) error
    // ModerateListing moves a PENDING listing to APPROVED or REJECTED
    // and stamps the matching decision timestamp exactly once.
    ModerateListing(ctx context.Context, id uint64, to string, at time.Time) error
    // DeleteListing removes a listing and atomically marks all of its
    // non-terminal applications WITHDRAWN so a dangling application
    // can never later be approved.
    DeleteListing(ctx context.Context, id uint64, at time.Time) error
    ListListingsByStudent(ctx context.Context, studentID uint64) ([]model.Listing, error)
    SearchListings(ctx context.Context, f ListingFilter) ([]model.Listing, error)
    // ListHiredListingsMissingPayment returns listings stuck in HIRED
    // with no payment row.  It backs the recovery pass.
    ListHiredListingsMissingPayment(ctx context.Context) ([]model.Listing, error)

    // Applications.
    // CreateApplication inserts a PENDING application.  The duplicate
    // check for (listing_id, tutor_id) runs transactionally with the
    // insert; a duplicate reports ErrConflict.
    CreateApplication(ctx context.Context, a *model.Application) error
    GetApplication(ctx context.Context, id uint64) (*model.Application, error)
    AmendApplication(ctx context.Context, id uint64, bid model.ApplicationBid) error
    // DecideApplication moves a PENDING application to REJECTED or
    // WITHDRAWN and stamps decided_at.  APPROVED is reachable only via
    // ConfirmHire.
    DecideApplication(ctx context.Context, id uint64, to string, at time.Time) error
    // SetApplicationCheckoutRef records the gateway session reference
    // attached to an application at checkout creation so recovery can
    // re-derive the transaction from the gateway after a crash.
    SetApplicationCheckoutRef(ctx context.Context, id uint64, ref string) error
    ListApplicationsByListing(ctx context.Context, listingID uint64) ([]model.Application, error)
    ListApplicationsByTutor(ctx context.Context, tutorID uint64) ([]model.Application, error)
    // ApprovedApplicationForListing returns the single APPROVED
    // application of a listing, or ErrNotFound when none exists.
    ApprovedApplicationForListing(ctx context.Context, listingID uint64) (*model.Application, error)

    // Payments.
    GetPaymentByRef(ctx context.Context, transactionRef string) (*model.Payment, error)
    // CreatePayment inserts a completed payment row on its own.  It is
    // used only by the recovery pass to forward-complete a hire whose
    // payment insert was lost; the normal path goes through
    // ConfirmHire.  A transaction_ref collision reports
    // ErrDuplicateTransaction.
    CreatePayment(ctx context.Context, p *model.Payment) error
    ListPaymentsByUser(ctx context.Context, userID uint64) ([]model.Payment, error)

    // ConfirmHire applies, as a single atomic unit: winning
    // application PENDING -> APPROVED, every other PENDING application
    // of the listing -> REJECTED, listing APPROVED -> HIRED with the
    // tutor bound, and the payment insert.  No reader may observe a
    // partial application of these writes.  The payment insert commits
    // last; ErrDuplicateTransaction means another reconciliation won
    // the race and the whole unit was rolled back.
    ConfirmHire(ctx context.Context, h HireConfirmation) (*model.Payment, error)
}
