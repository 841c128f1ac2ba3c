package lifecycle

import (
    "context"
    "time"

    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

// Applications owns the application state machine:
//
//    PENDING -> REJECTED | WITHDRAWN   (owner / tutor decisions)
//    PENDING -> APPROVED               (reconciler only, not here)
//
// APPROVED, REJECTED and WITHDRAWN are terminal.
type Applications struct {
    store store.Store
}

// NewApplications returns an application lifecycle bound to the given
// store.
func NewApplications(s store.Store) *Applications {
    if s == nil {
        panic("nil store passed to NewApplications")
    }
    return &Applications{store: s}
}

// Apply creates a PENDING application by the tutor on the listing.
// The listing must be APPROVED (open for applications); anything else
// yields store.ErrInvalidState.  A second non-withdrawn application by
// the same tutor yields store.ErrConflict — the uniqueness check runs
// transactionally with the insert in the store, so two concurrent
// duplicate applies cannot both succeed.
func (a *Applications) Apply(ctx context.Context, listingID, tutorID uint64, bid model.ApplicationBid) (*model.Application, error) {
    listing, err := a.store.GetListing(ctx, listingID)
    if err != nil {
        return nil, err
    }
    if listing.Status != model.ListingApproved {
        return nil, store.ErrInvalidState
    }
    if listing.StudentID == tutorID {
        // A student cannot bid on their own listing.
        return nil, ErrForbidden
    }
    app := &model.Application{
        ListingID:           listingID,
        TutorID:             tutorID,
        Qualifications:      bid.Qualifications,
        Experience:          bid.Experience,
        ExpectedSalaryCents: bid.ExpectedSalaryCents,
    }
    if err := a.store.CreateApplication(ctx, app); err != nil {
        return nil, err
    }
    return app, nil
}

// Get returns an application by id.
func (a *Applications) Get(ctx context.Context, id uint64) (*model.Application, error) {
    return a.store.GetApplication(ctx, id)
}

// Amend overwrites the bid while the application is still PENDING.
// Only the applying tutor may amend.
func (a *Applications) Amend(ctx context.Context, id, requesterID uint64, bid model.ApplicationBid) error {
    app, err := a.store.GetApplication(ctx, id)
    if err != nil {
        return err
    }
    if app.TutorID != requesterID {
        return ErrForbidden
    }
    return a.store.AmendApplication(ctx, id, bid)
}

// Reject moves a PENDING application to REJECTED.  Only the owner of
// the parent listing may reject (students screening candidates); the
// reconciler rejects losing bids through its own atomic path.
func (a *Applications) Reject(ctx context.Context, id, requesterID uint64) error {
    app, err := a.store.GetApplication(ctx, id)
    if err != nil {
        return err
    }
    listing, err := a.store.GetListing(ctx, app.ListingID)
    if err != nil {
        return err
    }
    if listing.StudentID != requesterID {
        return ErrForbidden
    }
    return a.store.DecideApplication(ctx, id, model.ApplicationRejected, time.Now().UTC())
}

// Withdraw moves a PENDING application to WITHDRAWN.  Only the
// applying tutor may withdraw.
func (a *Applications) Withdraw(ctx context.Context, id, requesterID uint64) error {
    app, err := a.store.GetApplication(ctx, id)
    if err != nil {
        return err
    }
    if app.TutorID != requesterID {
        return ErrForbidden
    }
    return a.store.DecideApplication(ctx, id, model.ApplicationWithdrawn, time.Now().UTC())
}

// ListForListing returns all applications on a listing; only the
// listing owner may see them.
func (a *Applications) ListForListing(ctx context.Context, listingID, requesterID uint64) ([]model.Application, error) {
    listing, err := a.store.GetListing(ctx, listingID)
    if err != nil {
        return nil, err
    }
    if listing.StudentID != requesterID {
        return nil, ErrForbidden
    }
    return a.store.ListApplicationsByListing(ctx, listingID)
}

// ListMine returns the tutor's own applications.
func (a *Applications) ListMine(ctx context.Context, tutorID uint64) ([]model.Application, error) {
    return a.store.ListApplicationsByTutor(ctx, tutorID)
}
