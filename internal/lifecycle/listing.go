package lifecycle

import (
    "context"
    "time"

    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

// Listings owns the listing state machine:
//
//    PENDING -> APPROVED | REJECTED   (moderation)
//    APPROVED -> HIRED                (reconciler only, not here)
//
// REJECTED and HIRED are terminal.  All methods take the acting user
// so ownership is checked against current state, never against
// client-supplied identifiers.
type Listings struct {
    store store.Store
}

// NewListings returns a listing lifecycle bound to the given store.
func NewListings(s store.Store) *Listings {
    if s == nil {
        panic("nil store passed to NewListings")
    }
    return &Listings{store: s}
}

// Create inserts a new PENDING listing owned by the student.
func (l *Listings) Create(ctx context.Context, studentID uint64, attrs model.ListingAttrs) (*model.Listing, error) {
    listing := &model.Listing{
        StudentID:   studentID,
        Subject:     attrs.Subject,
        ClassLevel:  attrs.ClassLevel,
        Location:    attrs.Location,
        Schedule:    attrs.Schedule,
        DaysPerWeek: attrs.DaysPerWeek,
        SalaryCents: attrs.SalaryCents,
        Details:     attrs.Details,
    }
    if err := l.store.CreateListing(ctx, listing); err != nil {
        return nil, err
    }
    return listing, nil
}

// Get returns a listing by id.
func (l *Listings) Get(ctx context.Context, id uint64) (*model.Listing, error) {
    return l.store.GetListing(ctx, id)
}

// Moderate moves a PENDING listing to APPROVED or REJECTED.  Any
// other current status yields store.ErrInvalidState.  Role enforcement
// (admin only) is the router's job.
func (l *Listings) Moderate(ctx context.Context, id uint64, approve bool) error {
    to := model.ListingRejected
    if approve {
        to = model.ListingApproved
    }
    return l.store.ModerateListing(ctx, id, to, time.Now().UTC())
}

// Update overwrites the listing attributes.  Only the owner may edit,
// and not once the listing is APPROVED (under tutor review) or HIRED.
func (l *Listings) Update(ctx context.Context, id, requesterID uint64, attrs model.ListingAttrs) error {
    listing, err := l.store.GetListing(ctx, id)
    if err != nil {
        return err
    }
    if listing.StudentID != requesterID {
        return ErrForbidden
    }
    if listing.Status == model.ListingApproved || listing.Status == model.ListingHired {
        return store.ErrInvalidState
    }
    return l.store.UpdateListingAttrs(ctx, id, attrs)
}

// Withdraw deletes the listing and cascades a WITHDRAWN decision over
// all of its pending applications, so none of them can later be
// approved against a listing that no longer exists.  A HIRED listing
// cannot be withdrawn; its payment record refers to it.
func (l *Listings) Withdraw(ctx context.Context, id, requesterID uint64) error {
    listing, err := l.store.GetListing(ctx, id)
    if err != nil {
        return err
    }
    if listing.StudentID != requesterID {
        return ErrForbidden
    }
    if listing.Status == model.ListingHired {
        return store.ErrInvalidState
    }
    return l.store.DeleteListing(ctx, id, time.Now().UTC())
}

// ListMine returns the student's own listings.
func (l *Listings) ListMine(ctx context.Context, studentID uint64) ([]model.Listing, error) {
    return l.store.ListListingsByStudent(ctx, studentID)
}

// Search returns APPROVED listings matching the filter.
func (l *Listings) Search(ctx context.Context, f store.ListingFilter) ([]model.Listing, error) {
    return l.store.SearchListings(ctx, f)
}
