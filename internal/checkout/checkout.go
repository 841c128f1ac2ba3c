// Package checkout builds payment-gateway sessions for hiring a tutor
// and defines the Gateway contract the reconciler consumes
// confirmations through.  The metadata attached here must round-trip
// unmodified through the gateway: the reconciler reads it back as
// routing hints only and re-validates every identifier against
// current state.
package checkout

import (
    "context"
    "strconv"

    "github.com/google/uuid"

    "github.com/iliyamo/tuition-marketplace/internal/lifecycle"
    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

// Metadata keys carried on the gateway session.
const (
    MetaListingID     = "listing_id"
    MetaApplicationID = "application_id"
    MetaPayerID       = "payer_id"
    MetaPayeeID       = "payee_id"
)

// SessionRequest is what the gateway needs to open a hosted checkout.
type SessionRequest struct {
    Title           string            // line item shown to the payer
    AmountCents     int64             // charge amount in minor units
    Currency        string            // ISO currency code, lower case
    Metadata        map[string]string // opaque, round-trips to confirmation
    ClientReference string            // our correlation id for the session
    SuccessURL      string
    CancelURL       string
}

// Session is the gateway's answer to CreateSession.
type Session struct {
    ID  string // gateway session reference, stored for recovery
    URL string // redirect URL for the payer
}

// Confirmation is the settled view of a session as reported by the
// gateway.  Only TransactionRef and AmountCents are trusted; the
// metadata identifiers are re-validated by the reconciler.
type Confirmation struct {
    SessionID      string
    TransactionRef string // unique per real-world payment
    Paid           bool
    AmountCents    int64 // gateway's authoritative settled total
    Metadata       map[string]string
}

// Gateway abstracts the payment provider.  The production
// implementation lives in internal/gateway; tests substitute a fake.
type Gateway interface {
    CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
    RetrieveSession(ctx context.Context, sessionID string) (*Confirmation, error)
}

// Initiator validates a listing/application pair and opens a gateway
// session for it.
type Initiator struct {
    store      store.Store
    gateway    Gateway
    currency   string
    successURL string
    cancelURL  string
}

// NewInitiator constructs a checkout initiator.
func NewInitiator(s store.Store, gw Gateway, currency, successURL, cancelURL string) *Initiator {
    if s == nil || gw == nil {
        panic("nil dependency passed to NewInitiator")
    }
    return &Initiator{store: s, gateway: gw, currency: currency, successURL: successURL, cancelURL: cancelURL}
}

// Begin opens a checkout session for hiring the given application on
// the given listing.  The payer must own the listing, the listing must
// be APPROVED and the application PENDING on that listing.  The
// session reference is recorded on the application so a crashed
// reconciliation can be re-derived from the gateway later.
func (i *Initiator) Begin(ctx context.Context, listingID, applicationID, payerID uint64) (*Session, error) {
    listing, err := i.store.GetListing(ctx, listingID)
    if err != nil {
        return nil, err
    }
    app, err := i.store.GetApplication(ctx, applicationID)
    if err != nil {
        return nil, err
    }
    if listing.StudentID != payerID {
        return nil, lifecycle.ErrForbidden
    }
    if listing.Status != model.ListingApproved || app.Status != model.ApplicationPending || app.ListingID != listing.ID {
        return nil, store.ErrInvalidState
    }

    req := SessionRequest{
        Title:       "Tuition hire: " + listing.Subject,
        AmountCents: int64(app.ExpectedSalaryCents),
        Currency:    i.currency,
        Metadata: map[string]string{
            MetaListingID:     strconv.FormatUint(listing.ID, 10),
            MetaApplicationID: strconv.FormatUint(app.ID, 10),
            MetaPayerID:       strconv.FormatUint(listing.StudentID, 10),
            MetaPayeeID:       strconv.FormatUint(app.TutorID, 10),
        },
        ClientReference: uuid.NewString(),
        SuccessURL:      i.successURL,
        CancelURL:       i.cancelURL,
    }
    sess, err := i.gateway.CreateSession(ctx, req)
    if err != nil {
        return nil, err
    }
    if err := i.store.SetApplicationCheckoutRef(ctx, app.ID, sess.ID); err != nil {
        return nil, err
    }
    return sess, nil
}
