package model

import "time"

// Application status values.  PENDING applications may be amended or
// withdrawn by the tutor and rejected by the listing owner.  APPROVED
// is reachable only through the payment reconciler when a hire
// settles.  APPROVED, REJECTED and WITHDRAWN are terminal.
const (
    ApplicationPending   = "PENDING"
    ApplicationApproved  = "APPROVED"
    ApplicationRejected  = "REJECTED"
    ApplicationWithdrawn = "WITHDRAWN"
)

// Application represents one tutor's bid on a listing.  A tutor may
// hold at most one non-withdrawn application per listing, and at most
// one application per listing ever reaches APPROVED — exactly when the
// parent listing transitions to HIRED with that application's tutor.
//
// Fields:
//  ID                  – primary key identifier.
//  ListingID           – listing being applied to.
//  TutorID             – user who applied.
//  Qualifications      – tutor's stated qualifications (opaque).
//  Experience          – tutor's stated experience (opaque).
//  ExpectedSalaryCents – tutor's asking price in cents.
//  Status              – PENDING, APPROVED, REJECTED or WITHDRAWN.
//  CheckoutRef         – gateway session reference recorded when a
//                        checkout is initiated for this application;
//                        lets recovery re-derive the transaction.
//  AppliedAt           – creation timestamp.
//  DecidedAt           – set once when the application leaves PENDING.
type Application struct {
    ID                  uint64     // applications.id
    ListingID           uint64     // applications.listing_id
    TutorID             uint64     // applications.tutor_id
    Qualifications      string     // applications.qualifications
    Experience          string     // applications.experience
    ExpectedSalaryCents uint32     // applications.expected_salary_cents
    Status              string     // applications.status
    CheckoutRef         *string    // applications.checkout_ref (nullable)
    AppliedAt           time.Time  // applications.applied_at
    DecidedAt           *time.Time // applications.decided_at (nullable)
}

// ApplicationBid carries the tutor-editable attributes of an
// application.
type ApplicationBid struct {
    Qualifications      string
    Experience          string
    ExpectedSalaryCents uint32
}
