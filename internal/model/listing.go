package model

import "time"

// Listing status values.  A listing starts PENDING and is moderated
// into APPROVED or REJECTED.  Only an APPROVED listing can be hired,
// and the hire transition is performed exclusively by the payment
// reconciler.  REJECTED and HIRED are terminal.
const (
    ListingPending  = "PENDING"
    ListingApproved = "APPROVED"
    ListingRejected = "REJECTED"
    ListingHired    = "HIRED"
)

// Listing represents a student's tuition request.  After moderation it
// is opened for tutor applications and, once a payment for one of its
// applications settles, it is bound to exactly one hired tutor.
//
// Fields:
//  ID           – primary key identifier.
//  StudentID    – user who posted the listing.
//  Subject      – subject the student wants tutored.
//  ClassLevel   – class/grade level (free text, opaque to the core).
//  Location     – where tuition takes place.
//  Schedule     – preferred schedule description.
//  DaysPerWeek  – requested tuition days per week.
//  SalaryCents  – student's offered budget in cents.
//  Details      – free-form additional requirements.
//  Status       – PENDING, APPROVED, REJECTED or HIRED.
//  HiredTutorID – tutor bound on hire; non-nil iff Status is HIRED and
//                 immutable once set.
//  CreatedAt    – creation timestamp.
//  ApprovedAt   – set exactly once by the approve moderation.
//  RejectedAt   – set exactly once by the reject moderation.
//  HiredAt      – set exactly once by the hire transition.
type Listing struct {
    ID           uint64     // listings.id
    StudentID    uint64     // listings.student_id
    Subject      string     // listings.subject
    ClassLevel   string     // listings.class_level
    Location     string     // listings.location
    Schedule     string     // listings.schedule
    DaysPerWeek  uint8      // listings.days_per_week
    SalaryCents  uint32     // listings.salary_cents
    Details      string     // listings.details
    Status       string     // listings.status
    HiredTutorID *uint64    // listings.hired_tutor_id (nullable)
    CreatedAt    time.Time  // listings.created_at
    ApprovedAt   *time.Time // listings.approved_at (nullable)
    RejectedAt   *time.Time // listings.rejected_at (nullable)
    HiredAt      *time.Time // listings.hired_at (nullable)
}

// ListingAttrs carries the student-editable attributes of a listing.
// The core treats these as opaque; they are validated only for
// presence at the HTTP layer.
type ListingAttrs struct {
    Subject     string
    ClassLevel  string
    Location    string
    Schedule    string
    DaysPerWeek uint8
    SalaryCents uint32
    Details     string
}
