// Package queue defines message payloads exchanged over the message broker.
package queue

// HireConfirmedEvent is published when a hire settles, i.e. a payment
// confirmation was reconciled and the listing was bound to its tutor.
// It contains enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type HireConfirmedEvent struct {
    PaymentID      uint64 `json:"payment_id"`
    TransactionRef string `json:"transaction_ref"`
    ListingID      uint64 `json:"listing_id"`
    ApplicationID  uint64 `json:"application_id"`
    Subject        string `json:"subject"`
    StudentID      uint64 `json:"student_id"`
    TutorID        uint64 `json:"tutor_id"`
    AmountCents    int64  `json:"amount_cents"`
    HiredAt        string `json:"hired_at"`
}
