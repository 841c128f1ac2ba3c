package model

import "time"

// PaymentCompleted is the only status a payment row is ever written
// with.  Payments are created exactly once by the reconciler and never
// mutated afterwards.
const PaymentCompleted = "COMPLETED"

// Payment records one completed settlement for a hire.  The external
// transaction reference is the idempotency key: at most one payment
// row exists per reference for the lifetime of the system.
//
// Fields:
//  ID             – primary key identifier.
//  TransactionRef – unique reference issued by the payment gateway.
//  ListingID      – listing whose hire this payment settled.
//  ApplicationID  – winning application.
//  PayerID        – paying student.
//  PayeeID        – hired tutor.
//  AmountCents    – gateway's authoritative settled total in cents.
//  Status         – always COMPLETED.
//  PaidAt         – settlement timestamp.
type Payment struct {
    ID             uint64    // payments.id
    TransactionRef string    // payments.transaction_ref (unique)
    ListingID      uint64    // payments.listing_id
    ApplicationID  uint64    // payments.application_id
    PayerID        uint64    // payments.payer_id
    PayeeID        uint64    // payments.payee_id
    AmountCents    int64     // payments.amount_cents
    Status         string    // payments.status
    PaidAt         time.Time // payments.paid_at
}
