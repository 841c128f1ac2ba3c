// Package gateway implements the checkout.Gateway contract against
// Stripe Checkout.  Only this package touches the Stripe SDK; the
// rest of the system sees sessions and confirmations through the
// checkout package types.
package gateway

import (
    "context"

    "github.com/stripe/stripe-go/v79"
    "github.com/stripe/stripe-go/v79/client"

    "github.com/iliyamo/tuition-marketplace/internal/checkout"
)

// Stripe wraps a dedicated Stripe API client.  No package-level key is
// set; each handle carries its own credentials.
type Stripe struct {
    api *client.API
}

// NewStripe builds a gateway from the secret API key.
func NewStripe(secretKey string) *Stripe {
    api := &client.API{}
    api.Init(secretKey, nil)
    return &Stripe{api: api}
}

// CreateSession opens a hosted Checkout session with a single line
// item and the marketplace metadata attached.
func (s *Stripe) CreateSession(ctx context.Context, req checkout.SessionRequest) (*checkout.Session, error) {
    params := &stripe.CheckoutSessionParams{
        Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
        SuccessURL:        stripe.String(req.SuccessURL),
        CancelURL:         stripe.String(req.CancelURL),
        ClientReferenceID: stripe.String(req.ClientReference),
        LineItems: []*stripe.CheckoutSessionLineItemParams{{
            Quantity: stripe.Int64(1),
            PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
                Currency:   stripe.String(req.Currency),
                UnitAmount: stripe.Int64(req.AmountCents),
                ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
                    Name: stripe.String(req.Title),
                },
            },
        }},
    }
    params.Context = ctx
    for k, v := range req.Metadata {
        params.AddMetadata(k, v)
    }
    sess, err := s.api.CheckoutSessions.New(params)
    if err != nil {
        return nil, err
    }
    return &checkout.Session{ID: sess.ID, URL: sess.URL}, nil
}

// RetrieveSession fetches the current state of a session.  The
// payment intent id is the transaction reference: Stripe keeps it
// stable across retrievals, which makes it usable as the idempotency
// key.  Sessions created before payment completes fall back to the
// session id so recovery lookups still correlate.
func (s *Stripe) RetrieveSession(ctx context.Context, sessionID string) (*checkout.Confirmation, error) {
    params := &stripe.CheckoutSessionParams{}
    params.Context = ctx
    params.AddExpand("payment_intent")
    sess, err := s.api.CheckoutSessions.Get(sessionID, params)
    if err != nil {
        return nil, err
    }
    ref := sess.ID
    if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
        ref = sess.PaymentIntent.ID
    }
    return &checkout.Confirmation{
        SessionID:      sess.ID,
        TransactionRef: ref,
        Paid:           sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
        AmountCents:    sess.AmountTotal,
        Metadata:       sess.Metadata,
    }, nil
}
