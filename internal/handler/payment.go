package handler // checkout initiation and payment confirmation endpoints

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/tuition-marketplace/internal/checkout"
    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/queue"
    "github.com/iliyamo/tuition-marketplace/internal/reconciler"
    queue_publisher "github.com/iliyamo/tuition-marketplace/internal/service"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

// PaymentHandler wires the checkout initiator and the reconciler to
// HTTP.  Confirmation is accepted from two directions — the payer's
// success redirect and the gateway webhook — and both funnel into the
// same idempotent reconciliation, so duplicate deliveries are safe.
type PaymentHandler struct {
    Initiator  *checkout.Initiator
    Reconciler *reconciler.Reconciler
    Store      store.Store
}

func NewPaymentHandler(i *checkout.Initiator, r *reconciler.Reconciler, s store.Store) *PaymentHandler {
    return &PaymentHandler{Initiator: i, Reconciler: r, Store: s}
}

// BeginCheckout handles POST /v1/checkout.  The authenticated student
// picks one application on their listing and receives a gateway
// redirect URL.
func (h *PaymentHandler) BeginCheckout(c echo.Context) error {
    payerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        ListingID     uint64 `json:"listing_id"`
        ApplicationID uint64 `json:"application_id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.ListingID == 0 || body.ApplicationID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "listing_id and application_id are required"})
    }
    sess, err := h.Initiator.Begin(c.Request().Context(), body.ListingID, body.ApplicationID, payerID)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"session_id": sess.ID, "checkout_url": sess.URL})
}

// ConfirmCheckout handles POST /v1/checkout/confirm.  The payer lands
// here after the gateway redirect with the session id; the settled
// state is re-read from the gateway, never trusted from the client.
func (h *PaymentHandler) ConfirmCheckout(c echo.Context) error {
    if _, err := getUserID(c); err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        SessionID string `json:"session_id"`
    }
    if err := c.Bind(&body); err != nil || strings.TrimSpace(body.SessionID) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id required"})
    }
    return h.reconcileSession(c, strings.TrimSpace(body.SessionID))
}

// Webhook handles POST /v1/webhooks/checkout, the gateway's
// server-to-server notification.  Both the bare {"session_id": ...}
// shape and the gateway event envelope are accepted.
func (h *PaymentHandler) Webhook(c echo.Context) error {
    var body struct {
        SessionID string `json:"session_id"`
        Type      string `json:"type"`
        Data      struct {
            Object struct {
                ID string `json:"id"`
            } `json:"object"`
        } `json:"data"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    sessionID := strings.TrimSpace(body.SessionID)
    if sessionID == "" {
        sessionID = strings.TrimSpace(body.Data.Object.ID)
    }
    if sessionID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "session id missing"})
    }
    if body.Type != "" && body.Type != "checkout.session.completed" {
        // Other event types are acknowledged and ignored.
        return c.NoContent(http.StatusOK)
    }
    return h.reconcileSession(c, sessionID)
}

func (h *PaymentHandler) reconcileSession(c echo.Context, sessionID string) error {
    p, err := h.Reconciler.FromSession(c.Request().Context(), sessionID)
    if err != nil {
        if errors.Is(err, reconciler.ErrUnpaid) {
            return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "session not paid"})
        }
        return writeDomainError(c, err)
    }
    h.publishHire(c.Request().Context(), p)
    return c.JSON(http.StatusOK, renderPayment(p))
}

// publishHire emits the hire.confirmed event best-effort; a broker
// outage never fails the confirmation that was already committed.
func (h *PaymentHandler) publishHire(ctx context.Context, p *model.Payment) {
    subject := ""
    if listing, err := h.Store.GetListing(ctx, p.ListingID); err == nil {
        subject = listing.Subject
    }
    _ = queue_publisher.PublishHireConfirmed(ctx, queue.HireConfirmedEvent{
        PaymentID:      p.ID,
        TransactionRef: p.TransactionRef,
        ListingID:      p.ListingID,
        ApplicationID:  p.ApplicationID,
        Subject:        subject,
        StudentID:      p.PayerID,
        TutorID:        p.PayeeID,
        AmountCents:    p.AmountCents,
        HiredAt:        p.PaidAt.UTC().Format(time.RFC3339),
    })
}

// ListMine handles GET /v1/payments and returns payments where the
// caller is payer or payee.
func (h *PaymentHandler) ListMine(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items, err := h.Store.ListPaymentsByUser(c.Request().Context(), userID)
    if err != nil {
        return writeDomainError(c, err)
    }
    out := make([]paymentResp, 0, len(items))
    for i := range items {
        out = append(out, renderPayment(&items[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}
