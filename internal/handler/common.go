package handler // shared helpers used by the marketplace handlers

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/tuition-marketplace/internal/lifecycle"
    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

// getUserID extracts the authenticated user id placed in the context by
// the JWT middleware.  The claim may arrive as several numeric types
// depending on how the token was decoded, so all of them are accepted.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// pathID parses the named path parameter as an unsigned identifier.
func pathID(c echo.Context, name string) (uint64, error) {
    return strconv.ParseUint(c.Param(name), 10, 64)
}

// writeDomainError maps the core error taxonomy onto HTTP responses.
// Unknown errors become a generic 500 without leaking internals.
func writeDomainError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, store.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    case errors.Is(err, lifecycle.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, store.ErrInvalidState):
        return c.JSON(http.StatusConflict, echo.Map{"error": "invalid state for this operation"})
    case errors.Is(err, store.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}

// ----- response DTOs -----
//
// The model structs carry no json tags; every wire shape is declared
// here so the storage layout can move without changing the API.

type listingResp struct {
    ID           uint64     `json:"id"`
    StudentID    uint64     `json:"student_id"`
    Subject      string     `json:"subject"`
    ClassLevel   string     `json:"class_level"`
    Location     string     `json:"location"`
    Schedule     string     `json:"schedule"`
    DaysPerWeek  uint8      `json:"days_per_week"`
    SalaryCents  uint32     `json:"salary_cents"`
    Details      string     `json:"details"`
    Status       string     `json:"status"`
    HiredTutorID *uint64    `json:"hired_tutor_id,omitempty"`
    CreatedAt    time.Time  `json:"created_at"`
    ApprovedAt   *time.Time `json:"approved_at,omitempty"`
    RejectedAt   *time.Time `json:"rejected_at,omitempty"`
    HiredAt      *time.Time `json:"hired_at,omitempty"`
}

func renderListing(l *model.Listing) listingResp {
    return listingResp{
        ID:           l.ID,
        StudentID:    l.StudentID,
        Subject:      l.Subject,
        ClassLevel:   l.ClassLevel,
        Location:     l.Location,
        Schedule:     l.Schedule,
        DaysPerWeek:  l.DaysPerWeek,
        SalaryCents:  l.SalaryCents,
        Details:      l.Details,
        Status:       l.Status,
        HiredTutorID: l.HiredTutorID,
        CreatedAt:    l.CreatedAt,
        ApprovedAt:   l.ApprovedAt,
        RejectedAt:   l.RejectedAt,
        HiredAt:      l.HiredAt,
    }
}

func renderListings(ls []model.Listing) []listingResp {
    out := make([]listingResp, 0, len(ls))
    for i := range ls {
        out = append(out, renderListing(&ls[i]))
    }
    return out
}

type applicationResp struct {
    ID                  uint64     `json:"id"`
    ListingID           uint64     `json:"listing_id"`
    TutorID             uint64     `json:"tutor_id"`
    Qualifications      string     `json:"qualifications"`
    Experience          string     `json:"experience"`
    ExpectedSalaryCents uint32     `json:"expected_salary_cents"`
    Status              string     `json:"status"`
    AppliedAt           time.Time  `json:"applied_at"`
    DecidedAt           *time.Time `json:"decided_at,omitempty"`
}

func renderApplication(a *model.Application) applicationResp {
    return applicationResp{
        ID:                  a.ID,
        ListingID:           a.ListingID,
        TutorID:             a.TutorID,
        Qualifications:      a.Qualifications,
        Experience:          a.Experience,
        ExpectedSalaryCents: a.ExpectedSalaryCents,
        Status:              a.Status,
        AppliedAt:           a.AppliedAt,
        DecidedAt:           a.DecidedAt,
    }
}

func renderApplications(as []model.Application) []applicationResp {
    out := make([]applicationResp, 0, len(as))
    for i := range as {
        out = append(out, renderApplication(&as[i]))
    }
    return out
}

type paymentResp struct {
    ID             uint64    `json:"id"`
    TransactionRef string    `json:"transaction_ref"`
    ListingID      uint64    `json:"listing_id"`
    ApplicationID  uint64    `json:"application_id"`
    PayerID        uint64    `json:"payer_id"`
    PayeeID        uint64    `json:"payee_id"`
    AmountCents    int64     `json:"amount_cents"`
    Status         string    `json:"status"`
    PaidAt         time.Time `json:"paid_at"`
}

func renderPayment(p *model.Payment) paymentResp {
    return paymentResp{
        ID:             p.ID,
        TransactionRef: p.TransactionRef,
        ListingID:      p.ListingID,
        ApplicationID:  p.ApplicationID,
        PayerID:        p.PayerID,
        PayeeID:        p.PayeeID,
        AmountCents:    p.AmountCents,
        Status:         p.Status,
        PaidAt:         p.PaidAt,
    }
}
