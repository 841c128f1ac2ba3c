package handler // student-facing listing endpoints plus admin moderation

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/tuition-marketplace/internal/lifecycle"
    "github.com/iliyamo/tuition-marketplace/internal/model"
)

// ListingHandler bundles the lifecycles behind the listing endpoints.
type ListingHandler struct {
    Listings     *lifecycle.Listings
    Applications *lifecycle.Applications
}

func NewListingHandler(l *lifecycle.Listings, a *lifecycle.Applications) *ListingHandler {
    return &ListingHandler{Listings: l, Applications: a}
}

// listingBody is the request shape for create and update.
type listingBody struct {
    Subject     string `json:"subject"`
    ClassLevel  string `json:"class_level"`
    Location    string `json:"location"`
    Schedule    string `json:"schedule"`
    DaysPerWeek uint8  `json:"days_per_week"`
    SalaryCents uint32 `json:"salary_cents"`
    Details     string `json:"details"`
}

func (b *listingBody) attrs() (model.ListingAttrs, string) {
    b.Subject = strings.TrimSpace(b.Subject)
    b.ClassLevel = strings.TrimSpace(b.ClassLevel)
    b.Location = strings.TrimSpace(b.Location)
    if b.Subject == "" {
        return model.ListingAttrs{}, "subject is required"
    }
    if b.SalaryCents == 0 {
        return model.ListingAttrs{}, "salary_cents must be positive"
    }
    if b.DaysPerWeek == 0 || b.DaysPerWeek > 7 {
        return model.ListingAttrs{}, "days_per_week must be between 1 and 7"
    }
    return model.ListingAttrs{
        Subject:     b.Subject,
        ClassLevel:  b.ClassLevel,
        Location:    b.Location,
        Schedule:    strings.TrimSpace(b.Schedule),
        DaysPerWeek: b.DaysPerWeek,
        SalaryCents: b.SalaryCents,
        Details:     b.Details,
    }, ""
}

// Create handles POST /v1/listings.  The new listing starts PENDING
// and is invisible to tutors until an admin approves it.
func (h *ListingHandler) Create(c echo.Context) error {
    studentID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body listingBody
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    attrs, msg := body.attrs()
    if msg != "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
    }
    listing, err := h.Listings.Create(c.Request().Context(), studentID, attrs)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusCreated, renderListing(listing))
}

// Get handles GET /v1/listings/:id for the listing owner.
func (h *ListingHandler) Get(c echo.Context) error {
    requesterID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    listing, err := h.Listings.Get(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    if listing.StudentID != requesterID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    return c.JSON(http.StatusOK, renderListing(listing))
}

// Update handles PUT /v1/listings/:id.  Editable only while the
// listing is PENDING or REJECTED.
func (h *ListingHandler) Update(c echo.Context) error {
    studentID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var body listingBody
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    attrs, msg := body.attrs()
    if msg != "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
    }
    if err := h.Listings.Update(c.Request().Context(), id, studentID, attrs); err != nil {
        return writeDomainError(c, err)
    }
    listing, err := h.Listings.Get(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, renderListing(listing))
}

// Withdraw handles DELETE /v1/listings/:id and cascades a WITHDRAWN
// decision over the listing's pending applications.
func (h *ListingHandler) Withdraw(c echo.Context) error {
    studentID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    if err := h.Listings.Withdraw(c.Request().Context(), id, studentID); err != nil {
        return writeDomainError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// ListMine handles GET /v1/listings and returns the student's own
// listings in every status.
func (h *ListingHandler) ListMine(c echo.Context) error {
    studentID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items, err := h.Listings.ListMine(c.Request().Context(), studentID)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": renderListings(items)})
}

// ListApplications handles GET /v1/listings/:id/applications for the
// listing owner reviewing candidates.
func (h *ListingHandler) ListApplications(c echo.Context) error {
    studentID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    items, err := h.Applications.ListForListing(c.Request().Context(), id, studentID)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": renderApplications(items)})
}

// Approve handles POST /v1/admin/listings/:id/approve (admin only).
func (h *ListingHandler) Approve(c echo.Context) error {
    return h.moderate(c, true)
}

// Reject handles POST /v1/admin/listings/:id/reject (admin only).
func (h *ListingHandler) Reject(c echo.Context) error {
    return h.moderate(c, false)
}

func (h *ListingHandler) moderate(c echo.Context, approve bool) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    if err := h.Listings.Moderate(c.Request().Context(), id, approve); err != nil {
        return writeDomainError(c, err)
    }
    listing, err := h.Listings.Get(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, renderListing(listing))
}
