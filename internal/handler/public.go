package handler // unauthenticated browse endpoints for tutors shopping listings

import (
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/tuition-marketplace/internal/lifecycle"
    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

// PublicHandler exposes the tutor-facing browse surface.  Only
// APPROVED listings are ever visible here, and the payloads omit the
// posting student's identity.
type PublicHandler struct {
    Listings *lifecycle.Listings
}

func NewPublicHandler(l *lifecycle.Listings) *PublicHandler {
    return &PublicHandler{Listings: l}
}

// publicListingResp is the sanitized listing representation shown to
// guests and tutors.
type publicListingResp struct {
    ID          uint64    `json:"id"`
    Subject     string    `json:"subject"`
    ClassLevel  string    `json:"class_level"`
    Location    string    `json:"location"`
    Schedule    string    `json:"schedule"`
    DaysPerWeek uint8     `json:"days_per_week"`
    SalaryCents uint32    `json:"salary_cents"`
    Details     string    `json:"details"`
    CreatedAt   time.Time `json:"created_at"`
}

func renderPublicListing(l *model.Listing) publicListingResp {
    return publicListingResp{
        ID:          l.ID,
        Subject:     l.Subject,
        ClassLevel:  l.ClassLevel,
        Location:    l.Location,
        Schedule:    l.Schedule,
        DaysPerWeek: l.DaysPerWeek,
        SalaryCents: l.SalaryCents,
        Details:     l.Details,
        CreatedAt:   l.CreatedAt,
    }
}

// SearchListings handles GET /v1/search/listings.  All filters are
// optional query parameters; unparseable numbers are treated as absent
// rather than rejected.
func (h *PublicHandler) SearchListings(c echo.Context) error {
    f := store.ListingFilter{
        Subject:    strings.TrimSpace(c.QueryParam("subject")),
        ClassLevel: strings.TrimSpace(c.QueryParam("class_level")),
        Location:   strings.TrimSpace(c.QueryParam("location")),
    }
    if v := c.QueryParam("max_salary_cents"); v != "" {
        if n, err := strconv.ParseUint(v, 10, 32); err == nil {
            f.MaxSalaryCents = uint32(n)
        }
    }
    if v := c.QueryParam("limit"); v != "" {
        if n, err := strconv.Atoi(v); err == nil {
            f.Limit = n
        }
    }
    if v := c.QueryParam("offset"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n >= 0 {
            f.Offset = n
        }
    }
    items, err := h.Listings.Search(c.Request().Context(), f)
    if err != nil {
        return writeDomainError(c, err)
    }
    out := make([]publicListingResp, 0, len(items))
    for i := range items {
        out = append(out, renderPublicListing(&items[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetListing handles GET /v1/public/listings/:id.  Listings that are
// not APPROVED respond 404 so their existence is not disclosed.
func (h *PublicHandler) GetListing(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    listing, err := h.Listings.Get(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    if listing.Status != model.ListingApproved {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    }
    return c.JSON(http.StatusOK, renderPublicListing(listing))
}
