package handler // tutor-facing application endpoints

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/tuition-marketplace/internal/lifecycle"
    "github.com/iliyamo/tuition-marketplace/internal/model"
)

// ApplicationHandler exposes the application lifecycle over HTTP.
type ApplicationHandler struct {
    Applications *lifecycle.Applications
}

func NewApplicationHandler(a *lifecycle.Applications) *ApplicationHandler {
    return &ApplicationHandler{Applications: a}
}

// applicationBody is the request shape for apply and amend.
type applicationBody struct {
    Qualifications      string `json:"qualifications"`
    Experience          string `json:"experience"`
    ExpectedSalaryCents uint32 `json:"expected_salary_cents"`
}

func (b *applicationBody) bid() (model.ApplicationBid, string) {
    b.Qualifications = strings.TrimSpace(b.Qualifications)
    if b.Qualifications == "" {
        return model.ApplicationBid{}, "qualifications is required"
    }
    if b.ExpectedSalaryCents == 0 {
        return model.ApplicationBid{}, "expected_salary_cents must be positive"
    }
    return model.ApplicationBid{
        Qualifications:      b.Qualifications,
        Experience:          strings.TrimSpace(b.Experience),
        ExpectedSalaryCents: b.ExpectedSalaryCents,
    }, ""
}

// Apply handles POST /v1/listings/:id/applications.  The listing must
// be open (APPROVED) and the tutor must not already hold a
// non-withdrawn application on it.
func (h *ApplicationHandler) Apply(c echo.Context) error {
    tutorID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    listingID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var body applicationBody
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    bid, msg := body.bid()
    if msg != "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
    }
    app, err := h.Applications.Apply(c.Request().Context(), listingID, tutorID, bid)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusCreated, renderApplication(app))
}

// Get handles GET /v1/applications/:id for the applying tutor.
func (h *ApplicationHandler) Get(c echo.Context) error {
    tutorID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    app, err := h.Applications.Get(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    if app.TutorID != tutorID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    return c.JSON(http.StatusOK, renderApplication(app))
}

// Amend handles PUT /v1/applications/:id while the application is
// still PENDING.
func (h *ApplicationHandler) Amend(c echo.Context) error {
    tutorID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var body applicationBody
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    bid, msg := body.bid()
    if msg != "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
    }
    if err := h.Applications.Amend(c.Request().Context(), id, tutorID, bid); err != nil {
        return writeDomainError(c, err)
    }
    app, err := h.Applications.Get(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, renderApplication(app))
}

// Withdraw handles DELETE /v1/applications/:id by the applying tutor.
// A withdrawn application frees the tutor to apply to the same listing
// again later.
func (h *ApplicationHandler) Withdraw(c echo.Context) error {
    tutorID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    if err := h.Applications.Withdraw(c.Request().Context(), id, tutorID); err != nil {
        return writeDomainError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Reject handles POST /v1/applications/:id/reject by the listing
// owner screening candidates.
func (h *ApplicationHandler) Reject(c echo.Context) error {
    studentID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    if err := h.Applications.Reject(c.Request().Context(), id, studentID); err != nil {
        return writeDomainError(c, err)
    }
    app, err := h.Applications.Get(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, renderApplication(app))
}

// ListMine handles GET /v1/applications and returns the tutor's own
// applications in every status.
func (h *ApplicationHandler) ListMine(c echo.Context) error {
    tutorID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    items, err := h.Applications.ListMine(c.Request().Context(), tutorID)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": renderApplications(items)})
}
