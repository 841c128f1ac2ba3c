package checkout

import (
    "context"
    "errors"
    "strconv"
    "testing"
    "time"

    "github.com/iliyamo/tuition-marketplace/internal/lifecycle"
    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
    "github.com/iliyamo/tuition-marketplace/internal/store/memory"
)

// captureGateway records the last session request it received.
type captureGateway struct {
    last *SessionRequest
}

func (g *captureGateway) CreateSession(_ context.Context, req SessionRequest) (*Session, error) {
    cp := req
    g.last = &cp
    return &Session{ID: "sess_test", URL: "https://pay.example/sess_test"}, nil
}

func (g *captureGateway) RetrieveSession(context.Context, string) (*Confirmation, error) {
    return nil, errors.New("not implemented")
}

func seed(t *testing.T, s store.Store) (listingID, applicationID uint64) {
    t.Helper()
    ctx := context.Background()
    l := &model.Listing{StudentID: 1, Subject: "Chemistry", ClassLevel: "11", Location: "Mirpur", DaysPerWeek: 3, SalaryCents: 500000}
    if err := s.CreateListing(ctx, l); err != nil {
        t.Fatalf("create listing: %v", err)
    }
    if err := s.ModerateListing(ctx, l.ID, model.ListingApproved, time.Now().UTC()); err != nil {
        t.Fatalf("approve listing: %v", err)
    }
    a := &model.Application{ListingID: l.ID, TutorID: 2, Qualifications: "BSc", ExpectedSalaryCents: 420000}
    if err := s.CreateApplication(ctx, a); err != nil {
        t.Fatalf("create application: %v", err)
    }
    return l.ID, a.ID
}

func TestBegin(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    listingID, applicationID := seed(t, s)
    gw := &captureGateway{}
    init := NewInitiator(s, gw, "usd", "https://app.example/ok", "https://app.example/cancel")

    sess, err := init.Begin(ctx, listingID, applicationID, 1)
    if err != nil {
        t.Fatalf("begin: %v", err)
    }
    if sess.ID != "sess_test" || sess.URL == "" {
        t.Fatalf("unexpected session: %+v", sess)
    }

    req := gw.last
    if req == nil {
        t.Fatal("gateway never called")
    }
    // The charge comes from the tutor's bid, not the listing budget.
    if req.AmountCents != 420000 {
        t.Fatalf("amount = %d, want 420000", req.AmountCents)
    }
    if req.Currency != "usd" || req.SuccessURL != "https://app.example/ok" || req.CancelURL != "https://app.example/cancel" {
        t.Fatalf("session request misconfigured: %+v", req)
    }
    if req.ClientReference == "" {
        t.Fatal("client reference not set")
    }
    wantMeta := map[string]string{
        MetaListingID:     strconv.FormatUint(listingID, 10),
        MetaApplicationID: strconv.FormatUint(applicationID, 10),
        MetaPayerID:       "1",
        MetaPayeeID:       "2",
    }
    for k, v := range wantMeta {
        if req.Metadata[k] != v {
            t.Fatalf("metadata[%s] = %q, want %q", k, req.Metadata[k], v)
        }
    }

    // The session reference is persisted for crash recovery.
    app, err := s.GetApplication(ctx, applicationID)
    if err != nil {
        t.Fatalf("get application: %v", err)
    }
    if app.CheckoutRef == nil || *app.CheckoutRef != "sess_test" {
        t.Fatalf("checkout ref = %v, want sess_test", app.CheckoutRef)
    }
}

func TestBeginGuards(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    listingID, applicationID := seed(t, s)
    gw := &captureGateway{}
    init := NewInitiator(s, gw, "usd", "https://app.example/ok", "https://app.example/cancel")

    t.Run("payer must own the listing", func(t *testing.T) {
        if _, err := init.Begin(ctx, listingID, applicationID, 9); !errors.Is(err, lifecycle.ErrForbidden) {
            t.Fatalf("err = %v, want ErrForbidden", err)
        }
    })

    t.Run("application must belong to the listing", func(t *testing.T) {
        other := &model.Listing{StudentID: 1, Subject: "Biology", ClassLevel: "9", Location: "Banani", DaysPerWeek: 2, SalaryCents: 300000}
        if err := s.CreateListing(ctx, other); err != nil {
            t.Fatalf("create listing: %v", err)
        }
        if err := s.ModerateListing(ctx, other.ID, model.ListingApproved, time.Now().UTC()); err != nil {
            t.Fatalf("approve: %v", err)
        }
        if _, err := init.Begin(ctx, other.ID, applicationID, 1); !errors.Is(err, store.ErrInvalidState) {
            t.Fatalf("err = %v, want ErrInvalidState", err)
        }
    })

    t.Run("decided application cannot be checked out", func(t *testing.T) {
        if err := s.DecideApplication(ctx, applicationID, model.ApplicationRejected, time.Now().UTC()); err != nil {
            t.Fatalf("reject: %v", err)
        }
        if _, err := init.Begin(ctx, listingID, applicationID, 1); !errors.Is(err, store.ErrInvalidState) {
            t.Fatalf("err = %v, want ErrInvalidState", err)
        }
    })

    t.Run("missing records are not found", func(t *testing.T) {
        if _, err := init.Begin(ctx, 999, applicationID, 1); !errors.Is(err, store.ErrNotFound) {
            t.Fatalf("err = %v, want ErrNotFound", err)
        }
    })
}
