package memory

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

func approvedListing(t *testing.T, s *Store, studentID uint64, subject, level, location string, salary uint32) *model.Listing {
    t.Helper()
    ctx := context.Background()
    l := &model.Listing{StudentID: studentID, Subject: subject, ClassLevel: level, Location: location, DaysPerWeek: 3, SalaryCents: salary}
    if err := s.CreateListing(ctx, l); err != nil {
        t.Fatalf("create listing: %v", err)
    }
    if err := s.ModerateListing(ctx, l.ID, model.ListingApproved, time.Now().UTC()); err != nil {
        t.Fatalf("approve listing: %v", err)
    }
    return l
}

func TestSearchListings(t *testing.T) {
    ctx := context.Background()
    s := New()

    approvedListing(t, s, 1, "Math", "10", "Dhanmondi, Dhaka", 500000)
    approvedListing(t, s, 1, "Math", "12", "Uttara, Dhaka", 800000)
    approvedListing(t, s, 2, "English", "10", "Chattogram", 400000)
    // A pending listing must never surface in search.
    hidden := &model.Listing{StudentID: 2, Subject: "Math", ClassLevel: "10", Location: "Dhaka", SalaryCents: 100000}
    if err := s.CreateListing(ctx, hidden); err != nil {
        t.Fatalf("create listing: %v", err)
    }

    cases := []struct {
        name   string
        filter store.ListingFilter
        want   int
    }{
        {"no filter returns all approved", store.ListingFilter{}, 3},
        {"subject is matched case-insensitively", store.ListingFilter{Subject: "math"}, 2},
        {"class level narrows", store.ListingFilter{Subject: "Math", ClassLevel: "12"}, 1},
        {"location is a substring match", store.ListingFilter{Location: "dhaka"}, 2},
        {"salary cap is inclusive", store.ListingFilter{MaxSalaryCents: 500000}, 2},
        {"limit pages", store.ListingFilter{Limit: 2}, 2},
        {"offset past the end is empty", store.ListingFilter{Offset: 10}, 0},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            got, err := s.SearchListings(ctx, tc.filter)
            if err != nil {
                t.Fatalf("search: %v", err)
            }
            if len(got) != tc.want {
                t.Fatalf("results = %d, want %d", len(got), tc.want)
            }
        })
    }
}

func TestDeleteListingWithdrawsApplications(t *testing.T) {
    ctx := context.Background()
    s := New()
    l := approvedListing(t, s, 1, "Math", "10", "Dhaka", 500000)

    pending := &model.Application{ListingID: l.ID, TutorID: 2, Qualifications: "BSc", ExpectedSalaryCents: 400000}
    if err := s.CreateApplication(ctx, pending); err != nil {
        t.Fatalf("create application: %v", err)
    }
    rejected := &model.Application{ListingID: l.ID, TutorID: 3, Qualifications: "MSc", ExpectedSalaryCents: 450000}
    if err := s.CreateApplication(ctx, rejected); err != nil {
        t.Fatalf("create application: %v", err)
    }
    if err := s.DecideApplication(ctx, rejected.ID, model.ApplicationRejected, time.Now().UTC()); err != nil {
        t.Fatalf("reject: %v", err)
    }

    if err := s.DeleteListing(ctx, l.ID, time.Now().UTC()); err != nil {
        t.Fatalf("delete: %v", err)
    }
    if _, err := s.GetListing(ctx, l.ID); !errors.Is(err, store.ErrNotFound) {
        t.Fatalf("get deleted listing err = %v, want ErrNotFound", err)
    }
    got, _ := s.GetApplication(ctx, pending.ID)
    if got.Status != model.ApplicationWithdrawn {
        t.Fatalf("pending application status = %s, want WITHDRAWN", got.Status)
    }
    // An already-decided application keeps its decision.
    got, _ = s.GetApplication(ctx, rejected.ID)
    if got.Status != model.ApplicationRejected {
        t.Fatalf("rejected application status = %s, want REJECTED", got.Status)
    }
    // The rows survive the listing as the tutors' history.
    for _, tutorID := range []uint64{2, 3} {
        apps, err := s.ListApplicationsByTutor(ctx, tutorID)
        if err != nil {
            t.Fatalf("list by tutor %d: %v", tutorID, err)
        }
        if len(apps) != 1 {
            t.Fatalf("tutor %d history = %d rows, want 1", tutorID, len(apps))
        }
    }
}

func TestDuplicateApplication(t *testing.T) {
    ctx := context.Background()
    s := New()
    l := approvedListing(t, s, 1, "Math", "10", "Dhaka", 500000)

    first := &model.Application{ListingID: l.ID, TutorID: 2, ExpectedSalaryCents: 400000}
    if err := s.CreateApplication(ctx, first); err != nil {
        t.Fatalf("first apply: %v", err)
    }
    dup := &model.Application{ListingID: l.ID, TutorID: 2, ExpectedSalaryCents: 410000}
    if err := s.CreateApplication(ctx, dup); !errors.Is(err, store.ErrConflict) {
        t.Fatalf("duplicate err = %v, want ErrConflict", err)
    }

    // A rejected application still occupies the slot; only withdrawal
    // frees it.
    if err := s.DecideApplication(ctx, first.ID, model.ApplicationRejected, time.Now().UTC()); err != nil {
        t.Fatalf("reject: %v", err)
    }
    if err := s.CreateApplication(ctx, dup); !errors.Is(err, store.ErrConflict) {
        t.Fatalf("apply after rejection err = %v, want ErrConflict", err)
    }
}

func TestConfirmHire(t *testing.T) {
    ctx := context.Background()
    s := New()
    l := approvedListing(t, s, 1, "Math", "10", "Dhaka", 500000)
    app := &model.Application{ListingID: l.ID, TutorID: 2, ExpectedSalaryCents: 400000}
    if err := s.CreateApplication(ctx, app); err != nil {
        t.Fatalf("apply: %v", err)
    }

    h := store.HireConfirmation{
        ListingID:      l.ID,
        ApplicationID:  app.ID,
        TutorID:        2,
        TransactionRef: "pi_abc",
        PayerID:        1,
        PayeeID:        2,
        AmountCents:    400000,
        Now:            time.Now().UTC(),
    }
    p, err := s.ConfirmHire(ctx, h)
    if err != nil {
        t.Fatalf("confirm hire: %v", err)
    }
    if p.ID == 0 || p.Status != model.PaymentCompleted {
        t.Fatalf("unexpected payment: %+v", p)
    }

    t.Run("same ref is a duplicate", func(t *testing.T) {
        if _, err := s.ConfirmHire(ctx, h); !errors.Is(err, store.ErrDuplicateTransaction) {
            t.Fatalf("err = %v, want ErrDuplicateTransaction", err)
        }
    })

    t.Run("recovery insert enforces the unique ref", func(t *testing.T) {
        err := s.CreatePayment(ctx, &model.Payment{TransactionRef: "pi_abc", ListingID: l.ID, ApplicationID: app.ID, PayerID: 1, PayeeID: 2, AmountCents: 400000})
        if !errors.Is(err, store.ErrDuplicateTransaction) {
            t.Fatalf("err = %v, want ErrDuplicateTransaction", err)
        }
    })

    t.Run("hired listing with a payment is not stuck", func(t *testing.T) {
        stuck, err := s.ListHiredListingsMissingPayment(ctx)
        if err != nil {
            t.Fatalf("list stuck: %v", err)
        }
        if len(stuck) != 0 {
            t.Fatalf("stuck = %d, want 0", len(stuck))
        }
    })

    t.Run("approved application lookup", func(t *testing.T) {
        got, err := s.ApprovedApplicationForListing(ctx, l.ID)
        if err != nil {
            t.Fatalf("approved application: %v", err)
        }
        if got.ID != app.ID {
            t.Fatalf("approved application = %d, want %d", got.ID, app.ID)
        }
    })
}
