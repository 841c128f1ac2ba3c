package lifecycle

import (
    "context"
    "errors"
    "testing"

    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
    "github.com/iliyamo/tuition-marketplace/internal/store/memory"
)

func testAttrs() model.ListingAttrs {
    return model.ListingAttrs{
        Subject:     "Physics",
        ClassLevel:  "12",
        Location:    "Uttara",
        Schedule:    "evenings",
        DaysPerWeek: 2,
        SalaryCents: 600000,
    }
}

func testBid() model.ApplicationBid {
    return model.ApplicationBid{Qualifications: "MSc Physics", Experience: "4 years", ExpectedSalaryCents: 550000}
}

func TestListingModeration(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    ls := NewListings(s)

    l, err := ls.Create(ctx, 1, testAttrs())
    if err != nil {
        t.Fatalf("create: %v", err)
    }
    if l.Status != model.ListingPending {
        t.Fatalf("new listing status = %s, want PENDING", l.Status)
    }

    if err := ls.Moderate(ctx, l.ID, true); err != nil {
        t.Fatalf("approve: %v", err)
    }
    got, _ := ls.Get(ctx, l.ID)
    if got.Status != model.ListingApproved || got.ApprovedAt == nil {
        t.Fatalf("after approve: status=%s approved_at=%v", got.Status, got.ApprovedAt)
    }

    // Moderation decisions are one-shot.
    if err := ls.Moderate(ctx, l.ID, false); !errors.Is(err, store.ErrInvalidState) {
        t.Fatalf("re-moderate err = %v, want ErrInvalidState", err)
    }
    if err := ls.Moderate(ctx, 999, true); !errors.Is(err, store.ErrNotFound) {
        t.Fatalf("missing listing err = %v, want ErrNotFound", err)
    }
}

func TestListingUpdateGuards(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    ls := NewListings(s)

    l, _ := ls.Create(ctx, 1, testAttrs())

    t.Run("only the owner may edit", func(t *testing.T) {
        if err := ls.Update(ctx, l.ID, 2, testAttrs()); !errors.Is(err, ErrForbidden) {
            t.Fatalf("err = %v, want ErrForbidden", err)
        }
    })

    t.Run("pending listing is editable", func(t *testing.T) {
        attrs := testAttrs()
        attrs.SalaryCents = 700000
        if err := ls.Update(ctx, l.ID, 1, attrs); err != nil {
            t.Fatalf("update: %v", err)
        }
        got, _ := ls.Get(ctx, l.ID)
        if got.SalaryCents != 700000 {
            t.Fatalf("salary = %d, want 700000", got.SalaryCents)
        }
    })

    t.Run("approved listing is frozen", func(t *testing.T) {
        if err := ls.Moderate(ctx, l.ID, true); err != nil {
            t.Fatalf("approve: %v", err)
        }
        if err := ls.Update(ctx, l.ID, 1, testAttrs()); !errors.Is(err, store.ErrInvalidState) {
            t.Fatalf("err = %v, want ErrInvalidState", err)
        }
    })
}

func TestListingWithdrawCascades(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    ls := NewListings(s)
    as := NewApplications(s)

    l, _ := ls.Create(ctx, 1, testAttrs())
    _ = ls.Moderate(ctx, l.ID, true)
    app, err := as.Apply(ctx, l.ID, 2, testBid())
    if err != nil {
        t.Fatalf("apply: %v", err)
    }

    if err := ls.Withdraw(ctx, l.ID, 2); !errors.Is(err, ErrForbidden) {
        t.Fatalf("non-owner withdraw err = %v, want ErrForbidden", err)
    }
    if err := ls.Withdraw(ctx, l.ID, 1); err != nil {
        t.Fatalf("withdraw: %v", err)
    }
    if _, err := ls.Get(ctx, l.ID); !errors.Is(err, store.ErrNotFound) {
        t.Fatalf("listing after withdraw err = %v, want ErrNotFound", err)
    }
    got, err := as.Get(ctx, app.ID)
    if err != nil {
        t.Fatalf("get application: %v", err)
    }
    if got.Status != model.ApplicationWithdrawn {
        t.Fatalf("application status = %s, want WITHDRAWN", got.Status)
    }
}

func TestApplyGuards(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    ls := NewListings(s)
    as := NewApplications(s)

    l, _ := ls.Create(ctx, 1, testAttrs())

    t.Run("listing must be open", func(t *testing.T) {
        if _, err := as.Apply(ctx, l.ID, 2, testBid()); !errors.Is(err, store.ErrInvalidState) {
            t.Fatalf("err = %v, want ErrInvalidState", err)
        }
    })

    _ = ls.Moderate(ctx, l.ID, true)

    t.Run("owner cannot bid on own listing", func(t *testing.T) {
        if _, err := as.Apply(ctx, l.ID, 1, testBid()); !errors.Is(err, ErrForbidden) {
            t.Fatalf("err = %v, want ErrForbidden", err)
        }
    })

    t.Run("second application is a conflict", func(t *testing.T) {
        if _, err := as.Apply(ctx, l.ID, 2, testBid()); err != nil {
            t.Fatalf("first apply: %v", err)
        }
        if _, err := as.Apply(ctx, l.ID, 2, testBid()); !errors.Is(err, store.ErrConflict) {
            t.Fatalf("err = %v, want ErrConflict", err)
        }
    })

    t.Run("withdrawal frees the slot", func(t *testing.T) {
        apps, _ := as.ListMine(ctx, 2)
        if len(apps) != 1 {
            t.Fatalf("application count = %d, want 1", len(apps))
        }
        if err := as.Withdraw(ctx, apps[0].ID, 2); err != nil {
            t.Fatalf("withdraw: %v", err)
        }
        if _, err := as.Apply(ctx, l.ID, 2, testBid()); err != nil {
            t.Fatalf("re-apply after withdrawal: %v", err)
        }
    })
}

func TestApplicationDecisions(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    ls := NewListings(s)
    as := NewApplications(s)

    l, _ := ls.Create(ctx, 1, testAttrs())
    _ = ls.Moderate(ctx, l.ID, true)
    app, _ := as.Apply(ctx, l.ID, 2, testBid())

    t.Run("amend by another tutor is forbidden", func(t *testing.T) {
        if err := as.Amend(ctx, app.ID, 3, testBid()); !errors.Is(err, ErrForbidden) {
            t.Fatalf("err = %v, want ErrForbidden", err)
        }
    })

    t.Run("reject by a non-owner is forbidden", func(t *testing.T) {
        if err := as.Reject(ctx, app.ID, 3); !errors.Is(err, ErrForbidden) {
            t.Fatalf("err = %v, want ErrForbidden", err)
        }
    })

    t.Run("owner rejects and the decision is terminal", func(t *testing.T) {
        if err := as.Reject(ctx, app.ID, 1); err != nil {
            t.Fatalf("reject: %v", err)
        }
        got, _ := as.Get(ctx, app.ID)
        if got.Status != model.ApplicationRejected || got.DecidedAt == nil {
            t.Fatalf("after reject: status=%s decided_at=%v", got.Status, got.DecidedAt)
        }
        if err := as.Amend(ctx, app.ID, 2, testBid()); !errors.Is(err, store.ErrInvalidState) {
            t.Fatalf("amend after reject err = %v, want ErrInvalidState", err)
        }
        if err := as.Withdraw(ctx, app.ID, 2); !errors.Is(err, store.ErrInvalidState) {
            t.Fatalf("withdraw after reject err = %v, want ErrInvalidState", err)
        }
    })

    t.Run("listing owner sees applications, others do not", func(t *testing.T) {
        if _, err := as.ListForListing(ctx, l.ID, 2); !errors.Is(err, ErrForbidden) {
            t.Fatalf("err = %v, want ErrForbidden", err)
        }
        items, err := as.ListForListing(ctx, l.ID, 1)
        if err != nil {
            t.Fatalf("list for owner: %v", err)
        }
        if len(items) != 1 {
            t.Fatalf("items = %d, want 1", len(items))
        }
    })
}
