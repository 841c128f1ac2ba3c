package reconciler

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/iliyamo/tuition-marketplace/internal/checkout"
    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
    "github.com/iliyamo/tuition-marketplace/internal/store/memory"
)

// fakeGateway serves canned confirmations keyed by session id.
type fakeGateway struct {
    mu       sync.Mutex
    sessions map[string]*checkout.Confirmation
}

func newFakeGateway() *fakeGateway {
    return &fakeGateway{sessions: make(map[string]*checkout.Confirmation)}
}

func (g *fakeGateway) CreateSession(_ context.Context, req checkout.SessionRequest) (*checkout.Session, error) {
    g.mu.Lock()
    defer g.mu.Unlock()
    id := "sess_" + req.ClientReference
    g.sessions[id] = &checkout.Confirmation{
        SessionID:      id,
        TransactionRef: "pi_" + req.ClientReference,
        Paid:           false,
        AmountCents:    req.AmountCents,
        Metadata:       req.Metadata,
    }
    return &checkout.Session{ID: id, URL: "https://pay.example/" + id}, nil
}

func (g *fakeGateway) RetrieveSession(_ context.Context, sessionID string) (*checkout.Confirmation, error) {
    g.mu.Lock()
    defer g.mu.Unlock()
    conf, ok := g.sessions[sessionID]
    if !ok {
        return nil, errors.New("no such session")
    }
    cp := *conf
    return &cp, nil
}

func (g *fakeGateway) settle(sessionID string) {
    g.mu.Lock()
    defer g.mu.Unlock()
    g.sessions[sessionID].Paid = true
}

// seedHireable creates an APPROVED listing with two PENDING
// applications and returns the ids: listing, winner, loser.
func seedHireable(t *testing.T, s store.Store) (uint64, uint64, uint64) {
    t.Helper()
    ctx := context.Background()

    listing := &model.Listing{StudentID: 1, Subject: "Mathematics", ClassLevel: "10", Location: "Dhanmondi", DaysPerWeek: 3, SalaryCents: 500000}
    if err := s.CreateListing(ctx, listing); err != nil {
        t.Fatalf("create listing: %v", err)
    }
    if err := s.ModerateListing(ctx, listing.ID, model.ListingApproved, time.Now().UTC()); err != nil {
        t.Fatalf("approve listing: %v", err)
    }
    winner := &model.Application{ListingID: listing.ID, TutorID: 2, Qualifications: "BSc", ExpectedSalaryCents: 450000}
    if err := s.CreateApplication(ctx, winner); err != nil {
        t.Fatalf("create winner application: %v", err)
    }
    loser := &model.Application{ListingID: listing.ID, TutorID: 3, Qualifications: "MSc", ExpectedSalaryCents: 480000}
    if err := s.CreateApplication(ctx, loser); err != nil {
        t.Fatalf("create loser application: %v", err)
    }
    return listing.ID, winner.ID, loser.ID
}

func TestReconcileHire(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    listingID, winnerID, loserID := seedHireable(t, s)
    r := New(s, nil)

    ev := Event{TransactionRef: "pi_1", ListingID: listingID, ApplicationID: winnerID, AmountCents: 450000}
    p, err := r.Reconcile(ctx, ev)
    if err != nil {
        t.Fatalf("reconcile: %v", err)
    }
    if p.TransactionRef != "pi_1" || p.AmountCents != 450000 {
        t.Fatalf("unexpected payment: %+v", p)
    }
    if p.PayerID != 1 || p.PayeeID != 2 {
        t.Fatalf("payer/payee should come from listing and application, got payer=%d payee=%d", p.PayerID, p.PayeeID)
    }

    listing, err := s.GetListing(ctx, listingID)
    if err != nil {
        t.Fatalf("get listing: %v", err)
    }
    if listing.Status != model.ListingHired {
        t.Fatalf("listing status = %s, want HIRED", listing.Status)
    }
    if listing.HiredTutorID == nil || *listing.HiredTutorID != 2 {
        t.Fatalf("hired tutor = %v, want 2", listing.HiredTutorID)
    }
    if listing.HiredAt == nil {
        t.Fatal("hired_at not stamped")
    }

    winner, _ := s.GetApplication(ctx, winnerID)
    if winner.Status != model.ApplicationApproved {
        t.Fatalf("winner status = %s, want APPROVED", winner.Status)
    }
    loser, _ := s.GetApplication(ctx, loserID)
    if loser.Status != model.ApplicationRejected {
        t.Fatalf("loser status = %s, want REJECTED", loser.Status)
    }
}

func TestReconcileReplay(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    listingID, winnerID, _ := seedHireable(t, s)
    r := New(s, nil)

    ev := Event{TransactionRef: "pi_dup", ListingID: listingID, ApplicationID: winnerID, AmountCents: 450000}
    first, err := r.Reconcile(ctx, ev)
    if err != nil {
        t.Fatalf("first reconcile: %v", err)
    }

    t.Run("same amount returns same payment", func(t *testing.T) {
        again, err := r.Reconcile(ctx, ev)
        if err != nil {
            t.Fatalf("replay: %v", err)
        }
        if again.ID != first.ID {
            t.Fatalf("replay payment id = %d, want %d", again.ID, first.ID)
        }
        payments, _ := s.ListPaymentsByUser(ctx, 1)
        if len(payments) != 1 {
            t.Fatalf("payment count = %d, want 1", len(payments))
        }
    })

    t.Run("differing amount is a conflict", func(t *testing.T) {
        bad := ev
        bad.AmountCents = 999999
        if _, err := r.Reconcile(ctx, bad); !errors.Is(err, store.ErrConflict) {
            t.Fatalf("err = %v, want ErrConflict", err)
        }
    })
}

func TestReconcileStaleConfirmation(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    listingID, winnerID, loserID := seedHireable(t, s)
    r := New(s, nil)

    if _, err := r.Reconcile(ctx, Event{TransactionRef: "pi_first", ListingID: listingID, ApplicationID: winnerID, AmountCents: 450000}); err != nil {
        t.Fatalf("first reconcile: %v", err)
    }

    // A second session for the now-rejected loser must not double-hire.
    _, err := r.Reconcile(ctx, Event{TransactionRef: "pi_second", ListingID: listingID, ApplicationID: loserID, AmountCents: 480000})
    if !errors.Is(err, store.ErrInvalidState) {
        t.Fatalf("err = %v, want ErrInvalidState", err)
    }

    listing, _ := s.GetListing(ctx, listingID)
    if listing.HiredTutorID == nil || *listing.HiredTutorID != 2 {
        t.Fatalf("hired tutor changed: %v", listing.HiredTutorID)
    }
    if _, err := s.GetPaymentByRef(ctx, "pi_second"); !errors.Is(err, store.ErrNotFound) {
        t.Fatalf("second payment should not exist, got err = %v", err)
    }
}

func TestReconcileConcurrentDuplicates(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    listingID, winnerID, _ := seedHireable(t, s)
    r := New(s, nil)

    ev := Event{TransactionRef: "pi_race", ListingID: listingID, ApplicationID: winnerID, AmountCents: 450000}

    const workers = 16
    var wg sync.WaitGroup
    ids := make([]uint64, workers)
    errs := make([]error, workers)
    for i := 0; i < workers; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            p, err := r.Reconcile(ctx, ev)
            if p != nil {
                ids[i] = p.ID
            }
            errs[i] = err
        }(i)
    }
    wg.Wait()

    for i := 0; i < workers; i++ {
        if errs[i] != nil {
            t.Fatalf("worker %d: %v", i, errs[i])
        }
        if ids[i] != ids[0] {
            t.Fatalf("worker %d returned payment %d, worker 0 returned %d", i, ids[i], ids[0])
        }
    }
    payments, _ := s.ListPaymentsByUser(ctx, 1)
    if len(payments) != 1 {
        t.Fatalf("payment count = %d, want 1", len(payments))
    }
}

func TestReconcileConcurrentDistinctRefs(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    listingID, winnerID, loserID := seedHireable(t, s)
    r := New(s, nil)

    // Two sessions for the same listing but different applications and
    // different transaction references race each other.
    events := []Event{
        {TransactionRef: "pi_a", ListingID: listingID, ApplicationID: winnerID, AmountCents: 450000},
        {TransactionRef: "pi_b", ListingID: listingID, ApplicationID: loserID, AmountCents: 480000},
    }
    var wg sync.WaitGroup
    errs := make([]error, len(events))
    for i, ev := range events {
        wg.Add(1)
        go func(i int, ev Event) {
            defer wg.Done()
            _, errs[i] = r.Reconcile(ctx, ev)
        }(i, ev)
    }
    wg.Wait()

    okCount, invalidCount := 0, 0
    for _, err := range errs {
        switch {
        case err == nil:
            okCount++
        case errors.Is(err, store.ErrInvalidState):
            invalidCount++
        default:
            t.Fatalf("unexpected error: %v", err)
        }
    }
    if okCount != 1 || invalidCount != 1 {
        t.Fatalf("ok=%d invalid=%d, want exactly one of each", okCount, invalidCount)
    }
    listing, _ := s.GetListing(ctx, listingID)
    if listing.Status != model.ListingHired || listing.HiredTutorID == nil {
        t.Fatalf("listing = %s/%v, want HIRED with a tutor bound", listing.Status, listing.HiredTutorID)
    }
    payments, _ := s.ListPaymentsByUser(ctx, 1)
    if len(payments) != 1 {
        t.Fatalf("payment count = %d, want 1", len(payments))
    }
}

// delayedRefStore hides payment rows from the first reference lookup,
// reproducing a duplicate delivery whose lookup runs before the
// original reconciliation has committed its payment row.
type delayedRefStore struct {
    *memory.Store
    mu    sync.Mutex
    skips int
}

func (s *delayedRefStore) GetPaymentByRef(ctx context.Context, ref string) (*model.Payment, error) {
    s.mu.Lock()
    skip := s.skips > 0
    if skip {
        s.skips--
    }
    s.mu.Unlock()
    if skip {
        return nil, store.ErrNotFound
    }
    return s.Store.GetPaymentByRef(ctx, ref)
}

// contestedHireStore serves the pre-hire snapshots a reconciliation
// reads just before a concurrent one commits: the reference lookup
// misses once, the state reads pass, the conditional hire transition
// then matches nothing.  Later lookups return the winner's payment.
type contestedHireStore struct {
    *memory.Store
    mu     sync.Mutex
    looked bool
    winner *model.Payment
}

func (s *contestedHireStore) GetPaymentByRef(context.Context, string) (*model.Payment, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if !s.looked {
        s.looked = true
        return nil, store.ErrNotFound
    }
    p := *s.winner
    return &p, nil
}

func (s *contestedHireStore) ConfirmHire(context.Context, store.HireConfirmation) (*model.Payment, error) {
    return nil, store.ErrInvalidState
}

func TestReconcileDuplicateRaceResolves(t *testing.T) {
    ctx := context.Background()

    t.Run("hired state read after lookup misses", func(t *testing.T) {
        mem := memory.New()
        listingID, winnerID, _ := seedHireable(t, mem)
        ev := Event{TransactionRef: "pi_race", ListingID: listingID, ApplicationID: winnerID, AmountCents: 450000}
        first, err := New(mem, nil).Reconcile(ctx, ev)
        if err != nil {
            t.Fatalf("first reconcile: %v", err)
        }
        // The duplicate's reference lookup ran before the payment
        // landed, so its state reads see the listing already hired.
        // That must resolve to the existing payment, not an error.
        r := New(&delayedRefStore{Store: mem, skips: 1}, nil)
        got, err := r.Reconcile(ctx, ev)
        if err != nil {
            t.Fatalf("duplicate delivery: %v", err)
        }
        if got.ID != first.ID {
            t.Fatalf("payment id = %d, want %d", got.ID, first.ID)
        }
    })

    t.Run("hire transition lost after stale reads", func(t *testing.T) {
        mem := memory.New()
        listingID, winnerID, _ := seedHireable(t, mem)
        winner := &model.Payment{
            ID:             7,
            TransactionRef: "pi_race",
            ListingID:      listingID,
            ApplicationID:  winnerID,
            PayerID:        1,
            PayeeID:        2,
            AmountCents:    450000,
            Status:         model.PaymentCompleted,
        }
        r := New(&contestedHireStore{Store: mem, winner: winner}, nil)
        got, err := r.Reconcile(ctx, Event{TransactionRef: "pi_race", ListingID: listingID, ApplicationID: winnerID, AmountCents: 450000})
        if err != nil {
            t.Fatalf("duplicate delivery: %v", err)
        }
        if got.ID != winner.ID {
            t.Fatalf("payment id = %d, want %d", got.ID, winner.ID)
        }
    })
}

func TestFromSession(t *testing.T) {
    ctx := context.Background()
    s := memory.New()
    listingID, winnerID, _ := seedHireable(t, s)
    gw := newFakeGateway()
    r := New(s, gw)

    init := checkout.NewInitiator(s, gw, "usd", "https://app.example/ok", "https://app.example/cancel")
    sess, err := init.Begin(ctx, listingID, winnerID, 1)
    if err != nil {
        t.Fatalf("begin checkout: %v", err)
    }

    t.Run("unpaid session", func(t *testing.T) {
        if _, err := r.FromSession(ctx, sess.ID); !errors.Is(err, ErrUnpaid) {
            t.Fatalf("err = %v, want ErrUnpaid", err)
        }
    })

    t.Run("paid session reconciles", func(t *testing.T) {
        gw.settle(sess.ID)
        p, err := r.FromSession(ctx, sess.ID)
        if err != nil {
            t.Fatalf("from session: %v", err)
        }
        if p.AmountCents != 450000 {
            t.Fatalf("amount = %d, want 450000 (from the application bid)", p.AmountCents)
        }
        listing, _ := s.GetListing(ctx, listingID)
        if listing.Status != model.ListingHired {
            t.Fatalf("listing status = %s, want HIRED", listing.Status)
        }
    })

    t.Run("duplicate delivery replays", func(t *testing.T) {
        first, err := s.GetPaymentByRef(ctx, "pi_"+sess.ID[len("sess_"):])
        if err != nil {
            t.Fatalf("stored payment: %v", err)
        }
        again, err := r.FromSession(ctx, sess.ID)
        if err != nil {
            t.Fatalf("replayed delivery: %v", err)
        }
        if again.ID != first.ID {
            t.Fatalf("replay payment id = %d, want %d", again.ID, first.ID)
        }
    })
}

// lostPaymentStore simulates the crash window: the hire committed but
// the payment row never landed.  It reports the chosen listing as
// stuck until a recovery pass re-creates the payment, and captures
// that payment for inspection.
type lostPaymentStore struct {
    *memory.Store
    mu      sync.Mutex
    stuckID uint64
    created *model.Payment
}

func (s *lostPaymentStore) ListHiredListingsMissingPayment(ctx context.Context) ([]model.Listing, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.stuckID != 0 && s.created == nil {
        l, err := s.Store.GetListing(ctx, s.stuckID)
        if err != nil {
            return nil, err
        }
        return []model.Listing{*l}, nil
    }
    return s.Store.ListHiredListingsMissingPayment(ctx)
}

func (s *lostPaymentStore) CreatePayment(ctx context.Context, p *model.Payment) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.stuckID != 0 && s.created == nil && p.ListingID == s.stuckID {
        cp := *p
        s.created = &cp
        return nil
    }
    return s.Store.CreatePayment(ctx, p)
}

func TestRecover(t *testing.T) {
    ctx := context.Background()
    mem := memory.New()
    listingID, winnerID, _ := seedHireable(t, mem)
    gw := newFakeGateway()
    s := &lostPaymentStore{Store: mem}
    rec := New(s, gw)

    init := checkout.NewInitiator(s, gw, "usd", "https://app.example/ok", "https://app.example/cancel")
    sess, err := init.Begin(ctx, listingID, winnerID, 1)
    if err != nil {
        t.Fatalf("begin checkout: %v", err)
    }
    gw.settle(sess.ID)

    t.Run("nothing stuck is a no-op", func(t *testing.T) {
        n, err := rec.Recover(ctx)
        if err != nil {
            t.Fatalf("recover: %v", err)
        }
        if n != 0 {
            t.Fatalf("repaired = %d, want 0", n)
        }
    })

    // Apply the hire, then pretend its payment insert never landed.
    if _, err := rec.FromSession(ctx, sess.ID); err != nil {
        t.Fatalf("reconcile session: %v", err)
    }
    s.mu.Lock()
    s.stuckID = listingID
    s.mu.Unlock()

    t.Run("forward-completes the missing payment", func(t *testing.T) {
        n, err := rec.Recover(ctx)
        if err != nil {
            t.Fatalf("recover: %v", err)
        }
        if n != 1 {
            t.Fatalf("repaired = %d, want 1", n)
        }
        conf, _ := gw.RetrieveSession(ctx, sess.ID)
        s.mu.Lock()
        p := s.created
        s.mu.Unlock()
        if p == nil {
            t.Fatal("no payment re-created")
        }
        if p.TransactionRef != conf.TransactionRef {
            t.Fatalf("ref = %s, want %s (re-derived from the gateway session)", p.TransactionRef, conf.TransactionRef)
        }
        if p.ListingID != listingID || p.PayerID != 1 || p.PayeeID != 2 || p.AmountCents != conf.AmountCents {
            t.Fatalf("recovered payment wired wrong: %+v", p)
        }
    })

    t.Run("second pass is a no-op", func(t *testing.T) {
        n, err := rec.Recover(ctx)
        if err != nil {
            t.Fatalf("recover: %v", err)
        }
        if n != 0 {
            t.Fatalf("repaired = %d, want 0", n)
        }
    })
}
