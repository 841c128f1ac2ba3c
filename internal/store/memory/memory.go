// Package memory provides an in-memory Store implementation backed by
// a single mutex.  It is used by tests and for local development
// without a MySQL instance.  Because every operation runs under the
// same lock, multi-record operations such as ConfirmHire are trivially
// atomic: no caller can observe a half-applied hire.
package memory

import (
    "context"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/iliyamo/tuition-marketplace/internal/model"
    "github.com/iliyamo/tuition-marketplace/internal/store"
)

// Store holds all ledger records in maps keyed by id.  Records are
// stored by value and copied on the way in and out so callers cannot
// mutate shared state behind the lock.
type Store struct {
    mu sync.Mutex

    listings     map[uint64]model.Listing
    applications map[uint64]model.Application
    payments     map[uint64]model.Payment
    paymentByRef map[string]uint64

    nextListingID     uint64
    nextApplicationID uint64
    nextPaymentID     uint64
}

// New returns an empty in-memory store.
func New() *Store {
    return &Store{
        listings:     make(map[uint64]model.Listing),
        applications: make(map[uint64]model.Application),
        payments:     make(map[uint64]model.Payment),
        paymentByRef: make(map[string]uint64),
    }
}

func (s *Store) CreateListing(_ context.Context, l *model.Listing) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.nextListingID++
    l.ID = s.nextListingID
    l.Status = model.ListingPending
    if l.CreatedAt.IsZero() {
        l.CreatedAt = time.Now().UTC()
    }
    s.listings[l.ID] = *l
    return nil
}

func (s *Store) GetListing(_ context.Context, id uint64) (*model.Listing, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    l, ok := s.listings[id]
    if !ok {
        return nil, store.ErrNotFound
    }
    cp := l
    return &cp, nil
}

func (s *Store) UpdateListingAttrs(_ context.Context, id uint64, attrs model.ListingAttrs) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    l, ok := s.listings[id]
    if !ok {
        return store.ErrNotFound
    }
    l.Subject = attrs.Subject
    l.ClassLevel = attrs.ClassLevel
    l.Location = attrs.Location
    l.Schedule = attrs.Schedule
    l.DaysPerWeek = attrs.DaysPerWeek
    l.SalaryCents = attrs.SalaryCents
    l.Details = attrs.Details
    s.listings[id] = l
    return nil
}

func (s *Store) ModerateListing(_ context.Context, id uint64, to string, at time.Time) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    l, ok := s.listings[id]
    if !ok {
        return store.ErrNotFound
    }
    if l.Status != model.ListingPending {
        return store.ErrInvalidState
    }
    switch to {
    case model.ListingApproved:
        l.Status = model.ListingApproved
        t := at
        l.ApprovedAt = &t
    case model.ListingRejected:
        l.Status = model.ListingRejected
        t := at
        l.RejectedAt = &t
    default:
        return store.ErrInvalidState
    }
    s.listings[id] = l
    return nil
}

func (s *Store) DeleteListing(_ context.Context, id uint64, at time.Time) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.listings[id]; !ok {
        return store.ErrNotFound
    }
    // Withdraw every still-pending application under the same lock so
    // none of them survives the listing.
    for aid, a := range s.applications {
        if a.ListingID == id && a.Status == model.ApplicationPending {
            a.Status = model.ApplicationWithdrawn
            t := at
            a.DecidedAt = &t
            s.applications[aid] = a
        }
    }
    delete(s.listings, id)
    return nil
}

func (s *Store) ListListingsByStudent(_ context.Context, studentID uint64) ([]model.Listing, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Listing, 0)
    for _, l := range s.listings {
        if l.StudentID == studentID {
            out = append(out, l)
        }
    }
    sortListings(out)
    return out, nil
}

func (s *Store) SearchListings(_ context.Context, f store.ListingFilter) ([]model.Listing, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Listing, 0)
    for _, l := range s.listings {
        if l.Status != model.ListingApproved {
            continue
        }
        if f.Subject != "" && !strings.EqualFold(l.Subject, f.Subject) {
            continue
        }
        if f.ClassLevel != "" && !strings.EqualFold(l.ClassLevel, f.ClassLevel) {
            continue
        }
        if f.Location != "" && !strings.Contains(strings.ToLower(l.Location), strings.ToLower(f.Location)) {
            continue
        }
        if f.MaxSalaryCents > 0 && l.SalaryCents > f.MaxSalaryCents {
            continue
        }
        out = append(out, l)
    }
    sortListings(out)
    if f.Offset > 0 {
        if f.Offset >= len(out) {
            return []model.Listing{}, nil
        }
        out = out[f.Offset:]
    }
    if f.Limit > 0 && f.Limit < len(out) {
        out = out[:f.Limit]
    }
    return out, nil
}

func (s *Store) ListHiredListingsMissingPayment(_ context.Context) ([]model.Listing, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    paid := make(map[uint64]bool, len(s.payments))
    for _, p := range s.payments {
        paid[p.ListingID] = true
    }
    out := make([]model.Listing, 0)
    for _, l := range s.listings {
        if l.Status == model.ListingHired && !paid[l.ID] {
            out = append(out, l)
        }
    }
    sortListings(out)
    return out, nil
}

func (s *Store) CreateApplication(_ context.Context, a *model.Application) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    // The duplicate check and the insert happen under one lock, the
    // memory-store equivalent of the MySQL unique index.
    for _, existing := range s.applications {
        if existing.ListingID == a.ListingID && existing.TutorID == a.TutorID &&
            existing.Status != model.ApplicationWithdrawn {
            return store.ErrConflict
        }
    }
    s.nextApplicationID++
    a.ID = s.nextApplicationID
    a.Status = model.ApplicationPending
    if a.AppliedAt.IsZero() {
        a.AppliedAt = time.Now().UTC()
    }
    s.applications[a.ID] = *a
    return nil
}

func (s *Store) GetApplication(_ context.Context, id uint64) (*model.Application, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    a, ok := s.applications[id]
    if !ok {
        return nil, store.ErrNotFound
    }
    cp := a
    return &cp, nil
}

func (s *Store) AmendApplication(_ context.Context, id uint64, bid model.ApplicationBid) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    a, ok := s.applications[id]
    if !ok {
        return store.ErrNotFound
    }
    if a.Status != model.ApplicationPending {
        return store.ErrInvalidState
    }
    a.Qualifications = bid.Qualifications
    a.Experience = bid.Experience
    a.ExpectedSalaryCents = bid.ExpectedSalaryCents
    s.applications[id] = a
    return nil
}

func (s *Store) DecideApplication(_ context.Context, id uint64, to string, at time.Time) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    a, ok := s.applications[id]
    if !ok {
        return store.ErrNotFound
    }
    if a.Status != model.ApplicationPending {
        return store.ErrInvalidState
    }
    if to != model.ApplicationRejected && to != model.ApplicationWithdrawn {
        return store.ErrInvalidState
    }
    a.Status = to
    t := at
    a.DecidedAt = &t
    s.applications[id] = a
    return nil
}

func (s *Store) SetApplicationCheckoutRef(_ context.Context, id uint64, ref string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    a, ok := s.applications[id]
    if !ok {
        return store.ErrNotFound
    }
    a.CheckoutRef = &ref
    s.applications[id] = a
    return nil
}

func (s *Store) ListApplicationsByListing(_ context.Context, listingID uint64) ([]model.Application, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Application, 0)
    for _, a := range s.applications {
        if a.ListingID == listingID {
            out = append(out, a)
        }
    }
    sortApplications(out)
    return out, nil
}

func (s *Store) ListApplicationsByTutor(_ context.Context, tutorID uint64) ([]model.Application, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Application, 0)
    for _, a := range s.applications {
        if a.TutorID == tutorID {
            out = append(out, a)
        }
    }
    sortApplications(out)
    return out, nil
}

func (s *Store) ApprovedApplicationForListing(_ context.Context, listingID uint64) (*model.Application, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, a := range s.applications {
        if a.ListingID == listingID && a.Status == model.ApplicationApproved {
            cp := a
            return &cp, nil
        }
    }
    return nil, store.ErrNotFound
}

func (s *Store) GetPaymentByRef(_ context.Context, transactionRef string) (*model.Payment, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    id, ok := s.paymentByRef[transactionRef]
    if !ok {
        return nil, store.ErrNotFound
    }
    cp := s.payments[id]
    return &cp, nil
}

func (s *Store) CreatePayment(_ context.Context, p *model.Payment) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.insertPaymentLocked(p)
}

func (s *Store) ListPaymentsByUser(_ context.Context, userID uint64) ([]model.Payment, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Payment, 0)
    for _, p := range s.payments {
        if p.PayerID == userID || p.PayeeID == userID {
            out = append(out, p)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

func (s *Store) ConfirmHire(_ context.Context, h store.HireConfirmation) (*model.Payment, error) {
    s.mu.Lock()
    defer s.mu.Unlock()

    // Re-run the conditional checks under the lock.  A concurrent
    // reconciliation that already hired this listing makes these fail
    // with ErrInvalidState instead of racing to completion.
    if _, ok := s.paymentByRef[h.TransactionRef]; ok {
        return nil, store.ErrDuplicateTransaction
    }
    l, ok := s.listings[h.ListingID]
    if !ok {
        return nil, store.ErrNotFound
    }
    a, ok := s.applications[h.ApplicationID]
    if !ok {
        return nil, store.ErrNotFound
    }
    if l.Status != model.ListingApproved || a.Status != model.ApplicationPending || a.ListingID != l.ID {
        return nil, store.ErrInvalidState
    }

    // All writes happen under the one lock, so readers see either the
    // pre-hire state or the fully-hired state, never a mix.
    t := h.Now
    a.Status = model.ApplicationApproved
    a.DecidedAt = &t
    s.applications[a.ID] = a

    for oid, other := range s.applications {
        if oid == a.ID {
            continue
        }
        if other.ListingID == l.ID && other.Status == model.ApplicationPending {
            other.Status = model.ApplicationRejected
            dt := t
            other.DecidedAt = &dt
            s.applications[oid] = other
        }
    }

    tutor := h.TutorID
    l.Status = model.ListingHired
    l.HiredTutorID = &tutor
    ht := t
    l.HiredAt = &ht
    s.listings[l.ID] = l

    p := &model.Payment{
        TransactionRef: h.TransactionRef,
        ListingID:      h.ListingID,
        ApplicationID:  h.ApplicationID,
        PayerID:        h.PayerID,
        PayeeID:        h.PayeeID,
        AmountCents:    h.AmountCents,
        Status:         model.PaymentCompleted,
        PaidAt:         t,
    }
    if err := s.insertPaymentLocked(p); err != nil {
        return nil, err
    }
    return p, nil
}

// insertPaymentLocked inserts a payment row, enforcing the unique
// transaction_ref index.  Caller must hold s.mu.
func (s *Store) insertPaymentLocked(p *model.Payment) error {
    if _, exists := s.paymentByRef[p.TransactionRef]; exists {
        return store.ErrDuplicateTransaction
    }
    s.nextPaymentID++
    p.ID = s.nextPaymentID
    if p.Status == "" {
        p.Status = model.PaymentCompleted
    }
    if p.PaidAt.IsZero() {
        p.PaidAt = time.Now().UTC()
    }
    s.payments[p.ID] = *p
    s.paymentByRef[p.TransactionRef] = p.ID
    return nil
}

func sortListings(ls []model.Listing) {
    sort.Slice(ls, func(i, j int) bool { return ls[i].ID < ls[j].ID })
}

func sortApplications(as []model.Application) {
    sort.Slice(as, func(i, j int) bool { return as[i].ID < as[j].ID })
}
