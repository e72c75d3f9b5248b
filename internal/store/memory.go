package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ticket-resale/internal/status"
	"ticket-resale/models"
)

// Memory is the in-memory Store used by tests and local development. A
// single mutex serializes atomic units, which gives the same observable
// conflict behavior as the database-backed implementation: inside a unit
// the reader always sees the latest committed state.
type Memory struct {
	mu sync.Mutex

	customers    map[string]*models.Customer
	events       map[string]*models.Event
	offers       map[string]*models.BuyerOffer
	listings     map[string]*models.SellerListing
	transactions map[string]*models.Transaction

	// SaveTransactionHook, when set, runs before a transaction record is
	// persisted. Tests use it to inject commit failures.
	SaveTransactionHook func(txn *models.Transaction) error
}

func NewMemory() *Memory {
	return &Memory{
		customers:    make(map[string]*models.Customer),
		events:       make(map[string]*models.Event),
		offers:       make(map[string]*models.BuyerOffer),
		listings:     make(map[string]*models.SellerListing),
		transactions: make(map[string]*models.Transaction),
	}
}

// memTx is the view handed to RunInTransaction callbacks. It operates on
// the parent maps directly while the parent mutex is held.
type memTx struct {
	m *Memory
}

func (s *Memory) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshotLocked()
	if err := fn(&memTx{m: s}); err != nil {
		s.restoreLocked(snapshot)
		return err
	}
	return nil
}

type memSnapshot struct {
	customers    map[string]*models.Customer
	events       map[string]*models.Event
	offers       map[string]*models.BuyerOffer
	listings     map[string]*models.SellerListing
	transactions map[string]*models.Transaction
}

func (s *Memory) snapshotLocked() memSnapshot {
	snap := memSnapshot{
		customers:    make(map[string]*models.Customer, len(s.customers)),
		events:       make(map[string]*models.Event, len(s.events)),
		offers:       make(map[string]*models.BuyerOffer, len(s.offers)),
		listings:     make(map[string]*models.SellerListing, len(s.listings)),
		transactions: make(map[string]*models.Transaction, len(s.transactions)),
	}
	for id, c := range s.customers {
		snap.customers[id] = copyCustomer(c)
	}
	for id, e := range s.events {
		snap.events[id] = copyEvent(e)
	}
	for id, o := range s.offers {
		snap.offers[id] = copyOffer(o)
	}
	for id, l := range s.listings {
		snap.listings[id] = copyListing(l)
	}
	for id, t := range s.transactions {
		snap.transactions[id] = copyTransaction(t)
	}
	return snap
}

func (s *Memory) restoreLocked(snap memSnapshot) {
	s.customers = snap.customers
	s.events = snap.events
	s.offers = snap.offers
	s.listings = snap.listings
	s.transactions = snap.transactions
}

// --- Customers ---

func (s *Memory) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).GetCustomer(ctx, id)
}

func (t *memTx) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	c, ok := t.m.customers[id]
	if !ok {
		return nil, status.NotFound("customer", id)
	}
	return copyCustomer(c), nil
}

func (s *Memory) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).FindCustomerByEmail(ctx, email)
}

func (t *memTx) FindCustomerByEmail(_ context.Context, email string) (*models.Customer, error) {
	for _, c := range t.m.customers {
		if c.Email == email {
			return copyCustomer(c), nil
		}
	}
	return nil, status.NotFound("customer", email)
}

func (s *Memory) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).SaveCustomer(ctx, customer)
}

func (t *memTx) SaveCustomer(_ context.Context, customer *models.Customer) error {
	t.m.customers[customer.ID] = copyCustomer(customer)
	return nil
}

// --- Events ---

func (s *Memory) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).GetEvent(ctx, id)
}

func (t *memTx) GetEvent(_ context.Context, id string) (*models.Event, error) {
	e, ok := t.m.events[id]
	if !ok {
		return nil, status.NotFound("event", id)
	}
	return copyEvent(e), nil
}

func (s *Memory) SaveEvent(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).SaveEvent(ctx, event)
}

func (t *memTx) SaveEvent(_ context.Context, event *models.Event) error {
	t.m.events[event.ID] = copyEvent(event)
	return nil
}

func (s *Memory) ListEventsStartedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListEventsStartedBefore(ctx, cutoff, limit)
}

func (t *memTx) ListEventsStartedBefore(_ context.Context, cutoff time.Time, limit int) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range t.m.events {
		if e.Status == models.EventUpcoming && e.StartTime.Before(cutoff) {
			out = append(out, copyEvent(e))
		}
	}
	sortByCreated(out, func(e *models.Event) (time.Time, string) { return e.StartTime, e.ID })
	return capLimit(out, limit), nil
}

// --- Offers ---

func (s *Memory) GetOffer(ctx context.Context, id string) (*models.BuyerOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).GetOffer(ctx, id)
}

func (t *memTx) GetOffer(_ context.Context, id string) (*models.BuyerOffer, error) {
	o, ok := t.m.offers[id]
	if !ok {
		return nil, status.NotFound("offer", id)
	}
	return copyOffer(o), nil
}

func (s *Memory) SaveOffer(ctx context.Context, offer *models.BuyerOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).SaveOffer(ctx, offer)
}

func (t *memTx) SaveOffer(_ context.Context, offer *models.BuyerOffer) error {
	t.m.offers[offer.ID] = copyOffer(offer)
	return nil
}

func (s *Memory) ListActiveOffersByEvent(ctx context.Context, eventID string) ([]*models.BuyerOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListActiveOffersByEvent(ctx, eventID)
}

func (t *memTx) ListActiveOffersByEvent(_ context.Context, eventID string) ([]*models.BuyerOffer, error) {
	var out []*models.BuyerOffer
	for _, o := range t.m.offers {
		if o.EventID == eventID && o.Status == models.OfferActive {
			out = append(out, copyOffer(o))
		}
	}
	sortByCreated(out, func(o *models.BuyerOffer) (time.Time, string) { return o.CreatedAt, o.ID })
	return out, nil
}

func (s *Memory) ListOffersByBuyer(ctx context.Context, buyerID string, limit int) ([]*models.BuyerOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListOffersByBuyer(ctx, buyerID, limit)
}

func (t *memTx) ListOffersByBuyer(_ context.Context, buyerID string, limit int) ([]*models.BuyerOffer, error) {
	var out []*models.BuyerOffer
	for _, o := range t.m.offers {
		if o.BuyerID == buyerID {
			out = append(out, copyOffer(o))
		}
	}
	sortByCreated(out, func(o *models.BuyerOffer) (time.Time, string) { return o.CreatedAt, o.ID })
	return capLimit(out, limit), nil
}

func (s *Memory) ListExpiredActiveOffers(ctx context.Context, cutoff time.Time, limit int) ([]*models.BuyerOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListExpiredActiveOffers(ctx, cutoff, limit)
}

func (t *memTx) ListExpiredActiveOffers(_ context.Context, cutoff time.Time, limit int) ([]*models.BuyerOffer, error) {
	var out []*models.BuyerOffer
	for _, o := range t.m.offers {
		if o.Status == models.OfferActive && o.ExpiresAt.Before(cutoff) {
			out = append(out, copyOffer(o))
		}
	}
	sortByCreated(out, func(o *models.BuyerOffer) (time.Time, string) { return o.ExpiresAt, o.ID })
	return capLimit(out, limit), nil
}

// --- Listings ---

func (s *Memory) GetListing(ctx context.Context, id string) (*models.SellerListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).GetListing(ctx, id)
}

func (t *memTx) GetListing(_ context.Context, id string) (*models.SellerListing, error) {
	l, ok := t.m.listings[id]
	if !ok {
		return nil, status.NotFound("listing", id)
	}
	return copyListing(l), nil
}

func (s *Memory) SaveListing(ctx context.Context, listing *models.SellerListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).SaveListing(ctx, listing)
}

func (t *memTx) SaveListing(_ context.Context, listing *models.SellerListing) error {
	t.m.listings[listing.ID] = copyListing(listing)
	return nil
}

func (s *Memory) ListLiveListingsByEvent(ctx context.Context, eventID string) ([]*models.SellerListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListLiveListingsByEvent(ctx, eventID)
}

func (t *memTx) ListLiveListingsByEvent(_ context.Context, eventID string) ([]*models.SellerListing, error) {
	var out []*models.SellerListing
	for _, l := range t.m.listings {
		if l.EventID == eventID && l.Status == models.ListingActive && l.IsLive {
			out = append(out, copyListing(l))
		}
	}
	sortByCreated(out, func(l *models.SellerListing) (time.Time, string) { return l.CreatedAt, l.ID })
	return out, nil
}

func (s *Memory) ListListingsBySeller(ctx context.Context, sellerID string, limit int) ([]*models.SellerListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListListingsBySeller(ctx, sellerID, limit)
}

func (t *memTx) ListListingsBySeller(_ context.Context, sellerID string, limit int) ([]*models.SellerListing, error) {
	var out []*models.SellerListing
	for _, l := range t.m.listings {
		if l.SellerID == sellerID {
			out = append(out, copyListing(l))
		}
	}
	sortByCreated(out, func(l *models.SellerListing) (time.Time, string) { return l.CreatedAt, l.ID })
	return capLimit(out, limit), nil
}

func (s *Memory) ListAutoSellDueListings(ctx context.Context, cutoff time.Time, limit int) ([]*models.SellerListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListAutoSellDueListings(ctx, cutoff, limit)
}

func (t *memTx) ListAutoSellDueListings(_ context.Context, cutoff time.Time, limit int) ([]*models.SellerListing, error) {
	var out []*models.SellerListing
	for _, l := range t.m.listings {
		if l.Status == models.ListingActive && l.IsLive && l.AutoSellDue(cutoff) {
			out = append(out, copyListing(l))
		}
	}
	sortByCreated(out, func(l *models.SellerListing) (time.Time, string) { return l.CreatedAt, l.ID })
	return capLimit(out, limit), nil
}

func (s *Memory) ListGoLiveDueListings(ctx context.Context, cutoff time.Time, limit int) ([]*models.SellerListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListGoLiveDueListings(ctx, cutoff, limit)
}

func (t *memTx) ListGoLiveDueListings(_ context.Context, cutoff time.Time, limit int) ([]*models.SellerListing, error) {
	var out []*models.SellerListing
	for _, l := range t.m.listings {
		if l.Status == models.ListingDraft && l.GoLiveAt != nil && l.GoLiveAt.Before(cutoff) {
			out = append(out, copyListing(l))
		}
	}
	sortByCreated(out, func(l *models.SellerListing) (time.Time, string) { return l.CreatedAt, l.ID })
	return capLimit(out, limit), nil
}

func (s *Memory) ListOpenListingsByEvent(ctx context.Context, eventID string) ([]*models.SellerListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListOpenListingsByEvent(ctx, eventID)
}

func (t *memTx) ListOpenListingsByEvent(_ context.Context, eventID string) ([]*models.SellerListing, error) {
	var out []*models.SellerListing
	for _, l := range t.m.listings {
		if l.EventID == eventID && (l.Status == models.ListingDraft || l.Status == models.ListingActive) {
			out = append(out, copyListing(l))
		}
	}
	sortByCreated(out, func(l *models.SellerListing) (time.Time, string) { return l.CreatedAt, l.ID })
	return out, nil
}

// --- Transactions ---

func (s *Memory) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).GetTransaction(ctx, id)
}

func (t *memTx) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	txn, ok := t.m.transactions[id]
	if !ok {
		return nil, status.NotFound("transaction", id)
	}
	return copyTransaction(txn), nil
}

func (s *Memory) SaveTransaction(ctx context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).SaveTransaction(ctx, txn)
}

func (t *memTx) SaveTransaction(_ context.Context, txn *models.Transaction) error {
	if t.m.SaveTransactionHook != nil {
		if err := t.m.SaveTransactionHook(txn); err != nil {
			return err
		}
	}
	t.m.transactions[txn.ID] = copyTransaction(txn)
	return nil
}

func (s *Memory) FindTransactionByOffer(ctx context.Context, offerID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).FindTransactionByOffer(ctx, offerID)
}

func (t *memTx) FindTransactionByOffer(_ context.Context, offerID string) (*models.Transaction, error) {
	for _, txn := range t.m.transactions {
		if txn.OfferID == offerID {
			return copyTransaction(txn), nil
		}
	}
	return nil, status.NotFound("transaction for offer", offerID)
}

func (s *Memory) ListTransactionsByBuyer(ctx context.Context, buyerID string, limit int) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListTransactionsByBuyer(ctx, buyerID, limit)
}

func (t *memTx) ListTransactionsByBuyer(_ context.Context, buyerID string, limit int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, txn := range t.m.transactions {
		if txn.BuyerID == buyerID {
			out = append(out, copyTransaction(txn))
		}
	}
	sortByCreated(out, func(txn *models.Transaction) (time.Time, string) { return txn.CreatedAt, txn.ID })
	return capLimit(out, limit), nil
}

func (s *Memory) ListTransactionsBySeller(ctx context.Context, sellerID string, limit int) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListTransactionsBySeller(ctx, sellerID, limit)
}

func (t *memTx) ListTransactionsBySeller(_ context.Context, sellerID string, limit int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, txn := range t.m.transactions {
		if txn.SellerID == sellerID {
			out = append(out, copyTransaction(txn))
		}
	}
	sortByCreated(out, func(txn *models.Transaction) (time.Time, string) { return txn.CreatedAt, txn.ID })
	return capLimit(out, limit), nil
}

func (s *Memory) ListSettledTransactionsByEvent(ctx context.Context, eventID string) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListSettledTransactionsByEvent(ctx, eventID)
}

func (t *memTx) ListSettledTransactionsByEvent(_ context.Context, eventID string) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, txn := range t.m.transactions {
		if txn.EventID == eventID && txn.PaymentStatus == models.PaymentCaptured {
			out = append(out, copyTransaction(txn))
		}
	}
	sortByCreated(out, func(txn *models.Transaction) (time.Time, string) { return txn.CreatedAt, txn.ID })
	return out, nil
}

func (s *Memory) ListHeldEscrowTransactions(ctx context.Context, limit int) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{m: s}).ListHeldEscrowTransactions(ctx, limit)
}

func (t *memTx) ListHeldEscrowTransactions(_ context.Context, limit int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, txn := range t.m.transactions {
		if txn.EscrowStatus == models.EscrowHeld {
			out = append(out, copyTransaction(txn))
		}
	}
	sortByCreated(out, func(txn *models.Transaction) (time.Time, string) { return txn.CreatedAt, txn.ID })
	return capLimit(out, limit), nil
}

// RunInTransaction on a tx view runs fn directly; the outer unit already
// holds the lock and owns commit/rollback.
func (t *memTx) RunInTransaction(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}

// --- copy helpers ---

func copyCustomer(c *models.Customer) *models.Customer {
	cp := *c
	cp.FeePercentage = copyDecimal(c.FeePercentage)
	return &cp
}

func copyEvent(e *models.Event) *models.Event {
	c := *e
	c.Sections = append([]string(nil), e.Sections...)
	return &c
}

func copyOffer(o *models.BuyerOffer) *models.BuyerOffer {
	c := *o
	c.Sections = append([]string(nil), o.Sections...)
	if o.MatchedAt != nil {
		at := *o.MatchedAt
		c.MatchedAt = &at
	}
	return &c
}

func copyListing(l *models.SellerListing) *models.SellerListing {
	c := *l
	c.Seats = append([]string(nil), l.Seats...)
	c.AskingPrice = copyDecimal(l.AskingPrice)
	c.MinimumAcceptablePrice = copyDecimal(l.MinimumAcceptablePrice)
	if l.GoLiveAt != nil {
		at := *l.GoLiveAt
		c.GoLiveAt = &at
	}
	return &c
}

func copyTransaction(txn *models.Transaction) *models.Transaction {
	c := *txn
	c.Seats = append([]string(nil), txn.Seats...)
	if txn.TransferredAt != nil {
		at := *txn.TransferredAt
		c.TransferredAt = &at
	}
	if txn.ConfirmedAt != nil {
		at := *txn.ConfirmedAt
		c.ConfirmedAt = &at
	}
	if txn.DisputedAt != nil {
		at := *txn.DisputedAt
		c.DisputedAt = &at
	}
	if txn.PaidOutAt != nil {
		at := *txn.PaidOutAt
		c.PaidOutAt = &at
	}
	return &c
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func sortByCreated[T any](items []T, key func(T) (time.Time, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if ti.Equal(tj) {
			return idi < idj
		}
		return ti.Before(tj)
	})
}

func capLimit[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
