// Package store defines the persistence interface for the resale core.
// PocketBase is the source of truth; the in-memory implementation backs
// tests. The store is the sole coordination point between concurrent
// matchers and sweeps: every multi-record transition runs through
// RunInTransaction and re-checks its preconditions inside the unit.
package store

import (
	"context"
	"time"

	"ticket-resale/models"
)

type Store interface {
	// --- Customers ---

	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	SaveCustomer(ctx context.Context, customer *models.Customer) error

	// --- Events ---

	GetEvent(ctx context.Context, id string) (*models.Event, error)
	SaveEvent(ctx context.Context, event *models.Event) error

	// ListEventsStartedBefore returns events whose start time has passed
	// but that still carry upcoming status. Used by the expiration sweep.
	ListEventsStartedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Event, error)

	// --- Buyer offers ---

	GetOffer(ctx context.Context, id string) (*models.BuyerOffer, error)
	SaveOffer(ctx context.Context, offer *models.BuyerOffer) error

	// ListActiveOffersByEvent returns offers in active status for the
	// event, oldest first.
	ListActiveOffersByEvent(ctx context.Context, eventID string) ([]*models.BuyerOffer, error)
	ListOffersByBuyer(ctx context.Context, buyerID string, limit int) ([]*models.BuyerOffer, error)

	// ListExpiredActiveOffers returns offers still active whose deadline
	// passed before cutoff, oldest deadline first.
	ListExpiredActiveOffers(ctx context.Context, cutoff time.Time, limit int) ([]*models.BuyerOffer, error)

	// --- Seller listings ---

	GetListing(ctx context.Context, id string) (*models.SellerListing, error)
	SaveListing(ctx context.Context, listing *models.SellerListing) error

	// ListLiveListingsByEvent returns active, live listings for the event,
	// oldest first.
	ListLiveListingsByEvent(ctx context.Context, eventID string) ([]*models.SellerListing, error)
	ListListingsBySeller(ctx context.Context, sellerID string, limit int) ([]*models.SellerListing, error)

	// ListAutoSellDueListings returns active live listings whose auto-sell
	// trigger time has passed.
	ListAutoSellDueListings(ctx context.Context, cutoff time.Time, limit int) ([]*models.SellerListing, error)

	// ListGoLiveDueListings returns draft listings whose deferred go-live
	// time has passed.
	ListGoLiveDueListings(ctx context.Context, cutoff time.Time, limit int) ([]*models.SellerListing, error)

	// ListOpenListingsByEvent returns draft and active listings for the
	// event, oldest first.
	ListOpenListingsByEvent(ctx context.Context, eventID string) ([]*models.SellerListing, error)

	// --- Transactions ---

	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	SaveTransaction(ctx context.Context, txn *models.Transaction) error

	// FindTransactionByOffer returns the committed settlement referencing
	// the offer, if any. Backs the idempotent reconciliation re-check.
	FindTransactionByOffer(ctx context.Context, offerID string) (*models.Transaction, error)

	ListTransactionsByBuyer(ctx context.Context, buyerID string, limit int) ([]*models.Transaction, error)
	ListTransactionsBySeller(ctx context.Context, sellerID string, limit int) ([]*models.Transaction, error)

	// ListSettledTransactionsByEvent returns captured transactions for the
	// event. Feeds the pricing advisor and market stats.
	ListSettledTransactionsByEvent(ctx context.Context, eventID string) ([]*models.Transaction, error)

	// ListHeldEscrowTransactions returns transactions whose escrow is still
	// held, oldest first. Feeds the escrow-timeout sweep.
	ListHeldEscrowTransactions(ctx context.Context, limit int) ([]*models.Transaction, error)

	// RunInTransaction executes fn against a transactional view of the
	// store. Writes commit atomically when fn returns nil and are discarded
	// entirely otherwise. Implementations serialize conflicting units.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error
}
