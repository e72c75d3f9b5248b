package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-resale/internal/status"
	"ticket-resale/internal/store"
	"ticket-resale/models"
)

type offerFixture struct {
	*settleFixture
	offers *OfferService
}

func newOfferFixture(t *testing.T) *offerFixture {
	t.Helper()
	f := newSettleFixture(t)

	pricing := NewPricingAdvisor(f.store)
	offers := NewOfferService(f.store, f.gateway, pricing, f.settlement, f.notifier)
	offers.now = func() time.Time { return matchTime }

	return &offerFixture{settleFixture: f, offers: offers}
}

func TestCreateOffer_NoMatchLeavesActive(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)

	offer, err := f.offers.CreateOffer(ctx, &CreateOfferRequest{
		BuyerID:  "c-buyer",
		EventID:  "e1",
		Sections: []string{"A"},
		MaxPrice: dec(200),
		Quantity: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, models.OfferActive, offer.Status)
	assert.Equal(t, models.HoldAuthorized, offer.Hold.Status)
	assert.NotEmpty(t, offer.Hold.Reference)
	assert.Equal(t, matchTime.Add(47*time.Hour), offer.ExpiresAt, "defaults to one hour before the event")
	assert.Equal(t, float64(50), offer.AcceptanceProbability, "cold market stays neutral")
}

func TestCreateOffer_InstantMatch(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)
	f.addListing(t, "l1", decPtr(150))

	offer, err := f.offers.CreateOffer(ctx, &CreateOfferRequest{
		BuyerID:  "c-buyer",
		EventID:  "e1",
		Sections: []string{"A"},
		MaxPrice: dec(200),
		Quantity: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, models.OfferMatched, offer.Status, "eligible live inventory matches immediately")
	assert.Equal(t, "l1", offer.MatchedListingID)

	txn, err := f.store.FindTransactionByOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.True(t, txn.SalePrice.Equal(dec(200)))
	assert.True(t, txn.SellerFee.Equal(dec(20)))
	assert.True(t, txn.SellerPayout.Equal(dec(180)))
}

func TestCreateOffer_PicksCheapestListing(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)
	f.addListing(t, "l1", decPtr(180))
	f.addListing(t, "l2", decPtr(150))

	offer, err := f.offers.CreateOffer(ctx, &CreateOfferRequest{
		BuyerID:  "c-buyer",
		EventID:  "e1",
		Sections: []string{"A"},
		MaxPrice: dec(200),
		Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "l2", offer.MatchedListingID)
}

func TestCreateOffer_Validation(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)

	base := func() *CreateOfferRequest {
		return &CreateOfferRequest{
			BuyerID:  "c-buyer",
			EventID:  "e1",
			Sections: []string{"A"},
			MaxPrice: dec(200),
			Quantity: 2,
		}
	}

	req := base()
	req.BuyerID = "missing"
	_, err := f.offers.CreateOffer(ctx, req)
	assert.True(t, status.IsNotFound(err))

	req = base()
	req.BuyerID = "c-seller"
	_, err = f.offers.CreateOffer(ctx, req)
	assert.True(t, status.IsBusinessRule(err), "seller-only accounts cannot buy")

	req = base()
	req.Sections = nil
	_, err = f.offers.CreateOffer(ctx, req)
	assert.True(t, status.IsValidation(err))

	req = base()
	req.Sections = []string{"Z"}
	_, err = f.offers.CreateOffer(ctx, req)
	assert.True(t, status.IsValidation(err))

	req = base()
	req.MaxPrice = decimal.Zero
	_, err = f.offers.CreateOffer(ctx, req)
	assert.True(t, status.IsValidation(err))

	req = base()
	req.Quantity = 0
	_, err = f.offers.CreateOffer(ctx, req)
	assert.True(t, status.IsValidation(err))

	past := matchTime.Add(-time.Minute)
	req = base()
	req.ExpiresAt = &past
	_, err = f.offers.CreateOffer(ctx, req)
	assert.True(t, status.IsValidation(err))

	assert.Equal(t, 0, f.gateway.CaptureCount())
}

func TestCreateOffer_ClosedEvent(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)

	event, err := f.store.GetEvent(ctx, "e1")
	require.NoError(t, err)
	event.Status = models.EventCompleted
	require.NoError(t, f.store.SaveEvent(ctx, event))

	_, err = f.offers.CreateOffer(ctx, &CreateOfferRequest{
		BuyerID:  "c-buyer",
		EventID:  "e1",
		Sections: []string{"A"},
		MaxPrice: dec(200),
		Quantity: 1,
	})
	assert.True(t, status.IsBusinessRule(err))
}

func TestCreateOffer_AuthorizeFailure(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)

	f.gateway.FailAuthorize = errors.New("card declined")

	_, err := f.offers.CreateOffer(ctx, &CreateOfferRequest{
		BuyerID:  "c-buyer",
		EventID:  "e1",
		Sections: []string{"A"},
		MaxPrice: dec(200),
		Quantity: 1,
	})
	assert.True(t, status.IsExternal(err))
}

func TestCreateOffer_DefaultExpiryClampedToEventStart(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)

	start := matchTime.Add(30 * time.Minute)
	require.NoError(t, f.store.SaveEvent(ctx, &models.Event{
		ID:        "e-soon",
		Name:      "Door Show",
		StartTime: start,
		Sections:  []string{"A"},
		Status:    models.EventUpcoming,
	}))

	offer, err := f.offers.CreateOffer(ctx, &CreateOfferRequest{
		BuyerID:  "c-buyer",
		EventID:  "e-soon",
		Sections: []string{"A"},
		MaxPrice: dec(200),
		Quantity: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, start, offer.ExpiresAt, "default deadline never lands in the past")
	assert.False(t, offer.Expired(matchTime))
}

func TestCreateOffer_BumpsListingCounters(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)

	// Section B so the new offer counts demand without matching.
	listing := f.addListing(t, "l1", decPtr(150))
	listing.Section = "B"
	require.NoError(t, f.store.SaveListing(ctx, listing))

	_, err := f.offers.CreateOffer(ctx, &CreateOfferRequest{
		BuyerID:  "c-buyer",
		EventID:  "e1",
		Sections: []string{"B"},
		MaxPrice: dec(100),
		Quantity: 1,
	})
	require.NoError(t, err)

	// Quantity 1 cannot take the quantity-2 listing, so it stays open with
	// the demand counter bumped.
	got, err := f.store.GetListing(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, models.ListingActive, got.Status)
	assert.Equal(t, 1, got.OfferCount)
}

// staleOpenListings serves a fixed listing snapshot, standing in for a
// scan that raced a concurrent settlement.
type staleOpenListings struct {
	store.Store
	snapshot []*models.SellerListing
}

func (s *staleOpenListings) ListOpenListingsByEvent(context.Context, string) ([]*models.SellerListing, error) {
	return s.snapshot, nil
}

func TestCreateOffer_CounterBumpKeepsConcurrentMatch(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)

	f.addListing(t, "l1", decPtr(150))
	snapshot, err := f.store.ListOpenListingsByEvent(ctx, "e1")
	require.NoError(t, err)

	// A settlement lands between the scan and the counter write-back.
	f.addOffer(t, "o1", 200)
	_, err = f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1"})
	require.NoError(t, err)

	stale := &staleOpenListings{Store: f.store, snapshot: snapshot}
	offers := NewOfferService(stale, f.gateway, NewPricingAdvisor(f.store), f.settlement, f.notifier)
	offers.bumpOfferCounters(ctx, testOffer("o2", 200))

	got, err := f.store.GetListing(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, models.ListingMatched, got.Status, "the counter bump must not resurrect a matched listing")
	assert.Equal(t, 1, got.OfferCount)

	f.addOffer(t, "o2", 200)
	_, err = f.settlement.Settle(ctx, &SettleRequest{OfferID: "o2", ListingID: "l1"})
	assert.True(t, status.IsConflict(err), "the listing settles exactly once")
	assert.Equal(t, 1, f.gateway.CaptureCount())
}

func TestCancelOffer(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)
	f.addOffer(t, "o1", 200)

	_, err := f.offers.CancelOffer(ctx, "o1", "someone-else")
	assert.True(t, status.IsBusinessRule(err))

	offer, err := f.offers.CancelOffer(ctx, "o1", "c-buyer")
	require.NoError(t, err)
	assert.Equal(t, models.OfferCancelled, offer.Status)
	assert.Equal(t, models.HoldCancelled, offer.Hold.Status)

	_, err = f.offers.CancelOffer(ctx, "o1", "c-buyer")
	assert.True(t, status.IsConflict(err), "cancel is one-shot")
}

func TestCancelOffer_MatchedIsImmutable(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)
	f.addOffer(t, "o1", 200)
	f.addListing(t, "l1", decPtr(150))

	_, err := f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1"})
	require.NoError(t, err)

	_, err = f.offers.CancelOffer(ctx, "o1", "c-buyer")
	assert.True(t, status.IsConflict(err))
}

func TestExpireOffer(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)
	offer := f.addOffer(t, "o1", 200)

	err := f.offers.ExpireOffer(ctx, "o1")
	assert.True(t, status.IsConflict(err), "deadline has not passed yet")

	offer.ExpiresAt = matchTime.Add(-time.Minute)
	require.NoError(t, f.store.SaveOffer(ctx, offer))

	require.NoError(t, f.offers.ExpireOffer(ctx, "o1"))

	got, err := f.store.GetOffer(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OfferExpired, got.Status)
	assert.Equal(t, models.HoldCancelled, got.Hold.Status)

	err = f.offers.ExpireOffer(ctx, "o1")
	assert.True(t, status.IsConflict(err))
}

func TestListOffersAndTransactions(t *testing.T) {
	ctx := context.Background()
	f := newOfferFixture(t)
	f.addOffer(t, "o1", 200)
	f.addListing(t, "l1", decPtr(150))

	_, err := f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1"})
	require.NoError(t, err)

	offers, err := f.offers.ListOffers(ctx, "c-buyer", 10)
	require.NoError(t, err)
	require.Len(t, offers, 1)

	txns, err := f.offers.ListTransactions(ctx, "c-buyer", 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "o1", txns[0].OfferID)
}
