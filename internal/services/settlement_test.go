package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-resale/internal/services/gateway"
	"ticket-resale/internal/services/notify"
	"ticket-resale/internal/status"
	"ticket-resale/internal/store"
	"ticket-resale/models"
)

type settleFixture struct {
	store      *store.Memory
	gateway    *gateway.Sandbox
	notifier   *notify.Recorder
	settlement *Settlement
}

func newSettleFixture(t *testing.T) *settleFixture {
	t.Helper()
	ctx := context.Background()

	m := store.NewMemory()
	gw := gateway.NewSandbox()
	rec := notify.NewRecorder()

	s := NewSettlement(m, gw, rec, decimal.NewFromInt(10))
	s.now = func() time.Time { return matchTime }

	require.NoError(t, m.SaveEvent(ctx, &models.Event{
		ID:        "e1",
		Name:      "Stadium Show",
		StartTime: matchTime.Add(48 * time.Hour),
		Sections:  []string{"A", "B"},
		Status:    models.EventUpcoming,
	}))
	require.NoError(t, m.SaveCustomer(ctx, &models.Customer{
		ID: "c-buyer", Email: "buyer@example.com", Role: models.RoleBuyer,
	}))
	require.NoError(t, m.SaveCustomer(ctx, &models.Customer{
		ID: "c-seller", Email: "seller@example.com", Role: models.RoleSeller,
		PayoutAccount: "acct_seller",
	}))

	return &settleFixture{store: m, gateway: gw, notifier: rec, settlement: s}
}

// addOffer seeds an active offer backed by a real sandbox hold.
func (f *settleFixture) addOffer(t *testing.T, id string, maxPrice int64) *models.BuyerOffer {
	t.Helper()
	ctx := context.Background()

	hold, err := f.gateway.Authorize(ctx, &gateway.AuthorizeRequest{
		CustomerID: "c-buyer",
		Amount:     dec(maxPrice),
		Currency:   "USD",
		Reference:  "auth-" + id,
	})
	require.NoError(t, err)

	offer := testOffer(id, maxPrice)
	offer.BuyerID = "c-buyer"
	offer.Hold = models.PaymentHold{Reference: hold.Reference, Status: models.HoldAuthorized}
	require.NoError(t, f.store.SaveOffer(ctx, offer))
	return offer
}

func (f *settleFixture) addListing(t *testing.T, id string, minimum *decimal.Decimal) *models.SellerListing {
	t.Helper()
	listing := testListing(id, minimum)
	listing.SellerID = "c-seller"
	require.NoError(t, f.store.SaveListing(context.Background(), listing))
	return listing
}

func TestSettle_Commits(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	f.addOffer(t, "o1", 200)
	f.addListing(t, "l1", decPtr(150))

	txn, err := f.settlement.Settle(ctx, &SettleRequest{
		OfferID: "o1", ListingID: "l1", ActingParty: "system:instant-match",
	})
	require.NoError(t, err)

	// Sale at the buyer's max: 200 with 10% fee is 20 fee, 180 payout.
	assert.True(t, txn.SalePrice.Equal(dec(200)), "got %s", txn.SalePrice)
	assert.True(t, txn.SellerFee.Equal(dec(20)), "got %s", txn.SellerFee)
	assert.True(t, txn.SellerPayout.Equal(dec(180)), "got %s", txn.SellerPayout)
	assert.True(t, txn.SellerFee.Add(txn.SellerPayout).Equal(txn.SalePrice), "fee plus payout must equal sale price exactly")

	assert.Equal(t, models.PaymentCaptured, txn.PaymentStatus)
	assert.Equal(t, models.PayoutPending, txn.PayoutStatus)
	assert.Equal(t, models.DeliveryPending, txn.DeliveryStatus)
	assert.Equal(t, models.EscrowHeld, txn.EscrowStatus)
	assert.NotEmpty(t, txn.CaptureRef)

	offer, err := f.store.GetOffer(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OfferMatched, offer.Status)
	assert.Equal(t, "l1", offer.MatchedListingID)
	assert.Equal(t, models.HoldCaptured, offer.Hold.Status)
	require.NotNil(t, offer.MatchedAt)

	listing, err := f.store.GetListing(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, models.ListingMatched, listing.Status)
	assert.Equal(t, "o1", listing.MatchedOfferID)

	assert.Equal(t, 1, f.gateway.CaptureCount())

	kinds := make([]string, 0, 2)
	for _, e := range f.notifier.Events() {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, "offer_matched")
	assert.Contains(t, kinds, "listing_matched")
}

func TestSettle_SellerFeeOverride(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)

	override := dec(8)
	seller, err := f.store.GetCustomer(ctx, "c-seller")
	require.NoError(t, err)
	seller.FeePercentage = &override
	require.NoError(t, f.store.SaveCustomer(ctx, seller))

	f.addOffer(t, "o1", 200)
	f.addListing(t, "l1", decPtr(150))

	txn, err := f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1"})
	require.NoError(t, err)

	assert.True(t, txn.SellerFee.Equal(dec(16)), "8%% of 200, got %s", txn.SellerFee)
	assert.True(t, txn.SellerPayout.Equal(dec(184)), "got %s", txn.SellerPayout)
}

func TestSettle_SalePriceOverride(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	f.addOffer(t, "o1", 200)
	f.addListing(t, "l1", decPtr(150))

	price := dec(160)
	txn, err := f.settlement.Settle(ctx, &SettleRequest{
		OfferID: "o1", ListingID: "l1", SalePrice: &price,
	})
	require.NoError(t, err)

	assert.True(t, txn.SalePrice.Equal(dec(160)))
	assert.True(t, txn.SellerFee.Equal(dec(16)))
	assert.True(t, txn.SellerPayout.Equal(dec(144)))
}

func TestSettle_SalePriceValidation(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	f.addOffer(t, "o1", 200)
	f.addListing(t, "l1", decPtr(150))

	over := dec(201)
	_, err := f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1", SalePrice: &over})
	assert.True(t, status.IsValidation(err), "sale above the buyer's cap is rejected")

	zero := decimal.Zero
	_, err = f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1", SalePrice: &zero})
	assert.True(t, status.IsValidation(err))

	assert.Equal(t, 0, f.gateway.CaptureCount(), "rejections never reach the gateway")
}

func TestSettle_ExpiredOfferConflicts(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)

	offer := f.addOffer(t, "o1", 200)
	offer.ExpiresAt = matchTime.Add(-time.Minute)
	require.NoError(t, f.store.SaveOffer(ctx, offer))
	f.addListing(t, "l1", decPtr(150))

	_, err := f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1"})
	assert.True(t, status.IsConflict(err), "expired offers never settle even while still marked active")
	assert.Equal(t, 0, f.gateway.CaptureCount())
}

func TestSettle_InactiveSidesConflict(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)

	offer := f.addOffer(t, "o1", 200)
	offer.Status = models.OfferCancelled
	require.NoError(t, f.store.SaveOffer(ctx, offer))
	f.addListing(t, "l1", decPtr(150))

	_, err := f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1"})
	assert.True(t, status.IsConflict(err))

	f.addOffer(t, "o2", 200)
	listing, err := f.store.GetListing(ctx, "l1")
	require.NoError(t, err)
	listing.IsLive = false
	require.NoError(t, f.store.SaveListing(ctx, listing))

	_, err = f.settlement.Settle(ctx, &SettleRequest{OfferID: "o2", ListingID: "l1"})
	assert.True(t, status.IsConflict(err))
}

func TestSettle_CompatibilityRules(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	f.addOffer(t, "o1", 200)

	wrongSection := f.addListing(t, "l1", decPtr(150))
	wrongSection.Section = "B"
	require.NoError(t, f.store.SaveListing(ctx, wrongSection))

	_, err := f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1"})
	assert.True(t, status.IsBusinessRule(err))

	tooMany := f.addListing(t, "l2", decPtr(150))
	tooMany.Quantity = 5
	require.NoError(t, f.store.SaveListing(ctx, tooMany))

	_, err = f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l2"})
	assert.True(t, status.IsBusinessRule(err))
}

func TestSettle_GatewayFailureAborts(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	f.addOffer(t, "o1", 200)
	f.addListing(t, "l1", decPtr(150))

	f.gateway.FailCapture = errors.New("gateway timeout")

	_, err := f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1"})
	assert.True(t, status.IsExternal(err))

	offer, err := f.store.GetOffer(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OfferActive, offer.Status, "failed settlement leaves the offer standing")

	listing, err := f.store.GetListing(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, models.ListingActive, listing.Status)

	_, err = f.store.FindTransactionByOffer(ctx, "o1")
	assert.True(t, status.IsNotFound(err))
}

func TestSettle_CommitFailureAfterCapture(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	f.addOffer(t, "o1", 200)
	f.addListing(t, "l1", decPtr(150))

	f.store.SaveTransactionHook = func(*models.Transaction) error {
		return errors.New("disk full")
	}

	_, err := f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1"})
	require.True(t, status.IsReconciliation(err), "capture landed but the commit did not: %v", err)
	assert.Equal(t, 1, f.gateway.CaptureCount())

	offer, err := f.store.GetOffer(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OfferActive, offer.Status, "unit rolled back")

	// Retry after the store recovers. The stable capture reference replays
	// idempotently instead of charging again.
	f.store.SaveTransactionHook = nil

	txn, err := f.settlement.Settle(ctx, &SettleRequest{OfferID: "o1", ListingID: "l1"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCaptured, txn.PaymentStatus)
	assert.Equal(t, 1, f.gateway.CaptureCount(), "retry must not double-charge")
}

func TestSettle_ConcurrentDoubleMatch(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	f.addOffer(t, "o1", 200)
	f.addOffer(t, "o2", 200)
	f.addListing(t, "l1", decPtr(150))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, offerID := range []string{"o1", "o2"} {
		wg.Add(1)
		go func(i int, offerID string) {
			defer wg.Done()
			_, errs[i] = f.settlement.Settle(ctx, &SettleRequest{OfferID: offerID, ListingID: "l1"})
		}(i, offerID)
	}
	wg.Wait()

	var committed, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case status.IsConflict(err):
			conflicted++
		default:
			t.Fatalf("unexpected settlement error: %v", err)
		}
	}
	assert.Equal(t, 1, committed, "exactly one settlement wins the listing")
	assert.Equal(t, 1, conflicted, "the loser sees a conflict")
	assert.Equal(t, 1, f.gateway.CaptureCount(), "the loser is never charged")

	listing, err := f.store.GetListing(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, models.ListingMatched, listing.Status)
}

func (f *settleFixture) settle(t *testing.T) *models.Transaction {
	t.Helper()
	f.addOffer(t, "o1", 200)
	f.addListing(t, "l1", decPtr(150))
	txn, err := f.settlement.Settle(context.Background(), &SettleRequest{OfferID: "o1", ListingID: "l1"})
	require.NoError(t, err)
	return txn
}

func TestDeliveryFlow_TransferConfirmPayout(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	updated, err := f.settlement.TransferTickets(ctx, txn.ID, "c-seller", "code ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryTransferred, updated.DeliveryStatus)
	require.NotNil(t, updated.TransferredAt)

	listing, err := f.store.GetListing(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "code ABC123", listing.DeliveryDetails)

	confirmed, err := f.settlement.ConfirmDelivery(ctx, txn.ID, "c-buyer")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryConfirmed, confirmed.DeliveryStatus)
	assert.Equal(t, models.EscrowReleased, confirmed.EscrowStatus)

	final, err := f.store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, final.PayoutStatus)
	assert.NotEmpty(t, final.PayoutRef)
	require.NotNil(t, final.PaidOutAt)

	offer, err := f.store.GetOffer(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OfferCompleted, offer.Status)

	listing, err = f.store.GetListing(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, models.ListingSold, listing.Status)

	assert.Equal(t, 1, f.gateway.TransferCount())
}

func TestTransferTickets_Guards(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	_, err := f.settlement.TransferTickets(ctx, txn.ID, "c-buyer", "")
	assert.True(t, status.IsBusinessRule(err), "only the seller transfers")

	_, err = f.settlement.TransferTickets(ctx, txn.ID, "c-seller", "")
	require.NoError(t, err)

	_, err = f.settlement.TransferTickets(ctx, txn.ID, "c-seller", "")
	assert.True(t, status.IsBusinessRule(err), "transfer is one-shot")
}

func TestConfirmDelivery_Guards(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	_, err := f.settlement.ConfirmDelivery(ctx, txn.ID, "c-buyer")
	assert.True(t, status.IsBusinessRule(err), "confirmation requires a transfer first")

	_, err = f.settlement.TransferTickets(ctx, txn.ID, "c-seller", "")
	require.NoError(t, err)

	_, err = f.settlement.ConfirmDelivery(ctx, txn.ID, "c-seller")
	assert.True(t, status.IsBusinessRule(err), "only the buyer confirms")

	// After the event starts the confirmation window is closed.
	f.settlement.now = func() time.Time { return matchTime.Add(72 * time.Hour) }
	_, err = f.settlement.ConfirmDelivery(ctx, txn.ID, "c-buyer")
	assert.True(t, status.IsBusinessRule(err))

	final, err := f.store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowHeld, final.EscrowStatus, "escrow released only on confirmation")
}

func TestPayoutFailureAndRetry(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	_, err := f.settlement.TransferTickets(ctx, txn.ID, "c-seller", "")
	require.NoError(t, err)

	f.gateway.FailTransfer = errors.New("payout rail down")
	_, err = f.settlement.ConfirmDelivery(ctx, txn.ID, "c-buyer")
	require.NoError(t, err, "confirmation itself succeeds; only the payout fails")

	failed, err := f.store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutFailed, failed.PayoutStatus)
	assert.Equal(t, models.EscrowReleased, failed.EscrowStatus, "release is never rolled back")

	f.gateway.FailTransfer = nil
	require.NoError(t, f.settlement.RetryPayout(ctx, txn.ID))

	final, err := f.store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, final.PayoutStatus)
	assert.NotEmpty(t, final.PayoutRef)

	err = f.settlement.RetryPayout(ctx, txn.ID)
	assert.True(t, status.IsBusinessRule(err), "retry requires a failed payout")
}

func TestOpenDispute(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	_, err := f.settlement.OpenDispute(ctx, txn.ID, "c-buyer", "buyer_changed_mind")
	assert.True(t, status.IsValidation(err))

	_, err = f.settlement.OpenDispute(ctx, txn.ID, "c-seller", models.DisputeInvalidTickets)
	assert.True(t, status.IsBusinessRule(err), "only the buyer disputes")

	disputed, err := f.settlement.OpenDispute(ctx, txn.ID, "c-buyer", models.DisputeTicketsNotReceived)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryDisputed, disputed.DeliveryStatus)
	assert.True(t, disputed.HasDispute)
	assert.Equal(t, models.DisputeTicketsNotReceived, disputed.DisputeReason)
	require.NotNil(t, disputed.DisputedAt)

	_, err = f.settlement.OpenDispute(ctx, txn.ID, "c-buyer", models.DisputeOther)
	assert.True(t, status.IsBusinessRule(err), "one open dispute at a time")
}

func TestOpenDispute_WindowClosed(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	f.settlement.now = func() time.Time { return matchTime.Add(72 * time.Hour) }
	_, err := f.settlement.OpenDispute(ctx, txn.ID, "c-buyer", models.DisputeTicketsNotReceived)
	assert.True(t, status.IsBusinessRule(err), "no disputes after the event starts")
}

func TestResolveDispute_FavorBuyer(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	_, err := f.settlement.OpenDispute(ctx, txn.ID, "c-buyer", models.DisputeInvalidTickets)
	require.NoError(t, err)

	resolved, err := f.settlement.ResolveDispute(ctx, txn.ID, "tickets were counterfeit", true)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryFailed, resolved.DeliveryStatus)
	assert.Equal(t, models.EscrowRefunded, resolved.EscrowStatus)
	assert.Equal(t, models.PaymentRefunded, resolved.PaymentStatus)
	assert.Equal(t, "tickets were counterfeit", resolved.DisputeResolution)

	assert.Equal(t, 1, f.gateway.TransferCount(), "refund transfer issued")

	final, err := f.store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutPending, final.PayoutStatus, "seller is never paid on a buyer-favor outcome")
}

func TestResolveDispute_FavorSeller(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	_, err := f.settlement.OpenDispute(ctx, txn.ID, "c-buyer", models.DisputeOther)
	require.NoError(t, err)

	resolved, err := f.settlement.ResolveDispute(ctx, txn.ID, "delivery proven", false)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryConfirmed, resolved.DeliveryStatus)
	assert.Equal(t, models.EscrowReleased, resolved.EscrowStatus)

	final, err := f.store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, final.PayoutStatus)

	_, err = f.settlement.ResolveDispute(ctx, txn.ID, "again", false)
	assert.True(t, status.IsBusinessRule(err), "resolution requires an open dispute")
}

func TestForceReleaseEscrow(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	err := f.settlement.ForceReleaseEscrow(ctx, txn.ID)
	assert.True(t, status.IsConflict(err), "pending delivery is never force-released")

	_, err = f.settlement.TransferTickets(ctx, txn.ID, "c-seller", "")
	require.NoError(t, err)

	require.NoError(t, f.settlement.ForceReleaseEscrow(ctx, txn.ID))

	final, err := f.store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowReleased, final.EscrowStatus)
	assert.Equal(t, models.PayoutCompleted, final.PayoutStatus)
}

func TestForceReleaseEscrow_SkipsDisputed(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	_, err := f.settlement.TransferTickets(ctx, txn.ID, "c-seller", "")
	require.NoError(t, err)
	_, err = f.settlement.OpenDispute(ctx, txn.ID, "c-buyer", models.DisputeWrongSection)
	require.NoError(t, err)

	err = f.settlement.ForceReleaseEscrow(ctx, txn.ID)
	assert.True(t, status.IsConflict(err))
}

func TestRefundUndelivered(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	require.NoError(t, f.settlement.RefundUndelivered(ctx, txn.ID))

	final, err := f.store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryFailed, final.DeliveryStatus)
	assert.Equal(t, models.EscrowRefunded, final.EscrowStatus)
	assert.Equal(t, models.PaymentRefunded, final.PaymentStatus)
	assert.Equal(t, 1, f.gateway.TransferCount())
}

func TestRefundUndelivered_RequiresPendingDelivery(t *testing.T) {
	ctx := context.Background()
	f := newSettleFixture(t)
	txn := f.settle(t)

	_, err := f.settlement.TransferTickets(ctx, txn.ID, "c-seller", "")
	require.NoError(t, err)

	err = f.settlement.RefundUndelivered(ctx, txn.ID)
	assert.True(t, status.IsConflict(err), "transferred tickets are not refunded by the sweep path")
}
