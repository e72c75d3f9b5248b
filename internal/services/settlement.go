package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ticket-resale/internal/services/gateway"
	"ticket-resale/internal/services/notify"
	"ticket-resale/internal/status"
	"ticket-resale/internal/store"
	"ticket-resale/models"
	"ticket-resale/monitoring"
)

var hundred = decimal.NewFromInt(100)

const defaultCurrency = "USD"

// Settlement pairs one offer with one listing inside a single atomic
// unit: re-validate both sides, capture the buyer's hold, create the
// transaction record and advance both lifecycles. It also owns the
// post-match delivery, escrow and payout machine.
type Settlement struct {
	store      store.Store
	gateway    gateway.Gateway
	notifier   notify.Notifier
	defaultFee decimal.Decimal // percent applied when the seller has no override
	currency   string

	now timeFunc
}

func NewSettlement(st store.Store, gw gateway.Gateway, n notify.Notifier, defaultFeePercent decimal.Decimal) *Settlement {
	return &Settlement{
		store:      st,
		gateway:    gw,
		notifier:   n,
		defaultFee: defaultFeePercent,
		currency:   defaultCurrency,
		now:        time.Now,
	}
}

// SettleRequest names the candidate pair. SalePrice overrides the
// default of the offer's max price; only the direct-accept path sets it.
type SettleRequest struct {
	OfferID     string
	ListingID   string
	ActingParty string // buyer/seller/system id recorded in logs only
	SalePrice   *decimal.Decimal
}

// Settle runs the settlement unit. The capture call happens inside the
// unit under the stable reference "cap-<offerID>", so a retry after a
// store-commit failure replays the same capture instead of charging
// again. A successful capture followed by a failed commit surfaces as a
// ReconciliationError.
func (s *Settlement) Settle(ctx context.Context, req *SettleRequest) (*models.Transaction, error) {
	now := s.now()

	var txn *models.Transaction
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		offer, err := tx.GetOffer(ctx, req.OfferID)
		if err != nil {
			return err
		}
		listing, err := tx.GetListing(ctx, req.ListingID)
		if err != nil {
			return err
		}

		if offer.Status != models.OfferActive {
			return status.Conflict("offer", offer.ID, "status is %s, want active", offer.Status)
		}
		if offer.Expired(now) {
			return status.Conflict("offer", offer.ID, "expired at %s", offer.ExpiresAt.Format(time.RFC3339))
		}
		if listing.Status != models.ListingActive || !listing.IsLive {
			return status.Conflict("listing", listing.ID, "status is %s (live=%t), want active and live", listing.Status, listing.IsLive)
		}
		if !offer.AcceptsSection(listing.Section) {
			return status.BusinessRule("offer %s does not accept section %s", offer.ID, listing.Section)
		}
		if listing.Quantity > offer.Quantity {
			return status.BusinessRule("listing quantity %d exceeds offered quantity %d", listing.Quantity, offer.Quantity)
		}

		salePrice := offer.MaxPrice
		if req.SalePrice != nil {
			if req.SalePrice.LessThanOrEqual(decimal.Zero) {
				return status.Validation("sale price must be positive, got %s", req.SalePrice)
			}
			if req.SalePrice.GreaterThan(offer.MaxPrice) {
				return status.Validation("sale price %s exceeds the buyer's max of %s", req.SalePrice, offer.MaxPrice)
			}
			salePrice = *req.SalePrice
		}

		feePct := s.feeFor(ctx, tx, listing.SellerID)
		fee := salePrice.Mul(feePct).Div(hundred).Round(2)
		payout := salePrice.Sub(fee)

		start := time.Now()
		capture, err := s.gateway.Capture(ctx, &gateway.CaptureRequest{
			HoldRef:   offer.Hold.Reference,
			Reference: "cap-" + offer.ID,
		})
		monitoring.ObserveGatewayCall("capture", start, err)
		if err != nil {
			return status.External("payment gateway", err)
		}

		created := &models.Transaction{
			ID:             uuid.NewString(),
			BuyerID:        offer.BuyerID,
			SellerID:       listing.SellerID,
			OfferID:        offer.ID,
			ListingID:      listing.ID,
			EventID:        offer.EventID,
			Quantity:       listing.Quantity,
			Section:        listing.Section,
			Row:            listing.Row,
			Seats:          listing.Seats,
			SalePrice:      salePrice,
			SellerFee:      fee,
			SellerPayout:   payout,
			CaptureRef:     capture.Reference,
			PaymentStatus:  models.PaymentCaptured,
			PayoutStatus:   models.PayoutPending,
			DeliveryStatus: models.DeliveryPending,
			EscrowStatus:   models.EscrowHeld,
			CreatedAt:      now,
		}

		offer.Status = models.OfferMatched
		offer.MatchedListingID = listing.ID
		offer.MatchedAt = &now
		offer.Hold.Status = models.HoldCaptured

		listing.Status = models.ListingMatched
		listing.MatchedOfferID = offer.ID

		// Past this point a store failure leaves a settled charge with
		// no committed record; surface it as a reconciliation case.
		if err := tx.SaveOffer(ctx, offer); err != nil {
			return status.Reconciliation(capture.Reference, err)
		}
		if err := tx.SaveListing(ctx, listing); err != nil {
			return status.Reconciliation(capture.Reference, err)
		}
		if err := tx.SaveTransaction(ctx, created); err != nil {
			return status.Reconciliation(capture.Reference, err)
		}
		txn = created
		return nil
	})
	if err != nil {
		monitoring.TrackSettlement(settlementOutcome(err))
		return nil, err
	}

	monitoring.TrackSettlement(monitoring.OutcomeCommitted)
	s.notifier.NotifyUser(ctx, txn.BuyerID, "offer_matched", map[string]any{
		"transaction_id": txn.ID,
		"offer_id":       txn.OfferID,
		"sale_price":     txn.SalePrice.String(),
	})
	s.notifier.NotifyUser(ctx, txn.SellerID, "listing_matched", map[string]any{
		"transaction_id": txn.ID,
		"listing_id":     txn.ListingID,
		"seller_payout":  txn.SellerPayout.String(),
	})
	slog.Info("settlement committed",
		"transaction", txn.ID,
		"offer", txn.OfferID,
		"listing", txn.ListingID,
		"sale_price", txn.SalePrice,
		"acting_party", req.ActingParty)
	return txn, nil
}

func settlementOutcome(err error) string {
	switch {
	case status.IsConflict(err):
		return monitoring.OutcomeConflict
	case status.IsExternal(err):
		return monitoring.OutcomeGatewayError
	case status.IsReconciliation(err):
		return monitoring.OutcomeReconciliation
	default:
		return monitoring.OutcomeRejected
	}
}

// feeFor resolves the percentage applied to a sale: the seller's
// configured override when positive, otherwise the platform default.
func (s *Settlement) feeFor(ctx context.Context, tx store.Store, sellerID string) decimal.Decimal {
	seller, err := tx.GetCustomer(ctx, sellerID)
	if err != nil {
		return s.defaultFee
	}
	if seller.FeePercentage != nil && seller.FeePercentage.GreaterThan(decimal.Zero) {
		return *seller.FeePercentage
	}
	return s.defaultFee
}

// --- delivery ---

// TransferTickets records the seller's hand-off and moves delivery from
// pending to transferred.
func (s *Settlement) TransferTickets(ctx context.Context, txnID, sellerID, details string) (*models.Transaction, error) {
	now := s.now()

	var txn *models.Transaction
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		t, err := tx.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if t.SellerID != sellerID {
			return status.BusinessRule("transaction %s does not belong to seller %s", txnID, sellerID)
		}
		if t.DeliveryStatus != models.DeliveryPending {
			return status.BusinessRule("delivery is already %s", t.DeliveryStatus)
		}
		t.DeliveryStatus = models.DeliveryTransferred
		t.TransferredAt = &now
		if err := tx.SaveTransaction(ctx, t); err != nil {
			return err
		}
		if details != "" {
			listing, err := tx.GetListing(ctx, t.ListingID)
			if err == nil {
				listing.DeliveryDetails = details
				if err := tx.SaveListing(ctx, listing); err != nil {
					return err
				}
			}
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyUser(ctx, txn.BuyerID, "delivery_transferred", map[string]any{
		"transaction_id": txn.ID,
	})
	return txn, nil
}

// ConfirmDelivery is the buyer's acknowledgement, allowed strictly
// before the event starts. Confirming releases escrow and starts the
// payout.
func (s *Settlement) ConfirmDelivery(ctx context.Context, txnID, buyerID string) (*models.Transaction, error) {
	now := s.now()

	var txn *models.Transaction
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		t, err := tx.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if t.BuyerID != buyerID {
			return status.BusinessRule("transaction %s does not belong to buyer %s", txnID, buyerID)
		}
		event, err := tx.GetEvent(ctx, t.EventID)
		if err != nil {
			return err
		}
		if !now.Before(event.StartTime) {
			return status.BusinessRule("delivery can only be confirmed before the event starts")
		}
		if t.DeliveryStatus != models.DeliveryTransferred {
			return status.BusinessRule("delivery is %s, confirmation requires transferred", t.DeliveryStatus)
		}
		if err := s.releaseEscrowLocked(ctx, tx, t, now); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyUser(ctx, txn.SellerID, "delivery_confirmed", map[string]any{
		"transaction_id": txn.ID,
		"seller_payout":  txn.SellerPayout.String(),
	})
	s.issuePayout(ctx, txn.ID)
	return txn, nil
}

// releaseEscrowLocked performs the confirmed/released/processing
// transition plus the terminal offer and listing moves. Caller holds
// the atomic unit.
func (s *Settlement) releaseEscrowLocked(ctx context.Context, tx store.Store, t *models.Transaction, now time.Time) error {
	t.DeliveryStatus = models.DeliveryConfirmed
	t.ConfirmedAt = &now
	t.EscrowStatus = models.EscrowReleased
	if !t.PayoutStatus.CanTransitionTo(models.PayoutProcessing) {
		return status.Conflict("transaction", t.ID, "payout is %s, cannot start processing", t.PayoutStatus)
	}
	t.PayoutStatus = models.PayoutProcessing

	offer, err := tx.GetOffer(ctx, t.OfferID)
	if err == nil && offer.Status == models.OfferMatched {
		offer.Status = models.OfferCompleted
		if err := tx.SaveOffer(ctx, offer); err != nil {
			return err
		}
	}
	if t.ListingID != "" {
		listing, err := tx.GetListing(ctx, t.ListingID)
		if err == nil && listing.Status == models.ListingMatched {
			listing.Status = models.ListingSold
			if err := tx.SaveListing(ctx, listing); err != nil {
				return err
			}
		}
	}
	return tx.SaveTransaction(ctx, t)
}

// issuePayout transfers the seller payout for a released escrow. Runs
// outside the releasing unit: a failed transfer leaves payoutStatus at
// failed for retry, it never rolls back the release.
func (s *Settlement) issuePayout(ctx context.Context, txnID string) {
	txn, err := s.store.GetTransaction(ctx, txnID)
	if err != nil {
		slog.Error("payout: load transaction failed", "transaction", txnID, "error", err)
		return
	}
	if txn.EscrowStatus != models.EscrowReleased || txn.PayoutStatus != models.PayoutProcessing {
		return
	}

	destination := txn.SellerID
	if seller, err := s.store.GetCustomer(ctx, txn.SellerID); err == nil && seller.PayoutAccount != "" {
		destination = seller.PayoutAccount
	}

	start := time.Now()
	transfer, err := s.gateway.Transfer(ctx, &gateway.TransferRequest{
		DestinationAccount: destination,
		Amount:             txn.SellerPayout,
		Currency:           s.currency,
		Reference:          "payout-" + txn.ID,
		Metadata:           map[string]string{"transaction_id": txn.ID},
	})
	monitoring.ObserveGatewayCall("transfer", start, err)

	now := s.now()
	updateErr := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		t, err2 := tx.GetTransaction(ctx, txnID)
		if err2 != nil {
			return err2
		}
		if err != nil {
			t.PayoutStatus = models.PayoutFailed
		} else {
			t.PayoutStatus = models.PayoutCompleted
			t.PayoutRef = transfer.Reference
			t.PaidOutAt = &now
		}
		return tx.SaveTransaction(ctx, t)
	})
	if updateErr != nil {
		slog.Error("payout: status update failed", "transaction", txnID, "error", updateErr)
		return
	}

	if err != nil {
		slog.Error("payout: transfer failed", "transaction", txnID, "error", err)
		s.notifier.NotifyUser(ctx, txn.SellerID, "payout_failed", map[string]any{
			"transaction_id": txn.ID,
		})
		return
	}
	s.notifier.NotifyUser(ctx, txn.SellerID, "payout_completed", map[string]any{
		"transaction_id": txn.ID,
		"amount":         txn.SellerPayout.String(),
	})
}

// RetryPayout re-runs a failed payout transfer. The stable reference
// keeps the retry idempotent at the gateway.
func (s *Settlement) RetryPayout(ctx context.Context, txnID string) error {
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		t, err := tx.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if t.PayoutStatus != models.PayoutFailed {
			return status.BusinessRule("payout is %s, retry requires failed", t.PayoutStatus)
		}
		t.PayoutStatus = models.PayoutProcessing
		return tx.SaveTransaction(ctx, t)
	})
	if err != nil {
		return err
	}
	s.issuePayout(ctx, txnID)
	return nil
}

// --- disputes ---

// OpenDispute moves delivery to disputed, freezing escrow until
// resolution. Allowed only before the event starts, from pending or
// transferred, with a recognized reason.
func (s *Settlement) OpenDispute(ctx context.Context, txnID, buyerID string, reason models.DisputeReason) (*models.Transaction, error) {
	if !models.ValidDisputeReason(reason) {
		return nil, status.Validation("unknown dispute reason %q", reason)
	}
	now := s.now()

	var txn *models.Transaction
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		t, err := tx.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if t.BuyerID != buyerID {
			return status.BusinessRule("transaction %s does not belong to buyer %s", txnID, buyerID)
		}
		if t.HasDispute {
			return status.BusinessRule("a dispute is already open on transaction %s", txnID)
		}
		event, err := tx.GetEvent(ctx, t.EventID)
		if err != nil {
			return err
		}
		if !now.Before(event.StartTime) {
			return status.BusinessRule("disputes must be opened before the event starts")
		}
		if !t.DeliveryStatus.Disputable() {
			return status.BusinessRule("delivery is %s, disputes require pending or transferred", t.DeliveryStatus)
		}
		t.DeliveryStatus = models.DeliveryDisputed
		t.HasDispute = true
		t.DisputeReason = reason
		t.DisputedAt = &now
		if err := tx.SaveTransaction(ctx, t); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackDisputeOpened(string(reason))
	s.notifier.NotifyUser(ctx, txn.SellerID, "dispute_opened", map[string]any{
		"transaction_id": txn.ID,
		"reason":         string(reason),
	})
	return txn, nil
}

// ResolveDispute closes an open dispute. Buyer-favor refunds the
// captured charge and marks delivery failed; seller-favor releases
// escrow and starts the payout.
func (s *Settlement) ResolveDispute(ctx context.Context, txnID, resolution string, favorBuyer bool) (*models.Transaction, error) {
	now := s.now()

	var txn *models.Transaction
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		t, err := tx.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if !t.HasDispute || t.DeliveryStatus != models.DeliveryDisputed {
			return status.BusinessRule("transaction %s has no open dispute", txnID)
		}
		t.DisputeResolution = resolution
		if favorBuyer {
			t.DeliveryStatus = models.DeliveryFailed
			t.EscrowStatus = models.EscrowRefunded
			t.PaymentStatus = models.PaymentRefunded
			if err := tx.SaveTransaction(ctx, t); err != nil {
				return err
			}
		} else {
			if err := s.releaseEscrowLocked(ctx, tx, t, now); err != nil {
				return err
			}
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := "dispute_resolved_seller"
	if favorBuyer {
		kind = "dispute_resolved_buyer"
		s.issueRefund(ctx, txn)
	} else {
		s.issuePayout(ctx, txn.ID)
	}
	s.notifier.NotifyUser(ctx, txn.BuyerID, kind, map[string]any{"transaction_id": txn.ID})
	s.notifier.NotifyUser(ctx, txn.SellerID, kind, map[string]any{"transaction_id": txn.ID})
	return txn, nil
}

// issueRefund returns the full sale price to the buyer under a stable
// reference. Failures are logged; the escrow record already reads
// refunded and the transfer can be replayed.
func (s *Settlement) issueRefund(ctx context.Context, txn *models.Transaction) {
	destination := txn.BuyerID
	if buyer, err := s.store.GetCustomer(ctx, txn.BuyerID); err == nil && buyer.PayoutAccount != "" {
		destination = buyer.PayoutAccount
	}

	start := time.Now()
	_, err := s.gateway.Transfer(ctx, &gateway.TransferRequest{
		DestinationAccount: destination,
		Amount:             txn.SalePrice,
		Currency:           s.currency,
		Reference:          "refund-" + txn.ID,
		Metadata:           map[string]string{"transaction_id": txn.ID},
	})
	monitoring.ObserveGatewayCall("transfer", start, err)
	if err != nil {
		slog.Error("refund: transfer failed", "transaction", txn.ID, "error", err)
	}
}

// --- escrow timeout handling ---

// ForceReleaseEscrow releases escrow for a transferred but unconfirmed
// delivery once the sweep decides the confirmation window has lapsed.
// Disputed transactions are never force-released.
func (s *Settlement) ForceReleaseEscrow(ctx context.Context, txnID string) error {
	now := s.now()
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		t, err := tx.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if t.HasDispute {
			return status.Conflict("transaction", txnID, "disputed escrow cannot be force-released")
		}
		if t.EscrowStatus != models.EscrowHeld || t.DeliveryStatus != models.DeliveryTransferred {
			return status.Conflict("transaction", txnID, "escrow is %s with delivery %s", t.EscrowStatus, t.DeliveryStatus)
		}
		return s.releaseEscrowLocked(ctx, tx, t, now)
	})
	if err != nil {
		return err
	}
	s.issuePayout(ctx, txnID)
	return nil
}

// RefundUndelivered refunds a buyer whose tickets were never handed off
// before the sweep's cutoff.
func (s *Settlement) RefundUndelivered(ctx context.Context, txnID string) error {
	var txn *models.Transaction
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		t, err := tx.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if t.HasDispute {
			return status.Conflict("transaction", txnID, "disputed escrow is resolved manually")
		}
		if t.EscrowStatus != models.EscrowHeld || t.DeliveryStatus != models.DeliveryPending {
			return status.Conflict("transaction", txnID, "escrow is %s with delivery %s", t.EscrowStatus, t.DeliveryStatus)
		}
		t.DeliveryStatus = models.DeliveryFailed
		t.EscrowStatus = models.EscrowRefunded
		t.PaymentStatus = models.PaymentRefunded
		if err := tx.SaveTransaction(ctx, t); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return err
	}
	s.issueRefund(ctx, txn)
	s.notifier.NotifyUser(ctx, txn.BuyerID, "escrow_refunded", map[string]any{"transaction_id": txn.ID})
	return nil
}
