package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ticket-resale/internal/services/notify"
	"ticket-resale/internal/status"
	"ticket-resale/internal/store"
	"ticket-resale/models"
	"ticket-resale/monitoring"
)

// ListingService owns the seller-listing lifecycle: draft and deferred
// go-live handling, edits while still editable, cancellation and
// expiration, the direct-accept path and the auto-sell reverse match.
type ListingService struct {
	store      store.Store
	settlement *Settlement
	notifier   notify.Notifier

	matchRetries int
	now          timeFunc
}

func NewListingService(st store.Store, settlement *Settlement, n notify.Notifier) *ListingService {
	return &ListingService{
		store:        st,
		settlement:   settlement,
		notifier:     n,
		matchRetries: defaultMatchRetries,
		now:          time.Now,
	}
}

type CreateListingRequest struct {
	SellerID               string                `json:"seller_id"`
	EventID                string                `json:"event_id"`
	Section                string                `json:"section"`
	Row                    string                `json:"row"`
	Seats                  []string              `json:"seats"`
	Quantity               int                   `json:"quantity"`
	AskingPrice            *decimal.Decimal      `json:"asking_price,omitempty"`
	MinimumAcceptablePrice *decimal.Decimal      `json:"minimum_acceptable_price,omitempty"`
	GoLiveAt               *time.Time            `json:"go_live_at,omitempty"`
	AutoSell               models.AutoSell       `json:"auto_sell"`
	DeliveryMethod         models.DeliveryMethod `json:"delivery_method"`
	DeliveryDetails        string                `json:"delivery_details,omitempty"`
}

// CreateListing saves the listing as draft when a future go-live time
// is set, otherwise live immediately. Going live runs the reverse-match
// check when auto-sell is already due.
func (s *ListingService) CreateListing(ctx context.Context, req *CreateListingRequest) (*models.SellerListing, error) {
	now := s.now()

	seller, err := s.store.GetCustomer(ctx, req.SellerID)
	if err != nil {
		return nil, err
	}
	if !seller.CanSell() {
		return nil, status.BusinessRule("account %s cannot list tickets", seller.ID)
	}

	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.Upcoming(now) {
		return nil, status.BusinessRule("event %s is not open for listings", event.ID)
	}
	if !event.HasSection(req.Section) {
		return nil, status.Validation("event %s has no section %q", event.ID, req.Section)
	}
	if req.Quantity < 1 {
		return nil, status.Validation("quantity must be at least 1, got %d", req.Quantity)
	}
	if err := validatePrices(req.AskingPrice, req.MinimumAcceptablePrice); err != nil {
		return nil, err
	}
	switch req.DeliveryMethod {
	case models.DeliveryElectronic, models.DeliveryPhysical:
	default:
		return nil, status.Validation("unknown delivery method %q", req.DeliveryMethod)
	}

	listing := &models.SellerListing{
		ID:                     uuid.NewString(),
		SellerID:               seller.ID,
		EventID:                event.ID,
		Section:                req.Section,
		Row:                    req.Row,
		Seats:                  req.Seats,
		Quantity:               req.Quantity,
		AskingPrice:            req.AskingPrice,
		MinimumAcceptablePrice: req.MinimumAcceptablePrice,
		AutoSell:               req.AutoSell,
		DeliveryMethod:         req.DeliveryMethod,
		DeliveryDetails:        req.DeliveryDetails,
		CreatedAt:              now,
	}
	if req.GoLiveAt != nil && req.GoLiveAt.After(now) {
		listing.Status = models.ListingDraft
		listing.GoLiveAt = req.GoLiveAt
	} else {
		listing.Status = models.ListingActive
		listing.IsLive = true
	}

	if err := s.store.SaveListing(ctx, listing); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, "listing_created", map[string]any{
		"listing_id": listing.ID,
		"event_id":   listing.EventID,
		"section":    listing.Section,
	})
	if listing.IsLive {
		s.tryReverseMatch(ctx, listing)
		return s.store.GetListing(ctx, listing.ID)
	}
	return listing, nil
}

func validatePrices(asking, minimum *decimal.Decimal) error {
	if asking != nil && asking.LessThanOrEqual(decimal.Zero) {
		return status.Validation("asking price must be positive, got %s", asking)
	}
	if minimum != nil && minimum.LessThanOrEqual(decimal.Zero) {
		return status.Validation("minimum acceptable price must be positive, got %s", minimum)
	}
	if asking != nil && minimum != nil && minimum.GreaterThan(*asking) {
		return status.Validation("minimum acceptable price %s exceeds asking price %s", minimum, asking)
	}
	return nil
}

// GoLive activates a draft listing and runs the instant reverse-match
// check.
func (s *ListingService) GoLive(ctx context.Context, listingID, sellerID string) (*models.SellerListing, error) {
	var listing *models.SellerListing
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if sellerID != "" && l.SellerID != sellerID {
			return status.BusinessRule("listing %s does not belong to seller %s", listingID, sellerID)
		}
		if l.Status != models.ListingDraft {
			return status.Conflict("listing", listingID, "status is %s, go-live requires draft", l.Status)
		}
		l.Status = models.ListingActive
		l.IsLive = true
		if err := tx.SaveListing(ctx, l); err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, "listing_live", map[string]any{
		"listing_id": listing.ID,
		"event_id":   listing.EventID,
	})
	s.tryReverseMatch(ctx, listing)
	return s.store.GetListing(ctx, listing.ID)
}

type UpdateListingRequest struct {
	AskingPrice            *decimal.Decimal `json:"asking_price,omitempty"`
	MinimumAcceptablePrice *decimal.Decimal `json:"minimum_acceptable_price,omitempty"`
	AutoSell               *models.AutoSell `json:"auto_sell,omitempty"`
	DeliveryDetails        *string          `json:"delivery_details,omitempty"`
}

// UpdateListing applies seller edits. Matched, sold and cancelled
// listings are immutable.
func (s *ListingService) UpdateListing(ctx context.Context, listingID, sellerID string, req *UpdateListingRequest) (*models.SellerListing, error) {
	var listing *models.SellerListing
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if l.SellerID != sellerID {
			return status.BusinessRule("listing %s does not belong to seller %s", listingID, sellerID)
		}
		if !l.Editable() {
			return status.BusinessRule("listing %s is %s and can no longer be edited", listingID, l.Status)
		}

		asking, minimum := l.AskingPrice, l.MinimumAcceptablePrice
		if req.AskingPrice != nil {
			asking = req.AskingPrice
		}
		if req.MinimumAcceptablePrice != nil {
			minimum = req.MinimumAcceptablePrice
		}
		if err := validatePrices(asking, minimum); err != nil {
			return err
		}
		l.AskingPrice = asking
		l.MinimumAcceptablePrice = minimum
		if req.AutoSell != nil {
			l.AutoSell = *req.AutoSell
		}
		if req.DeliveryDetails != nil {
			l.DeliveryDetails = *req.DeliveryDetails
		}
		if err := tx.SaveListing(ctx, l); err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// CancelListing is the seller's soft delete, disallowed once matched or
// sold.
func (s *ListingService) CancelListing(ctx context.Context, listingID, sellerID string) error {
	return s.store.RunInTransaction(ctx, func(tx store.Store) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if l.SellerID != sellerID {
			return status.BusinessRule("listing %s does not belong to seller %s", listingID, sellerID)
		}
		if !l.Status.CanTransitionTo(models.ListingCancelled) {
			return status.BusinessRule("listing %s is %s and cannot be cancelled", listingID, l.Status)
		}
		l.Status = models.ListingCancelled
		l.IsLive = false
		return tx.SaveListing(ctx, l)
	})
}

// ExpireListing commits draft/active to expired once the event is no
// longer upcoming. Invoked by the expiration sweep.
func (s *ListingService) ExpireListing(ctx context.Context, listingID string) error {
	return s.store.RunInTransaction(ctx, func(tx store.Store) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if !l.Status.CanTransitionTo(models.ListingExpired) {
			return status.Conflict("listing", listingID, "status is %s, expiration requires draft or active", l.Status)
		}
		l.Status = models.ListingExpired
		l.IsLive = false
		return tx.SaveListing(ctx, l)
	})
}

// DirectAccept lets the seller accept a specific offer, bypassing the
// selector. SalePrice defaults to the buyer's max when nil.
func (s *ListingService) DirectAccept(ctx context.Context, listingID, offerID, sellerID string, salePrice *decimal.Decimal) (*models.Transaction, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, status.BusinessRule("listing %s does not belong to seller %s", listingID, sellerID)
	}
	return s.settlement.Settle(ctx, &SettleRequest{
		OfferID:     offerID,
		ListingID:   listingID,
		ActingParty: "seller:" + sellerID,
		SalePrice:   salePrice,
	})
}

// tryReverseMatch runs the auto-sell path: pick the best eligible offer
// and settle. Only runs once the listing's trigger has passed.
func (s *ListingService) tryReverseMatch(ctx context.Context, listing *models.SellerListing) {
	now := s.now()
	if !listing.AutoSellDue(now) {
		return
	}

	for attempt := 0; attempt < s.matchRetries; attempt++ {
		offers, err := s.store.ListActiveOffersByEvent(ctx, listing.EventID)
		if err != nil {
			slog.Error("match: offer snapshot failed", "listing", listing.ID, "error", err)
			monitoring.TrackMatchAttempt("reverse", "failed")
			return
		}
		candidate := SelectOffer(listing, offers, now)
		if candidate == nil {
			monitoring.TrackMatchAttempt("reverse", "no_candidate")
			return
		}

		_, err = s.settlement.Settle(ctx, &SettleRequest{
			OfferID:     candidate.ID,
			ListingID:   listing.ID,
			ActingParty: "system:auto-sell",
		})
		if err == nil {
			monitoring.TrackMatchAttempt("reverse", "matched")
			return
		}
		if !status.Retryable(err) {
			slog.Error("match: settlement failed", "listing", listing.ID, "offer", candidate.ID, "error", err)
			monitoring.TrackMatchAttempt("reverse", "failed")
			return
		}
		slog.Info("match: lost candidate, retrying", "listing", listing.ID, "offer", candidate.ID, "attempt", attempt+1)

		current, err := s.store.GetListing(ctx, listing.ID)
		if err != nil || current.Status != models.ListingActive {
			monitoring.TrackMatchAttempt("reverse", "failed")
			return
		}
	}
	monitoring.TrackMatchAttempt("reverse", "failed")
}

// AutoSellAttempt is the sweep entry point for one due listing.
func (s *ListingService) AutoSellAttempt(ctx context.Context, listingID string) error {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.Status != models.ListingActive || !listing.IsLive {
		return status.Conflict("listing", listingID, "status is %s, auto-sell requires active and live", listing.Status)
	}
	s.tryReverseMatch(ctx, listing)
	return nil
}

// RecordView bumps the analytics view counter. Best effort.
func (s *ListingService) RecordView(ctx context.Context, listingID string) {
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		l.ViewCount++
		return tx.SaveListing(ctx, l)
	})
	if err != nil {
		slog.Warn("listing: view counter update failed", "listing", listingID, "error", err)
	}
}

func (s *ListingService) GetListing(ctx context.Context, listingID string) (*models.SellerListing, error) {
	return s.store.GetListing(ctx, listingID)
}

func (s *ListingService) ListListings(ctx context.Context, sellerID string, limit int) ([]*models.SellerListing, error) {
	return s.store.ListListingsBySeller(ctx, sellerID, limit)
}

// OffersForEvent is the seller's view of standing demand for an event.
func (s *ListingService) OffersForEvent(ctx context.Context, eventID string) ([]*models.BuyerOffer, error) {
	return s.store.ListActiveOffersByEvent(ctx, eventID)
}

// SellerAnalytics aggregates a seller's listing and sale activity.
type SellerAnalytics struct {
	TotalListings  int             `json:"total_listings"`
	ActiveListings int             `json:"active_listings"`
	SoldListings   int             `json:"sold_listings"`
	TotalViews     int             `json:"total_views"`
	TotalOffers    int             `json:"total_offers"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	PendingPayout  decimal.Decimal `json:"pending_payout"`
}

func (s *ListingService) Analytics(ctx context.Context, sellerID string) (*SellerAnalytics, error) {
	listings, err := s.store.ListListingsBySeller(ctx, sellerID, 0)
	if err != nil {
		return nil, err
	}
	txns, err := s.store.ListTransactionsBySeller(ctx, sellerID, 0)
	if err != nil {
		return nil, err
	}

	analytics := &SellerAnalytics{
		TotalListings: len(listings),
		TotalRevenue:  decimal.Zero,
		PendingPayout: decimal.Zero,
	}
	for _, l := range listings {
		switch l.Status {
		case models.ListingActive:
			analytics.ActiveListings++
		case models.ListingSold:
			analytics.SoldListings++
		}
		analytics.TotalViews += l.ViewCount
		analytics.TotalOffers += l.OfferCount
	}
	for _, t := range txns {
		if t.PaymentStatus != models.PaymentCaptured {
			continue
		}
		analytics.TotalRevenue = analytics.TotalRevenue.Add(t.SellerPayout)
		if t.PayoutStatus != models.PayoutCompleted {
			analytics.PendingPayout = analytics.PendingPayout.Add(t.SellerPayout)
		}
	}
	return analytics, nil
}
