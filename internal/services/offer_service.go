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

// defaultMatchRetries bounds how many fresh candidates an instant-match
// attempt works through after conflicts before giving up.
const defaultMatchRetries = 3

// OfferService owns the buyer-offer lifecycle: creation with an
// authorization hold and instant-match check, cancellation, expiration
// and the buyer-facing queries.
type OfferService struct {
	store      store.Store
	gateway    gateway.Gateway
	pricing    *PricingAdvisor
	settlement *Settlement
	notifier   notify.Notifier
	currency   string

	matchRetries int
	now          timeFunc
}

func NewOfferService(st store.Store, gw gateway.Gateway, pricing *PricingAdvisor, settlement *Settlement, n notify.Notifier) *OfferService {
	return &OfferService{
		store:        st,
		gateway:      gw,
		pricing:      pricing,
		settlement:   settlement,
		notifier:     n,
		currency:     defaultCurrency,
		matchRetries: defaultMatchRetries,
		now:          time.Now,
	}
}

type CreateOfferRequest struct {
	BuyerID   string          `json:"buyer_id"`
	EventID   string          `json:"event_id"`
	Sections  []string        `json:"sections"`
	MaxPrice  decimal.Decimal `json:"max_price"`
	Quantity  int             `json:"quantity"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// CreateOffer validates the request, prices it, places the
// authorization hold and saves the offer as active, then runs the
// instant forward-match check. A failed match attempt leaves the offer
// active; the returned offer reflects the post-match state.
func (s *OfferService) CreateOffer(ctx context.Context, req *CreateOfferRequest) (*models.BuyerOffer, error) {
	now := s.now()

	buyer, err := s.store.GetCustomer(ctx, req.BuyerID)
	if err != nil {
		return nil, err
	}
	if !buyer.CanBuy() {
		return nil, status.BusinessRule("account %s cannot place offers", buyer.ID)
	}

	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.Upcoming(now) {
		return nil, status.BusinessRule("event %s is not open for offers", event.ID)
	}
	if len(req.Sections) == 0 {
		return nil, status.Validation("at least one section is required")
	}
	for _, section := range req.Sections {
		if !event.HasSection(section) {
			return nil, status.Validation("event %s has no section %q", event.ID, section)
		}
	}
	if req.MaxPrice.LessThanOrEqual(decimal.Zero) {
		return nil, status.Validation("max price must be positive, got %s", req.MaxPrice)
	}
	if req.Quantity < 1 {
		return nil, status.Validation("quantity must be at least 1, got %d", req.Quantity)
	}

	expiresAt := event.StartTime.Add(-time.Hour)
	if !expiresAt.After(now) {
		// Under an hour to the event: the offer stands until start
		// instead of being born expired.
		expiresAt = event.StartTime
	}
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(now) {
			return nil, status.Validation("expiration must be in the future")
		}
		expiresAt = *req.ExpiresAt
	}

	suggestion, err := s.pricing.SuggestPrice(ctx, req.EventID, req.Sections, req.MaxPrice, req.Quantity)
	if err != nil {
		return nil, err
	}

	offerID := uuid.NewString()
	start := time.Now()
	hold, err := s.gateway.Authorize(ctx, &gateway.AuthorizeRequest{
		CustomerID: buyer.ID,
		Amount:     req.MaxPrice,
		Currency:   s.currency,
		Reference:  "auth-" + offerID,
		Metadata:   map[string]string{"offer_id": offerID, "event_id": event.ID},
	})
	monitoring.ObserveGatewayCall("authorize", start, err)
	if err != nil {
		return nil, status.External("payment gateway", err)
	}

	offer := &models.BuyerOffer{
		ID:                    offerID,
		BuyerID:               buyer.ID,
		EventID:               event.ID,
		Sections:              req.Sections,
		MaxPrice:              req.MaxPrice,
		Quantity:              req.Quantity,
		SuggestedPrice:        suggestion.SuggestedPrice,
		AcceptanceProbability: suggestion.AcceptanceProbability,
		Hold: models.PaymentHold{
			Reference: hold.Reference,
			Status:    models.HoldAuthorized,
		},
		Status:    models.OfferActive,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.store.SaveOffer(ctx, offer); err != nil {
		// The hold is orphaned; release it rather than leave the buyer
		// with a dangling authorization.
		if cancelErr := s.gateway.Cancel(ctx, hold.Reference); cancelErr != nil {
			slog.Error("offer: hold cleanup failed", "offer", offerID, "error", cancelErr)
		}
		return nil, err
	}

	s.bumpOfferCounters(ctx, offer)
	s.notifier.NotifyUser(ctx, buyer.ID, "offer_created", map[string]any{
		"offer_id":        offer.ID,
		"suggested_price": suggestion.SuggestedPrice.String(),
	})

	s.tryForwardMatch(ctx, offer)
	return s.store.GetOffer(ctx, offer.ID)
}

// tryForwardMatch runs the instant-match check: select the cheapest
// eligible live listing and settle against it. Conflicts retry with a
// fresh candidate up to the bound; any other failure leaves the offer
// standing.
func (s *OfferService) tryForwardMatch(ctx context.Context, offer *models.BuyerOffer) {
	for attempt := 0; attempt < s.matchRetries; attempt++ {
		listings, err := s.store.ListLiveListingsByEvent(ctx, offer.EventID)
		if err != nil {
			slog.Error("match: listing snapshot failed", "offer", offer.ID, "error", err)
			monitoring.TrackMatchAttempt("forward", "failed")
			return
		}
		candidate := SelectListing(offer, listings)
		if candidate == nil {
			monitoring.TrackMatchAttempt("forward", "no_candidate")
			return
		}

		_, err = s.settlement.Settle(ctx, &SettleRequest{
			OfferID:     offer.ID,
			ListingID:   candidate.ID,
			ActingParty: "system:instant-match",
		})
		if err == nil {
			monitoring.TrackMatchAttempt("forward", "matched")
			return
		}
		if !status.Retryable(err) {
			slog.Error("match: settlement failed", "offer", offer.ID, "listing", candidate.ID, "error", err)
			monitoring.TrackMatchAttempt("forward", "failed")
			return
		}
		slog.Info("match: lost candidate, retrying", "offer", offer.ID, "listing", candidate.ID, "attempt", attempt+1)

		// The conflict may have been on our own offer; stop if it is no
		// longer matchable.
		current, err := s.store.GetOffer(ctx, offer.ID)
		if err != nil || current.Status != models.OfferActive {
			monitoring.TrackMatchAttempt("forward", "failed")
			return
		}
	}
	monitoring.TrackMatchAttempt("forward", "failed")
}

// bumpOfferCounters increments the demand counter on open listings the
// new offer could target. Analytics only, best effort. Each increment
// runs as its own atomic unit on a fresh read, so a settlement landing
// after the scan is never overwritten by the stale snapshot.
func (s *OfferService) bumpOfferCounters(ctx context.Context, offer *models.BuyerOffer) {
	listings, err := s.store.ListOpenListingsByEvent(ctx, offer.EventID)
	if err != nil {
		return
	}
	for _, candidate := range listings {
		if !offer.AcceptsSection(candidate.Section) {
			continue
		}
		err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
			l, err := tx.GetListing(ctx, candidate.ID)
			if err != nil {
				return err
			}
			l.OfferCount++
			return tx.SaveListing(ctx, l)
		})
		if err != nil {
			slog.Warn("offer: counter update failed", "listing", candidate.ID, "error", err)
		}
	}
}

// CancelOffer is buyer-initiated and allowed only from active. The
// payment hold is released after the status commit.
func (s *OfferService) CancelOffer(ctx context.Context, offerID, buyerID string) (*models.BuyerOffer, error) {
	var offer *models.BuyerOffer
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		o, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if o.BuyerID != buyerID {
			return status.BusinessRule("offer %s does not belong to buyer %s", offerID, buyerID)
		}
		if o.Status != models.OfferActive {
			return status.Conflict("offer", offerID, "status is %s, only active offers can be cancelled", o.Status)
		}
		o.Status = models.OfferCancelled
		o.Hold.Status = models.HoldCancelled
		if err := tx.SaveOffer(ctx, o); err != nil {
			return err
		}
		offer = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.gateway.Cancel(ctx, offer.Hold.Reference); err != nil {
		slog.Error("offer: hold release failed", "offer", offerID, "error", err)
	}
	s.notifier.NotifyUser(ctx, buyerID, "offer_cancelled", map[string]any{"offer_id": offerID})
	return offer, nil
}

// ExpireOffer commits the active-to-expired transition for one offer.
// Invoked by the expiration sweep; racing matchers see the same atomic
// unit, so an expired offer can never also match.
func (s *OfferService) ExpireOffer(ctx context.Context, offerID string) error {
	now := s.now()

	var holdRef string
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		o, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		if o.Status != models.OfferActive {
			return status.Conflict("offer", offerID, "status is %s, expiration requires active", o.Status)
		}
		if !o.Expired(now) {
			return status.Conflict("offer", offerID, "deadline %s has not passed", o.ExpiresAt.Format(time.RFC3339))
		}
		o.Status = models.OfferExpired
		o.Hold.Status = models.HoldCancelled
		if err := tx.SaveOffer(ctx, o); err != nil {
			return err
		}
		holdRef = o.Hold.Reference
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.gateway.Cancel(ctx, holdRef); err != nil {
		slog.Error("offer: hold release failed", "offer", offerID, "error", err)
	}
	return nil
}

func (s *OfferService) GetOffer(ctx context.Context, offerID string) (*models.BuyerOffer, error) {
	return s.store.GetOffer(ctx, offerID)
}

func (s *OfferService) ListOffers(ctx context.Context, buyerID string, limit int) ([]*models.BuyerOffer, error) {
	return s.store.ListOffersByBuyer(ctx, buyerID, limit)
}

func (s *OfferService) ListTransactions(ctx context.Context, buyerID string, limit int) ([]*models.Transaction, error) {
	return s.store.ListTransactionsByBuyer(ctx, buyerID, limit)
}
