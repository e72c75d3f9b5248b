package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OfferStatus string

const (
	OfferActive    OfferStatus = "active"
	OfferMatched   OfferStatus = "matched"
	OfferExpired   OfferStatus = "expired"
	OfferCancelled OfferStatus = "cancelled"
	OfferCompleted OfferStatus = "completed"
)

// offerTransitions is the closed transition table. Nothing re-enters
// active; matched can only complete.
var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferActive:  {OfferMatched, OfferExpired, OfferCancelled},
	OfferMatched: {OfferCompleted},
}

func (s OfferStatus) CanTransitionTo(next OfferStatus) bool {
	for _, allowed := range offerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type HoldStatus string

const (
	HoldPending    HoldStatus = "pending"
	HoldAuthorized HoldStatus = "authorized"
	HoldCaptured   HoldStatus = "captured"
	HoldCancelled  HoldStatus = "cancelled"
)

// PaymentHold references the gateway authorization backing an offer.
type PaymentHold struct {
	Reference string     `json:"reference"`
	Status    HoldStatus `json:"status"`
}

type BuyerOffer struct {
	ID                    string          `json:"id"`
	BuyerID               string          `json:"buyer_id"`
	EventID               string          `json:"event_id"`
	Sections              []string        `json:"sections"`
	MaxPrice              decimal.Decimal `json:"max_price"`
	Quantity              int             `json:"quantity"`
	SuggestedPrice        decimal.Decimal `json:"suggested_price"`
	AcceptanceProbability float64         `json:"acceptance_probability"`
	Hold                  PaymentHold     `json:"hold"`
	Status                OfferStatus     `json:"status"`
	ExpiresAt             time.Time       `json:"expires_at"`
	MatchedListingID      string          `json:"matched_listing_id,omitempty"`
	MatchedAt             *time.Time      `json:"matched_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

func (o *BuyerOffer) AcceptsSection(section string) bool {
	for _, s := range o.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// Expired reports whether the offer deadline has passed. An expired offer
// may still carry active status until the expiration sweep commits the
// transition; matching must check both.
func (o *BuyerOffer) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
