package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ListingStatus string

const (
	ListingDraft     ListingStatus = "draft"
	ListingActive    ListingStatus = "active"
	ListingMatched   ListingStatus = "matched"
	ListingSold      ListingStatus = "sold"
	ListingExpired   ListingStatus = "expired"
	ListingCancelled ListingStatus = "cancelled"
)

var listingTransitions = map[ListingStatus][]ListingStatus{
	ListingDraft:   {ListingActive, ListingCancelled, ListingExpired},
	ListingActive:  {ListingMatched, ListingCancelled, ListingExpired},
	ListingMatched: {ListingSold},
}

func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	for _, allowed := range listingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type DeliveryMethod string

const (
	DeliveryElectronic DeliveryMethod = "electronic"
	DeliveryPhysical   DeliveryMethod = "physical"
)

// AutoSell configures automatic acceptance of the best eligible offer once
// the trigger time has passed. A zero TriggerTime means immediately.
type AutoSell struct {
	Enabled            bool      `json:"enabled"`
	TriggerTime        time.Time `json:"trigger_time"`
	AcceptHighestOffer bool      `json:"accept_highest_offer"`
}

type SellerListing struct {
	ID                     string           `json:"id"`
	SellerID               string           `json:"seller_id"`
	EventID                string           `json:"event_id"`
	Section                string           `json:"section"`
	Row                    string           `json:"row"`
	Seats                  []string         `json:"seats"`
	Quantity               int              `json:"quantity"`
	AskingPrice            *decimal.Decimal `json:"asking_price,omitempty"`
	MinimumAcceptablePrice *decimal.Decimal `json:"minimum_acceptable_price,omitempty"`
	IsLive                 bool             `json:"is_live"`
	GoLiveAt               *time.Time       `json:"go_live_at,omitempty"`
	AutoSell               AutoSell         `json:"auto_sell"`
	Status                 ListingStatus    `json:"status"`
	DeliveryMethod         DeliveryMethod   `json:"delivery_method"`
	DeliveryDetails        string           `json:"delivery_details,omitempty"`
	ViewCount              int              `json:"view_count"`
	OfferCount             int              `json:"offer_count"`
	MatchedOfferID         string           `json:"matched_offer_id,omitempty"`
	CreatedAt              time.Time        `json:"created_at"`
}

// Editable reports whether seller edits are still allowed. Matched, sold
// and cancelled listings are immutable.
func (l *SellerListing) Editable() bool {
	switch l.Status {
	case ListingMatched, ListingSold, ListingCancelled:
		return false
	}
	return true
}

// ReservePrice is the threshold an offer must meet for the reverse match:
// the hidden minimum when set, otherwise the asking price. Nil means the
// listing has no price requirement.
func (l *SellerListing) ReservePrice() *decimal.Decimal {
	if l.MinimumAcceptablePrice != nil {
		return l.MinimumAcceptablePrice
	}
	return l.AskingPrice
}

// AutoSellDue reports whether the reverse-match path may run.
func (l *SellerListing) AutoSellDue(now time.Time) bool {
	return l.AutoSell.Enabled &&
		l.AutoSell.AcceptHighestOffer &&
		!l.AutoSell.TriggerTime.After(now)
}
