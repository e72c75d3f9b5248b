// Package services holds the matching and settlement core: the pricing
// advisor, the matching selectors, the settlement unit and the lifecycle
// services built on top of them. Services are stateless; every
// collaborator (store, payment gateway, notifier) is passed in
// explicitly.
package services

import (
	"time"

	"github.com/shopspring/decimal"

	"ticket-resale/models"
)

type timeFunc func() time.Time

// EligibleListing reports whether the listing can fill the offer: same
// event, a section the buyer accepts, live inventory that fits within
// the requested quantity, and a minimum acceptable price at or below
// the buyer's cap. A listing without a minimum is acceptable outright.
func EligibleListing(offer *models.BuyerOffer, listing *models.SellerListing) bool {
	if listing.EventID != offer.EventID {
		return false
	}
	if listing.Status != models.ListingActive || !listing.IsLive {
		return false
	}
	if !offer.AcceptsSection(listing.Section) {
		return false
	}
	if listing.Quantity > offer.Quantity {
		return false
	}
	if listing.MinimumAcceptablePrice != nil && listing.MinimumAcceptablePrice.GreaterThan(offer.MaxPrice) {
		return false
	}
	return true
}

// SelectListing picks the cheapest eligible listing for the offer:
// lowest minimum acceptable price first, oldest listing on ties. The
// result is a proposal only; settlement re-validates it atomically.
func SelectListing(offer *models.BuyerOffer, listings []*models.SellerListing) *models.SellerListing {
	var best *models.SellerListing
	for _, l := range listings {
		if !EligibleListing(offer, l) {
			continue
		}
		if best == nil || listingPreferred(l, best) {
			best = l
		}
	}
	return best
}

func listingPreferred(a, b *models.SellerListing) bool {
	fa, fb := listingFloor(a), listingFloor(b)
	if !fa.Equal(fb) {
		return fa.LessThan(fb)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// listingFloor orders listings without a minimum ahead of any priced
// minimum.
func listingFloor(l *models.SellerListing) decimal.Decimal {
	if l.MinimumAcceptablePrice == nil {
		return decimal.Zero
	}
	return *l.MinimumAcceptablePrice
}

// EligibleOffer reports whether the offer can take the listing in the
// reverse (auto-sell) direction: active and unexpired demand for the
// listing's section, enough quantity, and a cap at or above the
// listing's reserve price.
func EligibleOffer(listing *models.SellerListing, offer *models.BuyerOffer, now time.Time) bool {
	if offer.EventID != listing.EventID {
		return false
	}
	if offer.Status != models.OfferActive || offer.Expired(now) {
		return false
	}
	if !offer.AcceptsSection(listing.Section) {
		return false
	}
	if offer.Quantity < listing.Quantity {
		return false
	}
	if reserve := listing.ReservePrice(); reserve != nil && offer.MaxPrice.LessThan(*reserve) {
		return false
	}
	return true
}

// SelectOffer picks the best eligible offer for the listing: highest
// max price first, oldest offer on ties.
func SelectOffer(listing *models.SellerListing, offers []*models.BuyerOffer, now time.Time) *models.BuyerOffer {
	var best *models.BuyerOffer
	for _, o := range offers {
		if !EligibleOffer(listing, o, now) {
			continue
		}
		if best == nil || offerPreferred(o, best) {
			best = o
		}
	}
	return best
}

func offerPreferred(a, b *models.BuyerOffer) bool {
	if !a.MaxPrice.Equal(b.MaxPrice) {
		return a.MaxPrice.GreaterThan(b.MaxPrice)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
