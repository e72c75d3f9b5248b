package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferTransitions(t *testing.T) {
	cases := []struct {
		from    OfferStatus
		to      OfferStatus
		allowed bool
	}{
		{OfferActive, OfferMatched, true},
		{OfferActive, OfferExpired, true},
		{OfferActive, OfferCancelled, true},
		{OfferActive, OfferCompleted, false},
		{OfferMatched, OfferCompleted, true},
		{OfferMatched, OfferActive, false},
		{OfferMatched, OfferCancelled, false},
		{OfferExpired, OfferActive, false},
		{OfferExpired, OfferMatched, false},
		{OfferCancelled, OfferActive, false},
		{OfferCompleted, OfferMatched, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestListingTransitions(t *testing.T) {
	cases := []struct {
		from    ListingStatus
		to      ListingStatus
		allowed bool
	}{
		{ListingDraft, ListingActive, true},
		{ListingDraft, ListingCancelled, true},
		{ListingDraft, ListingExpired, true},
		{ListingDraft, ListingMatched, false},
		{ListingActive, ListingMatched, true},
		{ListingActive, ListingCancelled, true},
		{ListingActive, ListingExpired, true},
		{ListingActive, ListingSold, false},
		{ListingMatched, ListingSold, true},
		{ListingMatched, ListingActive, false},
		{ListingMatched, ListingCancelled, false},
		{ListingSold, ListingActive, false},
		{ListingCancelled, ListingActive, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestPayoutTransitions(t *testing.T) {
	cases := []struct {
		from    PayoutStatus
		to      PayoutStatus
		allowed bool
	}{
		{PayoutPending, PayoutScheduled, true},
		{PayoutPending, PayoutProcessing, true},
		{PayoutPending, PayoutCompleted, false},
		{PayoutScheduled, PayoutProcessing, true},
		{PayoutProcessing, PayoutCompleted, true},
		{PayoutProcessing, PayoutFailed, true},
		{PayoutFailed, PayoutProcessing, true},
		{PayoutCompleted, PayoutProcessing, false},
		{PayoutCompleted, PayoutFailed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestDeliveryTransitions(t *testing.T) {
	cases := []struct {
		from    DeliveryStatus
		to      DeliveryStatus
		allowed bool
	}{
		{DeliveryPending, DeliveryTransferred, true},
		{DeliveryPending, DeliveryDisputed, true},
		{DeliveryPending, DeliveryFailed, true},
		{DeliveryPending, DeliveryConfirmed, false},
		{DeliveryTransferred, DeliveryConfirmed, true},
		{DeliveryTransferred, DeliveryDisputed, true},
		{DeliveryTransferred, DeliveryFailed, false},
		{DeliveryDisputed, DeliveryConfirmed, true},
		{DeliveryDisputed, DeliveryFailed, true},
		{DeliveryConfirmed, DeliveryDisputed, false},
		{DeliveryFailed, DeliveryPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestDeliveryStatus_Disputable(t *testing.T) {
	assert.True(t, DeliveryPending.Disputable())
	assert.True(t, DeliveryTransferred.Disputable())
	assert.False(t, DeliveryConfirmed.Disputable())
	assert.False(t, DeliveryDisputed.Disputable())
	assert.False(t, DeliveryFailed.Disputable())
}

func TestValidDisputeReason(t *testing.T) {
	for _, r := range []DisputeReason{
		DisputeTicketsNotReceived, DisputeInvalidTickets, DisputeWrongSection,
		DisputeWrongQuantity, DisputeEventCancelled, DisputeOther,
	} {
		assert.True(t, ValidDisputeReason(r), string(r))
	}
	assert.False(t, ValidDisputeReason("buyer_changed_mind"))
	assert.False(t, ValidDisputeReason(""))
}

func TestOffer_Expired(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	offer := &BuyerOffer{ExpiresAt: now}

	assert.False(t, offer.Expired(now), "deadline itself is not yet expired")
	assert.False(t, offer.Expired(now.Add(-time.Second)))
	assert.True(t, offer.Expired(now.Add(time.Second)))
}

func TestOffer_AcceptsSection(t *testing.T) {
	offer := &BuyerOffer{Sections: []string{"A", "B"}}
	assert.True(t, offer.AcceptsSection("A"))
	assert.True(t, offer.AcceptsSection("B"))
	assert.False(t, offer.AcceptsSection("C"))
}

func TestListing_ReservePrice(t *testing.T) {
	asking := decimal.NewFromInt(180)
	minimum := decimal.NewFromInt(150)

	l := &SellerListing{AskingPrice: &asking, MinimumAcceptablePrice: &minimum}
	require.NotNil(t, l.ReservePrice())
	assert.True(t, l.ReservePrice().Equal(minimum), "hidden minimum wins over asking")

	l = &SellerListing{AskingPrice: &asking}
	require.NotNil(t, l.ReservePrice())
	assert.True(t, l.ReservePrice().Equal(asking))

	l = &SellerListing{}
	assert.Nil(t, l.ReservePrice())
}

func TestListing_Editable(t *testing.T) {
	for status, want := range map[ListingStatus]bool{
		ListingDraft:     true,
		ListingActive:    true,
		ListingExpired:   true,
		ListingMatched:   false,
		ListingSold:      false,
		ListingCancelled: false,
	} {
		l := &SellerListing{Status: status}
		assert.Equal(t, want, l.Editable(), string(status))
	}
}

func TestListing_AutoSellDue(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	l := &SellerListing{AutoSell: AutoSell{Enabled: true, AcceptHighestOffer: true, TriggerTime: now.Add(-time.Minute)}}
	assert.True(t, l.AutoSellDue(now))

	l.AutoSell.TriggerTime = now
	assert.True(t, l.AutoSellDue(now), "trigger time itself counts as due")

	l.AutoSell.TriggerTime = now.Add(time.Minute)
	assert.False(t, l.AutoSellDue(now))

	l.AutoSell = AutoSell{Enabled: true, AcceptHighestOffer: false}
	assert.False(t, l.AutoSellDue(now))

	l.AutoSell = AutoSell{Enabled: false, AcceptHighestOffer: true}
	assert.False(t, l.AutoSellDue(now))
}

func TestEvent_Upcoming(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	event := &Event{Status: EventUpcoming, StartTime: now.Add(time.Hour)}

	assert.True(t, event.Upcoming(now))
	assert.False(t, event.Upcoming(now.Add(time.Hour)), "start time is the cutoff")
	assert.False(t, event.Upcoming(now.Add(2*time.Hour)))

	event.Status = EventCompleted
	assert.False(t, event.Upcoming(now))
}

func TestCustomer_Roles(t *testing.T) {
	buyer := &Customer{Role: RoleBuyer}
	assert.True(t, buyer.CanBuy())
	assert.False(t, buyer.CanSell())

	seller := &Customer{Role: RoleSeller}
	assert.False(t, seller.CanBuy())
	assert.True(t, seller.CanSell())

	both := &Customer{Role: RoleBoth}
	assert.True(t, both.CanBuy())
	assert.True(t, both.CanSell())
}
