package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-resale/internal/status"
	"ticket-resale/internal/store"
	"ticket-resale/models"
)

func seedPricingEvent(t *testing.T, m *store.Memory, avgPrice int64) {
	t.Helper()
	require.NoError(t, m.SaveEvent(context.Background(), &models.Event{
		ID:        "e1",
		Name:      "Stadium Show",
		StartTime: matchTime.Add(48 * time.Hour),
		Sections:  []string{"A", "B"},
		Status:    models.EventUpcoming,
		MarketStats: models.MarketStats{
			AveragePrice: decimal.NewFromInt(avgPrice),
		},
	}))
}

func TestSuggestPrice_EmptyMarket(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedPricingEvent(t, m, 0)

	advisor := NewPricingAdvisor(m)
	suggestion, err := advisor.SuggestPrice(ctx, "e1", []string{"A"}, dec(200), 2)
	require.NoError(t, err)

	assert.True(t, suggestion.SuggestedPrice.IsZero(), "cold market suggests zero, got %s", suggestion.SuggestedPrice)
	assert.Equal(t, float64(50), suggestion.AcceptanceProbability)
	assert.Equal(t, 0, suggestion.ActiveOfferCount)
	assert.Equal(t, 0, suggestion.SettledSaleCount)
}

func TestSuggestPrice_BlendsOffersAndSales(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedPricingEvent(t, m, 100)

	// Two active offers in section A averaging 100.
	require.NoError(t, m.SaveOffer(ctx, testOffer("o1", 80)))
	require.NoError(t, m.SaveOffer(ctx, testOffer("o2", 120)))
	// One settled sale at 90.
	require.NoError(t, m.SaveTransaction(ctx, &models.Transaction{
		ID: "t1", EventID: "e1", Section: "A",
		SalePrice:     dec(90),
		PaymentStatus: models.PaymentCaptured,
	}))

	advisor := NewPricingAdvisor(m)
	suggestion, err := advisor.SuggestPrice(ctx, "e1", []string{"A"}, dec(500), 2)
	require.NoError(t, err)

	// max(100*1.1, 90*0.95) = max(110, 85.5) = 110.
	assert.True(t, suggestion.SuggestedPrice.Equal(dec(110)), "got %s", suggestion.SuggestedPrice)
	assert.Equal(t, 2, suggestion.ActiveOfferCount)
	assert.Equal(t, 1, suggestion.SettledSaleCount)
	// 110 is 10% above the recorded average of 100: 50 + 10 = 60.
	assert.InDelta(t, 60, suggestion.AcceptanceProbability, 0.01)
}

func TestSuggestPrice_CappedAtMaxPrice(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedPricingEvent(t, m, 100)

	require.NoError(t, m.SaveOffer(ctx, testOffer("o1", 300)))

	advisor := NewPricingAdvisor(m)
	suggestion, err := advisor.SuggestPrice(ctx, "e1", []string{"A"}, dec(200), 2)
	require.NoError(t, err)

	assert.True(t, suggestion.SuggestedPrice.Equal(dec(200)),
		"suggestion never exceeds the buyer's cap, got %s", suggestion.SuggestedPrice)
}

func TestSuggestPrice_IgnoresOtherSections(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedPricingEvent(t, m, 0)

	other := testOffer("o1", 300)
	other.Sections = []string{"B"}
	require.NoError(t, m.SaveOffer(ctx, other))
	require.NoError(t, m.SaveTransaction(ctx, &models.Transaction{
		ID: "t1", EventID: "e1", Section: "B",
		SalePrice:     dec(250),
		PaymentStatus: models.PaymentCaptured,
	}))

	advisor := NewPricingAdvisor(m)
	suggestion, err := advisor.SuggestPrice(ctx, "e1", []string{"A"}, dec(200), 1)
	require.NoError(t, err)

	assert.True(t, suggestion.SuggestedPrice.IsZero())
	assert.Equal(t, 0, suggestion.ActiveOfferCount)
	assert.Equal(t, 0, suggestion.SettledSaleCount)
}

func TestSuggestPrice_Validation(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	seedPricingEvent(t, m, 0)
	advisor := NewPricingAdvisor(m)

	_, err := advisor.SuggestPrice(ctx, "e1", nil, dec(200), 1)
	assert.True(t, status.IsValidation(err))

	_, err = advisor.SuggestPrice(ctx, "e1", []string{"A"}, decimal.Zero, 1)
	assert.True(t, status.IsValidation(err))

	_, err = advisor.SuggestPrice(ctx, "e1", []string{"A"}, dec(200), 0)
	assert.True(t, status.IsValidation(err))

	_, err = advisor.SuggestPrice(ctx, "missing", []string{"A"}, dec(200), 1)
	assert.True(t, status.IsNotFound(err))
}

func TestAcceptanceProbability_Clamped(t *testing.T) {
	avg := dec(100)
	assert.Equal(t, float64(95), acceptanceProbability(dec(300), avg), "upper clamp")
	assert.Equal(t, float64(10), acceptanceProbability(dec(10), avg), "lower clamp")
	assert.InDelta(t, 50, acceptanceProbability(dec(100), avg), 0.01, "at the average")
	assert.Equal(t, float64(50), acceptanceProbability(dec(100), decimal.Zero), "no recorded average")
}

func TestComputeMarketStats(t *testing.T) {
	now := func() time.Time { return matchTime }

	listings := []*models.SellerListing{
		{ID: "l1", AskingPrice: decPtr(100)},
		{ID: "l2", AskingPrice: decPtr(200)},
		{ID: "l3"}, // no asking price, still counted as a listing
	}
	sales := []*models.Transaction{
		{ID: "t1", SalePrice: dec(150)},
	}

	stats := computeMarketStats(listings, sales, now)
	assert.Equal(t, 3, stats.ListingCount)
	assert.True(t, stats.LowestPrice.Equal(dec(100)), "got %s", stats.LowestPrice)
	assert.True(t, stats.HighestPrice.Equal(dec(200)), "got %s", stats.HighestPrice)
	assert.True(t, stats.AveragePrice.Equal(dec(150)), "got %s", stats.AveragePrice)
	assert.Equal(t, matchTime, stats.UpdatedAt)
}

func TestComputeMarketStats_Empty(t *testing.T) {
	stats := computeMarketStats(nil, nil, func() time.Time { return matchTime })
	assert.Equal(t, 0, stats.ListingCount)
	assert.True(t, stats.AveragePrice.IsZero())
	assert.True(t, stats.LowestPrice.IsZero())
	assert.True(t, stats.HighestPrice.IsZero())
}
