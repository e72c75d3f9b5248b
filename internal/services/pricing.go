package services

import (
	"context"

	"github.com/shopspring/decimal"

	"ticket-resale/internal/status"
	"ticket-resale/internal/store"
	"ticket-resale/models"
)

var (
	offerPremium = decimal.NewFromFloat(1.1)
	saleDiscount = decimal.NewFromFloat(0.95)
)

// PriceSuggestion is the advisory output returned to a buyer before an
// offer is placed. Purely computed from a market snapshot.
type PriceSuggestion struct {
	SuggestedPrice        decimal.Decimal `json:"suggested_price"`
	AcceptanceProbability float64         `json:"acceptance_probability"`
	ActiveOfferCount      int             `json:"active_offer_count"`
	SettledSaleCount      int             `json:"settled_sale_count"`
}

// PricingAdvisor computes price suggestions from currently active offers
// and historical settled sales. No side effects; safe to call repeatedly.
type PricingAdvisor struct {
	store store.Store
}

func NewPricingAdvisor(st store.Store) *PricingAdvisor {
	return &PricingAdvisor{store: st}
}

// SuggestPrice blends the active demand for the requested sections with
// the historical sale prices there. An empty side of the market
// contributes a zero average, so a cold event yields a zero suggestion
// and a neutral probability.
func (p *PricingAdvisor) SuggestPrice(ctx context.Context, eventID string, sections []string, maxPrice decimal.Decimal, quantity int) (*PriceSuggestion, error) {
	if len(sections) == 0 {
		return nil, status.Validation("at least one section is required")
	}
	if maxPrice.LessThanOrEqual(decimal.Zero) {
		return nil, status.Validation("max price must be positive, got %s", maxPrice)
	}
	if quantity < 1 {
		return nil, status.Validation("quantity must be at least 1, got %d", quantity)
	}

	event, err := p.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(sections))
	for _, s := range sections {
		wanted[s] = true
	}

	offers, err := p.store.ListActiveOffersByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	offerSum, offerCount := decimal.Zero, 0
	for _, o := range offers {
		if !sectionsOverlap(o.Sections, wanted) {
			continue
		}
		offerSum = offerSum.Add(o.MaxPrice)
		offerCount++
	}

	sales, err := p.store.ListSettledTransactionsByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	saleSum, saleCount := decimal.Zero, 0
	for _, t := range sales {
		if !wanted[t.Section] {
			continue
		}
		saleSum = saleSum.Add(t.SalePrice)
		saleCount++
	}

	avgOffer := decimal.Zero
	if offerCount > 0 {
		avgOffer = offerSum.Div(decimal.NewFromInt(int64(offerCount)))
	}
	avgSale := decimal.Zero
	if saleCount > 0 {
		avgSale = saleSum.Div(decimal.NewFromInt(int64(saleCount)))
	}

	suggested := decimal.Max(avgOffer.Mul(offerPremium), avgSale.Mul(saleDiscount))
	if suggested.GreaterThan(maxPrice) {
		suggested = maxPrice
	}
	if suggested.IsNegative() {
		suggested = decimal.Zero
	}
	suggested = suggested.Round(2)

	return &PriceSuggestion{
		SuggestedPrice:        suggested,
		AcceptanceProbability: acceptanceProbability(suggested, event.MarketStats.AveragePrice),
		ActiveOfferCount:      offerCount,
		SettledSaleCount:      saleCount,
	}, nil
}

// acceptanceProbability maps how far the suggestion sits above or below
// the event's recorded average onto a clamped percentage. Without a
// recorded average the estimate stays neutral at 50.
func acceptanceProbability(suggested, eventAverage decimal.Decimal) float64 {
	if eventAverage.LessThanOrEqual(decimal.Zero) {
		return 50
	}
	ratio := suggested.Div(eventAverage).InexactFloat64()
	prob := 50 + (ratio-1)*100
	if prob < 10 {
		return 10
	}
	if prob > 95 {
		return 95
	}
	return prob
}

func sectionsOverlap(sections []string, wanted map[string]bool) bool {
	for _, s := range sections {
		if wanted[s] {
			return true
		}
	}
	return false
}

// --- market stats used by the offer/listing surfaces ---

// computeMarketStats folds live asking prices and settled sale prices
// into the per-event snapshot.
func computeMarketStats(listings []*models.SellerListing, sales []*models.Transaction, now timeFunc) models.MarketStats {
	stats := models.MarketStats{UpdatedAt: now()}

	sum, count := decimal.Zero, 0
	observe := func(price decimal.Decimal) {
		if count == 0 || price.LessThan(stats.LowestPrice) {
			stats.LowestPrice = price
		}
		if price.GreaterThan(stats.HighestPrice) {
			stats.HighestPrice = price
		}
		sum = sum.Add(price)
		count++
	}

	for _, l := range listings {
		if l.AskingPrice != nil {
			observe(*l.AskingPrice)
		}
	}
	for _, t := range sales {
		observe(t.SalePrice)
	}

	stats.ListingCount = len(listings)
	if count > 0 {
		stats.AveragePrice = sum.Div(decimal.NewFromInt(int64(count))).Round(2)
	}
	return stats
}
