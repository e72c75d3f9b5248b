package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-resale/internal/status"
	"ticket-resale/models"
)

const (
	colCustomers    = "customers"
	colEvents       = "events"
	colOffers       = "offers"
	colListings     = "listings"
	colTransactions = "transactions"
)

// dateLayout matches the PocketBase datetime string format used in filter
// comparisons.
const dateLayout = "2006-01-02 15:04:05.000Z"

// PocketBase implements Store on top of a PocketBase app. The app's
// RunInTransaction gives the serializable atomic unit: SQLite serializes
// writers, so a unit always re-reads the latest committed status before
// transitioning it.
type PocketBase struct {
	app core.App
}

func NewPocketBase(app core.App) *PocketBase {
	return &PocketBase{app: app}
}

func (p *PocketBase) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	return p.app.RunInTransaction(func(txApp core.App) error {
		return fn(&PocketBase{app: txApp})
	})
}

func (p *PocketBase) find(collection, id string) (*core.Record, error) {
	record, err := p.app.FindRecordById(collection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.NotFound(collection, id)
		}
		return nil, err
	}
	return record, nil
}

// upsert loads the existing record or creates a new one with the given id.
func (p *PocketBase) upsert(collection, id string) (*core.Record, error) {
	record, err := p.app.FindRecordById(collection, id)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	col, err := p.app.FindCollectionByNameOrId(collection)
	if err != nil {
		return nil, err
	}
	record = core.NewRecord(col)
	record.Set("id", id)
	return record, nil
}

// --- Customers ---

func (p *PocketBase) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	record, err := p.find(colCustomers, id)
	if err != nil {
		return nil, err
	}
	return recordToCustomer(record)
}

func (p *PocketBase) FindCustomerByEmail(_ context.Context, email string) (*models.Customer, error) {
	records, err := p.app.FindRecordsByFilter(colCustomers,
		"email = {:email}",
		"created", 1, 0,
		dbx.Params{"email": email})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, status.NotFound("customer", email)
	}
	return recordToCustomer(records[0])
}

func (p *PocketBase) SaveCustomer(_ context.Context, customer *models.Customer) error {
	record, err := p.upsert(colCustomers, customer.ID)
	if err != nil {
		return err
	}
	record.Set("email", customer.Email)
	record.Set("name", customer.Name)
	record.Set("role", string(customer.Role))
	record.Set("password_hash", customer.PasswordHash)
	record.Set("verified", customer.Verified)
	record.Set("payout_account", customer.PayoutAccount)
	record.Set("fee_percentage", decimalString(customer.FeePercentage))
	record.Set("trust_score", customer.TrustScore)
	return p.app.Save(record)
}

// --- Events ---

func (p *PocketBase) GetEvent(_ context.Context, id string) (*models.Event, error) {
	record, err := p.find(colEvents, id)
	if err != nil {
		return nil, err
	}
	return recordToEvent(record)
}

func (p *PocketBase) SaveEvent(_ context.Context, event *models.Event) error {
	record, err := p.upsert(colEvents, event.ID)
	if err != nil {
		return err
	}
	record.Set("name", event.Name)
	record.Set("venue", event.Venue)
	record.Set("start_time", event.StartTime.UTC())
	record.Set("sections", event.Sections)
	record.Set("status", string(event.Status))
	record.Set("market_stats", event.MarketStats)
	return p.app.Save(record)
}

func (p *PocketBase) ListEventsStartedBefore(_ context.Context, cutoff time.Time, limit int) ([]*models.Event, error) {
	records, err := p.app.FindRecordsByFilter(colEvents,
		"status = 'upcoming' && start_time < {:cutoff}",
		"start_time", limit, 0,
		dbx.Params{"cutoff": cutoff.UTC().Format(dateLayout)})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToEvent)
}

// --- Offers ---

func (p *PocketBase) GetOffer(_ context.Context, id string) (*models.BuyerOffer, error) {
	record, err := p.find(colOffers, id)
	if err != nil {
		return nil, err
	}
	return recordToOffer(record)
}

func (p *PocketBase) SaveOffer(_ context.Context, offer *models.BuyerOffer) error {
	record, err := p.upsert(colOffers, offer.ID)
	if err != nil {
		return err
	}
	record.Set("buyer", offer.BuyerID)
	record.Set("event", offer.EventID)
	record.Set("sections", offer.Sections)
	record.Set("max_price", offer.MaxPrice.String())
	record.Set("quantity", offer.Quantity)
	record.Set("suggested_price", offer.SuggestedPrice.String())
	record.Set("acceptance_probability", offer.AcceptanceProbability)
	record.Set("hold_ref", offer.Hold.Reference)
	record.Set("hold_status", string(offer.Hold.Status))
	record.Set("status", string(offer.Status))
	record.Set("expires_at", offer.ExpiresAt.UTC())
	record.Set("matched_listing", offer.MatchedListingID)
	setOptionalTime(record, "matched_at", offer.MatchedAt)
	return p.app.Save(record)
}

func (p *PocketBase) ListActiveOffersByEvent(_ context.Context, eventID string) ([]*models.BuyerOffer, error) {
	records, err := p.app.FindRecordsByFilter(colOffers,
		"event = {:event} && status = 'active'",
		"created", 0, 0,
		dbx.Params{"event": eventID})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToOffer)
}

func (p *PocketBase) ListOffersByBuyer(_ context.Context, buyerID string, limit int) ([]*models.BuyerOffer, error) {
	records, err := p.app.FindRecordsByFilter(colOffers,
		"buyer = {:buyer}",
		"created", limit, 0,
		dbx.Params{"buyer": buyerID})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToOffer)
}

func (p *PocketBase) ListExpiredActiveOffers(_ context.Context, cutoff time.Time, limit int) ([]*models.BuyerOffer, error) {
	records, err := p.app.FindRecordsByFilter(colOffers,
		"status = 'active' && expires_at < {:cutoff}",
		"expires_at", limit, 0,
		dbx.Params{"cutoff": cutoff.UTC().Format(dateLayout)})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToOffer)
}

// --- Listings ---

func (p *PocketBase) GetListing(_ context.Context, id string) (*models.SellerListing, error) {
	record, err := p.find(colListings, id)
	if err != nil {
		return nil, err
	}
	return recordToListing(record)
}

func (p *PocketBase) SaveListing(_ context.Context, listing *models.SellerListing) error {
	record, err := p.upsert(colListings, listing.ID)
	if err != nil {
		return err
	}
	record.Set("seller", listing.SellerID)
	record.Set("event", listing.EventID)
	record.Set("section", listing.Section)
	record.Set("row", listing.Row)
	record.Set("seats", listing.Seats)
	record.Set("quantity", listing.Quantity)
	record.Set("asking_price", decimalString(listing.AskingPrice))
	record.Set("minimum_acceptable_price", decimalString(listing.MinimumAcceptablePrice))
	record.Set("is_live", listing.IsLive)
	setOptionalTime(record, "go_live_at", listing.GoLiveAt)
	record.Set("auto_sell", autoSellJSON(listing.AutoSell))
	record.Set("status", string(listing.Status))
	record.Set("delivery_method", string(listing.DeliveryMethod))
	record.Set("delivery_details", listing.DeliveryDetails)
	record.Set("view_count", listing.ViewCount)
	record.Set("offer_count", listing.OfferCount)
	record.Set("matched_offer", listing.MatchedOfferID)
	return p.app.Save(record)
}

func (p *PocketBase) ListLiveListingsByEvent(_ context.Context, eventID string) ([]*models.SellerListing, error) {
	records, err := p.app.FindRecordsByFilter(colListings,
		"event = {:event} && status = 'active' && is_live = true",
		"created", 0, 0,
		dbx.Params{"event": eventID})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToListing)
}

func (p *PocketBase) ListListingsBySeller(_ context.Context, sellerID string, limit int) ([]*models.SellerListing, error) {
	records, err := p.app.FindRecordsByFilter(colListings,
		"seller = {:seller}",
		"created", limit, 0,
		dbx.Params{"seller": sellerID})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToListing)
}

func (p *PocketBase) ListAutoSellDueListings(_ context.Context, cutoff time.Time, limit int) ([]*models.SellerListing, error) {
	// trigger_time is stored inside the auto_sell json payload as an
	// RFC3339 UTC string, so the lexicographic comparison is also a time
	// comparison.
	records, err := p.app.FindRecordsByFilter(colListings,
		"status = 'active' && is_live = true && auto_sell.enabled = true && auto_sell.accept_highest_offer = true && auto_sell.trigger_time <= {:cutoff}",
		"created", limit, 0,
		dbx.Params{"cutoff": cutoff.UTC().Format(time.RFC3339)})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToListing)
}

func (p *PocketBase) ListGoLiveDueListings(_ context.Context, cutoff time.Time, limit int) ([]*models.SellerListing, error) {
	records, err := p.app.FindRecordsByFilter(colListings,
		"status = 'draft' && go_live_at != '' && go_live_at < {:cutoff}",
		"go_live_at", limit, 0,
		dbx.Params{"cutoff": cutoff.UTC().Format(dateLayout)})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToListing)
}

func (p *PocketBase) ListOpenListingsByEvent(_ context.Context, eventID string) ([]*models.SellerListing, error) {
	records, err := p.app.FindRecordsByFilter(colListings,
		"event = {:event} && (status = 'draft' || status = 'active')",
		"created", 0, 0,
		dbx.Params{"event": eventID})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToListing)
}

// --- Transactions ---

func (p *PocketBase) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	record, err := p.find(colTransactions, id)
	if err != nil {
		return nil, err
	}
	return recordToTransaction(record)
}

func (p *PocketBase) SaveTransaction(_ context.Context, txn *models.Transaction) error {
	record, err := p.upsert(colTransactions, txn.ID)
	if err != nil {
		return err
	}
	record.Set("buyer", txn.BuyerID)
	record.Set("seller", txn.SellerID)
	record.Set("offer", txn.OfferID)
	record.Set("listing", txn.ListingID)
	record.Set("event", txn.EventID)
	record.Set("quantity", txn.Quantity)
	record.Set("section", txn.Section)
	record.Set("row", txn.Row)
	record.Set("seats", txn.Seats)
	record.Set("sale_price", txn.SalePrice.String())
	record.Set("seller_fee", txn.SellerFee.String())
	record.Set("seller_payout", txn.SellerPayout.String())
	record.Set("capture_ref", txn.CaptureRef)
	record.Set("payment_status", string(txn.PaymentStatus))
	record.Set("payout_status", string(txn.PayoutStatus))
	record.Set("payout_ref", txn.PayoutRef)
	setOptionalTime(record, "paid_out_at", txn.PaidOutAt)
	record.Set("delivery_status", string(txn.DeliveryStatus))
	setOptionalTime(record, "transferred_at", txn.TransferredAt)
	setOptionalTime(record, "confirmed_at", txn.ConfirmedAt)
	record.Set("escrow_status", string(txn.EscrowStatus))
	record.Set("has_dispute", txn.HasDispute)
	record.Set("dispute_reason", string(txn.DisputeReason))
	record.Set("dispute_resolution", txn.DisputeResolution)
	setOptionalTime(record, "disputed_at", txn.DisputedAt)
	return p.app.Save(record)
}

func (p *PocketBase) FindTransactionByOffer(_ context.Context, offerID string) (*models.Transaction, error) {
	records, err := p.app.FindRecordsByFilter(colTransactions,
		"offer = {:offer}",
		"created", 1, 0,
		dbx.Params{"offer": offerID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, status.NotFound("transaction for offer", offerID)
	}
	return recordToTransaction(records[0])
}

func (p *PocketBase) ListTransactionsByBuyer(_ context.Context, buyerID string, limit int) ([]*models.Transaction, error) {
	records, err := p.app.FindRecordsByFilter(colTransactions,
		"buyer = {:buyer}",
		"created", limit, 0,
		dbx.Params{"buyer": buyerID})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToTransaction)
}

func (p *PocketBase) ListTransactionsBySeller(_ context.Context, sellerID string, limit int) ([]*models.Transaction, error) {
	records, err := p.app.FindRecordsByFilter(colTransactions,
		"seller = {:seller}",
		"created", limit, 0,
		dbx.Params{"seller": sellerID})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToTransaction)
}

func (p *PocketBase) ListSettledTransactionsByEvent(_ context.Context, eventID string) ([]*models.Transaction, error) {
	records, err := p.app.FindRecordsByFilter(colTransactions,
		"event = {:event} && payment_status = 'captured'",
		"created", 0, 0,
		dbx.Params{"event": eventID})
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToTransaction)
}

func (p *PocketBase) ListHeldEscrowTransactions(_ context.Context, limit int) ([]*models.Transaction, error) {
	records, err := p.app.FindRecordsByFilter(colTransactions,
		"escrow_status = 'held'",
		"created", limit, 0, nil)
	if err != nil {
		return nil, err
	}
	return mapRecords(records, recordToTransaction)
}

// --- record mapping ---

func mapRecords[T any](records []*core.Record, convert func(*core.Record) (*T, error)) ([]*T, error) {
	out := make([]*T, 0, len(records))
	for _, r := range records {
		v, err := convert(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func recordToCustomer(r *core.Record) (*models.Customer, error) {
	fee, err := parseOptionalDecimal(r.GetString("fee_percentage"))
	if err != nil {
		return nil, err
	}
	customer := &models.Customer{
		ID:            r.Id,
		Email:         r.GetString("email"),
		Name:          r.GetString("name"),
		Role:          models.Role(r.GetString("role")),
		PasswordHash:  r.GetString("password_hash"),
		Verified:      r.GetBool("verified"),
		PayoutAccount: r.GetString("payout_account"),
		FeePercentage: fee,
		TrustScore:    r.GetFloat("trust_score"),
		CreatedAt:     r.GetDateTime("created").Time(),
	}
	return customer, nil
}

func recordToEvent(r *core.Record) (*models.Event, error) {
	event := &models.Event{
		ID:        r.Id,
		Name:      r.GetString("name"),
		Venue:     r.GetString("venue"),
		StartTime: r.GetDateTime("start_time").Time(),
		Sections:  r.GetStringSlice("sections"),
		Status:    models.EventStatus(r.GetString("status")),
		CreatedAt: r.GetDateTime("created").Time(),
	}
	var stats marketStatsJSON
	if err := r.UnmarshalJSONField("market_stats", &stats); err == nil {
		event.MarketStats = stats.toModel()
	}
	return event, nil
}

func recordToOffer(r *core.Record) (*models.BuyerOffer, error) {
	maxPrice, err := parseDecimal(r.GetString("max_price"))
	if err != nil {
		return nil, err
	}
	suggested, err := parseDecimal(r.GetString("suggested_price"))
	if err != nil {
		return nil, err
	}
	offer := &models.BuyerOffer{
		ID:                    r.Id,
		BuyerID:               r.GetString("buyer"),
		EventID:               r.GetString("event"),
		Sections:              r.GetStringSlice("sections"),
		MaxPrice:              maxPrice,
		Quantity:              r.GetInt("quantity"),
		SuggestedPrice:        suggested,
		AcceptanceProbability: r.GetFloat("acceptance_probability"),
		Hold: models.PaymentHold{
			Reference: r.GetString("hold_ref"),
			Status:    models.HoldStatus(r.GetString("hold_status")),
		},
		Status:           models.OfferStatus(r.GetString("status")),
		ExpiresAt:        r.GetDateTime("expires_at").Time(),
		MatchedListingID: r.GetString("matched_listing"),
		MatchedAt:        optionalTime(r, "matched_at"),
		CreatedAt:        r.GetDateTime("created").Time(),
	}
	return offer, nil
}

func recordToListing(r *core.Record) (*models.SellerListing, error) {
	asking, err := parseOptionalDecimal(r.GetString("asking_price"))
	if err != nil {
		return nil, err
	}
	minimum, err := parseOptionalDecimal(r.GetString("minimum_acceptable_price"))
	if err != nil {
		return nil, err
	}
	listing := &models.SellerListing{
		ID:                     r.Id,
		SellerID:               r.GetString("seller"),
		EventID:                r.GetString("event"),
		Section:                r.GetString("section"),
		Row:                    r.GetString("row"),
		Seats:                  r.GetStringSlice("seats"),
		Quantity:               r.GetInt("quantity"),
		AskingPrice:            asking,
		MinimumAcceptablePrice: minimum,
		IsLive:                 r.GetBool("is_live"),
		GoLiveAt:               optionalTime(r, "go_live_at"),
		Status:                 models.ListingStatus(r.GetString("status")),
		DeliveryMethod:         models.DeliveryMethod(r.GetString("delivery_method")),
		DeliveryDetails:        r.GetString("delivery_details"),
		ViewCount:              r.GetInt("view_count"),
		OfferCount:             r.GetInt("offer_count"),
		MatchedOfferID:         r.GetString("matched_offer"),
		CreatedAt:              r.GetDateTime("created").Time(),
	}
	var autoSell autoSellPayload
	if err := r.UnmarshalJSONField("auto_sell", &autoSell); err == nil {
		listing.AutoSell = autoSell.toModel()
	}
	return listing, nil
}

func recordToTransaction(r *core.Record) (*models.Transaction, error) {
	salePrice, err := parseDecimal(r.GetString("sale_price"))
	if err != nil {
		return nil, err
	}
	fee, err := parseDecimal(r.GetString("seller_fee"))
	if err != nil {
		return nil, err
	}
	payout, err := parseDecimal(r.GetString("seller_payout"))
	if err != nil {
		return nil, err
	}
	txn := &models.Transaction{
		ID:                r.Id,
		BuyerID:           r.GetString("buyer"),
		SellerID:          r.GetString("seller"),
		OfferID:           r.GetString("offer"),
		ListingID:         r.GetString("listing"),
		EventID:           r.GetString("event"),
		Quantity:          r.GetInt("quantity"),
		Section:           r.GetString("section"),
		Row:               r.GetString("row"),
		Seats:             r.GetStringSlice("seats"),
		SalePrice:         salePrice,
		SellerFee:         fee,
		SellerPayout:      payout,
		CaptureRef:        r.GetString("capture_ref"),
		PaymentStatus:     models.PaymentStatus(r.GetString("payment_status")),
		PayoutStatus:      models.PayoutStatus(r.GetString("payout_status")),
		PayoutRef:         r.GetString("payout_ref"),
		PaidOutAt:         optionalTime(r, "paid_out_at"),
		DeliveryStatus:    models.DeliveryStatus(r.GetString("delivery_status")),
		TransferredAt:     optionalTime(r, "transferred_at"),
		ConfirmedAt:       optionalTime(r, "confirmed_at"),
		EscrowStatus:      models.EscrowStatus(r.GetString("escrow_status")),
		HasDispute:        r.GetBool("has_dispute"),
		DisputeReason:     models.DisputeReason(r.GetString("dispute_reason")),
		DisputeResolution: r.GetString("dispute_resolution"),
		DisputedAt:        optionalTime(r, "disputed_at"),
		CreatedAt:         r.GetDateTime("created").Time(),
	}
	return txn, nil
}

// marketStatsJSON keeps decimals as strings in the stored payload.
type marketStatsJSON struct {
	AveragePrice string    `json:"average_price"`
	LowestPrice  string    `json:"lowest_price"`
	HighestPrice string    `json:"highest_price"`
	ListingCount int       `json:"listing_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (m marketStatsJSON) toModel() models.MarketStats {
	avg, _ := parseDecimal(m.AveragePrice)
	low, _ := parseDecimal(m.LowestPrice)
	high, _ := parseDecimal(m.HighestPrice)
	return models.MarketStats{
		AveragePrice: avg,
		LowestPrice:  low,
		HighestPrice: high,
		ListingCount: m.ListingCount,
		UpdatedAt:    m.UpdatedAt,
	}
}

type autoSellPayload struct {
	Enabled            bool   `json:"enabled"`
	TriggerTime        string `json:"trigger_time"`
	AcceptHighestOffer bool   `json:"accept_highest_offer"`
}

func (a autoSellPayload) toModel() models.AutoSell {
	trigger, _ := time.Parse(time.RFC3339, a.TriggerTime)
	return models.AutoSell{
		Enabled:            a.Enabled,
		TriggerTime:        trigger,
		AcceptHighestOffer: a.AcceptHighestOffer,
	}
}

func autoSellJSON(a models.AutoSell) autoSellPayload {
	payload := autoSellPayload{
		Enabled:            a.Enabled,
		AcceptHighestOffer: a.AcceptHighestOffer,
	}
	if !a.TriggerTime.IsZero() {
		payload.TriggerTime = a.TriggerTime.UTC().Format(time.RFC3339)
	}
	return payload
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseOptionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func optionalTime(r *core.Record, field string) *time.Time {
	dt := r.GetDateTime(field)
	if dt.IsZero() {
		return nil
	}
	t := dt.Time()
	return &t
}

func setOptionalTime(r *core.Record, field string, t *time.Time) {
	if t == nil {
		r.Set(field, "")
		return
	}
	r.Set(field, t.UTC())
}
