package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentCaptured PaymentStatus = "captured"
	PaymentRefunded PaymentStatus = "refunded"
)

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutScheduled  PayoutStatus = "scheduled"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:    {PayoutScheduled, PayoutProcessing},
	PayoutScheduled:  {PayoutProcessing},
	PayoutProcessing: {PayoutCompleted, PayoutFailed},
	PayoutFailed:     {PayoutProcessing}, // manual or automated retry
}

func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryPending     DeliveryStatus = "pending"
	DeliveryTransferred DeliveryStatus = "transferred"
	DeliveryConfirmed   DeliveryStatus = "confirmed"
	DeliveryDisputed    DeliveryStatus = "disputed"
	DeliveryFailed      DeliveryStatus = "failed"
)

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending:     {DeliveryTransferred, DeliveryDisputed, DeliveryFailed},
	DeliveryTransferred: {DeliveryConfirmed, DeliveryDisputed},
	DeliveryDisputed:    {DeliveryConfirmed, DeliveryFailed},
}

func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	for _, allowed := range deliveryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Disputable reports whether a dispute may still be opened from this state.
func (s DeliveryStatus) Disputable() bool {
	return s == DeliveryPending || s == DeliveryTransferred
}

type EscrowStatus string

const (
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
)

type DisputeReason string

const (
	DisputeTicketsNotReceived DisputeReason = "tickets_not_received"
	DisputeInvalidTickets     DisputeReason = "invalid_tickets"
	DisputeWrongSection       DisputeReason = "wrong_section"
	DisputeWrongQuantity      DisputeReason = "wrong_quantity"
	DisputeEventCancelled     DisputeReason = "event_cancelled"
	DisputeOther              DisputeReason = "other"
)

func ValidDisputeReason(r DisputeReason) bool {
	switch r {
	case DisputeTicketsNotReceived, DisputeInvalidTickets, DisputeWrongSection,
		DisputeWrongQuantity, DisputeEventCancelled, DisputeOther:
		return true
	}
	return false
}

// Transaction is the settlement record pairing one offer with at most one
// listing. Created exactly once per settlement, never deleted.
type Transaction struct {
	ID        string `json:"id"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
	OfferID   string `json:"offer_id"`
	ListingID string `json:"listing_id,omitempty"` // empty for direct-accept without a listing
	EventID   string `json:"event_id"`

	Quantity int      `json:"quantity"`
	Section  string   `json:"section"`
	Row      string   `json:"row,omitempty"`
	Seats    []string `json:"seats,omitempty"`

	SalePrice    decimal.Decimal `json:"sale_price"`
	SellerFee    decimal.Decimal `json:"seller_fee"`
	SellerPayout decimal.Decimal `json:"seller_payout"`

	CaptureRef    string        `json:"capture_ref"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	PayoutStatus PayoutStatus `json:"payout_status"`
	PayoutRef    string       `json:"payout_ref,omitempty"`
	PaidOutAt    *time.Time   `json:"paid_out_at,omitempty"`

	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	TransferredAt  *time.Time     `json:"transferred_at,omitempty"`
	ConfirmedAt    *time.Time     `json:"confirmed_at,omitempty"`

	EscrowStatus EscrowStatus `json:"escrow_status"`

	HasDispute        bool          `json:"has_dispute"`
	DisputeReason     DisputeReason `json:"dispute_reason,omitempty"`
	DisputeResolution string        `json:"dispute_resolution,omitempty"`
	DisputedAt        *time.Time    `json:"disputed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
