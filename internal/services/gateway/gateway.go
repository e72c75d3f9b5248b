// Package gateway abstracts the payment provider behind the four
// primitives the settlement core needs: authorize, capture, cancel and
// transfer. Every mutating call carries a caller-supplied idempotency
// reference so a timed-out request can be retried without double-charging
// or double-paying.
package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies a gateway implementation.
type Provider string

const (
	ProviderSandbox Provider = "sandbox"
	ProviderREST    Provider = "rest"
)

// AuthorizeRequest places a hold on the buyer's payment method.
type AuthorizeRequest struct {
	CustomerID string            `json:"customer_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency"`
	Reference  string            `json:"reference"` // idempotency key
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Hold references an authorization at the provider.
type Hold struct {
	Reference    string          `json:"reference"`
	Amount       decimal.Decimal `json:"amount"`
	AuthorizedAt time.Time       `json:"authorized_at"`
}

// CaptureRequest settles a previously authorized hold.
type CaptureRequest struct {
	HoldRef   string `json:"hold_ref"`
	Reference string `json:"reference"` // idempotency key
}

// Capture references a settled charge at the provider.
type Capture struct {
	Reference  string    `json:"reference"`
	CapturedAt time.Time `json:"captured_at"`
}

// TransferRequest moves funds to a connected account (seller payout or
// buyer refund).
type TransferRequest struct {
	DestinationAccount string            `json:"destination_account"`
	Amount             decimal.Decimal   `json:"amount"`
	Currency           string            `json:"currency"`
	Reference          string            `json:"reference"` // idempotency key
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Transfer references a completed transfer at the provider.
type Transfer struct {
	Reference     string    `json:"reference"`
	TransferredAt time.Time `json:"transferred_at"`
}

// Gateway is the payment provider interface. All calls are idempotent
// under the supplied reference: retrying a request with the same reference
// returns the original result instead of repeating the side effect.
type Gateway interface {
	GetProvider() Provider

	Authorize(ctx context.Context, req *AuthorizeRequest) (*Hold, error)

	// Capture settles the hold. A capture reference that was already
	// settled is returned as-is; the same reference must never be charged
	// twice.
	Capture(ctx context.Context, req *CaptureRequest) (*Capture, error)

	// Cancel releases an uncaptured hold. Cancelling an already cancelled
	// hold is a no-op.
	Cancel(ctx context.Context, holdRef string) error

	Transfer(ctx context.Context, req *TransferRequest) (*Transfer, error)

	Close(ctx context.Context) error
}
