package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleBoth   Role = "both"
)

// Customer is a marketplace account. PasswordHash is produced by the
// account service's explicit hashing step, never by a persistence hook.
type Customer struct {
	ID            string           `json:"id"`
	Email         string           `json:"email"`
	Name          string           `json:"name"`
	Role          Role             `json:"role"`
	PasswordHash  string           `json:"-"`
	Verified      bool             `json:"verified"`
	PayoutAccount string           `json:"payout_account,omitempty"`
	FeePercentage *decimal.Decimal `json:"fee_percentage,omitempty"` // seller fee override; nil = platform default
	TrustScore    float64          `json:"trust_score"`              // populated externally; no scoring logic here
	CreatedAt     time.Time        `json:"created_at"`
}

func (c *Customer) CanSell() bool {
	return c.Role == RoleSeller || c.Role == RoleBoth
}

func (c *Customer) CanBuy() bool {
	return c.Role == RoleBuyer || c.Role == RoleBoth
}
