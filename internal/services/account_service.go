package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"ticket-resale/internal/status"
	"ticket-resale/internal/store"
	"ticket-resale/models"
)

// AccountService manages marketplace accounts. Password hashing is an
// explicit step here, before persistence, so the store never sees a
// plaintext secret and no save-time hook is involved.
type AccountService struct {
	store store.Store
	cost  int
	now   timeFunc
}

func NewAccountService(st store.Store) *AccountService {
	return &AccountService{
		store: st,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}
}

type RegisterRequest struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

const minPasswordLength = 8

func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (*models.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, status.Validation("a valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, status.Validation("password must be at least %d characters", minPasswordLength)
	}
	switch req.Role {
	case models.RoleBuyer, models.RoleSeller, models.RoleBoth:
	default:
		return nil, status.Validation("unknown role %q", req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, err
	}

	var customer *models.Customer
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if existing, err := tx.FindCustomerByEmail(ctx, email); err == nil {
			return status.Conflict("customer", existing.ID, "email %s is already registered", email)
		} else if !status.IsNotFound(err) {
			return err
		}
		customer = &models.Customer{
			ID:           uuid.NewString(),
			Email:        email,
			Name:         strings.TrimSpace(req.Name),
			Role:         req.Role,
			PasswordHash: string(hash),
			CreatedAt:    s.now(),
		}
		return tx.SaveCustomer(ctx, customer)
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// Authenticate verifies credentials and returns the account. Failures
// are reported uniformly to avoid leaking which part was wrong.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.Customer, error) {
	customer, err := s.store.FindCustomerByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if status.IsNotFound(err) {
			return nil, status.Validation("invalid email or password")
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password)) != nil {
		return nil, status.Validation("invalid email or password")
	}
	return customer, nil
}

func (s *AccountService) UpdatePassword(ctx context.Context, customerID, current, next string) error {
	if len(next) < minPasswordLength {
		return status.Validation("password must be at least %d characters", minPasswordLength)
	}
	return s.store.RunInTransaction(ctx, func(tx store.Store) error {
		customer, err := tx.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(current)) != nil {
			return status.Validation("current password does not match")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
		if err != nil {
			return err
		}
		customer.PasswordHash = string(hash)
		return tx.SaveCustomer(ctx, customer)
	})
}

// UpdatePayoutAccount sets the destination the gateway pays seller
// funds into.
func (s *AccountService) UpdatePayoutAccount(ctx context.Context, customerID, account string) error {
	if strings.TrimSpace(account) == "" {
		return status.Validation("payout account is required")
	}
	return s.store.RunInTransaction(ctx, func(tx store.Store) error {
		customer, err := tx.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if !customer.CanSell() {
			return status.BusinessRule("account %s cannot receive payouts", customerID)
		}
		customer.PayoutAccount = strings.TrimSpace(account)
		return tx.SaveCustomer(ctx, customer)
	})
}

// SetFeePercentage configures a per-seller fee override. Zero clears
// the override back to the platform default.
func (s *AccountService) SetFeePercentage(ctx context.Context, customerID string, percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return status.Validation("fee percentage must be between 0 and 100, got %s", percent)
	}
	return s.store.RunInTransaction(ctx, func(tx store.Store) error {
		customer, err := tx.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if percent.IsZero() {
			customer.FeePercentage = nil
		} else {
			customer.FeePercentage = &percent
		}
		return tx.SaveCustomer(ctx, customer)
	})
}

func (s *AccountService) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	return s.store.GetCustomer(ctx, customerID)
}
