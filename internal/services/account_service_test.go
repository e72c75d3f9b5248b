package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ticket-resale/internal/status"
	"ticket-resale/internal/store"
	"ticket-resale/models"
)

func newAccountService() (*AccountService, *store.Memory) {
	m := store.NewMemory()
	s := NewAccountService(m)
	s.cost = bcrypt.MinCost
	s.now = func() time.Time { return matchTime }
	return s, m
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	s, _ := newAccountService()

	customer, err := s.Register(ctx, &RegisterRequest{
		Email:    "  Alice@Example.com ",
		Name:     "Alice",
		Password: "correct horse",
		Role:     models.RoleBoth,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", customer.Email, "emails are normalized")
	assert.NotEqual(t, "correct horse", customer.PasswordHash)

	got, err := s.Authenticate(ctx, "ALICE@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, got.ID)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	s, _ := newAccountService()

	_, err := s.Register(ctx, &RegisterRequest{Email: "not-an-email", Password: "longenough", Role: models.RoleBuyer})
	assert.True(t, status.IsValidation(err))

	_, err = s.Register(ctx, &RegisterRequest{Email: "a@b.com", Password: "short", Role: models.RoleBuyer})
	assert.True(t, status.IsValidation(err))

	_, err = s.Register(ctx, &RegisterRequest{Email: "a@b.com", Password: "longenough", Role: "admin"})
	assert.True(t, status.IsValidation(err))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s, _ := newAccountService()

	_, err := s.Register(ctx, &RegisterRequest{Email: "a@b.com", Password: "longenough", Role: models.RoleBuyer})
	require.NoError(t, err)

	_, err = s.Register(ctx, &RegisterRequest{Email: "A@B.com", Password: "longenough", Role: models.RoleSeller})
	assert.True(t, status.IsConflict(err), "email uniqueness is case-insensitive")
}

func TestAuthenticate_UniformFailure(t *testing.T) {
	ctx := context.Background()
	s, _ := newAccountService()

	_, err := s.Register(ctx, &RegisterRequest{Email: "a@b.com", Password: "longenough", Role: models.RoleBuyer})
	require.NoError(t, err)

	_, wrongPassword := s.Authenticate(ctx, "a@b.com", "nope nope")
	_, unknownEmail := s.Authenticate(ctx, "who@b.com", "longenough")

	assert.True(t, status.IsValidation(wrongPassword))
	assert.True(t, status.IsValidation(unknownEmail))
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error(), "failures must not reveal which part was wrong")
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()
	s, _ := newAccountService()

	customer, err := s.Register(ctx, &RegisterRequest{Email: "a@b.com", Password: "longenough", Role: models.RoleBuyer})
	require.NoError(t, err)

	err = s.UpdatePassword(ctx, customer.ID, "wrong", "even longer one")
	assert.True(t, status.IsValidation(err))

	err = s.UpdatePassword(ctx, customer.ID, "longenough", "tiny")
	assert.True(t, status.IsValidation(err))

	require.NoError(t, s.UpdatePassword(ctx, customer.ID, "longenough", "even longer one"))

	_, err = s.Authenticate(ctx, "a@b.com", "even longer one")
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, "a@b.com", "longenough")
	assert.True(t, status.IsValidation(err))
}

func TestUpdatePayoutAccount(t *testing.T) {
	ctx := context.Background()
	s, m := newAccountService()

	buyer, err := s.Register(ctx, &RegisterRequest{Email: "b@b.com", Password: "longenough", Role: models.RoleBuyer})
	require.NoError(t, err)
	seller, err := s.Register(ctx, &RegisterRequest{Email: "s@b.com", Password: "longenough", Role: models.RoleSeller})
	require.NoError(t, err)

	err = s.UpdatePayoutAccount(ctx, buyer.ID, "acct_1")
	assert.True(t, status.IsBusinessRule(err), "buyer-only accounts have no payouts")

	err = s.UpdatePayoutAccount(ctx, seller.ID, "")
	assert.True(t, status.IsValidation(err))

	require.NoError(t, s.UpdatePayoutAccount(ctx, seller.ID, " acct_1 "))

	got, err := m.GetCustomer(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, "acct_1", got.PayoutAccount)
}

func TestSetFeePercentage(t *testing.T) {
	ctx := context.Background()
	s, m := newAccountService()

	seller, err := s.Register(ctx, &RegisterRequest{Email: "s@b.com", Password: "longenough", Role: models.RoleSeller})
	require.NoError(t, err)

	err = s.SetFeePercentage(ctx, seller.ID, dec(-1))
	assert.True(t, status.IsValidation(err))
	err = s.SetFeePercentage(ctx, seller.ID, dec(101))
	assert.True(t, status.IsValidation(err))

	require.NoError(t, s.SetFeePercentage(ctx, seller.ID, dec(8)))
	got, err := m.GetCustomer(ctx, seller.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FeePercentage)
	assert.True(t, got.FeePercentage.Equal(dec(8)))

	// Zero clears the override back to the platform default.
	require.NoError(t, s.SetFeePercentage(ctx, seller.ID, decimal.Zero))
	got, err = m.GetCustomer(ctx, seller.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FeePercentage)
}
