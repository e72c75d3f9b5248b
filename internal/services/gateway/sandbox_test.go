package gateway

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sandboxHoldRef(t *testing.T, s *Sandbox) string {
	t.Helper()
	hold, err := s.Authorize(context.Background(), &AuthorizeRequest{
		CustomerID: "c1",
		Amount:     decimal.NewFromInt(200),
		Currency:   "USD",
		Reference:  "auth-1",
	})
	require.NoError(t, err)
	return hold.Reference
}

func TestSandbox_CaptureIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox()
	holdRef := sandboxHoldRef(t, s)

	first, err := s.Capture(ctx, &CaptureRequest{HoldRef: holdRef, Reference: "cap-1"})
	require.NoError(t, err)

	second, err := s.Capture(ctx, &CaptureRequest{HoldRef: holdRef, Reference: "cap-1"})
	require.NoError(t, err)

	assert.Equal(t, first.Reference, second.Reference, "same reference replays the original capture")
	assert.Equal(t, 1, s.CaptureCount())

	// A different reference against the same hold is a genuine double charge.
	_, err = s.Capture(ctx, &CaptureRequest{HoldRef: holdRef, Reference: "cap-2"})
	assert.Error(t, err)
}

func TestSandbox_CancelAfterCapture(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox()
	holdRef := sandboxHoldRef(t, s)

	_, err := s.Capture(ctx, &CaptureRequest{HoldRef: holdRef, Reference: "cap-1"})
	require.NoError(t, err)

	assert.Error(t, s.Cancel(ctx, holdRef))
}

func TestSandbox_CaptureAfterCancel(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox()
	holdRef := sandboxHoldRef(t, s)

	require.NoError(t, s.Cancel(ctx, holdRef))

	_, err := s.Capture(ctx, &CaptureRequest{HoldRef: holdRef, Reference: "cap-1"})
	assert.Error(t, err)
	assert.Equal(t, 0, s.CaptureCount())
}

func TestSandbox_TransferIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox()

	req := &TransferRequest{
		DestinationAccount: "acct_1",
		Amount:             decimal.NewFromInt(180),
		Currency:           "USD",
		Reference:          "payout-1",
	}
	first, err := s.Transfer(ctx, req)
	require.NoError(t, err)
	second, err := s.Transfer(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.Reference, second.Reference)
	assert.Equal(t, 1, s.TransferCount())
}

func TestSandbox_Validation(t *testing.T) {
	ctx := context.Background()
	s := NewSandbox()

	_, err := s.Authorize(ctx, &AuthorizeRequest{Amount: decimal.Zero, Reference: "auth-1"})
	assert.Error(t, err)

	_, err = s.Capture(ctx, &CaptureRequest{HoldRef: "hold_missing", Reference: "cap-1"})
	assert.Error(t, err)

	assert.Error(t, s.Cancel(ctx, "hold_missing"))

	_, err = s.Transfer(ctx, &TransferRequest{Amount: decimal.Zero, Reference: "tr-1"})
	assert.Error(t, err)
}
