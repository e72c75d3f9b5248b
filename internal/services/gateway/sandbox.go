package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sandbox is an in-process Gateway used in development and tests. It keeps
// holds, captures and transfers in memory and honors the same idempotency
// contract as a real provider.
type Sandbox struct {
	mu        sync.Mutex
	holds     map[string]*sandboxHold
	captures  map[string]*Capture  // by idempotency reference
	transfers map[string]*Transfer // by idempotency reference

	// Failure injection for tests. When set, the corresponding call
	// returns the error without any side effect.
	FailAuthorize error
	FailCapture   error
	FailCancel    error
	FailTransfer  error
}

type sandboxHold struct {
	hold      Hold
	captured  bool
	cancelled bool
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		holds:     make(map[string]*sandboxHold),
		captures:  make(map[string]*Capture),
		transfers: make(map[string]*Transfer),
	}
}

func (s *Sandbox) GetProvider() Provider { return ProviderSandbox }

func (s *Sandbox) Authorize(_ context.Context, req *AuthorizeRequest) (*Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAuthorize != nil {
		return nil, s.FailAuthorize
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("authorize: non-positive amount %s", req.Amount)
	}

	hold := Hold{
		Reference:    "hold_" + uuid.NewString(),
		Amount:       req.Amount,
		AuthorizedAt: time.Now().UTC(),
	}
	s.holds[hold.Reference] = &sandboxHold{hold: hold}
	return &hold, nil
}

func (s *Sandbox) Capture(_ context.Context, req *CaptureRequest) (*Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotent replay: a reference that already settled returns the
	// original capture.
	if existing, ok := s.captures[req.Reference]; ok {
		return existing, nil
	}

	if s.FailCapture != nil {
		return nil, s.FailCapture
	}

	h, ok := s.holds[req.HoldRef]
	if !ok {
		return nil, fmt.Errorf("capture: unknown hold %s", req.HoldRef)
	}
	if h.cancelled {
		return nil, fmt.Errorf("capture: hold %s is cancelled", req.HoldRef)
	}
	if h.captured {
		return nil, fmt.Errorf("capture: hold %s already captured under a different reference", req.HoldRef)
	}

	h.captured = true
	capture := &Capture{
		Reference:  "cap_" + uuid.NewString(),
		CapturedAt: time.Now().UTC(),
	}
	s.captures[req.Reference] = capture
	return capture, nil
}

func (s *Sandbox) Cancel(_ context.Context, holdRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCancel != nil {
		return s.FailCancel
	}

	h, ok := s.holds[holdRef]
	if !ok {
		return fmt.Errorf("cancel: unknown hold %s", holdRef)
	}
	if h.captured {
		return fmt.Errorf("cancel: hold %s already captured", holdRef)
	}
	h.cancelled = true
	return nil
}

func (s *Sandbox) Transfer(_ context.Context, req *TransferRequest) (*Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.transfers[req.Reference]; ok {
		return existing, nil
	}

	if s.FailTransfer != nil {
		return nil, s.FailTransfer
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("transfer: non-positive amount %s", req.Amount)
	}

	transfer := &Transfer{
		Reference:     "tr_" + uuid.NewString(),
		TransferredAt: time.Now().UTC(),
	}
	s.transfers[req.Reference] = transfer
	return transfer, nil
}

func (s *Sandbox) Close(_ context.Context) error { return nil }

// CaptureCount reports how many distinct captures were settled. Tests use
// it to assert the no-double-charge property.
func (s *Sandbox) CaptureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.captures)
}

// TransferCount reports how many distinct transfers were issued.
func (s *Sandbox) TransferCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transfers)
}
