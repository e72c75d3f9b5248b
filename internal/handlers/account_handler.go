package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-resale/internal/services"
	"ticket-resale/internal/status"
)

type AccountHandler struct {
	accounts *services.AccountService
}

func NewAccountHandler(accounts *services.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) Register(e *core.RequestEvent) error {
	var req services.RegisterRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	customer, err := h.accounts.Register(e.Request.Context(), &req)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusCreated, customer)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AccountHandler) Login(e *core.RequestEvent) error {
	var req loginRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	customer, err := h.accounts.Authenticate(e.Request.Context(), req.Email, req.Password)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, customer)
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AccountHandler) UpdatePassword(e *core.RequestEvent) error {
	var req updatePasswordRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	if err := h.accounts.UpdatePassword(e.Request.Context(), actorID(e), req.CurrentPassword, req.NewPassword); err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]string{"status": "updated"})
}

type updatePayoutAccountRequest struct {
	PayoutAccount string `json:"payout_account"`
}

func (h *AccountHandler) UpdatePayoutAccount(e *core.RequestEvent) error {
	var req updatePayoutAccountRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	if err := h.accounts.UpdatePayoutAccount(e.Request.Context(), actorID(e), req.PayoutAccount); err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]string{"status": "updated"})
}

type setFeeRequest struct {
	CustomerID    string          `json:"customer_id"`
	FeePercentage decimal.Decimal `json:"fee_percentage"`
}

// SetFeePercentage is an operator endpoint; routing restricts it to
// superusers.
func (h *AccountHandler) SetFeePercentage(e *core.RequestEvent) error {
	var req setFeeRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	if err := h.accounts.SetFeePercentage(e.Request.Context(), req.CustomerID, req.FeePercentage); err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]string{"status": "updated"})
}
