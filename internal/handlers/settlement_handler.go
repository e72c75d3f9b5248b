package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticket-resale/internal/services"
	"ticket-resale/internal/status"
	"ticket-resale/models"
)

// SettlementHandler covers the post-match surface: ticket hand-off,
// delivery confirmation, disputes and payout retries.
type SettlementHandler struct {
	settlement *services.Settlement
}

func NewSettlementHandler(settlement *services.Settlement) *SettlementHandler {
	return &SettlementHandler{settlement: settlement}
}

type transferRequest struct {
	DeliveryDetails string `json:"delivery_details,omitempty"`
}

func (h *SettlementHandler) TransferTickets(e *core.RequestEvent) error {
	var req transferRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	txn, err := h.settlement.TransferTickets(e.Request.Context(), e.Request.PathValue("transactionId"), actorID(e), req.DeliveryDetails)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, txn)
}

func (h *SettlementHandler) ConfirmDelivery(e *core.RequestEvent) error {
	txn, err := h.settlement.ConfirmDelivery(e.Request.Context(), e.Request.PathValue("transactionId"), actorID(e))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, txn)
}

type openDisputeRequest struct {
	Reason models.DisputeReason `json:"reason"`
}

func (h *SettlementHandler) OpenDispute(e *core.RequestEvent) error {
	var req openDisputeRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	txn, err := h.settlement.OpenDispute(e.Request.Context(), e.Request.PathValue("transactionId"), actorID(e), req.Reason)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, txn)
}

type resolveDisputeRequest struct {
	Resolution string `json:"resolution"`
	FavorBuyer bool   `json:"favor_buyer"`
}

// ResolveDispute is an operator endpoint; routing restricts it to
// superusers.
func (h *SettlementHandler) ResolveDispute(e *core.RequestEvent) error {
	var req resolveDisputeRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	txn, err := h.settlement.ResolveDispute(e.Request.Context(), e.Request.PathValue("transactionId"), req.Resolution, req.FavorBuyer)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, txn)
}

func (h *SettlementHandler) RetryPayout(e *core.RequestEvent) error {
	if err := h.settlement.RetryPayout(e.Request.Context(), e.Request.PathValue("transactionId")); err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]string{"status": "retrying"})
}
