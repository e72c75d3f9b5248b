package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-resale/internal/services"
	"ticket-resale/internal/status"
)

type OfferHandler struct {
	offers  *services.OfferService
	pricing *services.PricingAdvisor
}

func NewOfferHandler(offers *services.OfferService, pricing *services.PricingAdvisor) *OfferHandler {
	return &OfferHandler{offers: offers, pricing: pricing}
}

func (h *OfferHandler) CreateOffer(e *core.RequestEvent) error {
	var req services.CreateOfferRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	req.BuyerID = actorID(e)

	offer, err := h.offers.CreateOffer(e.Request.Context(), &req)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusCreated, offer)
}

func (h *OfferHandler) GetOffer(e *core.RequestEvent) error {
	offer, err := h.offers.GetOffer(e.Request.Context(), e.Request.PathValue("offerId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, offer)
}

func (h *OfferHandler) CancelOffer(e *core.RequestEvent) error {
	offer, err := h.offers.CancelOffer(e.Request.Context(), e.Request.PathValue("offerId"), actorID(e))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, offer)
}

func (h *OfferHandler) ListOffers(e *core.RequestEvent) error {
	offers, err := h.offers.ListOffers(e.Request.Context(), actorID(e), queryLimit(e))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, offers)
}

func (h *OfferHandler) ListTransactions(e *core.RequestEvent) error {
	txns, err := h.offers.ListTransactions(e.Request.Context(), actorID(e), queryLimit(e))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, txns)
}

type suggestPriceRequest struct {
	EventID  string          `json:"event_id"`
	Sections []string        `json:"sections"`
	MaxPrice decimal.Decimal `json:"max_price"`
	Quantity int             `json:"quantity"`
}

func (h *OfferHandler) SuggestPrice(e *core.RequestEvent) error {
	var req suggestPriceRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	suggestion, err := h.pricing.SuggestPrice(e.Request.Context(), req.EventID, req.Sections, req.MaxPrice, req.Quantity)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, suggestion)
}

func queryLimit(e *core.RequestEvent) int {
	raw := e.Request.URL.Query().Get("limit")
	if raw == "" {
		return 50
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 50
	}
	return limit
}
