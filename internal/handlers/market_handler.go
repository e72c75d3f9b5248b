package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticket-resale/internal/services"
)

type MarketHandler struct {
	market *services.MarketData
}

func NewMarketHandler(market *services.MarketData) *MarketHandler {
	return &MarketHandler{market: market}
}

// Stats is the public per-event market snapshot.
func (h *MarketHandler) Stats(e *core.RequestEvent) error {
	stats, err := h.market.Stats(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, stats)
}
