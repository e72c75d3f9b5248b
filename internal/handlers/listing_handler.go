package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-resale/internal/services"
	"ticket-resale/internal/status"
)

type ListingHandler struct {
	listings *services.ListingService
}

func NewListingHandler(listings *services.ListingService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

func (h *ListingHandler) CreateListing(e *core.RequestEvent) error {
	var req services.CreateListingRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	req.SellerID = actorID(e)

	listing, err := h.listings.CreateListing(e.Request.Context(), &req)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusCreated, listing)
}

// GetListing also counts the view for the seller's analytics.
func (h *ListingHandler) GetListing(e *core.RequestEvent) error {
	listingID := e.Request.PathValue("listingId")
	listing, err := h.listings.GetListing(e.Request.Context(), listingID)
	if err != nil {
		return respondError(e, err)
	}
	if actorID(e) != listing.SellerID {
		h.listings.RecordView(e.Request.Context(), listingID)
	}
	return e.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) UpdateListing(e *core.RequestEvent) error {
	var req services.UpdateListingRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	listing, err := h.listings.UpdateListing(e.Request.Context(), e.Request.PathValue("listingId"), actorID(e), &req)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) CancelListing(e *core.RequestEvent) error {
	if err := h.listings.CancelListing(e.Request.Context(), e.Request.PathValue("listingId"), actorID(e)); err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *ListingHandler) GoLive(e *core.RequestEvent) error {
	listing, err := h.listings.GoLive(e.Request.Context(), e.Request.PathValue("listingId"), actorID(e))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) ListListings(e *core.RequestEvent) error {
	listings, err := h.listings.ListListings(e.Request.Context(), actorID(e), queryLimit(e))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, listings)
}

func (h *ListingHandler) OffersForEvent(e *core.RequestEvent) error {
	offers, err := h.listings.OffersForEvent(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, offers)
}

type directAcceptRequest struct {
	OfferID   string           `json:"offer_id"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
}

func (h *ListingHandler) DirectAccept(e *core.RequestEvent) error {
	var req directAcceptRequest
	if err := e.BindBody(&req); err != nil {
		return respondError(e, status.Validation("invalid request body: %v", err))
	}
	txn, err := h.listings.DirectAccept(e.Request.Context(), e.Request.PathValue("listingId"), req.OfferID, actorID(e), req.SalePrice)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusCreated, txn)
}

func (h *ListingHandler) Analytics(e *core.RequestEvent) error {
	analytics, err := h.listings.Analytics(e.Request.Context(), actorID(e))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, analytics)
}
