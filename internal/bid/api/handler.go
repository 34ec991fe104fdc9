package api

import (
	"encoding/json"
	"net/http"

	"ms-bidding/internal/auction"
	"ms-bidding/internal/auth"
	"ms-bidding/internal/bid"
	"ms-bidding/internal/models"
	"ms-bidding/internal/projection"
	"ms-bidding/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler exposes the /api/v1/bids surface: ledger mutations for artists,
// accept/reject for gig owners, and the read-side projections.
type Handler struct {
	Bids       *bid.BidService
	Auction    *auction.AuctionService
	Projection *projection.ProjectionService
	Validate   *validator.Validate
}

func NewHandler(bids *bid.BidService, auctionSvc *auction.AuctionService, proj *projection.ProjectionService) *Handler {
	return &Handler{
		Bids:       bids,
		Auction:    auctionSvc,
		Projection: proj,
		Validate:   validator.New(),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.PlaceBid)
	r.Get("/my", h.GetMyBids)
	r.Get("/my/stats", h.GetMyStats)
	r.Get("/my/accepted", h.GetAcceptedBids)
	r.Get("/gig/{gigId}", h.GetGigBids)
	r.Get("/gig/{gigId}/lowest", h.GetCurrentLowest)
	r.Get("/gig/{gigId}/my-status", h.GetMyBidStatus)
	r.Get("/{bidId}", h.GetBid)
	r.Put("/{bidId}/amount", h.UpdateBidAmount)
	r.Put("/{bidId}/status", h.UpdateBidStatus)
	r.Delete("/{bidId}", h.WithdrawBid)
}

func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req models.PlaceBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	placed, err := h.Bids.PlaceBid(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, placed)
}

func (h *Handler) GetBid(w http.ResponseWriter, r *http.Request) {
	found, err := h.Bids.GetBid(r.Context(), chi.URLParam(r, "bidId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, found)
}

func (h *Handler) UpdateBidAmount(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBidAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	updated, err := h.Bids.UpdateBidAmount(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "bidId"), req.Amount)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}

// UpdateBidStatus is the gig owner's accept/reject entry point. Accepting
// books the whole gig; rejecting declines just this bid.
func (h *Handler) UpdateBidStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBidStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	clientID := auth.UserID(r.Context())
	bidID := chi.URLParam(r, "bidId")

	switch req.Status {
	case models.BidAccepted:
		result, err := h.Auction.AcceptBid(r.Context(), clientID, bidID)
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"bid": result.Winner,
			"gig": result.Gig,
		})

	case models.BidRejected:
		rejected, err := h.Auction.RejectBid(r.Context(), clientID, bidID)
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, rejected)
	}
}

func (h *Handler) WithdrawBid(w http.ResponseWriter, r *http.Request) {
	err := h.Bids.WithdrawBid(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "bidId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetGigBids(w http.ResponseWriter, r *http.Request) {
	view, err := h.Projection.GetGigBidsView(r.Context(), chi.URLParam(r, "gigId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}

// GetCurrentLowest returns the bid to beat, or null when the gig has no
// pending bids and the budget ceiling applies.
func (h *Handler) GetCurrentLowest(w http.ResponseWriter, r *http.Request) {
	lowest, err := h.Bids.CurrentLowest(r.Context(), chi.URLParam(r, "gigId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"lowest": lowest})
}

func (h *Handler) GetMyBidStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Projection.GetArtistBidStatus(r.Context(), chi.URLParam(r, "gigId"), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) GetMyBids(w http.ResponseWriter, r *http.Request) {
	status := models.BidStatus(r.URL.Query().Get("status"))
	if status != "" && !models.ValidBidStatus(status) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorBody{Code: "INVALID_REQUEST", Message: "unknown bid status filter"})
		return
	}

	bids, err := h.Projection.GetMyBids(r.Context(), auth.UserID(r.Context()), status)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, bids)
}

func (h *Handler) GetMyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Projection.GetArtistStats(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetAcceptedBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.Projection.GetAcceptedBids(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, bids)
}
