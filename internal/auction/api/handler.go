package api

import (
	"context"
	"encoding/json"
	"net/http"

	"ms-bidding/internal/auction"
	"ms-bidding/internal/auth"
	"ms-bidding/internal/models"
	"ms-bidding/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler exposes the gig lifecycle under /api/v1/gigs. Only the auction
// fields live here; gig metadata is the gig service's problem.
type Handler struct {
	Auction  *auction.AuctionService
	Validate *validator.Validate
}

func NewHandler(auctionSvc *auction.AuctionService) *Handler {
	return &Handler{Auction: auctionSvc, Validate: validator.New()}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateGig)
	r.Get("/{gigId}", h.GetGig)
	r.Put("/{gigId}/publish", h.transitionHandler(h.Auction.Publish))
	r.Put("/{gigId}/close", h.transitionHandler(h.Auction.CloseGig))
	r.Put("/{gigId}/cancel", h.transitionHandler(h.Auction.CancelGig))
	r.Put("/{gigId}/complete", h.transitionHandler(h.Auction.CompleteGig))
}

func (h *Handler) CreateGig(w http.ResponseWriter, r *http.Request) {
	var req models.CreateGigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	gig, err := h.Auction.CreateGig(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, gig)
}

func (h *Handler) GetGig(w http.ResponseWriter, r *http.Request) {
	gig, err := h.Auction.GetGig(r.Context(), chi.URLParam(r, "gigId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, gig)
}

func (h *Handler) transitionHandler(fn func(ctx context.Context, clientID, gigID string) (*models.Gig, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gig, err := fn(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "gigId"))
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		utils.WriteJSON(w, http.StatusOK, gig)
	}
}
