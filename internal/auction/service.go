package auction

import (
	"context"
	"fmt"
	"time"

	"ms-bidding/internal/bid"
	"ms-bidding/internal/bid/db"
	"ms-bidding/internal/logger"
	"ms-bidding/internal/models"

	"github.com/google/uuid"
)

type DBLayer interface {
	CreateGig(ctx context.Context, gig models.Gig) error
	GetGigByID(ctx context.Context, gigID string) (*models.Gig, error)
	UpdateGigStatus(ctx context.Context, gigID string, from, to models.GigStatus) error
	GetBidByID(ctx context.Context, bidID string) (*models.Bid, error)
	UpdateBidStatus(ctx context.Context, bidID string, status models.BidStatus) error
	AcceptBidTx(ctx context.Context, gigID, bidID string) (*db.AcceptResult, error)
}

// AuctionService drives the coupled gig/bid status machine. Accepting a bid
// is the one joint transition: winner, losers and gig flip together or not
// at all.
type AuctionService struct {
	DB     DBLayer
	Lock   bid.Locker
	Events bid.Publisher
	Logger *logger.Logger
}

func NewAuctionService(dbl DBLayer, lock bid.Locker, events bid.Publisher, log *logger.Logger) *AuctionService {
	return &AuctionService{DB: dbl, Lock: lock, Events: events, Logger: log}
}

// CreateGig registers a draft auction shell for a client. The rest of the
// gig's metadata lives with the gig service; the bidding core only needs the
// budget ceiling.
func (s *AuctionService) CreateGig(ctx context.Context, clientID string, req models.CreateGigRequest) (*models.Gig, error) {
	if req.BudgetMax <= 0 {
		return nil, models.ErrInvalidAmount
	}

	now := time.Now()
	gig := models.Gig{
		GigID:     uuid.NewString(),
		ClientID:  clientID,
		BudgetMax: req.BudgetMax,
		Status:    models.GigDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.DB.CreateGig(ctx, gig); err != nil {
		return nil, fmt.Errorf("create gig: %w", err)
	}

	s.Logger.LogAuction("CREATE", gig.GigID, fmt.Sprintf("client %s budget %d", clientID, req.BudgetMax))
	return &gig, nil
}

func (s *AuctionService) GetGig(ctx context.Context, gigID string) (*models.Gig, error) {
	return s.DB.GetGigByID(ctx, gigID)
}

// Publish opens a draft gig for bidding.
func (s *AuctionService) Publish(ctx context.Context, clientID, gigID string) (*models.Gig, error) {
	return s.transition(ctx, clientID, gigID, models.GigLive, func(g *models.Gig) bool {
		return g.Status == models.GigDraft
	})
}

// CloseGig ends a live auction without booking anyone. Pending bids stay
// PENDING but become inactionable because the gig is no longer LIVE.
func (s *AuctionService) CloseGig(ctx context.Context, clientID, gigID string) (*models.Gig, error) {
	return s.transition(ctx, clientID, gigID, models.GigClosed, func(g *models.Gig) bool {
		return g.Status == models.GigLive
	})
}

// CancelGig abandons a draft or live gig.
func (s *AuctionService) CancelGig(ctx context.Context, clientID, gigID string) (*models.Gig, error) {
	return s.transition(ctx, clientID, gigID, models.GigCancelled, func(g *models.Gig) bool {
		return g.Status == models.GigDraft || g.Status == models.GigLive
	})
}

// CompleteGig marks a booked gig as performed.
func (s *AuctionService) CompleteGig(ctx context.Context, clientID, gigID string) (*models.Gig, error) {
	return s.transition(ctx, clientID, gigID, models.GigCompleted, func(g *models.Gig) bool {
		return g.Status == models.GigBooked
	})
}

// transition runs a gig lifecycle move under the same per-gig lock as the bid
// mutations, so it can never interleave with an accept. The status write is a
// compare-and-swap on top of that: even a lock bug cannot land a stale
// snapshot over a booked gig.
func (s *AuctionService) transition(ctx context.Context, clientID, gigID string, to models.GigStatus, allowed func(*models.Gig) bool) (*models.Gig, error) {
	token, err := s.Lock.Acquire(ctx, gigID)
	if err != nil {
		return nil, err
	}
	defer s.Lock.Release(ctx, gigID, token)

	gig, err := s.DB.GetGigByID(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if gig.ClientID != clientID {
		return nil, models.ErrNotGigOwner
	}
	if gig.Status.Terminal() || !allowed(gig) {
		return nil, models.ErrInvalidGigMove
	}

	from := gig.Status
	if err := s.DB.UpdateGigStatus(ctx, gigID, from, to); err != nil {
		return nil, err
	}
	gig.Status = to
	gig.UpdatedAt = time.Now()

	s.Logger.LogAuction("TRANSITION", gigID, fmt.Sprintf("%s -> %s", from, to))
	if from == models.GigLive {
		s.publishGigRooms(models.EventBidStatusUpdated, gigID)
	}

	return gig, nil
}

// AcceptBid books the gig on the chosen bid: the winner flips to ACCEPTED,
// every other pending bid to REJECTED, the gig to BOOKED, all in one
// transaction under the gig lock.
func (s *AuctionService) AcceptBid(ctx context.Context, clientID, bidID string) (*db.AcceptResult, error) {
	ref, err := s.DB.GetBidByID(ctx, bidID)
	if err != nil {
		return nil, err
	}

	gig, err := s.DB.GetGigByID(ctx, ref.GigID)
	if err != nil {
		return nil, err
	}
	if gig.ClientID != clientID {
		return nil, models.ErrNotGigOwner
	}

	token, err := s.Lock.Acquire(ctx, ref.GigID)
	if err != nil {
		return nil, err
	}
	defer s.Lock.Release(ctx, ref.GigID, token)

	result, err := s.DB.AcceptBidTx(ctx, ref.GigID, bidID)
	if err != nil {
		return nil, err
	}

	s.Logger.LogAuction("ACCEPT", ref.GigID,
		fmt.Sprintf("bid %s artist %s amount %d, %d bids rejected",
			bidID, result.Winner.ArtistID, result.Winner.Amount, len(result.Losers)))

	winner := result.Winner
	s.Events.Publish(models.Event{
		Type: models.EventBidAccepted,
		Room: models.UserRoom(winner.ArtistID),
		Data: models.BidEventPayload{GigID: winner.GigID, Bid: &winner},
	})
	for i := range result.Losers {
		loser := result.Losers[i]
		s.Events.Publish(models.Event{
			Type: models.EventBidRejected,
			Room: models.UserRoom(loser.ArtistID),
			Data: models.BidEventPayload{GigID: loser.GigID, Bid: &loser},
		})
	}
	s.publishGigRooms(models.EventBidStatusUpdated, ref.GigID)

	return result, nil
}

// RejectBid declines a single pending bid without booking the gig. The
// auction stays live and the ledger re-ranks without it.
func (s *AuctionService) RejectBid(ctx context.Context, clientID, bidID string) (*models.Bid, error) {
	ref, err := s.DB.GetBidByID(ctx, bidID)
	if err != nil {
		return nil, err
	}

	gig, err := s.DB.GetGigByID(ctx, ref.GigID)
	if err != nil {
		return nil, err
	}
	if gig.ClientID != clientID {
		return nil, models.ErrNotGigOwner
	}
	if gig.Status != models.GigLive {
		return nil, models.ErrGigNotLive
	}

	token, err := s.Lock.Acquire(ctx, ref.GigID)
	if err != nil {
		return nil, err
	}
	defer s.Lock.Release(ctx, ref.GigID, token)

	bidRow, err := s.DB.GetBidByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bidRow.Status != models.BidPending {
		return nil, models.ErrBidNotPending
	}

	if err := s.DB.UpdateBidStatus(ctx, bidID, models.BidRejected); err != nil {
		return nil, fmt.Errorf("reject bid: %w", err)
	}
	bidRow.Status = models.BidRejected
	bidRow.UpdatedAt = time.Now()

	s.Logger.LogAuction("REJECT", ref.GigID, "bid "+bidID)

	s.Events.Publish(models.Event{
		Type: models.EventBidRejected,
		Room: models.UserRoom(bidRow.ArtistID),
		Data: models.BidEventPayload{GigID: bidRow.GigID, Bid: bidRow},
	})
	s.publishGigRooms(models.EventBidStatusUpdated, ref.GigID)

	return bidRow, nil
}

func (s *AuctionService) publishGigRooms(eventType, gigID string) {
	payload := models.BidEventPayload{GigID: gigID}
	s.Events.Publish(models.Event{Type: eventType, Room: models.GigRoom(gigID), Data: payload})
	s.Events.Publish(models.Event{Type: eventType, Room: models.GigArtistRoom(gigID), Data: payload})
}
