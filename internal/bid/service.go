package bid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-bidding/internal/logger"
	"ms-bidding/internal/models"

	"github.com/google/uuid"
)

// minProposalLen is the floor for the free-text pitch on an artist's first
// bid. Amount-only updates never resupply it.
const minProposalLen = 20

// errLedgerCorrupt marks states the monotonicity rules make structurally
// impossible. It is deliberately not a DomainError: clients can't fix it.
var errLedgerCorrupt = errors.New("bid ledger invariant violated")

type DBLayer interface {
	GetGigByID(ctx context.Context, gigID string) (*models.Gig, error)
	GetBidByID(ctx context.Context, bidID string) (*models.Bid, error)
	GetActiveBidByArtist(ctx context.Context, gigID, artistID string) (*models.Bid, error)
	GetPendingBidsForGig(ctx context.Context, gigID string) ([]models.Bid, error)
	CreateBid(ctx context.Context, bid models.Bid) error
	UpdateBidAmount(ctx context.Context, bidID string, amount int64) error
	UpdateBidStatus(ctx context.Context, bidID string, status models.BidStatus) error
}

// Locker is the per-gig serialization point. All bid mutations for one gig
// run inside it; cross-gig traffic is unaffected.
type Locker interface {
	Acquire(ctx context.Context, gigID string) (string, error)
	Release(ctx context.Context, gigID, token string) error
}

type Publisher interface {
	Publish(event models.Event)
}

// BidService is the single source of truth for bids on a gig and the sole
// enforcer of the reverse-auction price rule.
type BidService struct {
	DB     DBLayer
	Lock   Locker
	Events Publisher
	Logger *logger.Logger
}

func NewBidService(db DBLayer, lock Locker, events Publisher, log *logger.Logger) *BidService {
	return &BidService{DB: db, Lock: lock, Events: events, Logger: log}
}

// PlaceBid inserts a new PENDING bid. The first pending bid on a gig is
// bounded by the budget ceiling; every later one must strictly undercut the
// current lowest.
func (s *BidService) PlaceBid(ctx context.Context, artistID string, req models.PlaceBidRequest) (*models.Bid, error) {
	if req.Amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	if len(req.Proposal) < minProposalLen {
		return nil, models.ErrProposalTooShort
	}

	token, err := s.Lock.Acquire(ctx, req.GigID)
	if err != nil {
		return nil, err
	}
	defer s.Lock.Release(ctx, req.GigID, token)

	gig, err := s.DB.GetGigByID(ctx, req.GigID)
	if err != nil {
		return nil, err
	}
	if gig.Status != models.GigLive {
		return nil, models.ErrGigNotLive
	}

	existing, err := s.DB.GetActiveBidByArtist(ctx, req.GigID, artistID)
	if err != nil {
		return nil, fmt.Errorf("lookup active bid: %w", err)
	}
	if existing != nil {
		return nil, models.ErrDuplicateBid
	}

	pending, err := s.DB.GetPendingBidsForGig(ctx, req.GigID)
	if err != nil {
		return nil, fmt.Errorf("lookup pending bids: %w", err)
	}
	if err := s.checkLedger(gig, pending); err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		if req.Amount > gig.BudgetMax {
			return nil, models.ErrBidOverBudget
		}
	} else if req.Amount >= pending[0].Amount {
		return nil, models.ErrBidTooHigh
	}

	now := time.Now()
	bid := models.Bid{
		BidID:     uuid.NewString(),
		GigID:     req.GigID,
		ArtistID:  artistID,
		Amount:    req.Amount,
		Proposal:  req.Proposal,
		Status:    models.BidPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.DB.CreateBid(ctx, bid); err != nil {
		return nil, fmt.Errorf("create bid: %w", err)
	}

	s.Logger.LogBid("PLACE", bid.BidID, fmt.Sprintf("gig %s artist %s amount %d", bid.GigID, artistID, bid.Amount))

	s.publishToGigRooms(models.EventBidPlaced, bid.GigID, &bid)
	if len(pending) > 0 {
		s.publishOutbid(pending[0], bid.Amount)
	}

	return &bid, nil
}

// UpdateBidAmount lowers an outbid artist's amount in place. The current
// lowest bid can't be lowered preemptively.
func (s *BidService) UpdateBidAmount(ctx context.Context, artistID, bidID string, newAmount int64) (*models.Bid, error) {
	if newAmount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	// Resolve the gig before locking; everything is re-read inside the lock.
	ref, err := s.DB.GetBidByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if ref.ArtistID != artistID {
		return nil, models.ErrNotBidOwner
	}

	token, err := s.Lock.Acquire(ctx, ref.GigID)
	if err != nil {
		return nil, err
	}
	defer s.Lock.Release(ctx, ref.GigID, token)

	bid, err := s.DB.GetBidByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.Status != models.BidPending {
		return nil, models.ErrBidNotPending
	}

	gig, err := s.DB.GetGigByID(ctx, bid.GigID)
	if err != nil {
		return nil, err
	}
	if gig.Status != models.GigLive {
		return nil, models.ErrGigNotLive
	}

	pending, err := s.DB.GetPendingBidsForGig(ctx, bid.GigID)
	if err != nil {
		return nil, fmt.Errorf("lookup pending bids: %w", err)
	}
	if err := s.checkLedger(gig, pending); err != nil {
		return nil, err
	}

	if len(pending) > 0 && pending[0].BidID == bidID {
		return nil, models.ErrBidIsLeading
	}
	if len(pending) > 0 && newAmount >= pending[0].Amount {
		return nil, models.ErrBidTooHigh
	}

	if err := s.DB.UpdateBidAmount(ctx, bidID, newAmount); err != nil {
		return nil, fmt.Errorf("update bid amount: %w", err)
	}
	bid.Amount = newAmount
	bid.UpdatedAt = time.Now()

	s.Logger.LogBid("UPDATE", bidID, fmt.Sprintf("gig %s new amount %d", bid.GigID, newAmount))

	s.publishToGigRooms(models.EventBidUpdated, bid.GigID, bid)
	if len(pending) > 0 {
		s.publishOutbid(pending[0], newAmount)
	}

	return bid, nil
}

// WithdrawBid retires a pending, non-leading bid. Withdrawing never creates a
// new lower bid, so nobody gets an outbid notice.
func (s *BidService) WithdrawBid(ctx context.Context, artistID, bidID string) error {
	ref, err := s.DB.GetBidByID(ctx, bidID)
	if err != nil {
		return err
	}
	if ref.ArtistID != artistID {
		return models.ErrNotBidOwner
	}

	token, err := s.Lock.Acquire(ctx, ref.GigID)
	if err != nil {
		return err
	}
	defer s.Lock.Release(ctx, ref.GigID, token)

	bid, err := s.DB.GetBidByID(ctx, bidID)
	if err != nil {
		return err
	}
	if bid.Status != models.BidPending {
		return models.ErrBidNotPending
	}

	gig, err := s.DB.GetGigByID(ctx, bid.GigID)
	if err != nil {
		return err
	}
	if gig.Status != models.GigLive {
		return models.ErrGigNotLive
	}

	pending, err := s.DB.GetPendingBidsForGig(ctx, bid.GigID)
	if err != nil {
		return fmt.Errorf("lookup pending bids: %w", err)
	}
	if len(pending) > 0 && pending[0].BidID == bidID {
		return models.ErrBidIsLeading
	}

	if err := s.DB.UpdateBidStatus(ctx, bidID, models.BidWithdrawn); err != nil {
		return fmt.Errorf("withdraw bid: %w", err)
	}

	s.Logger.LogBid("WITHDRAW", bidID, "gig "+bid.GigID)
	s.publishToGigRooms(models.EventBidStatusUpdated, bid.GigID, nil)

	return nil
}

// GetBid fetches a single bid by id.
func (s *BidService) GetBid(ctx context.Context, bidID string) (*models.Bid, error) {
	return s.DB.GetBidByID(ctx, bidID)
}

// CurrentLowest returns the lowest PENDING bid, or nil when the gig has none.
func (s *BidService) CurrentLowest(ctx context.Context, gigID string) (*models.Bid, error) {
	if _, err := s.DB.GetGigByID(ctx, gigID); err != nil {
		return nil, err
	}
	pending, err := s.DB.GetPendingBidsForGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	lowest := pending[0]
	return &lowest, nil
}

// checkLedger verifies states the price rules make impossible: duplicate
// pending amounts, or an accepted bid reference on a gig that isn't booked.
// Hitting one means a bug, so the operation aborts rather than self-heals.
func (s *BidService) checkLedger(gig *models.Gig, pending []models.Bid) error {
	for i := 1; i < len(pending); i++ {
		if pending[i].Amount == pending[i-1].Amount {
			s.Logger.Invariant("BID", fmt.Sprintf(
				"gig %s has two PENDING bids at amount %d (%s, %s)",
				gig.GigID, pending[i].Amount, pending[i-1].BidID, pending[i].BidID))
			return errLedgerCorrupt
		}
	}
	if gig.AcceptedBidID != "" && gig.Status != models.GigBooked && gig.Status != models.GigCompleted {
		s.Logger.Invariant("BID", fmt.Sprintf(
			"gig %s has acceptedBidId %s but status %s", gig.GigID, gig.AcceptedBidID, gig.Status))
		return errLedgerCorrupt
	}
	return nil
}

func (s *BidService) publishToGigRooms(eventType, gigID string, bid *models.Bid) {
	payload := models.BidEventPayload{GigID: gigID, Bid: bid}
	s.Events.Publish(models.Event{Type: eventType, Room: models.GigRoom(gigID), Data: payload})
	s.Events.Publish(models.Event{Type: eventType, Room: models.GigArtistRoom(gigID), Data: payload})
}

// publishOutbid tells the displaced leader someone went lower.
func (s *BidService) publishOutbid(prevLowest models.Bid, newLowest int64) {
	s.Events.Publish(models.Event{
		Type: models.EventNewLowerBid,
		Room: models.UserRoom(prevLowest.ArtistID),
		Data: models.NewLowerBidPayload{GigID: prevLowest.GigID, LowestAmount: newLowest},
	})
}
