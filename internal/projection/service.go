package projection

import (
	"context"
	"fmt"

	"ms-bidding/internal/models"
)

type DBLayer interface {
	GetGigByID(ctx context.Context, gigID string) (*models.Gig, error)
	GetActiveBidByArtist(ctx context.Context, gigID, artistID string) (*models.Bid, error)
	GetPendingBidsForGig(ctx context.Context, gigID string) ([]models.Bid, error)
	GetBidsForGig(ctx context.Context, gigID string) ([]models.Bid, error)
	GetBidsByArtist(ctx context.Context, artistID string, status models.BidStatus) ([]models.Bid, error)
	GetGigsByIDs(ctx context.Context, gigIDs []string) (map[string]models.Gig, error)
}

// ProjectionService computes read-side views from ledger and gig state on
// demand. It is never the system of record; slightly stale reads are fine
// because the realtime fan-out pushes fresher state right after any change.
type ProjectionService struct {
	DB DBLayer
}

func NewProjectionService(db DBLayer) *ProjectionService {
	return &ProjectionService{DB: db}
}

// GetArtistBidStatus answers "where do I stand on this gig" for one artist.
func (s *ProjectionService) GetArtistBidStatus(ctx context.Context, gigID, artistID string) (*models.ArtistBidStatus, error) {
	if _, err := s.DB.GetGigByID(ctx, gigID); err != nil {
		return nil, err
	}

	pending, err := s.DB.GetPendingBidsForGig(ctx, gigID)
	if err != nil {
		return nil, fmt.Errorf("lookup pending bids: %w", err)
	}

	status := &models.ArtistBidStatus{}
	if len(pending) > 0 {
		status.CurrentLowest = pending[0].Amount
	}

	mine, err := s.DB.GetActiveBidByArtist(ctx, gigID, artistID)
	if err != nil {
		return nil, fmt.Errorf("lookup artist bid: %w", err)
	}
	if mine == nil {
		return status, nil
	}

	status.HasBid = true
	status.BidID = mine.BidID
	status.Amount = mine.Amount
	if mine.Status == models.BidPending && len(pending) > 0 {
		status.IsLowest = mine.Amount == pending[0].Amount
		status.IsOutbid = mine.Amount > pending[0].Amount
	}

	return status, nil
}

// GetGigBidsView orders a gig's bids the way the client renders them:
// PENDING ascending by amount so index 0 is the current leader, then
// everything else in creation order.
func (s *ProjectionService) GetGigBidsView(ctx context.Context, gigID string) ([]models.Bid, error) {
	if _, err := s.DB.GetGigByID(ctx, gigID); err != nil {
		return nil, err
	}

	pending, err := s.DB.GetPendingBidsForGig(ctx, gigID)
	if err != nil {
		return nil, fmt.Errorf("lookup pending bids: %w", err)
	}
	all, err := s.DB.GetBidsForGig(ctx, gigID)
	if err != nil {
		return nil, fmt.Errorf("lookup gig bids: %w", err)
	}

	view := make([]models.Bid, 0, len(all))
	view = append(view, pending...)
	for _, b := range all {
		if b.Status != models.BidPending {
			view = append(view, b)
		}
	}
	return view, nil
}

// GetMyBids lists an artist's bids across gigs, each pending one annotated
// with whether it has been undercut.
func (s *ProjectionService) GetMyBids(ctx context.Context, artistID string, status models.BidStatus) ([]models.BidWithStatus, error) {
	bids, err := s.DB.GetBidsByArtist(ctx, artistID, status)
	if err != nil {
		return nil, fmt.Errorf("lookup artist bids: %w", err)
	}

	lowestByGig := make(map[string]int64)
	result := make([]models.BidWithStatus, 0, len(bids))
	for _, b := range bids {
		entry := models.BidWithStatus{Bid: b}
		if b.Status == models.BidPending {
			lowest, ok := lowestByGig[b.GigID]
			if !ok {
				pending, err := s.DB.GetPendingBidsForGig(ctx, b.GigID)
				if err != nil {
					return nil, fmt.Errorf("lookup pending bids: %w", err)
				}
				if len(pending) > 0 {
					lowest = pending[0].Amount
				}
				lowestByGig[b.GigID] = lowest
			}
			entry.IsOutbid = lowest > 0 && b.Amount > lowest
		}
		result = append(result, entry)
	}
	return result, nil
}

// GetAcceptedBids lists the artist's won auctions (their upcoming and past
// booked gigs).
func (s *ProjectionService) GetAcceptedBids(ctx context.Context, artistID string) ([]models.BidWithStatus, error) {
	bids, err := s.DB.GetBidsByArtist(ctx, artistID, models.BidAccepted)
	if err != nil {
		return nil, fmt.Errorf("lookup accepted bids: %w", err)
	}

	result := make([]models.BidWithStatus, 0, len(bids))
	for _, b := range bids {
		result = append(result, models.BidWithStatus{Bid: b})
	}
	return result, nil
}

// GetArtistStats backs the artist dashboard: live standing plus booked and
// completed work. Earnings only count gigs that actually happened.
func (s *ProjectionService) GetArtistStats(ctx context.Context, artistID string) (*models.ArtistStats, error) {
	pending, err := s.DB.GetBidsByArtist(ctx, artistID, models.BidPending)
	if err != nil {
		return nil, fmt.Errorf("lookup pending bids: %w", err)
	}
	accepted, err := s.DB.GetBidsByArtist(ctx, artistID, models.BidAccepted)
	if err != nil {
		return nil, fmt.Errorf("lookup accepted bids: %w", err)
	}

	gigIDs := make([]string, 0, len(accepted))
	for _, b := range accepted {
		gigIDs = append(gigIDs, b.GigID)
	}
	gigs, err := s.DB.GetGigsByIDs(ctx, gigIDs)
	if err != nil {
		return nil, fmt.Errorf("lookup gigs: %w", err)
	}

	stats := &models.ArtistStats{ActiveBids: len(pending)}
	for _, b := range accepted {
		gig, ok := gigs[b.GigID]
		if !ok {
			continue
		}
		switch gig.Status {
		case models.GigBooked:
			stats.UpcomingGigs++
		case models.GigCompleted:
			stats.CompletedGigs++
			stats.TotalEarnings += b.Amount
		}
	}
	return stats, nil
}
