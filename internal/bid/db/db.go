package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-bidding/internal/models"

	"github.com/uptrace/bun"
)

// DB is the storage layer for gigs and bids. Callers that mutate bid state
// are expected to hold the per-gig lock; the one multi-row effect (accept)
// additionally runs in a transaction so no partial state is ever readable.
type DB struct {
	Bun *bun.DB
}

// ---------------- GIGS ----------------

func (d *DB) CreateGig(ctx context.Context, gig models.Gig) error {
	_, err := d.Bun.NewInsert().Model(&gig).Exec(ctx)
	return err
}

func (d *DB) GetGigByID(ctx context.Context, gigID string) (*models.Gig, error) {
	var gig models.Gig
	err := d.Bun.NewSelect().
		Model(&gig).
		Where("gig_id = ?", gigID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrGigNotFound
	}
	if err != nil {
		return nil, err
	}
	return &gig, nil
}

// UpdateGigStatus persists a lifecycle transition as a compare-and-swap: the
// row only moves if it is still in the expected state. A gig that changed
// under the caller (say an accept booked it first) yields ErrInvalidGigMove
// instead of a stale overwrite. Only the accept transaction ever touches
// accepted_bid_id.
func (d *DB) UpdateGigStatus(ctx context.Context, gigID string, from, to models.GigStatus) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Gig)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("gig_id = ?", gigID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrInvalidGigMove
	}
	return nil
}

// ---------------- BIDS ----------------

func (d *DB) CreateBid(ctx context.Context, bid models.Bid) error {
	_, err := d.Bun.NewInsert().Model(&bid).Exec(ctx)
	return err
}

func (d *DB) GetBidByID(ctx context.Context, bidID string) (*models.Bid, error) {
	var bid models.Bid
	err := d.Bun.NewSelect().
		Model(&bid).
		Where("bid_id = ?", bidID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBidNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// GetActiveBidByArtist returns the artist's non-withdrawn bid on a gig, or
// nil when there is none. Withdrawn bids don't count: the artist may re-enter.
func (d *DB) GetActiveBidByArtist(ctx context.Context, gigID, artistID string) (*models.Bid, error) {
	var bid models.Bid
	err := d.Bun.NewSelect().
		Model(&bid).
		Where("gig_id = ?", gigID).
		Where("artist_id = ?", artistID).
		Where("status != ?", models.BidWithdrawn).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// GetPendingBidsForGig returns PENDING bids ascending by amount, so index 0
// is the current lowest.
func (d *DB) GetPendingBidsForGig(ctx context.Context, gigID string) ([]models.Bid, error) {
	var bids []models.Bid
	err := d.Bun.NewSelect().
		Model(&bids).
		Where("gig_id = ?", gigID).
		Where("status = ?", models.BidPending).
		Order("amount ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bids, nil
}

// GetBidsForGig returns every bid on a gig regardless of status, in creation
// order. The projection layer does the price ranking.
func (d *DB) GetBidsForGig(ctx context.Context, gigID string) ([]models.Bid, error) {
	var bids []models.Bid
	err := d.Bun.NewSelect().
		Model(&bids).
		Where("gig_id = ?", gigID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bids, nil
}

// GetBidsByArtist returns an artist's bids across gigs, newest first. An
// empty status filters nothing.
func (d *DB) GetBidsByArtist(ctx context.Context, artistID string, status models.BidStatus) ([]models.Bid, error) {
	q := d.Bun.NewSelect().
		Model((*models.Bid)(nil)).
		Where("artist_id = ?", artistID).
		Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var bids []models.Bid
	if err := q.Model(&bids).Scan(ctx); err != nil {
		return nil, err
	}
	return bids, nil
}

// UpdateBidAmount lowers a bid in place.
func (d *DB) UpdateBidAmount(ctx context.Context, bidID string, amount int64) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Bid)(nil)).
		Set("amount = ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("bid_id = ?", bidID).
		Exec(ctx)
	return err
}

// UpdateBidStatus flips a single bid's status.
func (d *DB) UpdateBidStatus(ctx context.Context, bidID string, status models.BidStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Bid)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("bid_id = ?", bidID).
		Exec(ctx)
	return err
}

// GetGigsByIDs fetches gigs keyed by id, for joining projections in memory.
func (d *DB) GetGigsByIDs(ctx context.Context, gigIDs []string) (map[string]models.Gig, error) {
	result := make(map[string]models.Gig, len(gigIDs))
	if len(gigIDs) == 0 {
		return result, nil
	}

	var gigs []models.Gig
	err := d.Bun.NewSelect().
		Model(&gigs).
		Where("gig_id IN (?)", bun.In(gigIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, gig := range gigs {
		result[gig.GigID] = gig
	}
	return result, nil
}

// ---------------- ACCEPT (atomic) ----------------

// AcceptResult reports what the accept transaction changed, so the caller can
// notify the winner and every displaced bidder.
type AcceptResult struct {
	Winner models.Bid
	Losers []models.Bid
	Gig    models.Gig
}

// AcceptBidTx books the gig in one transaction: the chosen bid becomes
// ACCEPTED, every other PENDING bid on the gig becomes REJECTED, and the gig
// flips to BOOKED with its accepted bid reference. Any failure rolls the
// whole thing back.
func (d *DB) AcceptBidTx(ctx context.Context, gigID, bidID string) (*AcceptResult, error) {
	var result AcceptResult

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var gig models.Gig
		if err := tx.NewSelect().Model(&gig).Where("gig_id = ?", gigID).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrGigNotFound
			}
			return err
		}
		if gig.Status != models.GigLive {
			return models.ErrGigNotLive
		}

		var winner models.Bid
		if err := tx.NewSelect().Model(&winner).Where("bid_id = ?", bidID).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrBidNotFound
			}
			return err
		}
		if winner.GigID != gigID {
			return models.ErrBidNotFound
		}
		if winner.Status != models.BidPending {
			return models.ErrBidNotPending
		}

		now := time.Now()

		var losers []models.Bid
		err := tx.NewSelect().
			Model(&losers).
			Where("gig_id = ?", gigID).
			Where("status = ?", models.BidPending).
			Where("bid_id != ?", bidID).
			Order("amount ASC").
			Scan(ctx)
		if err != nil {
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*models.Bid)(nil)).
			Set("status = ?", models.BidAccepted).
			Set("updated_at = ?", now).
			Where("bid_id = ?", bidID).
			Exec(ctx); err != nil {
			return fmt.Errorf("accept winner: %w", err)
		}

		if len(losers) > 0 {
			if _, err := tx.NewUpdate().
				Model((*models.Bid)(nil)).
				Set("status = ?", models.BidRejected).
				Set("updated_at = ?", now).
				Where("gig_id = ?", gigID).
				Where("status = ?", models.BidPending).
				Where("bid_id != ?", bidID).
				Exec(ctx); err != nil {
				return fmt.Errorf("reject losers: %w", err)
			}
		}

		if _, err := tx.NewUpdate().
			Model((*models.Gig)(nil)).
			Set("status = ?", models.GigBooked).
			Set("accepted_bid_id = ?", bidID).
			Set("updated_at = ?", now).
			Where("gig_id = ?", gigID).
			Exec(ctx); err != nil {
			return fmt.Errorf("book gig: %w", err)
		}

		winner.Status = models.BidAccepted
		winner.UpdatedAt = now
		for i := range losers {
			losers[i].Status = models.BidRejected
			losers[i].UpdatedAt = now
		}
		gig.Status = models.GigBooked
		gig.AcceptedBidID = bidID
		gig.UpdatedAt = now

		result = AcceptResult{Winner: winner, Losers: losers, Gig: gig}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
