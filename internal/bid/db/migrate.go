package db

import (
	"context"
	"fmt"

	"ms-bidding/internal/models"

	"github.com/uptrace/bun"
)

// Migrate creates the bidding schema with bun DDL. Production deployments run
// the SQL migrations under internal/database/migrations instead; this path
// covers local development and the in-memory test databases.
func Migrate(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*models.Gig)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create gigs table: %w", err)
	}

	if _, err := db.NewCreateTable().Model((*models.Bid)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create bids table: %w", err)
	}

	// One non-withdrawn bid per artist per gig, enforced by the store rather
	// than by application-level lookups alone.
	if _, err := db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bids_one_active_per_artist
		 ON bids (gig_id, artist_id) WHERE status != 'WITHDRAWN'`); err != nil {
		return fmt.Errorf("create active-bid index: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_bids_gig_status_amount
		 ON bids (gig_id, status, amount)`); err != nil {
		return fmt.Errorf("create ranking index: %w", err)
	}

	return nil
}
