package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BidStatus string

const (
	BidPending   BidStatus = "PENDING"
	BidAccepted  BidStatus = "ACCEPTED"
	BidRejected  BidStatus = "REJECTED"
	BidWithdrawn BidStatus = "WITHDRAWN"
)

func ValidBidStatus(s BidStatus) bool {
	switch s {
	case BidPending, BidAccepted, BidRejected, BidWithdrawn:
		return true
	default:
		return false
	}
}

// Bid is one artist's offer on a gig. An artist holds at most one
// non-withdrawn bid per gig; updating lowers the amount in place.
type Bid struct {
	bun.BaseModel `bun:"table:bids"`

	BidID     string    `bun:"bid_id,pk" json:"id"`
	GigID     string    `bun:"gig_id,notnull" json:"gigId"`
	ArtistID  string    `bun:"artist_id,notnull" json:"artistId"`
	Amount    int64     `bun:"amount,notnull" json:"amount"`
	Proposal  string    `bun:"proposal,notnull" json:"proposal"`
	Status    BidStatus `bun:"status,notnull" json:"status"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// BidWithStatus decorates a bid with the caller's standing, for the
// "my bids" listing.
type BidWithStatus struct {
	Bid
	IsOutbid bool `json:"isOutbid"`
}

// ArtistBidStatus is the per-artist projection for one gig.
type ArtistBidStatus struct {
	HasBid        bool   `json:"hasBid"`
	BidID         string `json:"bidId,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	IsOutbid      bool   `json:"isOutbid"`
	IsLowest      bool   `json:"isLowest"`
	CurrentLowest int64  `json:"currentLowest,omitempty"`
}

// ArtistStats backs the artist dashboard.
type ArtistStats struct {
	ActiveBids    int   `json:"activeBids"`
	UpcomingGigs  int   `json:"upcomingGigs"`
	TotalEarnings int64 `json:"totalEarnings"`
	CompletedGigs int   `json:"completedGigs"`
}

type PlaceBidRequest struct {
	GigID    string `json:"gigId" validate:"required"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Proposal string `json:"proposal" validate:"required,min=20"`
}

type UpdateBidAmountRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type UpdateBidStatusRequest struct {
	Status BidStatus `json:"status" validate:"required,oneof=ACCEPTED REJECTED"`
}
