package models

import (
	"time"

	"github.com/uptrace/bun"
)

type GigStatus string

const (
	GigDraft     GigStatus = "DRAFT"
	GigLive      GigStatus = "LIVE"
	GigBooked    GigStatus = "BOOKED"
	GigClosed    GigStatus = "CLOSED"
	GigCompleted GigStatus = "COMPLETED"
	GigCancelled GigStatus = "CANCELLED"
)

// Terminal returns true when no further gig transitions are possible.
func (s GigStatus) Terminal() bool {
	return s == GigClosed || s == GigCompleted || s == GigCancelled
}

// Gig is the auction's parent resource. Only the budget ceiling, status and
// accepted bid reference belong to the bidding core; title, venue, timing and
// the rest of the gig metadata live with the gig collaborator service.
type Gig struct {
	bun.BaseModel `bun:"table:gigs"`

	GigID         string    `bun:"gig_id,pk" json:"id"`
	ClientID      string    `bun:"client_id,notnull" json:"clientId"`
	BudgetMax     int64     `bun:"budget_max,notnull" json:"budgetMax"`
	Status        GigStatus `bun:"status,notnull" json:"status"`
	AcceptedBidID string    `bun:"accepted_bid_id,nullzero" json:"acceptedBidId,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

type CreateGigRequest struct {
	BudgetMax int64 `json:"budgetMax" validate:"required,gt=0"`
}
