package models

import (
	"errors"
	"net/http"
)

// DomainError carries a stable machine-readable code alongside the message.
// The API layer maps these 1:1 onto {code, message} JSON bodies.
type DomainError struct {
	Code    string
	Message string
	Status  int
}

func (e *DomainError) Error() string { return e.Message }

var (
	ErrGigNotFound = &DomainError{"GIG_NOT_FOUND", "gig does not exist", http.StatusNotFound}
	ErrBidNotFound = &DomainError{"BID_NOT_FOUND", "bid does not exist", http.StatusNotFound}

	ErrGigNotLive     = &DomainError{"GIG_NOT_LIVE", "gig is not accepting bids", http.StatusConflict}
	ErrDuplicateBid   = &DomainError{"DUPLICATE_BID", "artist already has an active bid on this gig", http.StatusConflict}
	ErrBidNotPending  = &DomainError{"BID_NOT_PENDING", "bid is no longer pending", http.StatusConflict}
	ErrBidIsLeading   = &DomainError{"BID_IS_LEADING", "the current lowest bid cannot be changed or withdrawn", http.StatusConflict}
	ErrInvalidGigMove = &DomainError{"INVALID_TRANSITION", "gig status transition is not allowed", http.StatusConflict}

	ErrBidTooHigh       = &DomainError{"BID_TOO_HIGH", "bid must undercut the current lowest bid", http.StatusUnprocessableEntity}
	ErrBidOverBudget    = &DomainError{"BID_TOO_HIGH", "first bid must not exceed the gig budget", http.StatusUnprocessableEntity}
	ErrInvalidAmount    = &DomainError{"INVALID_AMOUNT", "bid amount must be a positive integer", http.StatusUnprocessableEntity}
	ErrProposalTooShort = &DomainError{"PROPOSAL_TOO_SHORT", "proposal must be at least 20 characters", http.StatusUnprocessableEntity}

	ErrNotBidOwner = &DomainError{"NOT_BID_OWNER", "bid belongs to another artist", http.StatusForbidden}
	ErrNotGigOwner = &DomainError{"NOT_GIG_OWNER", "gig belongs to another client", http.StatusForbidden}

	ErrGigBusy = &DomainError{"GIG_BUSY", "gig is processing another bid, retry shortly", http.StatusServiceUnavailable}
)

// AsDomainError unwraps err down to a DomainError, if one is in the chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
