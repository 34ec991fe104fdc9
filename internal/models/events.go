package models

// Realtime/stream event types. These are the wire-level names the web client
// switches on, so they stay SCREAMING_SNAKE.
const (
	EventBidPlaced        = "BID_PLACED"
	EventBidUpdated       = "BID_UPDATED"
	EventNewLowerBid      = "NEW_LOWER_BID"
	EventBidAccepted      = "BID_ACCEPTED"
	EventBidRejected      = "BID_REJECTED"
	EventBidStatusUpdated = "BID_STATUS_UPDATED"
)

// Room name helpers. A gig has a public room and an artist variant joined
// from the gig detail page; users have a private room for standing changes.
func GigRoom(gigID string) string       { return "gig:" + gigID }
func GigArtistRoom(gigID string) string { return "gig:" + gigID + ":artist" }
func UserRoom(userID string) string     { return "user:" + userID }

// Event is one standing change addressed to a single room. Mutating
// operations emit them in commit order; delivery is best effort.
type Event struct {
	Type string      `json:"type"`
	Room string      `json:"room"`
	Data interface{} `json:"data,omitempty"`
}

type BidEventPayload struct {
	GigID string `json:"gigId"`
	Bid   *Bid   `json:"bid,omitempty"`
}

type NewLowerBidPayload struct {
	GigID        string `json:"gigId"`
	LowestAmount int64  `json:"lowestAmount"`
}

// GigScoped payloads expose the gig they belong to, so the stream producer
// can key messages and keep per-gig ordering across partitions.
type GigScoped interface {
	GigKey() string
}

func (p BidEventPayload) GigKey() string    { return p.GigID }
func (p NewLowerBidPayload) GigKey() string { return p.GigID }
