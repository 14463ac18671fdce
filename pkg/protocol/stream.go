package protocol

import "github.com/dueldanov/ticketmesh/pkg/model"

// StreamEventType discriminates the closed stream event union.
type StreamEventType byte

const (
	StreamEventCreated StreamEventType = iota + 1
	StreamTicketMinted
	StreamListingCreated
	StreamListingUpdated
)

// StreamEvent is a broadcast record appended to the hub's marketplace
// stream. Every event carries the full updated record, never a delta, so
// subscribers can always upsert idempotently.
type StreamEvent interface {
	StreamEventType() StreamEventType
}

// EventCreated announces a new catalog entry.
type EventCreated struct {
	Event model.Event `json:"event"`
}

func (EventCreated) StreamEventType() StreamEventType { return StreamEventCreated }

// TicketMinted announces a minted ticket or an ownership update to an
// existing one; in both cases it carries the full current record.
type TicketMinted struct {
	Ticket model.Ticket `json:"ticket"`
}

func (TicketMinted) StreamEventType() StreamEventType { return StreamTicketMinted }

// ListingCreated announces a new Active listing.
type ListingCreated struct {
	Listing model.Listing `json:"listing"`
}

func (ListingCreated) StreamEventType() StreamEventType { return StreamListingCreated }

// ListingUpdated announces a listing status change (cancelled or sold).
type ListingUpdated struct {
	Listing model.Listing `json:"listing"`
}

func (ListingUpdated) StreamEventType() StreamEventType { return StreamListingUpdated }
