// Package protocol defines the cross-chain wire protocol: the closed set of
// asynchronous messages exchanged between chains and the stream events the
// hub broadcasts to subscribers.
//
// Messages are framed with a version byte, a type byte and a length-prefixed
// JSON payload. Unknown message types fail to decode; role mismatches (a
// hub-only message arriving on a spoke) are a receiver concern, not a codec
// concern.
package protocol

import (
	"github.com/dueldanov/ticketmesh/pkg/model"
)

// StreamName is the name of the hub's marketplace stream.
const StreamName = "marketplace"

// MessageType discriminates the closed message union on the wire.
type MessageType byte

const (
	MessageTransfer MessageType = iota + 1
	MessageClaim
	MessageRequestSync
	MessageInitialStateSync
	MessageCreateEventOnHub
	MessageCreateListingOnHub
	MessageCancelListingOnHub
	MessageBuyListingOnHub
	MessageMintTicketRequest
	MessageMintTicketOnHub
)

// Message is a cross-chain message destined for exactly one chain.
type Message interface {
	MessageType() MessageType
}

// Transfer carries a ticket whose custody is moving to the target chain.
// The embedded ticket already names the new holder; the receiver inserts it
// on delivery or hands it back to the seller on bounce.
type Transfer struct {
	Ticket      model.Ticket  `json:"ticket"`
	Target      model.Account `json:"target"`
	Seller      string        `json:"seller"`
	SellerChain string        `json:"seller_chain"`
	SalePrice   uint64        `json:"sale_price,omitempty"`
}

func (Transfer) MessageType() MessageType { return MessageTransfer }

// Claim asks the source chain to release a ticket the requester believes it
// is entitled to. The source chain re-validates that Holder still holds the
// ticket before transferring, which rejects claims gone stale in flight.
type Claim struct {
	SourceChain string         `json:"source_chain"`
	Holder      string         `json:"holder"`
	TicketID    model.TicketID `json:"ticket_id"`
	Requester   model.Account  `json:"requester"`
	SalePrice   uint64         `json:"sale_price,omitempty"`
}

func (Claim) MessageType() MessageType { return MessageClaim }

// RequestSync asks the hub for a full state snapshot (spoke -> hub).
type RequestSync struct {
	RequesterChain string `json:"requester_chain"`
}

func (RequestSync) MessageType() MessageType { return MessageRequestSync }

// InitialStateSync is the hub's snapshot reply: all events, tickets and
// listings. Application is an idempotent upsert, so overlap with stream
// events already applied is harmless.
type InitialStateSync struct {
	Events   []model.Event   `json:"events"`
	Tickets  []model.Ticket  `json:"tickets"`
	Listings []model.Listing `json:"listings"`
}

func (InitialStateSync) MessageType() MessageType { return MessageInitialStateSync }

// CreateEventOnHub forwards a spoke's catalog creation to the hub.
type CreateEventOnHub struct {
	Event model.Event `json:"event"`
}

func (CreateEventOnHub) MessageType() MessageType { return MessageCreateEventOnHub }

// CreateListingOnHub forwards a spoke's listing creation to the hub.
type CreateListingOnHub struct {
	Listing model.Listing `json:"listing"`
}

func (CreateListingOnHub) MessageType() MessageType { return MessageCreateListingOnHub }

// CancelListingOnHub forwards a spoke's listing cancellation to the hub.
type CancelListingOnHub struct {
	TicketID    model.TicketID `json:"ticket_id"`
	Seller      string         `json:"seller"`
	SellerChain string         `json:"seller_chain"`
}

func (CancelListingOnHub) MessageType() MessageType { return MessageCancelListingOnHub }

// BuyListingOnHub forwards a spoke's purchase to the hub, which validates it
// against the authoritative listing.
type BuyListingOnHub struct {
	TicketID model.TicketID `json:"ticket_id"`
	Buyer    model.Account  `json:"buyer"`
	Price    uint64         `json:"price"`
}

func (BuyListingOnHub) MessageType() MessageType { return MessageBuyListingOnHub }

// MintTicketRequest forwards a spoke's mint to the hub, which performs the
// actual minting against the authoritative supply counter.
type MintTicketRequest struct {
	MinterChain  string         `json:"minter_chain"`
	Minter       string         `json:"minter"`
	EventID      string         `json:"event_id"`
	Seat         string         `json:"seat"`
	MetadataHash model.BlobHash `json:"metadata_hash"`
}

func (MintTicketRequest) MessageType() MessageType { return MessageMintTicketRequest }

// MintTicketOnHub notifies the hub of a ticket record it should track. The
// hub upserts its reference copy and rebroadcasts the record on the stream;
// it is also how the hub learns of holder changes committed on spokes.
type MintTicketOnHub struct {
	Ticket model.Ticket `json:"ticket"`
}

func (MintTicketOnHub) MessageType() MessageType { return MessageMintTicketOnHub }
