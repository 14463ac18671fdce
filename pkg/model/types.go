// Package model defines the entities shared between the chain runtime, the
// wire protocol and the storage layer: events, tickets, listings, royalty
// balances and the append-only audit logs attached to tickets.
package model

import "strings"

// MaxBps is the maximum number of basis points for royalty splits.
const MaxBps uint16 = 10_000

// Account names a holder identity together with the chain it resides on.
type Account struct {
	Chain  string `json:"chain"`
	Holder string `json:"holder"`
}

// SameIdentity compares two holder identities. Identity comparison is
// case-insensitive throughout the protocol.
func SameIdentity(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Event is a catalog entry registered by an organizer. Events are created
// once on the hub and mutated only by incrementing MintedTickets.
type Event struct {
	ID             string `json:"id"`
	Organizer      string `json:"organizer"`
	OrganizerChain string `json:"organizer_chain"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Venue          string `json:"venue"`
	StartTime      uint64 `json:"start_time"`
	RoyaltyBps     uint16 `json:"royalty_bps"`
	MaxTickets     uint32 `json:"max_tickets"`
	MintedTickets  uint32 `json:"minted_tickets"`
}

// OwnershipKind tags entries of a ticket's ownership history.
type OwnershipKind string

const (
	OwnershipMinted      OwnershipKind = "minted"
	OwnershipTransferred OwnershipKind = "transferred"
	OwnershipSold        OwnershipKind = "sold"
)

// OwnershipRecord is an append-only ownership history entry.
type OwnershipRecord struct {
	Kind      OwnershipKind `json:"kind"`
	Holder    string        `json:"holder"`
	Chain     string        `json:"chain"`
	Timestamp int64         `json:"timestamp"`
}

// PriceKind tags entries of a ticket's price history.
type PriceKind string

const (
	PriceListed   PriceKind = "listed"
	PriceRelisted PriceKind = "relisted"
	PriceSold     PriceKind = "sold"
)

// PriceRecord is an append-only price history entry.
type PriceRecord struct {
	Kind      PriceKind `json:"kind"`
	Price     uint64    `json:"price"`
	Timestamp int64     `json:"timestamp"`
}

// Ticket is a uniquely identified, non-fungible inventory item. A ticket
// physically resides on exactly one chain (its holder's); the hub keeps an
// additional reference record with the latest known holder.
type Ticket struct {
	ID             TicketID          `json:"id"`
	EventID        string            `json:"event_id"`
	EventName      string            `json:"event_name"`
	Seat           string            `json:"seat"`
	Organizer      string            `json:"organizer"`
	OrganizerChain string            `json:"organizer_chain"`
	Holder         string            `json:"holder"`
	HolderChain    string            `json:"holder_chain"`
	Minter         string            `json:"minter"`
	MinterChain    string            `json:"minter_chain"`
	RoyaltyBps     uint16            `json:"royalty_bps"`
	MetadataHash   BlobHash          `json:"metadata_hash"`
	LastSalePrice  *uint64           `json:"last_sale_price,omitempty"`
	History        []OwnershipRecord `json:"history,omitempty"`
	PriceHistory   []PriceRecord     `json:"price_history,omitempty"`
}

// ListingStatus is the state of a marketplace listing.
type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingCancelled ListingStatus = "cancelled"
	ListingSold      ListingStatus = "sold"
)

// Listing is a marketplace listing for a ticket, keyed by ticket id.
// The authoritative copy lives on the hub; spokes may hold optimistic
// copies pending hub confirmation.
type Listing struct {
	TicketID    TicketID      `json:"ticket_id"`
	Seller      string        `json:"seller"`
	SellerChain string        `json:"seller_chain"`
	Price       uint64        `json:"price"`
	Status      ListingStatus `json:"status"`
}

// BalanceEntry is the pending payout owed to a payee identity. The protocol
// only accrues; withdrawal is outside its scope.
type BalanceEntry struct {
	Pending uint64 `json:"pending"`
}
