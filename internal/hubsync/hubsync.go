// Package hubsync keeps spokes converged on hub-authoritative state. The
// hub appends a stream record for every catalog, ticket and listing
// mutation; spokes subscribe once and thereafter apply records in stream
// order. A joining spoke additionally requests a full snapshot so it does
// not have to replay the whole stream.
//
// Both the snapshot and the per-record application are idempotent upserts
// keyed by entity id: delivery order between a snapshot and concurrently
// arriving stream records is not guaranteed, and applying the same input
// twice must leave state unchanged.
package hubsync

import (
	"github.com/dueldanov/ticketmesh/internal/ledger"
	"github.com/dueldanov/ticketmesh/pkg/model"
	"github.com/dueldanov/ticketmesh/pkg/protocol"
)

// Sync applies hub-originated state to a chain's ledger and builds the
// hub-side snapshot.
type Sync struct {
	chainID string
}

// New creates the sync protocol for one chain.
func New(chainID string) *Sync {
	return &Sync{chainID: chainID}
}

// Emit persists a stream record on the hub's ledger and returns its encoded
// payload and monotonic index for broadcast.
func (s *Sync) Emit(v *ledger.View, ev protocol.StreamEvent) (payload []byte, index uint64, err error) {
	payload, err = protocol.EncodeStreamEvent(ev)
	if err != nil {
		return nil, 0, err
	}

	index, err = v.AppendStream(payload)
	if err != nil {
		return nil, 0, err
	}

	return payload, index, nil
}

// BuildSnapshot assembles the full-state reply to a RequestSync: all
// events, all tickets, all listings.
func (s *Sync) BuildSnapshot(v *ledger.View) (*protocol.InitialStateSync, error) {
	events, err := v.Events()
	if err != nil {
		return nil, err
	}
	tickets, err := v.Tickets()
	if err != nil {
		return nil, err
	}
	listings, err := v.Listings()
	if err != nil {
		return nil, err
	}

	return &protocol.InitialStateSync{
		Events:   events,
		Tickets:  tickets,
		Listings: listings,
	}, nil
}

// ApplySnapshot upserts every entity of a snapshot. Overlap with
// previously streamed data is harmless.
func (s *Sync) ApplySnapshot(v *ledger.View, snapshot *protocol.InitialStateSync) error {
	for i := range snapshot.Events {
		if err := s.applyEvent(v, &snapshot.Events[i]); err != nil {
			return err
		}
	}
	for i := range snapshot.Tickets {
		if err := s.applyTicket(v, &snapshot.Tickets[i]); err != nil {
			return err
		}
	}
	for i := range snapshot.Listings {
		if err := s.applyListing(v, &snapshot.Listings[i]); err != nil {
			return err
		}
	}
	return nil
}

// Apply upserts the entity carried by one stream record.
func (s *Sync) Apply(v *ledger.View, ev protocol.StreamEvent) error {
	switch ev := ev.(type) {
	case *protocol.EventCreated:
		return s.applyEvent(v, &ev.Event)
	case *protocol.TicketMinted:
		return s.applyTicket(v, &ev.Ticket)
	case *protocol.ListingCreated:
		return s.applyListing(v, &ev.Listing)
	case *protocol.ListingUpdated:
		return s.applyListing(v, &ev.Listing)
	default:
		// Closed union; DecodeStreamEvent rejects unknown types before we
		// ever get here.
		return nil
	}
}

func (s *Sync) applyEvent(v *ledger.View, event *model.Event) error {
	return v.SetEvent(event)
}

// applyTicket upserts a ticket record. Authoritative data wins over any
// optimistic local copy; owned-set membership follows the authoritative
// holder, but only for holders residing on this chain.
func (s *Sync) applyTicket(v *ledger.View, ticket *model.Ticket) error {
	existing, err := v.Ticket(ticket.ID)
	if err == nil && !model.SameIdentity(existing.Holder, ticket.Holder) {
		if err := v.RemoveTicket(existing); err != nil {
			return err
		}
	} else if err != nil && err != ledger.ErrTicketNotFound {
		return err
	}

	if ticket.HolderChain == s.chainID {
		return v.AddTicket(ticket)
	}
	return v.SetTicket(ticket)
}

func (s *Sync) applyListing(v *ledger.View, listing *model.Listing) error {
	return v.SetListing(listing)
}
