package chain

import (
	"github.com/dueldanov/ticketmesh/internal/ledger"
	"github.com/dueldanov/ticketmesh/internal/mint"
	"github.com/dueldanov/ticketmesh/internal/network"
	"github.com/dueldanov/ticketmesh/pkg/protocol"
)

// HandleEnvelope dispatches one inbound message. Handler failures abort the
// step and drop the message; messages addressed to the wrong role are
// dropped as well. There are no error replies on the wire.
func (c *Chain) HandleEnvelope(env network.Envelope) {
	msg, err := protocol.DecodeMessage(env.Payload)
	if err != nil {
		c.LogWarnf("dropping undecodable envelope from %s: %s", env.From, err)
		return
	}

	err = c.step(func(v *ledger.View) error {
		switch msg := msg.(type) {
		case *protocol.Transfer:
			return c.handleTransfer(v, msg, env)
		case *protocol.Claim:
			return c.handleClaim(v, msg, env)
		case *protocol.RequestSync:
			return c.hubOnly(msg, func() error { return c.handleRequestSync(v, msg) })
		case *protocol.InitialStateSync:
			return c.spokeOnly(msg, func() error { return c.sync.ApplySnapshot(v, msg) })
		case *protocol.CreateEventOnHub:
			return c.hubOnly(msg, func() error { return c.handleCreateEvent(v, msg) })
		case *protocol.CreateListingOnHub:
			return c.hubOnly(msg, func() error { return c.handleCreateListing(v, msg) })
		case *protocol.CancelListingOnHub:
			return c.hubOnly(msg, func() error { return c.handleCancelListing(v, msg) })
		case *protocol.BuyListingOnHub:
			return c.hubOnly(msg, func() error { return c.buyOnHub(v, msg.Buyer, msg.TicketID, msg.Price) })
		case *protocol.MintTicketRequest:
			return c.hubOnly(msg, func() error { return c.handleMintRequest(v, msg) })
		case *protocol.MintTicketOnHub:
			return c.hubOnly(msg, func() error { return c.handleTicketTracking(v, msg) })
		default:
			c.LogWarnf("dropping unhandled message type %d from %s", msg.MessageType(), env.From)
			return nil
		}
	})
	if err != nil {
		c.LogWarnf("dropping message type %d from %s: %s", msg.MessageType(), env.From, err)
	}
}

// HandleStreamRecord applies one record of the hub's marketplace stream.
func (c *Chain) HandleStreamRecord(rec network.StreamRecord) {
	if rec.Source != c.conf.HubChain || rec.Name != protocol.StreamName {
		c.LogWarnf("dropping record of unknown stream %s/%s", rec.Source, rec.Name)
		return
	}

	ev, err := protocol.DecodeStreamEvent(rec.Payload)
	if err != nil {
		c.LogWarnf("dropping undecodable stream record %d: %s", rec.Index, err)
		return
	}

	if err := c.step(func(v *ledger.View) error {
		return c.sync.Apply(v, ev)
	}); err != nil {
		c.LogWarnf("dropping stream record %d: %s", rec.Index, err)
	}
}

func (c *Chain) hubOnly(msg protocol.Message, fn func() error) error {
	if !c.IsHub() {
		c.LogWarnf("dropping hub-only message type %d", msg.MessageType())
		return nil
	}
	return fn()
}

func (c *Chain) spokeOnly(msg protocol.Message, fn func() error) error {
	if c.IsHub() {
		c.LogWarnf("dropping spoke-only message type %d", msg.MessageType())
		return nil
	}
	return fn()
}

func (c *Chain) handleTransfer(v *ledger.View, msg *protocol.Transfer, env network.Envelope) error {
	outcome, err := c.transfer.Receive(v, msg, env.Bounced)
	if err != nil {
		return err
	}
	return c.afterCustodyChange(v, outcome)
}

func (c *Chain) handleClaim(v *ledger.View, msg *protocol.Claim, env network.Envelope) error {
	outcome, err := c.transfer.HandleClaim(v, msg, env.Identity)
	if err != nil {
		return err
	}
	return c.afterCustodyChange(v, outcome)
}

func (c *Chain) handleRequestSync(v *ledger.View, msg *protocol.RequestSync) error {
	if err := v.AddSubscriber(msg.RequesterChain); err != nil {
		return err
	}

	snapshot, err := c.sync.BuildSnapshot(v)
	if err != nil {
		return err
	}

	return c.queueSend(msg.RequesterChain, snapshot, false, "")
}

func (c *Chain) handleCreateEvent(v *ledger.View, msg *protocol.CreateEventOnHub) error {
	event, err := c.mint.CreateEvent(v, msg.Event.Organizer, msg.Event.OrganizerChain, mint.EventParams{
		EventID:     msg.Event.ID,
		Name:        msg.Event.Name,
		Description: msg.Event.Description,
		Venue:       msg.Event.Venue,
		StartTime:   msg.Event.StartTime,
		RoyaltyBps:  msg.Event.RoyaltyBps,
		MaxTickets:  msg.Event.MaxTickets,
	})
	if err != nil {
		return err
	}

	if err := c.emit(v, &protocol.EventCreated{Event: *event}); err != nil {
		return err
	}
	c.trigger(func() { c.Events.EventCreated.Trigger(event) })
	return nil
}

func (c *Chain) handleCreateListing(v *ledger.View, msg *protocol.CreateListingOnHub) error {
	listing, err := c.market.Create(v, msg.Listing.Seller, msg.Listing.SellerChain, msg.Listing.TicketID, msg.Listing.Price)
	if err != nil {
		return err
	}

	if err := c.emit(v, &protocol.ListingCreated{Listing: *listing}); err != nil {
		return err
	}
	c.trigger(func() { c.Events.ListingChanged.Trigger(listing) })
	return nil
}

func (c *Chain) handleCancelListing(v *ledger.View, msg *protocol.CancelListingOnHub) error {
	listing, err := c.market.Cancel(v, msg.Seller, msg.TicketID)
	if err != nil {
		return err
	}

	if err := c.emit(v, &protocol.ListingUpdated{Listing: *listing}); err != nil {
		return err
	}
	c.trigger(func() { c.Events.ListingChanged.Trigger(listing) })
	return nil
}

func (c *Chain) handleMintRequest(v *ledger.View, msg *protocol.MintTicketRequest) error {
	_, err := c.mintOnHub(v, msg.Minter, msg.MinterChain, msg.EventID, msg.Seat, msg.MetadataHash)
	return err
}

// handleTicketTracking upserts a ticket record a spoke committed locally
// and rebroadcasts it, so all subscribers converge on the new custody. Any
// Active listing for the ticket is cancelled alongside, matching what the
// committing spoke did.
func (c *Chain) handleTicketTracking(v *ledger.View, msg *protocol.MintTicketOnHub) error {
	if err := c.sync.Apply(v, &protocol.TicketMinted{Ticket: msg.Ticket}); err != nil {
		return err
	}

	cancelled, changed, err := c.market.CancelForTransfer(v, msg.Ticket.ID)
	if err != nil {
		return err
	}
	if changed {
		if err := c.emit(v, &protocol.ListingUpdated{Listing: *cancelled}); err != nil {
			return err
		}
		c.trigger(func() { c.Events.ListingChanged.Trigger(cancelled) })
	}

	return c.emit(v, &protocol.TicketMinted{Ticket: msg.Ticket})
}
