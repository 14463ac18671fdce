// Package chain assembles one participant of the ticketing protocol: a
// single sequentially executed chain with its own store, connected to the
// others through asynchronous messages and the hub's broadcast stream.
//
// Exactly one chain is the hub. The hub holds the authoritative catalog,
// ticket registry and marketplace; spokes apply operations optimistically
// to their local copies, forward them to the hub and reconcile through the
// stream, where authoritative state always wins.
//
// Every user operation and every inbound message runs as one step: a staged
// view over the store that either commits atomically or leaves no trace.
// Outbound messages, stream broadcasts and event triggers produced by a
// step are buffered and only released after its commit succeeds.
package chain

import (
	"sync"
	"time"

	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/logger"
	"github.com/pkg/errors"

	"github.com/dueldanov/ticketmesh/internal/hubsync"
	"github.com/dueldanov/ticketmesh/internal/ledger"
	"github.com/dueldanov/ticketmesh/internal/market"
	"github.com/dueldanov/ticketmesh/internal/mint"
	"github.com/dueldanov/ticketmesh/internal/network"
	"github.com/dueldanov/ticketmesh/internal/transfer"
	"github.com/dueldanov/ticketmesh/pkg/model"
	"github.com/dueldanov/ticketmesh/pkg/protocol"
)

// Config identifies a chain and its place in the topology.
type Config struct {
	// ChainID is this chain's id.
	ChainID string
	// ApplicationID distinguishes deployments sharing a chain; it feeds
	// ticket identity derivation.
	ApplicationID string
	// HubChain is the id of the hub. A chain whose ChainID equals HubChain
	// is the hub itself.
	HubChain string
}

// Option configures a Chain.
type Option func(*Chain)

// WithClock overrides the clock used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		c.now = now
	}
}

// Chain is one protocol participant.
type Chain struct {
	*logger.WrappedLogger

	conf  Config
	store kvstore.KVStore
	net   *network.Network
	now   func() time.Time

	market   *market.Market
	mint     *mint.Service
	transfer *transfer.Protocol
	sync     *hubsync.Sync

	// Events are this chain's post-commit notification buses.
	Events *Events

	// mu serializes all processing steps; a chain is single-threaded by
	// construction.
	mu         sync.Mutex
	outbox     []network.Envelope
	broadcasts []network.StreamRecord
	after      []func()
}

// New creates a chain over the given store and registers it on the network.
func New(conf Config, store kvstore.KVStore, net *network.Network, log *logger.Logger, opts ...Option) *Chain {
	c := &Chain{
		WrappedLogger: logger.NewWrappedLogger(log),
		conf:          conf,
		store:         store,
		net:           net,
		now:           time.Now,
		Events:        newEvents(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.market = market.New(c.now)
	c.mint = mint.NewService(conf.ChainID, conf.ApplicationID, c.now)
	c.transfer = transfer.NewProtocol(conf.ChainID, c.IsHub(), c.market, c.queueSend, c.now)
	c.sync = hubsync.New(conf.ChainID)

	net.Register(conf.ChainID, c)

	return c
}

// ID returns the chain's id.
func (c *Chain) ID() string {
	return c.conf.ChainID
}

// IsHub reports whether this chain is the hub.
func (c *Chain) IsHub() bool {
	return c.conf.ChainID == c.conf.HubChain
}

// step runs fn against a staged view and commits it atomically. Messages,
// broadcasts and event triggers queued by fn are released only after the
// commit succeeds.
func (c *Chain) step(fn func(v *ledger.View) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outbox = c.outbox[:0]
	c.broadcasts = c.broadcasts[:0]
	c.after = c.after[:0]

	v := ledger.NewView(c.store)
	if err := fn(v); err != nil {
		v.Abort()
		return err
	}
	if err := v.Commit(); err != nil {
		return err
	}

	for _, env := range c.outbox {
		if err := c.net.Send(env); err != nil {
			c.LogWarnf("failed to send envelope to %s: %s", env.To, err)
		}
	}
	for _, rec := range c.broadcasts {
		c.net.Broadcast(rec)
	}
	for _, fire := range c.after {
		fire()
	}

	return nil
}

// queueSend stages an outbound message for delivery after commit. The
// destination must resolve now; delivery failure of tracked envelopes is
// reported later through a bounce. The identity is the authenticated caller
// the message acts for, empty for chain-internal messages.
func (c *Chain) queueSend(to string, msg protocol.Message, tracked bool, identity string) error {
	if !c.net.Resolves(to) {
		return network.ErrNoRoute
	}

	payload, err := protocol.EncodeMessage(msg)
	if err != nil {
		return err
	}

	c.outbox = append(c.outbox, network.Envelope{
		From:     c.conf.ChainID,
		To:       to,
		Tracked:  tracked,
		Identity: identity,
		Payload:  payload,
	})

	return nil
}

// emit appends a stream record to the hub's persistent stream and stages
// its broadcast. Hub only.
func (c *Chain) emit(v *ledger.View, ev protocol.StreamEvent) error {
	payload, index, err := c.sync.Emit(v, ev)
	if err != nil {
		return err
	}

	c.broadcasts = append(c.broadcasts, network.StreamRecord{
		Source:  c.conf.ChainID,
		Name:    protocol.StreamName,
		Index:   index,
		Payload: payload,
	})

	return nil
}

func (c *Chain) trigger(fire func()) {
	c.after = append(c.after, fire)
}

// notifyHub stages the authoritative-tracking notification a spoke owes the
// hub after committing a custody change locally.
func (c *Chain) notifyHub(ticket *model.Ticket) error {
	return c.queueSend(c.conf.HubChain, &protocol.MintTicketOnHub{Ticket: *ticket}, false, "")
}

// CreateEvent registers a catalog entry with the caller as organizer. On
// the hub the entry becomes authoritative immediately and is broadcast; on
// a spoke it is written optimistically and forwarded to the hub.
func (c *Chain) CreateEvent(organizer string, params mint.EventParams) (*model.Event, error) {
	var created *model.Event
	err := c.step(func(v *ledger.View) error {
		event, err := c.mint.CreateEvent(v, organizer, c.conf.ChainID, params)
		if err != nil {
			return err
		}
		created = event

		if c.IsHub() {
			if err := c.emit(v, &protocol.EventCreated{Event: *event}); err != nil {
				return err
			}
		} else {
			if err := c.queueSend(c.conf.HubChain, &protocol.CreateEventOnHub{Event: *event}, false, organizer); err != nil {
				return err
			}
		}

		c.trigger(func() { c.Events.EventCreated.Trigger(event) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// MintTicket issues a ticket for one of the caller's events. The hub mints
// directly against the authoritative supply counter; a spoke forwards a
// mint request to the hub and returns a nil ticket, the issued record
// arriving later as a custody transfer.
func (c *Chain) MintTicket(minter, eventID, seat string, metadataHash model.BlobHash) (*model.Ticket, error) {
	if !c.IsHub() {
		err := c.step(func(v *ledger.View) error {
			return c.queueSend(c.conf.HubChain, &protocol.MintTicketRequest{
				MinterChain:  c.conf.ChainID,
				Minter:       minter,
				EventID:      eventID,
				Seat:         seat,
				MetadataHash: metadataHash,
			}, false, minter)
		})
		if err != nil {
			return nil, err
		}
		return nil, nil
	}

	var minted *model.Ticket
	err := c.step(func(v *ledger.View) error {
		ticket, err := c.mintOnHub(v, minter, c.conf.ChainID, eventID, seat, metadataHash)
		if err != nil {
			return err
		}
		minted = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// mintOnHub mints a ticket on the hub for a holder residing on holderChain
// and broadcasts the new record. A remote holder additionally gets a
// tracked custody placement message.
func (c *Chain) mintOnHub(v *ledger.View, minter, holderChain, eventID, seat string, metadataHash model.BlobHash) (*model.Ticket, error) {
	ticket, err := c.mint.Mint(v, mint.MintParams{
		Caller:       minter,
		EventID:      eventID,
		Seat:         seat,
		MetadataHash: metadataHash,
		Holder:       minter,
		HolderChain:  holderChain,
		Minter:       minter,
		MinterChain:  holderChain,
	})
	if err != nil {
		return nil, err
	}

	if err := c.emit(v, &protocol.TicketMinted{Ticket: *ticket}); err != nil {
		return nil, err
	}

	// Rebroadcast the event record so subscriber copies of the supply
	// counter converge.
	event, err := v.Event(eventID)
	if err != nil {
		return nil, err
	}
	if err := c.emit(v, &protocol.EventCreated{Event: *event}); err != nil {
		return nil, err
	}

	if ticket.HolderChain != c.conf.ChainID {
		if err := c.queueSend(ticket.HolderChain, &protocol.Transfer{
			Ticket:      *ticket,
			Target:      model.Account{Chain: ticket.HolderChain, Holder: ticket.Holder},
			Seller:      ticket.Holder,
			SellerChain: ticket.HolderChain,
		}, true, ""); err != nil {
			return nil, err
		}
	}

	c.trigger(func() { c.Events.TicketMinted.Trigger(ticket) })
	return ticket, nil
}

// TransferTicket moves a ticket held by caller on this chain to the target
// account. A zero sale price is a gift: no royalty accrues and no sale is
// recorded. A non-zero price settles on the chain that commits the holder
// change.
func (c *Chain) TransferTicket(caller string, ticketID model.TicketID, target model.Account, salePrice uint64) error {
	return c.step(func(v *ledger.View) error {
		ticket, err := v.Ticket(ticketID)
		if err != nil {
			return err
		}
		if !model.SameIdentity(ticket.Holder, caller) || ticket.HolderChain != c.conf.ChainID {
			return transfer.ErrNotHolder
		}
		if held, err := c.holdsLocally(v, ticket); err != nil {
			return err
		} else if !held {
			return ErrTicketInTransit
		}

		outcome, err := c.transfer.Transfer(v, ticket, target, salePrice)
		if err != nil {
			return err
		}
		return c.afterCustodyChange(v, outcome)
	})
}

// ClaimTicket asks a remote chain to release a ticket held there by holder
// and deliver it to the requester on this chain. The claim carries the
// requester as its authenticated identity, so only the holder can claim
// their own ticket this way. A non-zero sale price settles on delivery.
func (c *Chain) ClaimTicket(requester, sourceChain, holder string, ticketID model.TicketID, salePrice uint64) error {
	return c.step(func(v *ledger.View) error {
		return c.transfer.Claim(sourceChain, holder, ticketID, model.Account{
			Chain:  c.conf.ChainID,
			Holder: requester,
		}, salePrice, requester)
	})
}

// CreateListing opens an Active listing for a ticket held by seller. On a
// spoke the listing is optimistic and forwarded to the hub.
func (c *Chain) CreateListing(seller string, ticketID model.TicketID, price uint64) (*model.Listing, error) {
	var created *model.Listing
	err := c.step(func(v *ledger.View) error {
		listing, err := c.market.Create(v, seller, c.conf.ChainID, ticketID, price)
		if err != nil {
			return err
		}
		created = listing

		if c.IsHub() {
			if err := c.emit(v, &protocol.ListingCreated{Listing: *listing}); err != nil {
				return err
			}
		} else {
			if err := c.queueSend(c.conf.HubChain, &protocol.CreateListingOnHub{Listing: *listing}, false, seller); err != nil {
				return err
			}
		}

		c.trigger(func() { c.Events.ListingChanged.Trigger(listing) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CancelListing moves the seller's Active listing to Cancelled.
func (c *Chain) CancelListing(seller string, ticketID model.TicketID) error {
	return c.step(func(v *ledger.View) error {
		listing, err := c.market.Cancel(v, seller, ticketID)
		if err != nil {
			return err
		}

		if c.IsHub() {
			if err := c.emit(v, &protocol.ListingUpdated{Listing: *listing}); err != nil {
				return err
			}
		} else {
			if err := c.queueSend(c.conf.HubChain, &protocol.CancelListingOnHub{
				TicketID:    ticketID,
				Seller:      seller,
				SellerChain: c.conf.ChainID,
			}, false, seller); err != nil {
				return err
			}
		}

		c.trigger(func() { c.Events.ListingChanged.Trigger(listing) })
		return nil
	})
}

// BuyListing purchases an Active listing at its exact price. The hub
// validates against the authoritative listing and starts the custody
// transfer; a spoke marks its optimistic copy Sold and forwards the
// purchase.
func (c *Chain) BuyListing(buyer string, ticketID model.TicketID, price uint64) error {
	return c.step(func(v *ledger.View) error {
		account := model.Account{Chain: c.conf.ChainID, Holder: buyer}

		if c.IsHub() {
			return c.buyOnHub(v, account, ticketID, price)
		}

		listing, err := c.market.MarkSold(v, buyer, ticketID, price)
		switch {
		case err == nil:
			c.trigger(func() { c.Events.ListingChanged.Trigger(listing) })
		case errors.Is(err, ledger.ErrListingNotFound):
			// Not synced yet; the hub's copy decides.
		default:
			return err
		}

		return c.queueSend(c.conf.HubChain, &protocol.BuyListingOnHub{
			TicketID: ticketID,
			Buyer:    account,
			Price:    price,
		}, false, buyer)
	})
}

// buyOnHub validates a purchase against the authoritative listing, marks it
// Sold and routes custody toward the buyer. Marking Sold before any custody
// movement is what serializes competing purchases: the second one observes
// Sold and fails.
func (c *Chain) buyOnHub(v *ledger.View, buyer model.Account, ticketID model.TicketID, price uint64) error {
	listing, err := c.market.MarkSold(v, buyer.Holder, ticketID, price)
	if err != nil {
		return err
	}
	if err := c.emit(v, &protocol.ListingUpdated{Listing: *listing}); err != nil {
		return err
	}
	c.trigger(func() { c.Events.ListingChanged.Trigger(listing) })

	ticket, err := v.Ticket(ticketID)
	if err != nil {
		return err
	}

	if ticket.HolderChain == c.conf.ChainID {
		outcome, err := c.transfer.Transfer(v, ticket, buyer, price)
		if err != nil {
			return err
		}
		return c.afterCustodyChange(v, outcome)
	}

	// Custody is on a spoke; ask it to release the ticket. The hub claims
	// on the holder's behalf, having just validated the sale against the
	// authoritative listing; the spoke re-validates the holder on arrival.
	return c.transfer.Claim(ticket.HolderChain, ticket.Holder, ticketID, buyer, price, ticket.Holder)
}

// SubscribeToHub connects a spoke to the hub: it subscribes to the
// marketplace stream and requests a full snapshot.
func (c *Chain) SubscribeToHub() error {
	if c.IsHub() {
		return ErrHubChain
	}

	c.net.Subscribe(c.conf.HubChain, protocol.StreamName, c.conf.ChainID)

	return c.step(func(v *ledger.View) error {
		return c.queueSend(c.conf.HubChain, &protocol.RequestSync{
			RequesterChain: c.conf.ChainID,
		}, false, "")
	})
}

// holdsLocally reports whether the ticket is present in its holder's owned
// set on this chain, i.e. custody is here and not in transit.
func (c *Chain) holdsLocally(v *ledger.View, ticket *model.Ticket) (bool, error) {
	owned, err := v.OwnedTickets(ticket.Holder)
	if err != nil {
		return false, err
	}
	for _, id := range owned {
		if id == ticket.ID {
			return true, nil
		}
	}
	return false, nil
}

// afterCustodyChange stages the bookkeeping common to every custody
// outcome: stream emission on the hub, hub notification on a spoke, event
// triggers. Spokes notify the hub about every locally committed record;
// the hub's application is an idempotent upsert, so notifications about
// records it already tracks are harmless.
func (c *Chain) afterCustodyChange(v *ledger.View, outcome *transfer.Outcome) error {
	if outcome.Forwarded {
		return nil
	}

	ticket := outcome.Ticket

	if c.IsHub() {
		if err := c.emit(v, &protocol.TicketMinted{Ticket: *ticket}); err != nil {
			return err
		}
		if outcome.CancelledListing != nil {
			if err := c.emit(v, &protocol.ListingUpdated{Listing: *outcome.CancelledListing}); err != nil {
				return err
			}
		}
	} else {
		if err := c.notifyHub(ticket); err != nil {
			return err
		}
	}

	if outcome.Restored {
		c.trigger(func() { c.Events.TicketRestored.Trigger(ticket) })
	} else {
		c.trigger(func() { c.Events.TicketReceived.Trigger(ticket) })
	}
	if outcome.CancelledListing != nil {
		listing := outcome.CancelledListing
		c.trigger(func() { c.Events.ListingChanged.Trigger(listing) })
	}

	return nil
}

// Read API. Reads run against their own view and see only committed state.

// EventRecord returns one catalog entry.
func (c *Chain) EventRecord(eventID string) (*model.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.NewView(c.store).Event(eventID)
}

// EventRecords returns all catalog entries known to this chain.
func (c *Chain) EventRecords() ([]model.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.NewView(c.store).Events()
}

// Ticket returns one ticket record.
func (c *Chain) Ticket(id model.TicketID) (*model.Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.NewView(c.store).Ticket(id)
}

// Tickets returns all ticket records known to this chain.
func (c *Chain) Tickets() ([]model.Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.NewView(c.store).Tickets()
}

// Listing returns one listing.
func (c *Chain) Listing(id model.TicketID) (*model.Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.NewView(c.store).Listing(id)
}

// Listings returns all listings known to this chain.
func (c *Chain) Listings() ([]model.Listing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.NewView(c.store).Listings()
}

// OwnedTickets returns the ids of tickets the holder has custody of on this
// chain.
func (c *Chain) OwnedTickets(holder string) ([]model.TicketID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.NewView(c.store).OwnedTickets(holder)
}

// RoyaltyBalance returns a payee's pending payout on this chain.
func (c *Chain) RoyaltyBalance(payee string) (model.BalanceEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.NewView(c.store).Balance(payee)
}

// TotalRoyalties returns the total royalties ever accrued on this chain.
func (c *Chain) TotalRoyalties() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.NewView(c.store).TotalRoyalties()
}
