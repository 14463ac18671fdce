package chain

import (
	"testing"
	"time"

	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/logger"
	"github.com/stretchr/testify/require"

	"github.com/dueldanov/ticketmesh/internal/ledger"
	"github.com/dueldanov/ticketmesh/internal/market"
	"github.com/dueldanov/ticketmesh/internal/mint"
	"github.com/dueldanov/ticketmesh/internal/network"
	"github.com/dueldanov/ticketmesh/pkg/model"
	"github.com/dueldanov/ticketmesh/pkg/protocol"
)

type testBed struct {
	net    *network.Network
	hub    *Chain
	venue  *Chain
	resale *Chain
}

func newTestChain(net *network.Network, chainID string) *Chain {
	return New(Config{
		ChainID:       chainID,
		ApplicationID: "app",
		HubChain:      "hub",
	}, mapdb.NewMapDB(), net, logger.NewNopLogger(),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
}

func newTestBed(t *testing.T) *testBed {
	t.Helper()

	net := network.New(logger.NewNopLogger())
	tb := &testBed{
		net:    net,
		hub:    newTestChain(net, "hub"),
		venue:  newTestChain(net, "venue"),
		resale: newTestChain(net, "resale"),
	}

	require.NoError(t, tb.venue.SubscribeToHub())
	require.NoError(t, tb.resale.SubscribeToHub())
	net.DeliverAll()

	return tb
}

func concertParams() mint.EventParams {
	return mint.EventParams{
		EventID:    "concert",
		Name:       "Concert",
		RoyaltyBps: 500,
		MaxTickets: 10,
	}
}

// mintConcertTicket creates the concert event and mints one ticket for
// alice on the hub, propagating both to all spokes.
func mintConcertTicket(t *testing.T, tb *testBed) model.TicketID {
	t.Helper()

	_, err := tb.hub.CreateEvent("alice", concertParams())
	require.NoError(t, err)

	ticket, err := tb.hub.MintTicket("alice", "concert", "A-12", model.BlobHash{1})
	require.NoError(t, err)
	tb.net.DeliverAll()

	return ticket.ID
}

func requireOwned(t *testing.T, c *Chain, holder string, ids ...model.TicketID) {
	t.Helper()

	owned, err := c.OwnedTickets(holder)
	require.NoError(t, err)
	require.ElementsMatch(t, ids, owned)
}

func TestEventCreationPropagatesToSpokes(t *testing.T) {
	tb := newTestBed(t)

	_, err := tb.hub.CreateEvent("alice", concertParams())
	require.NoError(t, err)
	tb.net.DeliverAll()

	for _, c := range []*Chain{tb.hub, tb.venue, tb.resale} {
		event, err := c.EventRecord("concert")
		require.NoError(t, err)
		require.Equal(t, "alice", event.Organizer)
	}
}

func TestSpokeEventCreationReachesHub(t *testing.T) {
	tb := newTestBed(t)

	_, err := tb.venue.CreateEvent("victor", mint.EventParams{
		EventID:    "local-show",
		RoyaltyBps: 250,
		MaxTickets: 5,
	})
	require.NoError(t, err)
	tb.net.DeliverAll()

	event, err := tb.hub.EventRecord("local-show")
	require.NoError(t, err)
	require.Equal(t, "victor", event.Organizer)
	require.Equal(t, "venue", event.OrganizerChain)

	// The hub rebroadcasts, so the other spoke converges too.
	_, err = tb.resale.EventRecord("local-show")
	require.NoError(t, err)
}

func TestSpokeMintGetsCustodyFromHub(t *testing.T) {
	tb := newTestBed(t)

	_, err := tb.venue.CreateEvent("alice", concertParams())
	require.NoError(t, err)
	tb.net.DeliverAll()

	forwarded, err := tb.venue.MintTicket("alice", "concert", "GA", model.BlobHash{2})
	require.NoError(t, err)
	require.Nil(t, forwarded)
	tb.net.DeliverAll()

	// The hub minted against the authoritative supply and placed custody on
	// the minter's chain.
	event, err := tb.hub.EventRecord("concert")
	require.NoError(t, err)
	require.EqualValues(t, 1, event.MintedTickets)

	tickets, err := tb.venue.Tickets()
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	requireOwned(t, tb.venue, "alice", tickets[0].ID)

	// The hub keeps a reference record outside any owned set.
	requireOwned(t, tb.hub, "alice")
	_, err = tb.hub.Ticket(tickets[0].ID)
	require.NoError(t, err)
}

func TestPrimarySaleAcrossChains(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	_, err := tb.hub.CreateListing("alice", ticketID, 1000)
	require.NoError(t, err)
	tb.net.DeliverAll()

	require.NoError(t, tb.venue.BuyListing("bob", ticketID, 1000))
	tb.net.DeliverAll()

	// Custody landed with the buyer on its chain.
	requireOwned(t, tb.venue, "bob", ticketID)
	requireOwned(t, tb.hub, "alice")

	// All chains agree on the new holder.
	for _, c := range []*Chain{tb.hub, tb.venue, tb.resale} {
		ticket, err := c.Ticket(ticketID)
		require.NoError(t, err)
		require.Equal(t, "bob", ticket.Holder)
		require.Equal(t, "venue", ticket.HolderChain)

		listing, err := c.Listing(ticketID)
		require.NoError(t, err)
		require.Equal(t, model.ListingSold, listing.Status)
	}

	// Settlement ran exactly once, on the chain that committed the change.
	// Alice was both organizer and seller here.
	balance, err := tb.venue.RoyaltyBalance("alice")
	require.NoError(t, err)
	require.EqualValues(t, 1000, balance.Pending)

	total, err := tb.venue.TotalRoyalties()
	require.NoError(t, err)
	require.EqualValues(t, 50, total)

	hubTotal, err := tb.hub.TotalRoyalties()
	require.NoError(t, err)
	require.Zero(t, hubTotal)

	// Audit trail on the ticket itself.
	ticket, err := tb.venue.Ticket(ticketID)
	require.NoError(t, err)
	require.NotNil(t, ticket.LastSalePrice)
	require.EqualValues(t, 1000, *ticket.LastSalePrice)
	require.Equal(t, model.OwnershipSold, ticket.History[len(ticket.History)-1].Kind)
	require.Equal(t, model.PriceSold, ticket.PriceHistory[len(ticket.PriceHistory)-1].Kind)
}

func TestSecondarySaleRoutesRoyaltyToOrganizer(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	// Primary sale to bob on the venue chain.
	_, err := tb.hub.CreateListing("alice", ticketID, 1000)
	require.NoError(t, err)
	tb.net.DeliverAll()
	require.NoError(t, tb.venue.BuyListing("bob", ticketID, 1000))
	tb.net.DeliverAll()

	// Bob relists from his spoke; carol buys from another spoke.
	_, err = tb.venue.CreateListing("bob", ticketID, 2000)
	require.NoError(t, err)
	tb.net.DeliverAll()

	require.NoError(t, tb.resale.BuyListing("carol", ticketID, 2000))
	tb.net.DeliverAll()

	requireOwned(t, tb.resale, "carol", ticketID)
	requireOwned(t, tb.venue, "bob")

	// floor(2000 * 500 / 10000) = 100 to the organizer, rest to bob.
	aliceBalance, err := tb.resale.RoyaltyBalance("alice")
	require.NoError(t, err)
	require.EqualValues(t, 100, aliceBalance.Pending)

	bobBalance, err := tb.resale.RoyaltyBalance("bob")
	require.NoError(t, err)
	require.EqualValues(t, 1900, bobBalance.Pending)

	ticket, err := tb.hub.Ticket(ticketID)
	require.NoError(t, err)
	require.Equal(t, "carol", ticket.Holder)
	require.Equal(t, "resale", ticket.HolderChain)
}

func TestCompetingPurchasesOnlyFirstWins(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	_, err := tb.hub.CreateListing("alice", ticketID, 1000)
	require.NoError(t, err)
	tb.net.DeliverAll()

	// Both purchases are submitted before either reaches the hub.
	require.NoError(t, tb.venue.BuyListing("bob", ticketID, 1000))
	require.NoError(t, tb.resale.BuyListing("carol", ticketID, 1000))
	tb.net.DeliverAll()

	requireOwned(t, tb.venue, "bob", ticketID)
	requireOwned(t, tb.resale, "carol")

	ticket, err := tb.resale.Ticket(ticketID)
	require.NoError(t, err)
	require.Equal(t, "bob", ticket.Holder)

	// Only one settlement happened anywhere.
	venueTotal, err := tb.venue.TotalRoyalties()
	require.NoError(t, err)
	require.EqualValues(t, 50, venueTotal)
	resaleTotal, err := tb.resale.TotalRoyalties()
	require.NoError(t, err)
	require.Zero(t, resaleTotal)
}

func TestBuyRejectsWrongPriceAndSelfPurchase(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	_, err := tb.hub.CreateListing("alice", ticketID, 1000)
	require.NoError(t, err)
	tb.net.DeliverAll()

	require.ErrorIs(t, tb.hub.BuyListing("bob", ticketID, 999), market.ErrPriceMismatch)
	require.ErrorIs(t, tb.hub.BuyListing("Alice", ticketID, 1000), market.ErrSelfPurchase)
}

func TestGiftTransferCancelsListingWithoutSettlement(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	_, err := tb.hub.CreateListing("alice", ticketID, 1000)
	require.NoError(t, err)
	tb.net.DeliverAll()

	require.NoError(t, tb.hub.TransferTicket("alice", ticketID, model.Account{Chain: "venue", Holder: "bob"}, 0))
	tb.net.DeliverAll()

	requireOwned(t, tb.venue, "bob", ticketID)

	for _, c := range []*Chain{tb.hub, tb.venue, tb.resale} {
		listing, err := c.Listing(ticketID)
		require.NoError(t, err)
		require.Equal(t, model.ListingCancelled, listing.Status)
	}

	ticket, err := tb.venue.Ticket(ticketID)
	require.NoError(t, err)
	require.Nil(t, ticket.LastSalePrice)
	require.Equal(t, model.OwnershipTransferred, ticket.History[len(ticket.History)-1].Kind)

	total, err := tb.venue.TotalRoyalties()
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestBouncedTransferRestoresCustody(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	restored := 0
	tb.hub.Events.TicketRestored.Hook(func(_ *model.Ticket) { restored++ })

	tb.net.Detach("venue")
	require.NoError(t, tb.hub.TransferTicket("alice", ticketID, model.Account{Chain: "venue", Holder: "bob"}, 0))
	tb.net.DeliverAll()

	require.Equal(t, 1, restored)
	requireOwned(t, tb.hub, "alice", ticketID)

	ticket, err := tb.hub.Ticket(ticketID)
	require.NoError(t, err)
	require.Equal(t, "alice", ticket.Holder)
	require.Equal(t, "hub", ticket.HolderChain)
}

func TestInFlightTicketCannotBeMovedAgain(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	// Move custody to bob on the venue chain first.
	require.NoError(t, tb.hub.TransferTicket("alice", ticketID, model.Account{Chain: "venue", Holder: "bob"}, 0))
	tb.net.DeliverAll()

	// Bob sends it onward; before delivery the ticket is in flight and the
	// venue chain no longer holds a record of it.
	require.NoError(t, tb.venue.TransferTicket("bob", ticketID, model.Account{Chain: "resale", Holder: "carol"}, 0))

	err := tb.venue.TransferTicket("bob", ticketID, model.Account{Chain: "resale", Holder: "dave"}, 0)
	require.ErrorIs(t, err, ledger.ErrTicketNotFound)

	tb.net.DeliverAll()
	requireOwned(t, tb.resale, "carol", ticketID)
}

func TestStaleClaimIsRejected(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	// Alice hands the ticket to carol locally before her own claim arrives.
	require.NoError(t, tb.hub.TransferTicket("alice", ticketID, model.Account{Chain: "hub", Holder: "carol"}, 0))

	require.NoError(t, tb.resale.ClaimTicket("alice", "hub", "alice", ticketID, 0))
	tb.net.DeliverAll()

	requireOwned(t, tb.hub, "carol", ticketID)
	requireOwned(t, tb.resale, "alice")
}

func TestUnauthorizedClaimIsDropped(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	// Mallory names the true holder but is not authenticated as her.
	require.NoError(t, tb.resale.ClaimTicket("mallory", "hub", "alice", ticketID, 0))
	tb.net.DeliverAll()

	requireOwned(t, tb.hub, "alice", ticketID)
	requireOwned(t, tb.resale, "mallory")

	ticket, err := tb.hub.Ticket(ticketID)
	require.NoError(t, err)
	require.Equal(t, "alice", ticket.Holder)
}

func TestHolderClaimsOwnTicketAcrossChains(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	// Alice pulls her own ticket from the hub to the venue chain.
	require.NoError(t, tb.venue.ClaimTicket("alice", "hub", "alice", ticketID, 0))
	tb.net.DeliverAll()

	requireOwned(t, tb.venue, "alice", ticketID)
	requireOwned(t, tb.hub, "alice")

	ticket, err := tb.hub.Ticket(ticketID)
	require.NoError(t, err)
	require.Equal(t, "venue", ticket.HolderChain)
}

func TestPricedTransferSettlesOnDelivery(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	// Move custody to bob on the venue chain as a gift first.
	require.NoError(t, tb.hub.TransferTicket("alice", ticketID, model.Account{Chain: "venue", Holder: "bob"}, 0))
	tb.net.DeliverAll()

	// Bob sells directly to carol on the resale chain for 100.
	require.NoError(t, tb.venue.TransferTicket("bob", ticketID, model.Account{Chain: "resale", Holder: "carol"}, 100))
	tb.net.DeliverAll()

	requireOwned(t, tb.resale, "carol", ticketID)

	// floor(100 * 500 / 10000) = 5 to the organizer, 95 to the seller,
	// accrued once on the delivering chain only.
	aliceBalance, err := tb.resale.RoyaltyBalance("alice")
	require.NoError(t, err)
	require.EqualValues(t, 5, aliceBalance.Pending)

	bobBalance, err := tb.resale.RoyaltyBalance("bob")
	require.NoError(t, err)
	require.EqualValues(t, 95, bobBalance.Pending)

	total, err := tb.resale.TotalRoyalties()
	require.NoError(t, err)
	require.EqualValues(t, 5, total)

	venueTotal, err := tb.venue.TotalRoyalties()
	require.NoError(t, err)
	require.Zero(t, venueTotal)

	ticket, err := tb.resale.Ticket(ticketID)
	require.NoError(t, err)
	require.NotNil(t, ticket.LastSalePrice)
	require.EqualValues(t, 100, *ticket.LastSalePrice)
	require.Equal(t, model.OwnershipSold, ticket.History[len(ticket.History)-1].Kind)
}

func TestPricedTransferBounceDoesNotSettle(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	require.NoError(t, tb.hub.TransferTicket("alice", ticketID, model.Account{Chain: "venue", Holder: "bob"}, 0))
	tb.net.DeliverAll()

	tb.net.Detach("resale")
	require.NoError(t, tb.venue.TransferTicket("bob", ticketID, model.Account{Chain: "resale", Holder: "carol"}, 100))
	tb.net.DeliverAll()

	requireOwned(t, tb.venue, "bob", ticketID)

	for _, c := range []*Chain{tb.hub, tb.venue} {
		total, err := c.TotalRoyalties()
		require.NoError(t, err)
		require.Zero(t, total)
	}

	ticket, err := tb.venue.Ticket(ticketID)
	require.NoError(t, err)
	require.Nil(t, ticket.LastSalePrice)
}

func TestLateJoiningSpokeSyncsSnapshot(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	_, err := tb.hub.CreateListing("alice", ticketID, 1000)
	require.NoError(t, err)
	tb.net.DeliverAll()

	late := newTestChain(tb.net, "late")
	require.NoError(t, late.SubscribeToHub())
	tb.net.DeliverAll()

	event, err := late.EventRecord("concert")
	require.NoError(t, err)
	require.Equal(t, "alice", event.Organizer)

	ticket, err := late.Ticket(ticketID)
	require.NoError(t, err)
	require.Equal(t, "alice", ticket.Holder)

	listing, err := late.Listing(ticketID)
	require.NoError(t, err)
	require.Equal(t, model.ListingActive, listing.Status)

	// Custody is not on the late spoke.
	requireOwned(t, late, "alice")
}

func TestCancelListingPropagates(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	_, err := tb.hub.CreateListing("alice", ticketID, 1000)
	require.NoError(t, err)
	tb.net.DeliverAll()

	require.NoError(t, tb.hub.CancelListing("alice", ticketID))
	tb.net.DeliverAll()

	for _, c := range []*Chain{tb.hub, tb.venue, tb.resale} {
		listing, err := c.Listing(ticketID)
		require.NoError(t, err)
		require.Equal(t, model.ListingCancelled, listing.Status)
	}

	// A cancelled listing can be relisted.
	_, err = tb.hub.CreateListing("alice", ticketID, 1500)
	require.NoError(t, err)
}

func TestHubOnlyMessagesDroppedOnSpokes(t *testing.T) {
	tb := newTestBed(t)
	ticketID := mintConcertTicket(t, tb)

	_, err := tb.hub.CreateListing("alice", ticketID, 1000)
	require.NoError(t, err)
	tb.net.DeliverAll()

	// A purchase misrouted to a spoke is dropped without state change.
	payload, err := protocol.EncodeMessage(&protocol.BuyListingOnHub{
		TicketID: ticketID,
		Buyer:    model.Account{Chain: "resale", Holder: "carol"},
		Price:    1000,
	})
	require.NoError(t, err)
	require.NoError(t, tb.net.Send(network.Envelope{From: "resale", To: "venue", Payload: payload}))
	tb.net.DeliverAll()

	listing, err := tb.venue.Listing(ticketID)
	require.NoError(t, err)
	require.Equal(t, model.ListingActive, listing.Status)
}
