package chain

import (
	"github.com/iotaledger/hive.go/runtime/event"

	"github.com/dueldanov/ticketmesh/pkg/model"
)

// Events are the buses a chain triggers after a processing step commits.
// Handlers run on the committing goroutine and must not call back into the
// chain's write operations.
type Events struct {
	// EventCreated fires when a catalog entry is registered locally.
	EventCreated *event.Event1[*model.Event]
	// TicketMinted fires when a ticket is issued on this chain.
	TicketMinted *event.Event1[*model.Ticket]
	// TicketReceived fires when custody of a ticket lands on this chain.
	TicketReceived *event.Event1[*model.Ticket]
	// TicketRestored fires when a bounced transfer is rolled back.
	TicketRestored *event.Event1[*model.Ticket]
	// ListingChanged fires on any local listing creation or status change.
	ListingChanged *event.Event1[*model.Listing]
}

func newEvents() *Events {
	return &Events{
		EventCreated:   event.New1[*model.Event](),
		TicketMinted:   event.New1[*model.Ticket](),
		TicketReceived: event.New1[*model.Ticket](),
		TicketRestored: event.New1[*model.Ticket](),
		ListingChanged: event.New1[*model.Listing](),
	}
}
