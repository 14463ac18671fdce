// Package transfer orchestrates moving a ticket between holders, locally or
// across chains.
//
// The protocol's race prevention rests on removing the ticket from the
// sender's owned set before any message leaves the chain: an in-flight
// ticket cannot be re-transferred or re-listed. Royalty settlement runs
// exactly once, on the chain that commits the holder change; the only
// recovery path is the bounce rollback, driven by an explicit non-delivery
// notification, never by a timeout.
package transfer

import (
	"time"

	"github.com/dueldanov/ticketmesh/internal/ledger"
	"github.com/dueldanov/ticketmesh/internal/market"
	"github.com/dueldanov/ticketmesh/internal/royalty"
	"github.com/dueldanov/ticketmesh/pkg/model"
	"github.com/dueldanov/ticketmesh/pkg/protocol"
)

// SendFunc hands a message to the delivery substrate. Tracked messages
// report non-delivery back to the sender as a bounced envelope; identity is
// the authenticated caller the message acts for, empty for messages the
// chain sends on its own behalf.
type SendFunc func(to string, msg protocol.Message, tracked bool, identity string) error

// Protocol executes ownership transfers against a chain's ledger views.
type Protocol struct {
	chainID string
	hub     bool
	market  *market.Market
	send    SendFunc
	now     func() time.Time
}

// NewProtocol creates the transfer protocol for one chain.
func NewProtocol(chainID string, hub bool, listingMarket *market.Market, send SendFunc, now func() time.Time) *Protocol {
	return &Protocol{
		chainID: chainID,
		hub:     hub,
		market:  listingMarket,
		send:    send,
		now:     now,
	}
}

// Outcome reports what a transfer step did, for event emission and hub
// notification by the caller.
type Outcome struct {
	// Ticket is the committed (or restored) ticket record, nil while a
	// cross-chain transfer is still in flight.
	Ticket *model.Ticket
	// Royalty is the royalty amount accrued by this step.
	Royalty uint64
	// CancelledListing is the listing cancelled as a side effect, if any.
	CancelledListing *model.Listing
	// Forwarded is true when the holder change left the chain as a message
	// instead of committing locally.
	Forwarded bool
	// Restored is true when a bounced transfer was rolled back.
	Restored bool
}

// Transfer moves a ticket currently held on this chain to the target
// account. The ticket leaves the sender's owned set before anything else
// happens; a same-chain target commits synchronously, a remote target gets
// a tracked Transfer message carrying the updated ticket.
func (p *Protocol) Transfer(v *ledger.View, ticket *model.Ticket, target model.Account, salePrice uint64) (*Outcome, error) {
	seller := ticket.Holder
	sellerChain := ticket.HolderChain

	if err := v.RemoveTicket(ticket); err != nil {
		return nil, err
	}

	if target.Chain == p.chainID {
		return p.finalize(v, ticket, seller, target, salePrice)
	}

	updated := *ticket
	updated.Holder = target.Holder
	updated.HolderChain = target.Chain

	if p.hub {
		// The hub keeps a reference record with the new holder so hub-side
		// ownership queries stay accurate while custody is in transit. The
		// record is not in any owned set, so it cannot be transferred.
		if err := v.SetTicket(&updated); err != nil {
			return nil, err
		}
	}

	if err := p.send(target.Chain, &protocol.Transfer{
		Ticket:      updated,
		Target:      target,
		Seller:      seller,
		SellerChain: sellerChain,
		SalePrice:   salePrice,
	}, true, ""); err != nil {
		return nil, err
	}

	return &Outcome{Forwarded: true}, nil
}

// Receive applies an inbound Transfer message. A bounced delivery restores
// the ticket to the original sender with no settlement; a successful one
// commits the holder change and settles exactly once.
func (p *Protocol) Receive(v *ledger.View, msg *protocol.Transfer, bounced bool) (*Outcome, error) {
	if bounced {
		restored := msg.Ticket
		restored.Holder = msg.Seller
		restored.HolderChain = msg.SellerChain
		// Owned-set membership only exists on the chain the holder resides
		// on; a bounce of a custody placement restores a bare record.
		if restored.HolderChain == p.chainID {
			if err := v.AddTicket(&restored); err != nil {
				return nil, err
			}
		} else {
			if err := v.SetTicket(&restored); err != nil {
				return nil, err
			}
		}
		return &Outcome{Ticket: &restored, Restored: true}, nil
	}

	ticket := msg.Ticket

	// A transfer whose seller and target are the same account is custody
	// placement for a ticket minted on another chain: the record already
	// names the final holder and no sale happened.
	if model.SameIdentity(msg.Seller, msg.Target.Holder) && msg.SellerChain == msg.Target.Chain {
		if err := v.AddTicket(&ticket); err != nil {
			return nil, err
		}
		return &Outcome{Ticket: &ticket}, nil
	}

	return p.finalize(v, &ticket, msg.Seller, msg.Target, msg.SalePrice)
}

// HandleClaim processes a claim that arrived on this chain. The claim must
// be authenticated as the named holder: holders release their own tickets,
// and the hub claims on the holder's behalf when it settles a sale. It then
// re-validates that the named holder still holds the ticket locally,
// guarding against claims that went stale while in flight, and runs the
// regular transfer.
func (p *Protocol) HandleClaim(v *ledger.View, msg *protocol.Claim, claimant string) (*Outcome, error) {
	if !model.SameIdentity(claimant, msg.Holder) {
		return nil, ErrUnauthorizedClaim
	}

	ticket, err := v.Ticket(msg.TicketID)
	if err != nil {
		return nil, err
	}
	if !model.SameIdentity(ticket.Holder, msg.Holder) || ticket.HolderChain != p.chainID {
		return nil, ErrStaleClaim
	}

	owned, err := v.OwnedTickets(ticket.Holder)
	if err != nil {
		return nil, err
	}
	held := false
	for _, id := range owned {
		if id == ticket.ID {
			held = true
			break
		}
	}
	if !held {
		return nil, ErrStaleClaim
	}

	return p.Transfer(v, ticket, msg.Requester, msg.SalePrice)
}

// Claim sends a release request to the remote chain that holds the ticket,
// authenticated as identity. The receiving chain only honors claims whose
// identity matches the named holder.
func (p *Protocol) Claim(sourceChain, holder string, ticketID model.TicketID, requester model.Account, salePrice uint64, identity string) error {
	return p.send(sourceChain, &protocol.Claim{
		SourceChain: sourceChain,
		Holder:      holder,
		TicketID:    ticketID,
		Requester:   requester,
		SalePrice:   salePrice,
	}, false, identity)
}

// finalize commits a holder change: it updates the holder fields, settles
// royalties when a sale price is present, cancels any Active listing for
// the ticket, appends the audit records and re-inserts the ticket under its
// new holder.
func (p *Protocol) finalize(v *ledger.View, ticket *model.Ticket, seller string, target model.Account, salePrice uint64) (*Outcome, error) {
	ticket.Holder = target.Holder
	ticket.HolderChain = target.Chain

	royaltyAmount, err := royalty.Settle(v, ticket.Organizer, seller, salePrice, ticket.RoyaltyBps)
	if err != nil {
		return nil, err
	}

	now := p.now().UnixNano()

	kind := model.OwnershipTransferred
	if salePrice > 0 {
		kind = model.OwnershipSold
		price := salePrice
		ticket.LastSalePrice = &price
		ticket.PriceHistory = append(ticket.PriceHistory, model.PriceRecord{
			Kind:      model.PriceSold,
			Price:     salePrice,
			Timestamp: now,
		})
	}
	ticket.History = append(ticket.History, model.OwnershipRecord{
		Kind:      kind,
		Holder:    target.Holder,
		Chain:     target.Chain,
		Timestamp: now,
	})

	cancelled, changed, err := p.market.CancelForTransfer(v, ticket.ID)
	if err != nil {
		return nil, err
	}

	if err := v.AddTicket(ticket); err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Ticket:  ticket,
		Royalty: royaltyAmount,
	}
	if changed {
		outcome.CancelledListing = cancelled
	}

	return outcome, nil
}
