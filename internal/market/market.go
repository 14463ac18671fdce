// Package market implements the per-ticket listing state machine. The
// authoritative instance runs on the hub; spokes run the same logic against
// their optimistic local copies.
//
// Transitions: Active -> Cancelled (seller) or Active -> Sold (buyer).
// Cancelled and Sold are terminal; a new listing over a terminal one is a
// relist and is recorded distinctly in the ticket's price history.
package market

import (
	"time"

	"github.com/pkg/errors"

	"github.com/dueldanov/ticketmesh/internal/ledger"
	"github.com/dueldanov/ticketmesh/pkg/model"
)

// Market validates and applies listing transitions against a ledger view.
type Market struct {
	now func() time.Time
}

// New creates a listing market using the given clock for price history
// timestamps.
func New(now func() time.Time) *Market {
	return &Market{now: now}
}

// Create opens an Active listing for a ticket held by seller. It fails with
// ErrListingActive while a previous listing is still Active; over a terminal
// listing it relists.
func (m *Market) Create(v *ledger.View, seller, sellerChain string, ticketID model.TicketID, price uint64) (*model.Listing, error) {
	ticket, err := v.Ticket(ticketID)
	if err != nil {
		return nil, err
	}
	if !model.SameIdentity(ticket.Holder, seller) {
		return nil, ErrNotHolder
	}

	relist := false
	existing, err := v.Listing(ticketID)
	switch {
	case err == nil:
		if existing.Status == model.ListingActive {
			return nil, ErrListingActive
		}
		relist = true
	case errors.Is(err, ledger.ErrListingNotFound):
	default:
		return nil, err
	}

	listing := &model.Listing{
		TicketID:    ticketID,
		Seller:      seller,
		SellerChain: sellerChain,
		Price:       price,
		Status:      model.ListingActive,
	}
	if err := v.SetListing(listing); err != nil {
		return nil, err
	}

	kind := model.PriceListed
	if relist {
		kind = model.PriceRelisted
	}
	ticket.PriceHistory = append(ticket.PriceHistory, model.PriceRecord{
		Kind:      kind,
		Price:     price,
		Timestamp: m.now().UnixNano(),
	})
	if err := v.SetTicket(ticket); err != nil {
		return nil, err
	}

	return listing, nil
}

// Cancel moves a listing from Active to Cancelled. Only the seller may
// cancel.
func (m *Market) Cancel(v *ledger.View, seller string, ticketID model.TicketID) (*model.Listing, error) {
	listing, err := v.Listing(ticketID)
	if err != nil {
		return nil, err
	}
	if !model.SameIdentity(listing.Seller, seller) {
		return nil, ErrNotSeller
	}
	if listing.Status != model.ListingActive {
		return nil, ErrListingNotActive
	}

	listing.Status = model.ListingCancelled
	if err := v.SetListing(listing); err != nil {
		return nil, err
	}

	return listing, nil
}

// MarkSold validates a purchase and moves the listing to Sold. The caller
// invokes the transfer protocol afterwards; marking Sold first is what makes
// a second purchase attempt, processed strictly later on the authoritative
// chain, observe Sold and fail.
func (m *Market) MarkSold(v *ledger.View, buyer string, ticketID model.TicketID, price uint64) (*model.Listing, error) {
	listing, err := v.Listing(ticketID)
	if err != nil {
		return nil, err
	}
	if listing.Status != model.ListingActive {
		return nil, ErrListingNotActive
	}
	if listing.Price != price {
		return nil, ErrPriceMismatch
	}
	if model.SameIdentity(listing.Seller, buyer) {
		return nil, ErrSelfPurchase
	}

	// The seller must still hold the ticket at purchase time; a listing that
	// outlived a custody change cannot be sold.
	ticket, err := v.Ticket(ticketID)
	if err != nil {
		return nil, err
	}
	if !model.SameIdentity(ticket.Holder, listing.Seller) {
		return nil, ErrStaleListing
	}

	listing.Status = model.ListingSold
	if err := v.SetListing(listing); err != nil {
		return nil, err
	}

	return listing, nil
}

// CancelForTransfer cancels any Active listing for a ticket that is changing
// hands outside the listing's own sale. It reports whether a listing was
// actually cancelled and is a no-op when no Active listing exists.
func (m *Market) CancelForTransfer(v *ledger.View, ticketID model.TicketID) (*model.Listing, bool, error) {
	listing, err := v.Listing(ticketID)
	if errors.Is(err, ledger.ErrListingNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if listing.Status != model.ListingActive {
		return nil, false, nil
	}

	listing.Status = model.ListingCancelled
	if err := v.SetListing(listing); err != nil {
		return nil, false, err
	}

	return listing, true, nil
}
