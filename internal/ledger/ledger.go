package ledger

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/iotaledger/hive.go/serializer/v2/marshalutil"
	"github.com/pkg/errors"

	"github.com/dueldanov/ticketmesh/pkg/common"
	"github.com/dueldanov/ticketmesh/pkg/model"
)

// Key construction. Every entity space lives under its own store prefix so
// that iteration over one space never touches another.

func eventKey(eventID string) []byte {
	ms := marshalutil.New(1 + len(eventID))
	ms.WriteByte(common.StorePrefixEvents)
	ms.WriteBytes([]byte(eventID))
	return ms.Bytes()
}

func ticketKey(id model.TicketID) []byte {
	ms := marshalutil.New(1 + model.TicketIDLength)
	ms.WriteByte(common.StorePrefixTickets)
	ms.WriteBytes(id[:])
	return ms.Bytes()
}

func listingKey(id model.TicketID) []byte {
	ms := marshalutil.New(1 + model.TicketIDLength)
	ms.WriteByte(common.StorePrefixListings)
	ms.WriteBytes(id[:])
	return ms.Bytes()
}

// Holder identities are case-insensitive, so identity-keyed spaces normalize
// their keys; "Alice" and "alice" address the same owned set and balance.
func ownedKey(holder string) []byte {
	holder = strings.ToLower(holder)
	ms := marshalutil.New(1 + len(holder))
	ms.WriteByte(common.StorePrefixOwnedTickets)
	ms.WriteBytes([]byte(holder))
	return ms.Bytes()
}

func balanceKey(payee string) []byte {
	payee = strings.ToLower(payee)
	ms := marshalutil.New(1 + len(payee))
	ms.WriteByte(common.StorePrefixBalances)
	ms.WriteBytes([]byte(payee))
	return ms.Bytes()
}

func streamKey(index uint64) []byte {
	ms := marshalutil.New(1 + 8)
	ms.WriteByte(common.StorePrefixStream)
	ms.WriteUint64(index)
	return ms.Bytes()
}

func streamLengthKey() []byte {
	return []byte{common.StorePrefixStreamLength}
}

func subscribersKey() []byte {
	return []byte{common.StorePrefixSubscribers}
}

// Events.

// Event loads a catalog entry, or ErrEventNotFound.
func (v *View) Event(eventID string) (*model.Event, error) {
	value, found, err := v.get(eventKey(eventID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrEventNotFound
	}

	event := &model.Event{}
	if err := json.Unmarshal(value, event); err != nil {
		return nil, errors.Wrap(err, "failed to decode event")
	}
	return event, nil
}

// HasEvent reports whether a catalog entry exists.
func (v *View) HasEvent(eventID string) (bool, error) {
	_, found, err := v.get(eventKey(eventID))
	return found, err
}

// SetEvent upserts a catalog entry.
func (v *View) SetEvent(event *model.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}
	v.set(eventKey(event.ID), value)
	return nil
}

// Events returns all catalog entries, ordered by id.
func (v *View) Events() ([]model.Event, error) {
	var events []model.Event
	var iterErr error
	if err := v.iterate([]byte{common.StorePrefixEvents}, func(_, value []byte) bool {
		var event model.Event
		if iterErr = json.Unmarshal(value, &event); iterErr != nil {
			return false
		}
		events = append(events, event)
		return true
	}); err != nil {
		return nil, err
	}
	if iterErr != nil {
		return nil, errors.Wrap(iterErr, "failed to decode event")
	}

	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

// Tickets.

// Ticket loads a ticket record, or ErrTicketNotFound.
func (v *View) Ticket(id model.TicketID) (*model.Ticket, error) {
	value, found, err := v.get(ticketKey(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrTicketNotFound
	}

	ticket := &model.Ticket{}
	if err := json.Unmarshal(value, ticket); err != nil {
		return nil, errors.Wrap(err, "failed to decode ticket")
	}
	return ticket, nil
}

// HasTicket reports whether a ticket record exists.
func (v *View) HasTicket(id model.TicketID) (bool, error) {
	_, found, err := v.get(ticketKey(id))
	return found, err
}

// SetTicket upserts a ticket record without touching owned sets.
func (v *View) SetTicket(ticket *model.Ticket) error {
	value, err := json.Marshal(ticket)
	if err != nil {
		return errors.Wrap(err, "failed to encode ticket")
	}
	v.set(ticketKey(ticket.ID), value)
	return nil
}

// DeleteTicket removes a ticket record without touching owned sets.
func (v *View) DeleteTicket(id model.TicketID) {
	v.delete(ticketKey(id))
}

// Tickets returns all ticket records, ordered by id.
func (v *View) Tickets() ([]model.Ticket, error) {
	var tickets []model.Ticket
	var iterErr error
	if err := v.iterate([]byte{common.StorePrefixTickets}, func(_, value []byte) bool {
		var ticket model.Ticket
		if iterErr = json.Unmarshal(value, &ticket); iterErr != nil {
			return false
		}
		tickets = append(tickets, ticket)
		return true
	}); err != nil {
		return nil, err
	}
	if iterErr != nil {
		return nil, errors.Wrap(iterErr, "failed to decode ticket")
	}

	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID.ToHex() < tickets[j].ID.ToHex() })
	return tickets, nil
}

// AddTicket upserts a ticket record and inserts it into its holder's owned
// set. Together with RemoveTicket this is the local at-most-one-owner
// bookkeeping: a ticket record is always paired with exactly one owned-set
// membership.
func (v *View) AddTicket(ticket *model.Ticket) error {
	if err := v.SetTicket(ticket); err != nil {
		return err
	}
	return v.addOwned(ticket.Holder, ticket.ID)
}

// RemoveTicket deletes a ticket record and its owned-set membership.
func (v *View) RemoveTicket(ticket *model.Ticket) error {
	v.DeleteTicket(ticket.ID)
	return v.removeOwned(ticket.Holder, ticket.ID)
}

// Owned sets.

// OwnedTickets returns the ids of all tickets held by the given holder on
// this chain, ordered by id.
func (v *View) OwnedTickets(holder string) ([]model.TicketID, error) {
	value, found, err := v.get(ownedKey(holder))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var ids []model.TicketID
	if err := json.Unmarshal(value, &ids); err != nil {
		return nil, errors.Wrap(err, "failed to decode owned set")
	}
	return ids, nil
}

func (v *View) setOwned(holder string, ids []model.TicketID) error {
	if len(ids) == 0 {
		v.delete(ownedKey(holder))
		return nil
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].ToHex() < ids[j].ToHex() })
	value, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, "failed to encode owned set")
	}
	v.set(ownedKey(holder), value)
	return nil
}

func (v *View) addOwned(holder string, id model.TicketID) error {
	ids, err := v.OwnedTickets(holder)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	return v.setOwned(holder, append(ids, id))
}

func (v *View) removeOwned(holder string, id model.TicketID) error {
	ids, err := v.OwnedTickets(holder)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return v.setOwned(holder, kept)
}

// Listings.

// Listing loads a listing, or ErrListingNotFound.
func (v *View) Listing(id model.TicketID) (*model.Listing, error) {
	value, found, err := v.get(listingKey(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrListingNotFound
	}

	listing := &model.Listing{}
	if err := json.Unmarshal(value, listing); err != nil {
		return nil, errors.Wrap(err, "failed to decode listing")
	}
	return listing, nil
}

// SetListing upserts a listing.
func (v *View) SetListing(listing *model.Listing) error {
	value, err := json.Marshal(listing)
	if err != nil {
		return errors.Wrap(err, "failed to encode listing")
	}
	v.set(listingKey(listing.TicketID), value)
	return nil
}

// Listings returns all listings, ordered by ticket id.
func (v *View) Listings() ([]model.Listing, error) {
	var listings []model.Listing
	var iterErr error
	if err := v.iterate([]byte{common.StorePrefixListings}, func(_, value []byte) bool {
		var listing model.Listing
		if iterErr = json.Unmarshal(value, &listing); iterErr != nil {
			return false
		}
		listings = append(listings, listing)
		return true
	}); err != nil {
		return nil, err
	}
	if iterErr != nil {
		return nil, errors.Wrap(iterErr, "failed to decode listing")
	}

	sort.Slice(listings, func(i, j int) bool { return listings[i].TicketID.ToHex() < listings[j].TicketID.ToHex() })
	return listings, nil
}

// Royalty balances.

// Balance returns the pending payout for a payee. A payee without any
// accruals has a zero balance.
func (v *View) Balance(payee string) (model.BalanceEntry, error) {
	value, found, err := v.get(balanceKey(payee))
	if err != nil {
		return model.BalanceEntry{}, err
	}
	if !found {
		return model.BalanceEntry{}, nil
	}

	var balance model.BalanceEntry
	if err := json.Unmarshal(value, &balance); err != nil {
		return model.BalanceEntry{}, errors.Wrap(err, "failed to decode balance")
	}
	return balance, nil
}

// Credit adds amount to a payee's pending balance. Zero amounts are ignored.
func (v *View) Credit(payee string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	balance, err := v.Balance(payee)
	if err != nil {
		return err
	}
	balance.Pending += amount

	value, err := json.Marshal(balance)
	if err != nil {
		return errors.Wrap(err, "failed to encode balance")
	}
	v.set(balanceKey(payee), value)
	return nil
}

// TotalRoyalties returns the global counter of royalties ever accrued.
func (v *View) TotalRoyalties() (uint64, error) {
	value, found, err := v.get([]byte{common.StorePrefixTotalRoyalties})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	ms := marshalutil.New(value)
	total, err := ms.ReadUint64()
	if err != nil {
		return 0, errors.Wrap(err, "failed to decode total royalties")
	}
	return total, nil
}

// AddRoyalties increments the global royalty counter.
func (v *View) AddRoyalties(amount uint64) error {
	if amount == 0 {
		return nil
	}

	total, err := v.TotalRoyalties()
	if err != nil {
		return err
	}

	ms := marshalutil.New(8)
	ms.WriteUint64(total + amount)
	v.set([]byte{common.StorePrefixTotalRoyalties}, ms.Bytes())
	return nil
}

// Hub stream storage. The hub appends every mutation's stream record here;
// indices are dense and monotonically increasing.

// StreamLength returns the number of records appended to the hub stream.
func (v *View) StreamLength() (uint64, error) {
	value, found, err := v.get(streamLengthKey())
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	ms := marshalutil.New(value)
	length, err := ms.ReadUint64()
	if err != nil {
		return 0, errors.Wrap(err, "failed to decode stream length")
	}
	return length, nil
}

// AppendStream appends an encoded stream record and returns its index.
func (v *View) AppendStream(payload []byte) (uint64, error) {
	index, err := v.StreamLength()
	if err != nil {
		return 0, err
	}

	v.set(streamKey(index), payload)

	ms := marshalutil.New(8)
	ms.WriteUint64(index + 1)
	v.set(streamLengthKey(), ms.Bytes())

	return index, nil
}

// StreamRecord returns the encoded stream record at the given index.
func (v *View) StreamRecord(index uint64) ([]byte, bool, error) {
	return v.get(streamKey(index))
}

// Subscribers.

// Subscribers returns the chains subscribed to this chain's stream, sorted.
func (v *View) Subscribers() ([]string, error) {
	value, found, err := v.get(subscribersKey())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var subscribers []string
	if err := json.Unmarshal(value, &subscribers); err != nil {
		return nil, errors.Wrap(err, "failed to decode subscribers")
	}
	return subscribers, nil
}

// AddSubscriber registers a chain as a stream subscriber. Re-subscribing is
// a no-op.
func (v *View) AddSubscriber(chainID string) error {
	subscribers, err := v.Subscribers()
	if err != nil {
		return err
	}
	for _, existing := range subscribers {
		if existing == chainID {
			return nil
		}
	}

	subscribers = append(subscribers, chainID)
	sort.Strings(subscribers)

	value, err := json.Marshal(subscribers)
	if err != nil {
		return errors.Wrap(err, "failed to encode subscribers")
	}
	v.set(subscribersKey(), value)
	return nil
}
