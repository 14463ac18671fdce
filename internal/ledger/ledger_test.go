package ledger

import (
	"testing"

	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/stretchr/testify/require"

	"github.com/dueldanov/ticketmesh/pkg/model"
)

func testTicket(id byte, holder string) *model.Ticket {
	return &model.Ticket{
		ID:          model.TicketID{id},
		EventID:     "concert",
		Holder:      holder,
		HolderChain: "hub",
	}
}

func TestViewCommitPersists(t *testing.T) {
	store := mapdb.NewMapDB()

	v := NewView(store)
	require.NoError(t, v.SetEvent(&model.Event{ID: "concert", Organizer: "alice"}))
	require.NoError(t, v.Commit())

	event, err := NewView(store).Event("concert")
	require.NoError(t, err)
	require.Equal(t, "alice", event.Organizer)
}

func TestViewAbortLeavesNoTrace(t *testing.T) {
	store := mapdb.NewMapDB()

	v := NewView(store)
	require.NoError(t, v.SetEvent(&model.Event{ID: "concert"}))
	v.Abort()
	require.NoError(t, v.Commit())

	_, err := NewView(store).Event("concert")
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestViewReadsItsOwnWrites(t *testing.T) {
	store := mapdb.NewMapDB()

	v := NewView(store)
	require.NoError(t, v.SetEvent(&model.Event{ID: "concert", Organizer: "alice"}))

	event, err := v.Event("concert")
	require.NoError(t, err)
	require.Equal(t, "alice", event.Organizer)

	// Not visible outside the view before commit.
	_, err = NewView(store).Event("concert")
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestViewStagedDeleteShadowsStore(t *testing.T) {
	store := mapdb.NewMapDB()

	v := NewView(store)
	require.NoError(t, v.AddTicket(testTicket(1, "alice")))
	require.NoError(t, v.Commit())

	v = NewView(store)
	require.NoError(t, v.RemoveTicket(testTicket(1, "alice")))

	_, err := v.Ticket(model.TicketID{1})
	require.ErrorIs(t, err, ErrTicketNotFound)

	tickets, err := v.Tickets()
	require.NoError(t, err)
	require.Empty(t, tickets)
}

func TestOwnedSetFollowsAddRemove(t *testing.T) {
	v := NewView(mapdb.NewMapDB())

	require.NoError(t, v.AddTicket(testTicket(1, "alice")))
	require.NoError(t, v.AddTicket(testTicket(2, "alice")))
	require.NoError(t, v.AddTicket(testTicket(3, "bob")))

	owned, err := v.OwnedTickets("alice")
	require.NoError(t, err)
	require.Len(t, owned, 2)

	require.NoError(t, v.RemoveTicket(testTicket(1, "alice")))

	owned, err = v.OwnedTickets("alice")
	require.NoError(t, err)
	require.Equal(t, []model.TicketID{{2}}, owned)

	owned, err = v.OwnedTickets("bob")
	require.NoError(t, err)
	require.Equal(t, []model.TicketID{{3}}, owned)
}

func TestAddTicketIsIdempotentPerOwner(t *testing.T) {
	v := NewView(mapdb.NewMapDB())

	require.NoError(t, v.AddTicket(testTicket(1, "alice")))
	require.NoError(t, v.AddTicket(testTicket(1, "alice")))

	owned, err := v.OwnedTickets("alice")
	require.NoError(t, err)
	require.Len(t, owned, 1)
}

func TestHolderKeysAreCaseInsensitive(t *testing.T) {
	v := NewView(mapdb.NewMapDB())

	require.NoError(t, v.AddTicket(testTicket(1, "Alice")))

	owned, err := v.OwnedTickets("alice")
	require.NoError(t, err)
	require.Len(t, owned, 1)

	require.NoError(t, v.Credit("Alice", 10))

	balance, err := v.Balance("aLiCe")
	require.NoError(t, err)
	require.EqualValues(t, 10, balance.Pending)
}

func TestSetTicketDoesNotTouchOwnedSet(t *testing.T) {
	v := NewView(mapdb.NewMapDB())

	require.NoError(t, v.SetTicket(testTicket(1, "alice")))

	owned, err := v.OwnedTickets("alice")
	require.NoError(t, err)
	require.Empty(t, owned)
}

func TestStreamAppendAssignsDenseIndices(t *testing.T) {
	store := mapdb.NewMapDB()

	v := NewView(store)
	for i := uint64(0); i < 3; i++ {
		index, err := v.AppendStream([]byte{byte(i)})
		require.NoError(t, err)
		require.Equal(t, i, index)
	}
	require.NoError(t, v.Commit())

	v = NewView(store)
	length, err := v.StreamLength()
	require.NoError(t, err)
	require.EqualValues(t, 3, length)

	payload, found, err := v.StreamRecord(1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{1}, payload)
}

func TestSubscribersSortedAndIdempotent(t *testing.T) {
	v := NewView(mapdb.NewMapDB())

	require.NoError(t, v.AddSubscriber("venue"))
	require.NoError(t, v.AddSubscriber("resale"))
	require.NoError(t, v.AddSubscriber("venue"))

	subscribers, err := v.Subscribers()
	require.NoError(t, err)
	require.Equal(t, []string{"resale", "venue"}, subscribers)
}

func TestCreditIgnoresZero(t *testing.T) {
	v := NewView(mapdb.NewMapDB())

	require.NoError(t, v.Credit("alice", 0))

	balance, err := v.Balance("alice")
	require.NoError(t, err)
	require.Zero(t, balance.Pending)

	require.NoError(t, v.Credit("alice", 10))
	require.NoError(t, v.Credit("alice", 5))

	balance, err = v.Balance("alice")
	require.NoError(t, err)
	require.EqualValues(t, 15, balance.Pending)
}
