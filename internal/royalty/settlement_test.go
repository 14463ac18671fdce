package royalty

import (
	"testing"

	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/stretchr/testify/require"

	"github.com/dueldanov/ticketmesh/internal/ledger"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		price    uint64
		bps      uint16
		royalty  uint64
		proceeds uint64
	}{
		{name: "zero price", price: 0, bps: 500, royalty: 0, proceeds: 0},
		{name: "zero bps", price: 1000, bps: 0, royalty: 0, proceeds: 1000},
		{name: "five percent", price: 1000, bps: 500, royalty: 50, proceeds: 950},
		{name: "floor division", price: 999, bps: 500, royalty: 49, proceeds: 950},
		{name: "sub unit price", price: 1, bps: 500, royalty: 0, proceeds: 1},
		{name: "full royalty", price: 1000, bps: 10_000, royalty: 1000, proceeds: 0},
		{name: "bps clamped", price: 1000, bps: 20_000, royalty: 1000, proceeds: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			royalty, proceeds := Split(tt.price, tt.bps)
			require.Equal(t, tt.royalty, royalty)
			require.Equal(t, tt.proceeds, proceeds)
			require.Equal(t, tt.price, royalty+proceeds)
		})
	}
}

func TestSettleCreditsBothParties(t *testing.T) {
	v := ledger.NewView(mapdb.NewMapDB())

	royalty, err := Settle(v, "organizer", "seller", 1000, 500)
	require.NoError(t, err)
	require.EqualValues(t, 50, royalty)

	organizer, err := v.Balance("organizer")
	require.NoError(t, err)
	require.EqualValues(t, 50, organizer.Pending)

	seller, err := v.Balance("seller")
	require.NoError(t, err)
	require.EqualValues(t, 950, seller.Pending)

	total, err := v.TotalRoyalties()
	require.NoError(t, err)
	require.EqualValues(t, 50, total)
}

func TestSettleZeroPriceIsNoSale(t *testing.T) {
	v := ledger.NewView(mapdb.NewMapDB())

	royalty, err := Settle(v, "organizer", "seller", 0, 500)
	require.NoError(t, err)
	require.Zero(t, royalty)

	organizer, err := v.Balance("organizer")
	require.NoError(t, err)
	require.Zero(t, organizer.Pending)

	total, err := v.TotalRoyalties()
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestSettleSellerIsOrganizer(t *testing.T) {
	v := ledger.NewView(mapdb.NewMapDB())

	_, err := Settle(v, "organizer", "organizer", 1000, 500)
	require.NoError(t, err)

	balance, err := v.Balance("organizer")
	require.NoError(t, err)
	require.EqualValues(t, 1000, balance.Pending)
}

func TestSettleAccumulates(t *testing.T) {
	v := ledger.NewView(mapdb.NewMapDB())

	_, err := Settle(v, "organizer", "seller", 1000, 500)
	require.NoError(t, err)
	_, err = Settle(v, "organizer", "other", 2000, 500)
	require.NoError(t, err)

	organizer, err := v.Balance("organizer")
	require.NoError(t, err)
	require.EqualValues(t, 150, organizer.Pending)

	total, err := v.TotalRoyalties()
	require.NoError(t, err)
	require.EqualValues(t, 150, total)
}
