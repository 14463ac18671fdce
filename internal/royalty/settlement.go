// Package royalty implements the fixed-point royalty split applied on ticket
// sales and the pending-payout bookkeeping it feeds.
package royalty

import (
	"github.com/dueldanov/ticketmesh/internal/ledger"
	"github.com/dueldanov/ticketmesh/pkg/model"
)

// Split divides a sale price into the organizer royalty and the seller
// proceeds. The royalty is floor(price * bps / 10000); royalty + proceeds
// always equals the price. Rates above 10000 bps are treated as 10000.
func Split(price uint64, bps uint16) (royalty, proceeds uint64) {
	if bps > model.MaxBps {
		bps = model.MaxBps
	}

	royalty = price * uint64(bps) / uint64(model.MaxBps)
	if royalty > price {
		royalty = price
	}

	return royalty, price - royalty
}

// Settle accrues the royalty split of a sale into the pending balances of
// the organizer and the seller, and bumps the global royalty counter.
//
// A price of zero is a non-sale transfer: nothing accrues and the returned
// royalty is zero. Settle must run exactly once per sale, on the chain that
// commits the holder change.
func Settle(v *ledger.View, organizer, seller string, price uint64, bps uint16) (uint64, error) {
	if price == 0 {
		return 0, nil
	}

	royalty, proceeds := Split(price, bps)

	if err := v.Credit(organizer, royalty); err != nil {
		return 0, err
	}
	if err := v.Credit(seller, proceeds); err != nil {
		return 0, err
	}
	if err := v.AddRoyalties(royalty); err != nil {
		return 0, err
	}

	return royalty, nil
}
