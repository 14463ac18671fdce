package market

import "errors"

var (
	ErrNotHolder        = errors.New("seller does not hold the ticket")
	ErrNotSeller        = errors.New("caller is not the listing's seller")
	ErrListingActive    = errors.New("ticket already has an active listing")
	ErrListingNotActive = errors.New("listing is not active")
	ErrPriceMismatch    = errors.New("price does not match the listing")
	ErrSelfPurchase     = errors.New("buyer and seller are the same identity")
	ErrStaleListing     = errors.New("listing's seller no longer holds the ticket")
)
