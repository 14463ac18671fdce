package ledger

import "errors"

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrListingNotFound = errors.New("listing not found")
)
