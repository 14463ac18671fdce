package chain

import "errors"

var (
	ErrHubChain        = errors.New("operation is not available on the hub chain")
	ErrTicketInTransit = errors.New("ticket is not in the caller's custody on this chain")
)
