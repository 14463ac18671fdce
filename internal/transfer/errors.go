package transfer

import "errors"

var (
	ErrNotHolder         = errors.New("caller does not hold the ticket")
	ErrStaleClaim        = errors.New("claimed ticket is no longer held by the named holder")
	ErrUnauthorizedClaim = errors.New("claim is not authenticated as the ticket's holder")
)
