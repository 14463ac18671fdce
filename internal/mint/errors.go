package mint

import "errors"

var (
	ErrEventExists       = errors.New("event already exists")
	ErrRoyaltyOutOfRange = errors.New("royalty basis points exceed the limit")
	ErrZeroSupply        = errors.New("events must allow at least one ticket")
	ErrNotOrganizer      = errors.New("caller is not the event's organizer")
	ErrSupplyExhausted   = errors.New("event supply exhausted")
)
