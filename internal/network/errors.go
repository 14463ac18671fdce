package network

import "errors"

var (
	// ErrNoRoute means the target chain identifier cannot be resolved to a
	// registered endpoint.
	ErrNoRoute = errors.New("no route to target chain")
)
