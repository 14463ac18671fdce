package common

const (
	StorePrefixEvents         byte = 1
	StorePrefixTickets        byte = 2
	StorePrefixListings       byte = 3
	StorePrefixOwnedTickets   byte = 4
	StorePrefixBalances       byte = 5
	StorePrefixTotalRoyalties byte = 6
	StorePrefixStream         byte = 7
	StorePrefixStreamLength   byte = 8
	StorePrefixSubscribers    byte = 9
	StorePrefixHealth         byte = 255
)
