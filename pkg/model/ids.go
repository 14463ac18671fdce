package model

import (
	"encoding/hex"
	"fmt"
)

// TicketIDLength is the byte length of a ticket identifier digest.
const TicketIDLength = 32

// BlobHashLength is the byte length of an off-chain metadata content hash.
const BlobHashLength = 32

// TicketID is the deterministic 256-bit identifier of a ticket.
// It is derived from the minting context and never changes afterwards.
type TicketID [TicketIDLength]byte

// TicketIDFromHex parses a ticket identifier from its hex representation.
func TicketIDFromHex(s string) (TicketID, error) {
	var id TicketID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid ticket id: %w", err)
	}
	if len(b) != TicketIDLength {
		return id, fmt.Errorf("invalid ticket id length: %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id TicketID) ToHex() string {
	return hex.EncodeToString(id[:])
}

func (id TicketID) String() string {
	return id.ToHex()
}

// MarshalText implements encoding.TextMarshaler so ticket ids serialize as
// hex strings in JSON payloads and map keys.
func (id TicketID) MarshalText() ([]byte, error) {
	return []byte(id.ToHex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *TicketID) UnmarshalText(text []byte) error {
	parsed, err := TicketIDFromHex(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// BlobHash is the content hash of a ticket's off-chain metadata blob.
// The blob itself lives in external content storage; the protocol only
// carries the hash.
type BlobHash [BlobHashLength]byte

// BlobHashFromHex parses a blob hash from its hex representation.
func BlobHashFromHex(s string) (BlobHash, error) {
	var h BlobHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid blob hash: %w", err)
	}
	if len(b) != BlobHashLength {
		return h, fmt.Errorf("invalid blob hash length: %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h BlobHash) ToHex() string {
	return hex.EncodeToString(h[:])
}

func (h BlobHash) MarshalText() ([]byte, error) {
	return []byte(h.ToHex()), nil
}

func (h *BlobHash) UnmarshalText(text []byte) error {
	parsed, err := BlobHashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
