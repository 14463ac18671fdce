// Package identity derives deterministic ticket identifiers from immutable
// minting inputs. The derivation is a pure function: two independent
// executions of the same mint produce the same identifier, which is what
// allows hub and spoke copies of a ticket to be reconciled by id.
package identity

import (
	"github.com/iotaledger/hive.go/serializer/v2/marshalutil"
	"golang.org/x/crypto/sha3"

	"github.com/dueldanov/ticketmesh/pkg/model"
)

// FormatVersion is the version byte of the derivation encoding. Bump it if
// the input encoding ever changes, so old and new ids cannot collide.
const FormatVersion byte = 1

// Derive computes the SHA3-256 ticket identifier over the minting context.
//
// Every input is length-prefixed before hashing so that no two distinct
// input tuples can produce the same byte stream. The mint index makes ids
// unique across an event even when seat labels repeat.
func Derive(chainID, applicationID, eventID, seat, minter string, metadataHash model.BlobHash, mintIndex uint32) model.TicketID {
	ms := marshalutil.New(1 + 4*5 + len(chainID) + len(applicationID) + len(eventID) + len(seat) + len(minter) + model.BlobHashLength + 4)
	ms.WriteByte(FormatVersion)
	writeString(ms, chainID)
	writeString(ms, applicationID)
	writeString(ms, eventID)
	writeString(ms, seat)
	writeString(ms, minter)
	ms.WriteBytes(metadataHash[:])
	ms.WriteUint32(mintIndex)

	return model.TicketID(sha3.Sum256(ms.Bytes()))
}

func writeString(ms *marshalutil.MarshalUtil, s string) {
	ms.WriteUint32(uint32(len(s)))
	ms.WriteBytes([]byte(s))
}
