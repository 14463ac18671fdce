package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iotaledger/hive.go/serializer/v2/marshalutil"
)

// WireVersion is the envelope version byte. Envelopes with a different
// version fail to decode.
const WireVersion byte = 1

var (
	ErrUnsupportedVersion   = errors.New("unsupported wire version")
	ErrUnknownMessageType   = errors.New("unknown message type")
	ErrUnknownStreamType    = errors.New("unknown stream event type")
	ErrTruncatedEnvelope    = errors.New("truncated envelope")
	ErrTrailingEnvelopeData = errors.New("trailing data after envelope payload")
)

func encodeEnvelope(kind byte, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	ms := marshalutil.New(1 + 1 + 4 + len(body))
	ms.WriteByte(WireVersion)
	ms.WriteByte(kind)
	ms.WriteUint32(uint32(len(body)))
	ms.WriteBytes(body)

	return ms.Bytes(), nil
}

func decodeEnvelope(data []byte) (kind byte, body []byte, err error) {
	ms := marshalutil.New(data)

	version, err := ms.ReadByte()
	if err != nil {
		return 0, nil, ErrTruncatedEnvelope
	}
	if version != WireVersion {
		return 0, nil, ErrUnsupportedVersion
	}

	kind, err = ms.ReadByte()
	if err != nil {
		return 0, nil, ErrTruncatedEnvelope
	}

	length, err := ms.ReadUint32()
	if err != nil {
		return 0, nil, ErrTruncatedEnvelope
	}

	body, err = ms.ReadBytes(int(length))
	if err != nil {
		return 0, nil, ErrTruncatedEnvelope
	}

	if ms.ReadOffset() != len(data) {
		return 0, nil, ErrTrailingEnvelopeData
	}

	return kind, body, nil
}

// EncodeMessage frames a message for wire transport.
func EncodeMessage(msg Message) ([]byte, error) {
	return encodeEnvelope(byte(msg.MessageType()), msg)
}

// DecodeMessage parses a framed message. Unrecognized message types fail
// with ErrUnknownMessageType; receivers never guess at unknown variants.
func DecodeMessage(data []byte) (Message, error) {
	kind, body, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	var msg Message
	switch MessageType(kind) {
	case MessageTransfer:
		msg = &Transfer{}
	case MessageClaim:
		msg = &Claim{}
	case MessageRequestSync:
		msg = &RequestSync{}
	case MessageInitialStateSync:
		msg = &InitialStateSync{}
	case MessageCreateEventOnHub:
		msg = &CreateEventOnHub{}
	case MessageCreateListingOnHub:
		msg = &CreateListingOnHub{}
	case MessageCancelListingOnHub:
		msg = &CancelListingOnHub{}
	case MessageBuyListingOnHub:
		msg = &BuyListingOnHub{}
	case MessageMintTicketRequest:
		msg = &MintTicketRequest{}
	case MessageMintTicketOnHub:
		msg = &MintTicketOnHub{}
	default:
		return nil, ErrUnknownMessageType
	}

	if err := json.Unmarshal(body, msg); err != nil {
		return nil, fmt.Errorf("failed to decode message payload: %w", err)
	}

	return msg, nil
}

// EncodeStreamEvent frames a stream event for broadcast.
func EncodeStreamEvent(ev StreamEvent) ([]byte, error) {
	return encodeEnvelope(byte(ev.StreamEventType()), ev)
}

// DecodeStreamEvent parses a framed stream event.
func DecodeStreamEvent(data []byte) (StreamEvent, error) {
	kind, body, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	var ev StreamEvent
	switch StreamEventType(kind) {
	case StreamEventCreated:
		ev = &EventCreated{}
	case StreamTicketMinted:
		ev = &TicketMinted{}
	case StreamListingCreated:
		ev = &ListingCreated{}
	case StreamListingUpdated:
		ev = &ListingUpdated{}
	default:
		return nil, ErrUnknownStreamType
	}

	if err := json.Unmarshal(body, ev); err != nil {
		return nil, fmt.Errorf("failed to decode stream payload: %w", err)
	}

	return ev, nil
}
