// Package mint registers catalog events and issues tickets against their
// remaining supply. Minting is hub-authoritative: the supply counter that
// gates issuance is the one on the hub's ledger.
package mint

import (
	"time"

	"github.com/dueldanov/ticketmesh/internal/identity"
	"github.com/dueldanov/ticketmesh/internal/ledger"
	"github.com/dueldanov/ticketmesh/pkg/model"
)

// Service validates and applies catalog and minting mutations against a
// ledger view.
type Service struct {
	chainID       string
	applicationID string
	now           func() time.Time
}

// NewService creates a minting service for the given chain. The chain and
// application ids feed ticket identity derivation.
func NewService(chainID, applicationID string, now func() time.Time) *Service {
	return &Service{
		chainID:       chainID,
		applicationID: applicationID,
		now:           now,
	}
}

// EventParams are the creator-chosen fields of a new catalog entry.
type EventParams struct {
	EventID     string
	Name        string
	Description string
	Venue       string
	StartTime   uint64
	RoyaltyBps  uint16
	MaxTickets  uint32
}

// CreateEvent registers a new catalog entry with the caller as organizer.
func (s *Service) CreateEvent(v *ledger.View, organizer, organizerChain string, params EventParams) (*model.Event, error) {
	if params.RoyaltyBps > model.MaxBps {
		return nil, ErrRoyaltyOutOfRange
	}
	if params.MaxTickets == 0 {
		return nil, ErrZeroSupply
	}

	exists, err := v.HasEvent(params.EventID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEventExists
	}

	event := &model.Event{
		ID:             params.EventID,
		Organizer:      organizer,
		OrganizerChain: organizerChain,
		Name:           params.Name,
		Description:    params.Description,
		Venue:          params.Venue,
		StartTime:      params.StartTime,
		RoyaltyBps:     params.RoyaltyBps,
		MaxTickets:     params.MaxTickets,
	}
	if err := v.SetEvent(event); err != nil {
		return nil, err
	}

	return event, nil
}

// MintParams describe one ticket issuance.
type MintParams struct {
	Caller       string
	EventID      string
	Seat         string
	MetadataHash model.BlobHash
	Holder       string
	HolderChain  string
	Minter       string
	MinterChain  string
}

// Mint issues one ticket against the event's remaining supply. The current
// minted count is the mint index fed to identity derivation, which keeps
// ids unique even when seat labels repeat. The royalty rate is copied from
// the event at mint time and never changes afterwards.
func (s *Service) Mint(v *ledger.View, params MintParams) (*model.Ticket, error) {
	event, err := v.Event(params.EventID)
	if err != nil {
		return nil, err
	}
	if !model.SameIdentity(event.Organizer, params.Caller) {
		return nil, ErrNotOrganizer
	}
	if event.MintedTickets >= event.MaxTickets {
		return nil, ErrSupplyExhausted
	}

	id := identity.Derive(
		s.chainID,
		s.applicationID,
		params.EventID,
		params.Seat,
		params.Minter,
		params.MetadataHash,
		event.MintedTickets,
	)

	ticket := &model.Ticket{
		ID:             id,
		EventID:        event.ID,
		EventName:      event.Name,
		Seat:           params.Seat,
		Organizer:      event.Organizer,
		OrganizerChain: event.OrganizerChain,
		Holder:         params.Holder,
		HolderChain:    params.HolderChain,
		Minter:         params.Minter,
		MinterChain:    params.MinterChain,
		RoyaltyBps:     event.RoyaltyBps,
		MetadataHash:   params.MetadataHash,
		History: []model.OwnershipRecord{{
			Kind:      model.OwnershipMinted,
			Holder:    params.Holder,
			Chain:     params.HolderChain,
			Timestamp: s.now().UnixNano(),
		}},
	}

	// Custody only lands in a holder's owned set on the chain the holder
	// resides on. A mint for a remote holder leaves a reference record here;
	// physical custody follows via a Transfer message.
	if ticket.HolderChain == s.chainID {
		if err := v.AddTicket(ticket); err != nil {
			return nil, err
		}
	} else {
		if err := v.SetTicket(ticket); err != nil {
			return nil, err
		}
	}

	event.MintedTickets++
	if err := v.SetEvent(event); err != nil {
		return nil, err
	}

	return ticket, nil
}
