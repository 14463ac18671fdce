package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dueldanov/ticketmesh/internal/chain"
	"github.com/dueldanov/ticketmesh/pkg/model"
)

var (
	ticketsMinted   *prometheus.CounterVec
	ticketsReceived *prometheus.CounterVec
	ticketsRestored *prometheus.CounterVec
	listingChanges  *prometheus.CounterVec
	catalogEvents   *prometheus.GaugeVec
	ticketRecords   *prometheus.GaugeVec
	totalRoyalties  prometheus.Gauge
)

func configureTicketing() {
	ticketsMinted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ticketmesh",
			Subsystem: "tickets",
			Name:      "minted_total",
			Help:      "Number of tickets minted per chain.",
		},
		[]string{"chain"},
	)

	ticketsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ticketmesh",
			Subsystem: "tickets",
			Name:      "received_total",
			Help:      "Number of custody changes committed per chain.",
		},
		[]string{"chain"},
	)

	ticketsRestored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ticketmesh",
			Subsystem: "tickets",
			Name:      "restored_total",
			Help:      "Number of bounced transfers rolled back per chain.",
		},
		[]string{"chain"},
	)

	listingChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ticketmesh",
			Subsystem: "market",
			Name:      "listing_changes_total",
			Help:      "Number of listing creations and status changes per chain.",
		},
		[]string{"chain"},
	)

	catalogEvents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ticketmesh",
			Subsystem: "catalog",
			Name:      "events",
			Help:      "Number of catalog entries known per chain.",
		},
		[]string{"chain"},
	)

	ticketRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ticketmesh",
			Subsystem: "tickets",
			Name:      "records",
			Help:      "Number of ticket records known per chain.",
		},
		[]string{"chain"},
	)

	totalRoyalties = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ticketmesh",
			Subsystem: "royalties",
			Name:      "accrued_total",
			Help:      "Total royalties ever accrued on the hub.",
		},
	)

	registry.MustRegister(ticketsMinted)
	registry.MustRegister(ticketsReceived)
	registry.MustRegister(ticketsRestored)
	registry.MustRegister(listingChanges)
	registry.MustRegister(catalogEvents)
	registry.MustRegister(ticketRecords)
	registry.MustRegister(totalRoyalties)

	hookChain(deps.Topology.Hub)
	for _, spoke := range deps.Topology.Spokes {
		hookChain(spoke)
	}

	addCollect(collectTicketing)
}

func hookChain(c *chain.Chain) {
	chainID := c.ID()
	c.Events.TicketMinted.Hook(func(_ *model.Ticket) {
		ticketsMinted.WithLabelValues(chainID).Inc()
	})
	c.Events.TicketReceived.Hook(func(_ *model.Ticket) {
		ticketsReceived.WithLabelValues(chainID).Inc()
	})
	c.Events.TicketRestored.Hook(func(_ *model.Ticket) {
		ticketsRestored.WithLabelValues(chainID).Inc()
	})
	c.Events.ListingChanged.Hook(func(_ *model.Listing) {
		listingChanges.WithLabelValues(chainID).Inc()
	})
}

func collectChain(c *chain.Chain) {
	events, err := c.EventRecords()
	if err == nil {
		catalogEvents.WithLabelValues(c.ID()).Set(float64(len(events)))
	}
	tickets, err := c.Tickets()
	if err == nil {
		ticketRecords.WithLabelValues(c.ID()).Set(float64(len(tickets)))
	}
}

func collectTicketing() {
	collectChain(deps.Topology.Hub)
	for _, spoke := range deps.Topology.Spokes {
		collectChain(spoke)
	}

	if total, err := deps.Topology.Hub.TotalRoyalties(); err == nil {
		totalRoyalties.Set(float64(total))
	}
}
