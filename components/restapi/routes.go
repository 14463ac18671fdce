package restapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/dueldanov/ticketmesh/internal/chain"
	"github.com/dueldanov/ticketmesh/internal/ledger"
	"github.com/dueldanov/ticketmesh/pkg/model"
)

// The API is read-only; all mutations enter the system through the chains
// themselves. The chain query parameter selects a hosted chain, defaulting
// to the hub.

func setupRoutes(e *echo.Echo) {
	e.GET("/health", health)

	api := e.Group("/api/v1")
	api.GET("/events", listEvents)
	api.GET("/events/:eventID", getEvent)
	api.GET("/tickets", listTickets)
	api.GET("/tickets/:ticketID", getTicket)
	api.GET("/listings", listListings)
	api.GET("/holders/:holder/tickets", ownedTickets)
	api.GET("/holders/:holder/balance", royaltyBalance)
	api.GET("/royalties", totalRoyalties)
}

func selectedChain(c echo.Context) (*chain.Chain, error) {
	chainID := c.QueryParam("chain")
	if chainID == "" {
		return deps.Topology.Hub, nil
	}

	selected := deps.Topology.Chain(chainID)
	if selected == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown chain: "+chainID)
	}
	return selected, nil
}

func health(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func listEvents(c echo.Context) error {
	selected, err := selectedChain(c)
	if err != nil {
		return err
	}

	events, err := selected.EventRecords()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

func getEvent(c echo.Context) error {
	selected, err := selectedChain(c)
	if err != nil {
		return err
	}

	event, err := selected.EventRecord(c.Param("eventID"))
	if errors.Is(err, ledger.ErrEventNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, event)
}

func listTickets(c echo.Context) error {
	selected, err := selectedChain(c)
	if err != nil {
		return err
	}

	tickets, err := selected.Tickets()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tickets)
}

func getTicket(c echo.Context) error {
	selected, err := selectedChain(c)
	if err != nil {
		return err
	}

	ticketID, err := model.TicketIDFromHex(c.Param("ticketID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ticket, err := selected.Ticket(ticketID)
	if errors.Is(err, ledger.ErrTicketNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ticket)
}

func listListings(c echo.Context) error {
	selected, err := selectedChain(c)
	if err != nil {
		return err
	}

	listings, err := selected.Listings()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, listings)
}

func ownedTickets(c echo.Context) error {
	selected, err := selectedChain(c)
	if err != nil {
		return err
	}

	ids, err := selected.OwnedTickets(c.Param("holder"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ids)
}

func royaltyBalance(c echo.Context) error {
	selected, err := selectedChain(c)
	if err != nil {
		return err
	}

	balance, err := selected.RoyaltyBalance(c.Param("holder"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, balance)
}

func totalRoyalties(c echo.Context) error {
	selected, err := selectedChain(c)
	if err != nil {
		return err
	}

	total, err := selected.TotalRoyalties()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]uint64{"total_royalties": total})
}
