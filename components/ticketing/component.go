package ticketing

import (
	"context"

	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"

	"github.com/dueldanov/ticketmesh/components/database"
	"github.com/dueldanov/ticketmesh/internal/chain"
	"github.com/dueldanov/ticketmesh/internal/network"
	"github.com/dueldanov/ticketmesh/pkg/daemon"
)

func init() {
	Component = &app.Component{
		Name:     "Ticketing",
		DepsFunc: func(cDeps dependencies) { deps = cDeps },
		Params:   params,
		IsEnabled: func(_ *dig.Container) bool {
			return ParamsTicketing.Enabled
		},
		Provide:   provide,
		Configure: configure,
		Run:       run,
	}
}

var (
	Component *app.Component
	deps      dependencies
)

// Topology is the set of chains hosted by this node: the hub plus its
// spokes, all wired to the same delivery substrate.
type Topology struct {
	Hub    *chain.Chain
	Spokes []*chain.Chain
}

// Chain returns the hosted chain with the given id, or nil.
func (t *Topology) Chain(chainID string) *chain.Chain {
	if t.Hub.ID() == chainID {
		return t.Hub
	}
	for _, spoke := range t.Spokes {
		if spoke.ID() == chainID {
			return spoke
		}
	}
	return nil
}

type dependencies struct {
	dig.In

	Network  *network.Network
	Topology *Topology
}

func provide(c *dig.Container) error {
	return c.Provide(func(net *network.Network, provider database.Provider) *Topology {
		newChain := func(chainID string) *chain.Chain {
			return chain.New(chain.Config{
				ChainID:       chainID,
				ApplicationID: ParamsTicketing.ApplicationID,
				HubChain:      ParamsTicketing.HubChain,
			}, provider(chainID), net, Component.App().NewLogger("Chain-"+chainID))
		}

		topology := &Topology{
			Hub: newChain(ParamsTicketing.HubChain),
		}
		for _, spokeID := range ParamsTicketing.SpokeChains {
			topology.Spokes = append(topology.Spokes, newChain(spokeID))
		}

		return topology
	})
}

func configure() error {
	Component.LogInfof("hosting hub %s with %d spokes", deps.Topology.Hub.ID(), len(deps.Topology.Spokes))
	return nil
}

func run() error {
	return Component.Daemon().BackgroundWorker("Ticketing", func(ctx context.Context) {
		if ParamsTicketing.SubscribeOnStart {
			for _, spoke := range deps.Topology.Spokes {
				if err := spoke.SubscribeToHub(); err != nil {
					Component.LogWarnf("failed to subscribe %s to the hub: %s", spoke.ID(), err)
				}
			}
		}

		<-ctx.Done()
	}, daemon.PriorityChains)
}
