package ticketmesh

import (
	"context"

	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"

	"github.com/dueldanov/ticketmesh/internal/network"
	"github.com/dueldanov/ticketmesh/pkg/daemon"
)

func init() {
	Component = &app.Component{
		Name:     "TicketMesh",
		DepsFunc: func(cDeps dependencies) { deps = cDeps },
		Provide:  provide,
		Run:      run,
	}
}

var (
	Component *app.Component
	deps      dependencies
)

type dependencies struct {
	dig.In

	Network *network.Network
}

func provide(c *dig.Container) error {
	return c.Provide(func() *network.Network {
		return network.New(Component.App().NewLogger("Network"))
	})
}

func run() error {
	return Component.Daemon().BackgroundWorker("Network", func(ctx context.Context) {
		Component.LogInfo("Starting message delivery...")
		deps.Network.Run(ctx)
		Component.LogInfo("Stopped message delivery")
	}, daemon.PriorityNetwork)
}
