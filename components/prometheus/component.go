package prometheus

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"

	"github.com/dueldanov/ticketmesh/components/ticketing"
	"github.com/dueldanov/ticketmesh/pkg/daemon"
)

func init() {
	Component = &app.Component{
		Name:     "Prometheus",
		DepsFunc: func(cDeps dependencies) { deps = cDeps },
		Params:   params,
		IsEnabled: func(_ *dig.Container) bool {
			return ParamsPrometheus.Enabled
		},
		Configure: configure,
		Run:       run,
	}
}

var (
	Component *app.Component
	deps      dependencies

	registry = prometheus.NewRegistry()
	collects []func()
)

type dependencies struct {
	dig.In

	Topology *ticketing.Topology
}

func addCollect(collect func()) {
	collects = append(collects, collect)
}

func configure() error {
	if ParamsPrometheus.GoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
	}
	if ParamsPrometheus.ProcessMetrics {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	configureTicketing()

	return nil
}

func run() error {
	return Component.Daemon().BackgroundWorker("Prometheus", func(ctx context.Context) {
		Component.LogInfo("Starting Prometheus exporter...")

		e := echo.New()
		e.HideBanner = true
		e.GET("/metrics", func(c echo.Context) error {
			for _, collect := range collects {
				collect()
			}

			handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
			handler.ServeHTTP(c.Response(), c.Request())

			return nil
		})

		go func() {
			Component.LogInfof("You can now access the Prometheus exporter using: http://%s/metrics", ParamsPrometheus.BindAddress)
			if err := e.Start(ParamsPrometheus.BindAddress); err != nil && err != http.ErrServerClosed {
				Component.LogWarnf("Stopped Prometheus exporter due to an error (%s)", err)
			}
		}()

		<-ctx.Done()

		Component.LogInfo("Stopping Prometheus exporter...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.Shutdown(shutdownCtx); err != nil {
			Component.LogWarn(err)
		}
		cancel()
		Component.LogInfo("Stopped Prometheus exporter")
	}, daemon.PriorityPrometheus)
}
