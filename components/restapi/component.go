package restapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/dig"
	"golang.org/x/time/rate"

	"github.com/iotaledger/hive.go/app"

	"github.com/dueldanov/ticketmesh/components/ticketing"
	"github.com/dueldanov/ticketmesh/pkg/daemon"
)

func init() {
	Component = &app.Component{
		Name:     "RestAPI",
		DepsFunc: func(cDeps dependencies) { deps = cDeps },
		Params:   params,
		IsEnabled: func(_ *dig.Container) bool {
			return ParamsRestAPI.Enabled
		},
		Configure: configure,
		Run:       run,
	}
}

var (
	Component *app.Component
	deps      dependencies
	server    *echo.Echo
)

type dependencies struct {
	dig.In

	Topology *ticketing.Topology
}

// ipRateLimiter tracks one token bucket per client IP.
type ipRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
}

func newIPRateLimiter(r float64, b int) *ipRateLimiter {
	return &ipRateLimiter{
		rate:  rate.Limit(r),
		burst: b,
	}
}

func (i *ipRateLimiter) getLimiter(ip string) *rate.Limiter {
	if limiter, ok := i.limiters.Load(ip); ok {
		return limiter.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(i.rate, i.burst)
	i.limiters.Store(ip, limiter)
	return limiter
}

func rateLimitMiddleware(rl *ipRateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.getLimiter(c.RealIP()).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

func configure() error {
	server = echo.New()
	server.HideBanner = true
	server.Use(middleware.Recover())
	if ParamsRestAPI.UseGZIP {
		server.Use(middleware.Gzip())
	}
	if ParamsRestAPI.RateLimiting.Enabled {
		server.Use(rateLimitMiddleware(newIPRateLimiter(
			ParamsRestAPI.RateLimiting.MaxRequestsPerSecond,
			ParamsRestAPI.RateLimiting.Burst,
		)))
	}

	setupRoutes(server)

	return nil
}

func run() error {
	return Component.Daemon().BackgroundWorker("RestAPI", func(ctx context.Context) {
		Component.LogInfo("Starting REST API server...")

		go func() {
			Component.LogInfof("You can now access the API using: http://%s", ParamsRestAPI.BindAddress)
			if err := server.Start(ParamsRestAPI.BindAddress); err != nil && err != http.ErrServerClosed {
				Component.LogWarnf("Stopped REST API server due to an error (%s)", err)
			}
		}()

		<-ctx.Done()

		Component.LogInfo("Stopping REST API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			Component.LogWarn(err)
		}
		cancel()
		Component.LogInfo("Stopped REST API server")
	}, daemon.PriorityRestAPI)
}
