package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lyzr/adstudio/cmd/adstudio/container"
	admiddleware "github.com/lyzr/adstudio/cmd/adstudio/middleware"
	"github.com/lyzr/adstudio/cmd/adstudio/routes"
	"github.com/lyzr/adstudio/common/bootstrap"
	"github.com/lyzr/adstudio/common/server"
	"github.com/tidwall/gjson"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bootstrap common components (store, logger, queue, telemetry)
	components, err := bootstrap.Setup(ctx, "adstudio")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap adstudio: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(context.Background())

	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	subscribeMixerEvents(ctx, components)

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components)
	registerRoutes(e, serviceContainer)

	startServer(ctx, e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(admiddleware.RequestContext())
	e.Use(admiddleware.ExtractActor())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "adstudio",
				"error":   err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "adstudio",
			"store":   components.Config.Store.Backend,
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterAdRoutes(e, serviceContainer)
}

// subscribeMixerEvents logs rebuild events so hooks can be traced locally
func subscribeMixerEvents(ctx context.Context, components *bootstrap.Components) {
	cfg := components.Config.Queue
	if components.Queue == nil || !cfg.EnableHooks {
		return
	}

	err := components.Queue.Subscribe(ctx, cfg.MixerTopic, func(ctx context.Context, key string, value []byte) error {
		event := gjson.ParseBytes(value)
		components.Logger.Info("mixer rebuilt",
			"ad_id", key,
			"layout_hash", event.Get("layoutHash").String(),
			"total_duration", event.Get("totalDuration").Float(),
			"tracks", event.Get("trackCount").Int(),
			"needs_render", !event.Get("mixedAudioUrl").Exists(),
		)
		return nil
	})
	if err != nil {
		components.Logger.Warn("failed to subscribe to mixer events", "topic", cfg.MixerTopic, "error", err)
	}
}

// startServer serves until ctx is cancelled by SIGINT or SIGTERM
func startServer(ctx context.Context, e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("Starting adstudio", "port", port, "store", components.Config.Store.Backend)

	srv := server.New("adstudio", port, e, components.Logger)
	if err := srv.Run(ctx); err != nil {
		components.Logger.Error("Server error", "error", err)
		components.Shutdown(context.Background())
		os.Exit(1)
	}
}
