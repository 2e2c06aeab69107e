package bootstrap

import (
	"context"
	"fmt"

	"github.com/lyzr/adstudio/common/config"
	"github.com/lyzr/adstudio/common/db"
	"github.com/lyzr/adstudio/common/kv"
	"github.com/lyzr/adstudio/common/logger"
	"github.com/lyzr/adstudio/common/queue"
	rediscommon "github.com/lyzr/adstudio/common/redis"
	"github.com/lyzr/adstudio/common/telemetry"
	"github.com/redis/go-redis/v9"
)

// Setup initializes all service components
// This is the main entry point for all services
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
		"store", components.Config.Store.Backend,
	)

	// 3. Initialize database (only the postgres store needs it)
	if options.customStore == nil && components.Config.UsesDatabase() {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing database connection")
			components.DB.Close()
			return nil
		})
	}

	// 4. Initialize redis (redis store or rate limiting)
	needsRedis := components.Config.RateLimit.Enabled ||
		(options.customStore == nil && components.Config.Store.Backend == "redis")
	if needsRedis {
		components.Redis, err = connectRedis(ctx, components)
		if err != nil {
			components.Shutdown(ctx)
			return nil, err
		}
		components.addCleanup(func() error {
			components.Logger.Info("closing redis connection")
			return components.Redis.Close()
		})
	}

	// 5. Initialize store
	if options.customStore != nil {
		components.Store = options.customStore
	} else {
		components.Store, err = newStore(ctx, components)
		if err != nil {
			components.Shutdown(ctx)
			return nil, err
		}
	}
	components.addCleanup(func() error {
		components.Logger.Info("closing store")
		return components.Store.Close()
	})

	// 6. Initialize queue (if not skipped)
	if !options.skipQueue {
		components.Logger.Info("initializing queue",
			"type", components.Config.Queue.Type,
		)

		switch components.Config.Queue.Type {
		case "memory":
			components.Queue = queue.NewMemoryQueue(components.Logger, components.Config.Queue.BufferSize)
		default:
			components.Shutdown(ctx)
			return nil, fmt.Errorf("unknown queue type: %s", components.Config.Queue.Type)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing queue")
			return components.Queue.Close()
		})
	}

	// 7. Initialize telemetry (if not skipped)
	if !options.skipTelemetry {
		components.Telemetry = telemetry.New(components.Config.Telemetry.PprofPort, components.Logger)

		if components.Config.Telemetry.EnablePprof {
			if err := components.Telemetry.Start(ctx); err != nil {
				// Don't fail startup if telemetry fails
				components.Logger.Warn("failed to start telemetry", "error", err)
			}
			components.addCleanup(func() error {
				return components.Telemetry.Stop(context.Background())
			})
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"queue", components.Queue != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

func newStore(ctx context.Context, c *Components) (kv.Store, error) {
	cfg := c.Config
	lockOpts := kv.LockOptions{TTL: cfg.Store.LockTTL, Wait: cfg.Store.LockWait}

	switch cfg.Store.Backend {
	case "memory":
		return kv.NewMemoryStore(c.Logger, lockOpts), nil

	case "redis":
		if c.Redis == nil {
			return nil, fmt.Errorf("redis store requires a redis connection")
		}
		return kv.NewRedisStore(c.Redis, cfg.Store.KeyPrefix, lockOpts, c.Logger), nil

	case "postgres":
		if c.DB == nil {
			return nil, fmt.Errorf("postgres store requires a database connection")
		}
		if err := kv.EnsureSchema(ctx, c.DB); err != nil {
			return nil, err
		}
		return kv.NewPostgresStore(c.DB, cfg.Store.KeyPrefix, lockOpts), nil

	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func connectRedis(ctx context.Context, c *Components) (*rediscommon.Client, error) {
	cfg := c.Config
	client := rediscommon.NewClient(redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}), c.Logger)

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c.Logger.Info("redis connected", "addr", cfg.RedisAddr(), "db", cfg.Redis.DB)
	return client, nil
}
