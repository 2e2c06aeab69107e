package bootstrap

import (
	"github.com/lyzr/adstudio/common/config"
	"github.com/lyzr/adstudio/common/kv"
	"github.com/lyzr/adstudio/common/logger"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	skipQueue     bool
	skipTelemetry bool
	customLogger  *logger.Logger
	customConfig  *config.Config
	customStore   kv.Store
}

// WithoutQueue skips queue initialization
func WithoutQueue() Option {
	return func(o *options) {
		o.skipQueue = true
	}
}

// WithoutTelemetry skips telemetry initialization
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

// WithCustomStore uses the given store instead of building one from config.
// The store is closed on Shutdown.
func WithCustomStore(store kv.Store) Option {
	return func(o *options) {
		o.customStore = store
	}
}

func defaultOptions() *options {
	return &options{}
}
