package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/lyzr/adstudio/common/config"
	"github.com/lyzr/adstudio/common/kv"
	"github.com/lyzr/adstudio/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{Name: "test", Port: 8080},
		Store:   config.StoreConfig{Backend: "memory", LockTTL: time.Second, LockWait: time.Second},
		Queue:   config.QueueConfig{Type: "memory", BufferSize: 8, MixerTopic: "mixer.rebuilt"},
	}
}

func TestSetupMemoryStack(t *testing.T) {
	ctx := context.Background()

	c, err := Setup(ctx, "test",
		WithCustomConfig(memoryConfig()),
		WithCustomLogger(logger.Discard()),
	)
	require.NoError(t, err)

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Redis)
	assert.IsType(t, &kv.MemoryStore{}, c.Store)
	assert.NotNil(t, c.Queue)
	assert.NotNil(t, c.Telemetry)
	assert.NoError(t, c.Health(ctx))

	require.NoError(t, c.Shutdown(ctx))
	// second shutdown has nothing left to clean up
	require.NoError(t, c.Shutdown(ctx))
}

func TestSetupWithCustomStoreAndSkips(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore(logger.Discard(), kv.DefaultLockOptions())

	cfg := memoryConfig()
	cfg.Store.Backend = "postgres"

	c, err := Setup(ctx, "test",
		WithCustomConfig(cfg),
		WithCustomLogger(logger.Discard()),
		WithCustomStore(store),
		WithoutQueue(),
		WithoutTelemetry(),
	)
	require.NoError(t, err)
	defer c.Shutdown(ctx)

	// a custom store means no database is dialled even for the postgres backend
	assert.Nil(t, c.DB)
	assert.Same(t, store, c.Store)
	assert.Nil(t, c.Queue)
	assert.Nil(t, c.Telemetry)
}

func TestSetupRejectsUnknownQueue(t *testing.T) {
	cfg := memoryConfig()
	cfg.Queue.Type = "kafka"

	_, err := Setup(context.Background(), "test",
		WithCustomConfig(cfg),
		WithCustomLogger(logger.Discard()),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown queue type")
}
