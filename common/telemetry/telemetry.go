package telemetry

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/lyzr/adstudio/common/logger"
)

// Telemetry holds observability components
type Telemetry struct {
	log       *logger.Logger
	pprofAddr string
	server    *http.Server
}

// New creates telemetry components
func New(pprofPort int, log *logger.Logger) *Telemetry {
	return &Telemetry{
		log:       log,
		pprofAddr: fmt.Sprintf("localhost:%d", pprofPort),
	}
}

// Start starts the pprof endpoint
func (t *Telemetry) Start(ctx context.Context) error {
	t.server = &http.Server{Addr: t.pprofAddr, Handler: http.DefaultServeMux}

	go func() {
		t.log.Info("pprof server starting", "addr", t.pprofAddr)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.log.Error("pprof server error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the pprof endpoint down
func (t *Telemetry) Stop(ctx context.Context) error {
	if t == nil || t.server == nil {
		return nil
	}
	return t.server.Shutdown(ctx)
}

// RecordDuration records operation duration; safe on a nil receiver
func (t *Telemetry) RecordDuration(operation string, start time.Time, attrs ...any) {
	if t == nil {
		return
	}
	args := append([]any{"operation", operation, "duration_ms", time.Since(start).Milliseconds()}, attrs...)
	t.log.Debug("operation completed", args...)
}
