package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/service"
)

// SLASweeper periodically evaluates open tickets for SLA breaches. Each
// pass runs to completion synchronously; safety against concurrent
// request handling comes from the conditional flag write inside the
// sweep, not from this loop.
type SLASweeper struct {
	sla      *service.SLAService
	interval time.Duration
	logger   *zap.Logger
}

// NewSLASweeper constructs the sweeper.
func NewSLASweeper(slaService *service.SLAService, interval time.Duration, logger *zap.Logger) *SLASweeper {
	return &SLASweeper{sla: slaService, interval: interval, logger: logger}
}

// Run blocks, sweeping on every tick until ctx is cancelled. Intended to
// be started in its own goroutine.
func (w *SLASweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("sla sweeper started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SLASweeper) sweep(ctx context.Context) {
	flagged, err := w.sla.RunSweep(ctx, time.Now().UTC())
	if err != nil {
		w.logger.Error("sla sweep failed", zap.Error(err))
		return
	}
	if len(flagged) > 0 {
		w.logger.Info("sla sweep flagged tickets", zap.Strings("tickets", flagged))
	}
}

// StartDeliveryWorker registers outbound delivery handlers.
func StartDeliveryWorker(deliveryService *service.DeliveryService) {
	if deliveryService == nil {
		return
	}
	deliveryService.RegisterHandlers()
}
