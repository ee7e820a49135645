package service

import (
	"context"
	"log/slog"
	"time"
)

// Worker polls for due retries on a fixed interval and hands them to the
// service. One worker per process is enough; attempts are serialized so the
// single registry session is never contended.
type Worker struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

func NewWorker(service *Service, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{service: service, interval: interval, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "retry worker started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "retry worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.service.RunDue(ctx); err != nil {
				w.logger.ErrorContext(ctx, "retry sweep failed", "error", err.Error())
			}
		}
	}
}
