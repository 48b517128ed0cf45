package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pointsbot/internal/events"
	"pointsbot/internal/logger"
)

// EventWorker requests resolution on live events once their deadline has
// passed. The events themselves only guarantee the correctness of the
// transition; the timing policy lives here.
type EventWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	ticker   *time.Ticker
	registry *events.Registry
}

// NewEventWorker creates a worker scanning the registry on the given interval.
func NewEventWorker(registry *events.Registry, interval time.Duration) *EventWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventWorker{
		ctx:      ctx,
		cancel:   cancel,
		ticker:   time.NewTicker(interval),
		registry: registry,
	}
}

// Start begins the background worker
func (w *EventWorker) Start() {
	logger.Debug("", "event_worker_started", "")

	// Run immediately on start
	w.resolveDueEvents()

	go func() {
		for {
			select {
			case <-w.ticker.C:
				w.resolveDueEvents()
			case <-w.ctx.Done():
				logger.Debug("", "event_worker_stopped", "")
				return
			}
		}
	}()
}

// Stop stops the background worker
func (w *EventWorker) Stop() {
	w.ticker.Stop()
	w.cancel()
}

// resolveDueEvents requests resolution on every open event past its deadline.
func (w *EventWorker) resolveDueEvents() {
	now := time.Now()
	for _, ev := range w.registry.All() {
		if ev.State() != events.StateOpen || now.Before(ev.Deadline()) {
			continue
		}
		if err := ev.RequestResolution(); err != nil {
			if errors.Is(err, events.ErrInvalidState) {
				// Lost a race with another resolution path; nothing to do.
				logger.Debug("", "event_worker_stale_resolution", fmt.Sprintf("event_id=%s kind=%s", ev.ID, ev.Kind))
				continue
			}
			logger.Debug("", "event_worker_resolve_failed", fmt.Sprintf("event_id=%s kind=%s error=%s", ev.ID, ev.Kind, err.Error()))
		}
	}
}
