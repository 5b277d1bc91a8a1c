// Package engine runs the daemon's background collectors and forwards what
// they report to event listeners.
package engine

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/grovetools/claudemon/internal/daemon/collector"
	"github.com/grovetools/claudemon/pkg/bridge"
	"github.com/grovetools/claudemon/pkg/models"
)

// Engine manages and runs all collectors.
type Engine struct {
	events     bridge.Publisher
	collectors []collector.Collector
	logger     *logrus.Entry
}

// New creates an Engine that publishes collector output to events.
func New(events bridge.Publisher, logger *logrus.Entry) *Engine {
	return &Engine{
		events: events,
		logger: logger,
	}
}

// Register adds a collector to the engine.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
}

// Start runs all collectors and blocks until ctx is canceled and every
// collector has returned.
func (e *Engine) Start(ctx context.Context) {
	updates := make(chan models.BridgeEvent, 100)
	var wg conc.WaitGroup

	wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-updates:
				e.events.Publish(ev)
			}
		}
	})

	for _, c := range e.collectors {
		col := c
		wg.Go(func() {
			e.logger.WithField("collector", col.Name()).Info("Starting collector")
			if err := col.Run(ctx, updates); err != nil {
				e.logger.WithField("collector", col.Name()).WithError(err).Error("Collector failed")
			}
		})
	}

	wg.Wait()
}
