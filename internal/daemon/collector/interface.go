// Package collector provides background workers that watch on-disk state
// and report changes as events.
package collector

import (
	"context"

	"github.com/grovetools/claudemon/pkg/models"
)

// Collector is a background worker that polls a source and emits events.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run blocks until ctx is canceled, sending events on updates.
	Run(ctx context.Context, updates chan<- models.BridgeEvent) error
}
