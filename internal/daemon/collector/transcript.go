package collector

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/claudemon/logging"
	"github.com/grovetools/claudemon/pkg/models"
)

// TranscriptChecker flags visible sessions whose transcript is gone.
type TranscriptChecker interface {
	CheckTranscripts() ([]string, error)
}

// TranscriptCollector periodically checks that every visible session's
// transcript still exists, so sessions are marked missing without a UI read.
type TranscriptCollector struct {
	checker  TranscriptChecker
	interval time.Duration
	logger   *logrus.Entry
}

// NewTranscriptCollector creates a TranscriptCollector.
func NewTranscriptCollector(checker TranscriptChecker, interval time.Duration) *TranscriptCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &TranscriptCollector{
		checker:  checker,
		interval: interval,
		logger:   logging.NewLogger("collector"),
	}
}

// Name returns the collector's name.
func (c *TranscriptCollector) Name() string { return "transcript" }

// Run checks once immediately, then on every tick.
func (c *TranscriptCollector) Run(ctx context.Context, updates chan<- models.BridgeEvent) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	check := func() {
		flipped, err := c.checker.CheckTranscripts()
		if err != nil {
			// The flags are applied in memory even when the save fails.
			c.logger.WithError(err).Warn("Failed to persist transcript check")
		}
		if len(flipped) == 0 {
			return
		}
		c.logger.WithField("sessions", flipped).Info("Sessions marked missing")
		select {
		case updates <- models.NewEvent(models.EventRegistryUpdated, "", "", map[string][]string{"missing": flipped}):
		case <-ctx.Done():
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			check()
		}
	}
}
