package collector

import (
	"context"
	"strings"
	"time"

	"github.com/grovetools/claudemon/pkg/models"
)

// WorkspaceLister returns the current workspace list.
type WorkspaceLister interface {
	List() ([]models.WorkspaceEntry, error)
}

// WorkspaceCollector reports changes to workspaces.json. The first read
// only records a baseline.
type WorkspaceCollector struct {
	lister   WorkspaceLister
	interval time.Duration
}

// NewWorkspaceCollector creates a new WorkspaceCollector.
func NewWorkspaceCollector(lister WorkspaceLister, interval time.Duration) *WorkspaceCollector {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &WorkspaceCollector{lister: lister, interval: interval}
}

// Name returns the collector's name.
func (c *WorkspaceCollector) Name() string { return "workspace" }

// Run polls the workspace list and emits workspaces/updated with the full
// list whenever an id or path changes.
func (c *WorkspaceCollector) Run(ctx context.Context, updates chan<- models.BridgeEvent) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	last, baseline := "", false
	scan := func() {
		list, err := c.lister.List()
		if err != nil {
			return
		}
		sig := signature(list)
		if baseline && sig == last {
			return
		}
		changed := baseline
		last, baseline = sig, true
		if !changed {
			return
		}
		select {
		case updates <- models.NewEvent(models.EventWorkspaces, "", "", list):
		case <-ctx.Done():
		}
	}

	scan()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			scan()
		}
	}
}

func signature(list []models.WorkspaceEntry) string {
	var b strings.Builder
	for _, ws := range list {
		b.WriteString(ws.ID)
		b.WriteByte('=')
		b.WriteString(ws.Path)
		b.WriteByte('\n')
	}
	return b.String()
}
