package cli

import (
	"context"
	"fmt"
	"text/template"

	"github.com/voxnote/tasksync/internal/models"
)

type statusView struct {
	Stats     *models.StoreStats
	Connected bool
}

func (c *Cli) RunStatus(ctx context.Context) error {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read store stats: %w", err)
	}

	tmpl, err := template.New("status").Parse(statusTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse status template: %w", err)
	}

	return tmpl.Execute(c.out, statusView{
		Stats:     stats,
		Connected: c.transport.IsConnected(),
	})
}
