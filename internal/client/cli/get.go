package cli

import (
	"context"
	"fmt"
	"text/template"
)

func (c *Cli) RunGet(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing task id. Usage: tasksync get <id>")
	}

	task, err := c.engine.GetTask(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}

	tmpl, err := template.New("task").Parse(taskDetailTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse task template: %w", err)
	}

	return tmpl.Execute(c.out, task)
}
