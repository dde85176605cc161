package cli

import (
	"context"
	"fmt"
)

func (c *Cli) RunDelete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing task id. Usage: tasksync delete <id>")
	}

	if err := c.engine.DeleteTask(ctx, args[0]); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Task %s deleted\n", args[0])

	return nil
}
