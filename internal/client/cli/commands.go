package cli

import (
	"context"
	"fmt"
	"os"
)

func (c *Cli) Run(ctx context.Context, command string, args []string) {
	var err error

	switch command {
	case "add":
		err = c.RunAdd(ctx, args)
	case "list":
		err = c.RunList(ctx, args)
	case "get":
		err = c.RunGet(ctx, args)
	case "update":
		err = c.RunUpdate(ctx, args)
	case "done":
		err = c.RunDone(ctx, args)
	case "snooze":
		err = c.RunSnooze(ctx, args)
	case "label":
		err = c.RunLabel(ctx, args)
	case "delete":
		err = c.RunDelete(ctx, args)
	case "sync":
		err = c.RunSync(ctx)
	case "status":
		err = c.RunStatus(ctx)
	case "compact":
		err = c.RunCompact(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		PrintUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Команда завершена: дожидаемся фоновых сверок перед выходом
	c.engine.Wait()
}
