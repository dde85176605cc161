package cli

import (
	"context"
	"fmt"
)

func (c *Cli) RunSync(ctx context.Context) error {
	if !c.transport.IsConnected() {
		return fmt.Errorf("server is unreachable; queued mutations will replay on reconnect")
	}

	result, err := c.queue.Replay(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Fprintf(c.out, "Sync finished: %d delivered, %d already applied, %d rejected, %d still queued\n",
		result.Replayed, result.Duplicates, result.Rejected, result.Remaining)

	// Сверяем состояние после доставки
	drifted, err := c.engine.CheckDrift(ctx)
	if err != nil {
		return fmt.Errorf("drift check failed: %w", err)
	}
	if drifted {
		fmt.Fprintln(c.out, "Warning: local state diverged from the server; a re-fetch was requested")
	}

	return nil
}
