package cli

import (
	"context"
	"fmt"
	"strconv"
)

func (c *Cli) RunCompact(ctx context.Context, args []string) error {
	retentionDays := 0
	if len(args) > 0 {
		days, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid retention days %q: %w", args[0], err)
		}
		retentionDays = days
	}

	result, err := c.store.CompactEvents(ctx, retentionDays)
	if err != nil {
		return fmt.Errorf("compaction failed: %w", err)
	}

	if result.Compacted == 0 {
		fmt.Fprintf(c.out, "Nothing to compact: no synced events older than %d days\n", result.RetentionDays)
		return nil
	}

	fmt.Fprintf(c.out, "Compacted %d synced event(s) older than %s (%d day retention)\n",
		result.Compacted, result.Cutoff.Format("2006-01-02"), result.RetentionDays)

	return nil
}
