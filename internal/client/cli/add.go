package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/voxnote/tasksync/internal/client/engine"
	"github.com/voxnote/tasksync/internal/models"
)

func (c *Cli) RunAdd(ctx context.Context, args []string) error {
	title, rest := splitTitleAndFlags(args)
	if title == "" {
		return fmt.Errorf("missing title. Usage: tasksync add <title> [--priority low|medium|high] [--label name] [--due 2026-09-01] [--assignee name]")
	}

	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	priority := fs.String("priority", "medium", "Task priority (low, medium, high)")
	label := fs.String("label", "", "Label to attach")
	due := fs.String("due", "", "Due date (YYYY-MM-DD)")
	assignee := fs.String("assignee", "", "Assignee name")
	description := fs.String("description", "", "Task description")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	input := engine.CreateTaskInput{
		Title:       title,
		Description: *description,
		Priority:    models.TaskPriority(*priority),
		Assignee:    *assignee,
	}
	if *label != "" {
		input.Labels = []string{*label}
	}
	if *due != "" {
		dueDate, err := time.ParseInLocation("2006-01-02", *due, time.Local)
		if err != nil {
			return fmt.Errorf("invalid due date %q: %w", *due, err)
		}
		input.DueDate = &dueDate
	}

	task, err := c.engine.CreateTask(ctx, input)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Task created: %s (%s)\n", task.Title, task.ID)

	return nil
}
