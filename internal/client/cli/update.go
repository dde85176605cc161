package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voxnote/tasksync/internal/client/engine"
	"github.com/voxnote/tasksync/internal/models"
)

func (c *Cli) RunUpdate(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: tasksync update <id> <field> <value>")
	}

	id, field := args[0], args[1]
	value := strings.Join(args[2:], " ")

	var updates engine.UpdateTaskInput
	switch field {
	case "title":
		updates.Title = &value
	case "description":
		updates.Description = &value
	case "status":
		status := models.TaskStatus(value)
		updates.Status = &status
	case "priority":
		priority := models.TaskPriority(value)
		updates.Priority = &priority
	case "assignee":
		updates.Assignee = &value
	default:
		return fmt.Errorf("unknown field %q. Use: title, description, status, priority, or assignee", field)
	}

	task, err := c.engine.UpdateTask(ctx, id, updates)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Task updated: %s (%s)\n", task.Title, task.ID)

	return nil
}

func (c *Cli) RunDone(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing task id. Usage: tasksync done <id>")
	}

	task, err := c.engine.ToggleStatus(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Task %s is now %s\n", task.ID, task.Status)

	return nil
}

func (c *Cli) RunSnooze(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: tasksync snooze <id> <duration> (e.g. 2h, 24h)")
	}

	duration, err := time.ParseDuration(args[1])
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", args[1], err)
	}

	until := time.Now().Add(duration)
	task, err := c.engine.Snooze(ctx, args[0], until)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Task %s snoozed until %s\n", task.ID, until.Format("2006-01-02 15:04"))

	return nil
}

func (c *Cli) RunLabel(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: tasksync label <id> +name|-name")
	}

	id, arg := args[0], args[1]

	var task *models.Task
	var err error
	switch {
	case strings.HasPrefix(arg, "+"):
		task, err = c.engine.AddLabel(ctx, id, strings.TrimPrefix(arg, "+"))
	case strings.HasPrefix(arg, "-"):
		task, err = c.engine.RemoveLabel(ctx, id, strings.TrimPrefix(arg, "-"))
	default:
		return fmt.Errorf("label argument must start with '+' or '-', got %q", arg)
	}
	if err != nil {
		return err
	}

	if len(task.Labels) == 0 {
		fmt.Fprintf(c.out, "Task %s has no labels\n", task.ID)
	} else {
		fmt.Fprintf(c.out, "Task %s labels: %s\n", task.ID, strings.Join(task.Labels, ", "))
	}

	return nil
}
