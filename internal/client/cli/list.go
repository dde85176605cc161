package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"text/template"

	"github.com/voxnote/tasksync/internal/models"
)

func (c *Cli) RunList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	status := fs.String("status", "", "Filter by status (todo, in_progress, completed)")
	priority := fs.String("priority", "", "Filter by priority (low, medium, high)")
	search := fs.String("search", "", "Case-insensitive substring match on title/description")
	label := fs.String("label", "", "Filter by label")
	due := fs.String("due", "", "Filter by due bucket (today, overdue, this_week)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filters := models.TaskFilters{
		Status:    models.TaskStatus(*status),
		Priority:  models.TaskPriority(*priority),
		Search:    *search,
		DueBucket: *due,
	}
	if *label != "" {
		filters.Labels = []string{*label}
	}

	tasks, err := c.engine.GetFilteredTasks(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	// Последние использованные фильтры доступны следующему сеансу
	if raw, err := json.Marshal(filters); err == nil {
		_ = c.store.SetViewState(ctx, "filters", raw)
	}

	tmpl, err := template.New("list").Parse(taskListTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse list template: %w", err)
	}

	return tmpl.Execute(c.out, tasks)
}
