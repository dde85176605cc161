package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/voxnote/tasksync/internal/models"
)

// ToggleStatus advances the task through todo -> in_progress ->
// completed -> todo
func (s *service) ToggleStatus(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}

	var next models.TaskStatus
	switch task.Status {
	case models.StatusTodo:
		next = models.StatusInProgress
	case models.StatusInProgress:
		next = models.StatusCompleted
	default:
		next = models.StatusTodo
	}

	return s.UpdateTask(ctx, id, UpdateTaskInput{Status: &next})
}

// Snooze hides the task from filtered views until the given time.
// With a scheduler attached the record is repainted when it wakes.
func (s *service) Snooze(ctx context.Context, id string, until time.Time) (*models.Task, error) {
	task, err := s.UpdateTask(ctx, id, UpdateTaskInput{SnoozedUntil: &until})
	if err != nil {
		return nil, err
	}

	if s.scheduler != nil {
		s.scheduler.Schedule(until, func() {
			s.wakeSnoozed(id)
		})
	}

	return task, nil
}

// wakeSnoozed перерисовывает проснувшуюся задачу
func (s *service) wakeSnoozed(id string) {
	woken, err := s.store.GetTask(context.Background(), id)
	if err != nil {
		// Задача могла быть удалена, пока спала
		return
	}

	if err := s.renderer.RenderRecord(woken); err != nil {
		s.logger.Warn("failed to repaint woken task", "task_id", id, "error", err)
	}
}

// UpdatePriority меняет приоритет задачи
func (s *service) UpdatePriority(ctx context.Context, id string, priority models.TaskPriority) (*models.Task, error) {
	return s.UpdateTask(ctx, id, UpdateTaskInput{Priority: &priority})
}

// AddLabel навешивает метку; повторное добавление не изменяет задачу
func (s *service) AddLabel(ctx context.Context, id string, label string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}

	if task.HasLabel(label) {
		return task, nil
	}

	labels := append(append([]string{}, task.Labels...), label)

	return s.UpdateTask(ctx, id, UpdateTaskInput{Labels: &labels})
}

// RemoveLabel снимает метку; отсутствующая метка не изменяет задачу
func (s *service) RemoveLabel(ctx context.Context, id string, label string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}

	if !task.HasLabel(label) {
		return task, nil
	}

	labels := make([]string, 0, len(task.Labels)-1)
	for _, l := range task.Labels {
		if l != label {
			labels = append(labels, l)
		}
	}

	return s.UpdateTask(ctx, id, UpdateTaskInput{Labels: &labels})
}
