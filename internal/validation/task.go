package validation

import (
	"fmt"
	"regexp"

	"github.com/voxnote/tasksync/internal/models"
)

// LabelPattern определяет допустимый формат метки задачи
// Только строчные латинские буквы, цифры, дефис (-)
// Длина: 1-32 символа
var LabelPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)

const (
	// MaxTitleLen максимальная длина заголовка задачи
	MaxTitleLen = 500
	// MaxDescriptionLen максимальная длина описания
	MaxDescriptionLen = 10000
	// MaxLabels максимальное число меток у одной задачи
	MaxLabels = 20
)

// ValidateTitle проверяет, что заголовок задачи непустой и укладывается
// в допустимую длину
func ValidateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}

	if len(title) > MaxTitleLen {
		return fmt.Errorf("title must not exceed %d characters", MaxTitleLen)
	}

	return nil
}

// ValidateStatus проверяет, что статус является одним из известных
func ValidateStatus(status models.TaskStatus) error {
	switch status {
	case models.StatusTodo, models.StatusInProgress, models.StatusCompleted:
		return nil
	}

	return fmt.Errorf("unknown status %q", status)
}

// ValidatePriority проверяет, что приоритет является одним из известных
func ValidatePriority(priority models.TaskPriority) error {
	switch priority {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		return nil
	}

	return fmt.Errorf("unknown priority %q", priority)
}

// ValidateLabel проверяет формат одной метки
// Формат: строчные латинские буквы, цифры, дефис; 1-32 символа
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("label cannot be empty")
	}

	if !LabelPattern.MatchString(label) {
		return fmt.Errorf("label can only contain lowercase letters, numbers, and hyphens")
	}

	return nil
}

// ValidateTask проверяет задачу целиком перед записью
func ValidateTask(task *models.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	if err := ValidateTitle(task.Title); err != nil {
		return err
	}

	if len(task.Description) > MaxDescriptionLen {
		return fmt.Errorf("description must not exceed %d characters", MaxDescriptionLen)
	}

	if err := ValidateStatus(task.Status); err != nil {
		return err
	}

	if err := ValidatePriority(task.Priority); err != nil {
		return err
	}

	if len(task.Labels) > MaxLabels {
		return fmt.Errorf("task must not have more than %d labels", MaxLabels)
	}
	for _, label := range task.Labels {
		if err := ValidateLabel(label); err != nil {
			return err
		}
	}

	return nil
}
