package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxnote/tasksync/internal/models"
)

func TestValidateTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid title",
			title:   "Review meeting notes",
			wantErr: false,
		},
		{
			name:    "valid title - max length",
			title:   strings.Repeat("a", MaxTitleLen),
			wantErr: false,
		},
		{
			name:    "invalid - empty",
			title:   "",
			wantErr: true,
			errMsg:  "title cannot be empty",
		},
		{
			name:    "invalid - too long",
			title:   strings.Repeat("a", MaxTitleLen+1),
			wantErr: true,
			errMsg:  "must not exceed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTitle(tt.title)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateStatus(t *testing.T) {
	assert.NoError(t, ValidateStatus(models.StatusTodo))
	assert.NoError(t, ValidateStatus(models.StatusInProgress))
	assert.NoError(t, ValidateStatus(models.StatusCompleted))
	assert.Error(t, ValidateStatus(models.TaskStatus("archived")))
	assert.Error(t, ValidateStatus(models.TaskStatus("")))
}

func TestValidatePriority(t *testing.T) {
	assert.NoError(t, ValidatePriority(models.PriorityLow))
	assert.NoError(t, ValidatePriority(models.PriorityMedium))
	assert.NoError(t, ValidatePriority(models.PriorityHigh))
	assert.Error(t, ValidatePriority(models.TaskPriority("urgent")))
}

func TestValidateLabel(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		wantErr bool
	}{
		{name: "valid - lowercase", label: "followup", wantErr: false},
		{name: "valid - with hyphen", label: "action-item", wantErr: false},
		{name: "valid - with numbers", label: "q3-2026", wantErr: false},
		{name: "valid - single char", label: "a", wantErr: false},
		{name: "invalid - empty", label: "", wantErr: true},
		{name: "invalid - uppercase", label: "Followup", wantErr: true},
		{name: "invalid - spaces", label: "action item", wantErr: true},
		{name: "invalid - leading hyphen", label: "-urgent", wantErr: true},
		{name: "invalid - too long", label: strings.Repeat("a", 33), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLabel(tt.label)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTask(t *testing.T) {
	valid := func() *models.Task {
		return &models.Task{
			ID:       "1",
			Title:    "Prepare agenda",
			Status:   models.StatusTodo,
			Priority: models.PriorityMedium,
			Labels:   []string{"meeting", "q3-2026"},
		}
	}

	t.Run("valid task", func(t *testing.T) {
		assert.NoError(t, ValidateTask(valid()))
	})

	t.Run("nil task", func(t *testing.T) {
		assert.Error(t, ValidateTask(nil))
	})

	t.Run("bad label rejected", func(t *testing.T) {
		task := valid()
		task.Labels = append(task.Labels, "Bad Label")
		assert.Error(t, ValidateTask(task))
	})

	t.Run("too many labels", func(t *testing.T) {
		task := valid()
		task.Labels = nil
		for i := 0; i <= MaxLabels; i++ {
			task.Labels = append(task.Labels, "l"+strings.Repeat("a", i%5+1))
		}
		require.Greater(t, len(task.Labels), MaxLabels)
		assert.Error(t, ValidateTask(task))
	})

	t.Run("long description rejected", func(t *testing.T) {
		task := valid()
		task.Description = strings.Repeat("x", MaxDescriptionLen+1)
		assert.Error(t, ValidateTask(task))
	})
}
