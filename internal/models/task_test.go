package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTempID(t *testing.T) {
	id := NewTempID()

	assert.True(t, IsTempID(id), "generated id should be recognized as temporary")
	assert.False(t, IsTempID("42"), "server ids are not temporary")
	assert.False(t, IsTempID("b692f5c0-2d88-4aa1"), "uuid ids are not temporary")
}

func TestTask_Clone(t *testing.T) {
	due := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	task := &Task{
		ID:       "42",
		Title:    "Prepare meeting notes",
		Status:   StatusTodo,
		Priority: PriorityHigh,
		Labels:   []string{"meeting", "urgent"},
		DueDate:  &due,
	}

	cloned := task.Clone()
	require.Equal(t, task, cloned)

	// Мутация клона не затрагивает оригинал
	cloned.Labels[0] = "changed"
	*cloned.DueDate = cloned.DueDate.AddDate(0, 1, 0)

	assert.Equal(t, "meeting", task.Labels[0])
	assert.Equal(t, due, *task.DueDate)
}

func TestTaskFilters_Matches(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	today := time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	nextMonth := now.AddDate(0, 1, 0)
	inThreeDays := now.AddDate(0, 0, 3)

	base := Task{
		ID:          "1",
		Title:       "Review Transcript",
		Description: "Check action items from standup",
		Status:      StatusTodo,
		Priority:    PriorityMedium,
		Labels:      []string{"meeting", "review"},
	}

	withDue := func(due time.Time) *Task {
		t := base.Clone()
		t.DueDate = &due
		return t
	}

	tests := []struct {
		name    string
		task    *Task
		filters TaskFilters
		matches bool
	}{
		{"no filters", base.Clone(), TaskFilters{}, true},
		{"status match", base.Clone(), TaskFilters{Status: StatusTodo}, true},
		{"status mismatch", base.Clone(), TaskFilters{Status: StatusCompleted}, false},
		{"priority match", base.Clone(), TaskFilters{Priority: PriorityMedium}, true},
		{"priority mismatch", base.Clone(), TaskFilters{Priority: PriorityHigh}, false},
		{"search title case-insensitive", base.Clone(), TaskFilters{Search: "transcript"}, true},
		{"search description", base.Clone(), TaskFilters{Search: "ACTION"}, true},
		{"search miss", base.Clone(), TaskFilters{Search: "budget"}, false},
		{"label intersection", base.Clone(), TaskFilters{Labels: []string{"meeting", "review"}}, true},
		{"label missing", base.Clone(), TaskFilters{Labels: []string{"meeting", "billing"}}, false},
		{"due today", withDue(today), TaskFilters{DueBucket: DueToday}, true},
		{"due today excludes tomorrow", withDue(inThreeDays), TaskFilters{DueBucket: DueToday}, false},
		{"overdue", withDue(yesterday), TaskFilters{DueBucket: DueOverdue}, true},
		{"overdue excludes today", withDue(today), TaskFilters{DueBucket: DueOverdue}, false},
		{"this week", withDue(inThreeDays), TaskFilters{DueBucket: DueThisWeek}, true},
		{"this week excludes next month", withDue(nextMonth), TaskFilters{DueBucket: DueThisWeek}, false},
		{"due bucket requires due date", base.Clone(), TaskFilters{DueBucket: DueToday}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, tt.filters.Matches(tt.task, now))
		})
	}
}

func TestTaskFilters_SnoozedHidden(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)

	later := now.Add(2 * time.Hour)
	earlier := now.Add(-2 * time.Hour)

	snoozed := &Task{ID: "1", Title: "Snoozed", Status: StatusTodo, SnoozedUntil: &later}
	woken := &Task{ID: "2", Title: "Woken", Status: StatusTodo, SnoozedUntil: &earlier}

	assert.False(t, TaskFilters{}.Matches(snoozed, now), "snoozed task is hidden until cutoff")
	assert.True(t, TaskFilters{}.Matches(woken, now), "expired snooze no longer hides the task")
}
