package render

import (
	"fmt"
	"sync"

	"github.com/voxnote/tasksync/internal/models"
)

// Memory держит отрисованные записи в памяти. Используется в тестах и
// как модель отображения для встраивающих приложений, которые
// опрашивают состояние вместо подписки на перерисовки.
type Memory struct {
	mu      sync.Mutex
	records map[string]*models.Task
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*models.Task)}
}

func (m *Memory) RenderRecord(task *models.Task) error {
	if task == nil {
		return fmt.Errorf("cannot render nil task")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[task.ID] = task.Clone()

	return nil
}

func (m *Memory) LocateRecord(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.records[id]

	return ok
}

func (m *Memory) RemoveRecord(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, id)

	return nil
}

func (m *Memory) SwapRecordID(oldID, newID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.records[oldID]
	if !ok {
		return fmt.Errorf("no rendered record with id %s", oldID)
	}

	delete(m.records, oldID)
	task.ID = newID
	m.records[newID] = task

	return nil
}

// Rendered возвращает снимок отрисованной записи
func (m *Memory) Rendered(id string) (*models.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.records[id]
	if !ok {
		return nil, false
	}

	return task.Clone(), true
}

// Count возвращает число отрисованных записей
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.records)
}
