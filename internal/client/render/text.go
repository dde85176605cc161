package render

import (
	"fmt"
	"io"
	"sync"
	"text/template"

	"github.com/voxnote/tasksync/internal/models"
)

const recordTemplate = `
{{- if .Optimistic }}~ {{ else }}- {{ end }}{{ .Title }}
   ID:       {{ .ID }}
   Status:   {{ .Status }}
   Priority: {{ .Priority }}
   {{- if .Assignee }}
   Assignee: {{ .Assignee }}
   {{- end }}
   {{- if .Labels }}
   Labels:   {{ range $i, $l := .Labels }}{{ if $i }}, {{ end }}{{ $l }}{{ end }}
   {{- end }}
   {{- if .DueDate }}
   Due:      {{ .DueDate.Format "2006-01-02" }}
   {{- end }}
`

// Text рисует записи в writer через text/template. Каждая перерисовка
// выводит запись заново; записи с неподтвержденными изменениями
// помечаются тильдой.
type Text struct {
	out  io.Writer
	tmpl *template.Template

	mu  sync.Mutex
	ids map[string]struct{}
}

func NewText(out io.Writer) (*Text, error) {
	tmpl, err := template.New("record").Parse(recordTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse record template: %w", err)
	}

	return &Text{
		out:  out,
		tmpl: tmpl,
		ids:  make(map[string]struct{}),
	}, nil
}

func (r *Text) RenderRecord(task *models.Task) error {
	if task == nil {
		return fmt.Errorf("cannot render nil task")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.tmpl.Execute(r.out, task); err != nil {
		return fmt.Errorf("failed to render record: %w", err)
	}
	r.ids[task.ID] = struct{}{}

	return nil
}

func (r *Text) LocateRecord(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.ids[id]

	return ok
}

func (r *Text) RemoveRecord(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.ids, id)

	return nil
}

func (r *Text) SwapRecordID(oldID, newID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[oldID]; !ok {
		return fmt.Errorf("no rendered record with id %s", oldID)
	}

	delete(r.ids, oldID)
	r.ids[newID] = struct{}{}

	return nil
}
