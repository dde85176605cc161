package cli

const taskListTemplate = `
=== Tasks ===

{{- if eq (len .) 0 }}
No tasks found.

Use 'tasksync add <title>' to create your first task.

{{ else }}
Found {{len .}} task(s):

{{- range . }}
{{ if .Optimistic }}~{{ else }}-{{ end }} {{ .Title }}
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

{{- end }}
Note: '~' marks changes not yet confirmed by the server.
{{- end }}
`

const taskDetailTemplate = `
=== Task Details ===

Title:    {{ .Title }}
ID:       {{ .ID }}
Status:   {{ .Status }}
Priority: {{ .Priority }}
{{- if .Description }}

{{ .Description }}
{{- end }}
{{- if .Assignee }}
Assignee: {{ .Assignee }}
{{- end }}
{{- if .Labels }}
Labels:   {{ range $i, $l := .Labels }}{{ if $i }}, {{ end }}{{ $l }}{{ end }}
{{- end }}
{{- if .DueDate }}
Due:      {{ .DueDate.Format "2006-01-02 15:04" }}
{{- end }}
{{- if .SnoozedUntil }}
Snoozed:  until {{ .SnoozedUntil.Format "2006-01-02 15:04" }}
{{- end }}
Created:  {{ .CreatedAt.Format "2006-01-02 15:04" }}
Updated:  {{ .UpdatedAt.Format "2006-01-02 15:04" }}
{{- if .Optimistic }}

Note: this record is not yet confirmed by the server.
{{- end }}
`

const statusTemplate = `
=== TaskSync Status ===

Connected:        {{ if .Connected }}yes{{ else }}no{{ end }}
Tasks:            {{ .Stats.Tasks }}
Events:           {{ .Stats.Events }} ({{ .Stats.PendingEvents }} pending)
Queued mutations: {{ .Stats.QueueEntries }}
Archives:         {{ .Stats.Archives }}
{{- if .Stats.LastSyncAt }}
Last sync:        {{ .Stats.LastSyncAt.Format "2006-01-02 15:04:05" }}
{{- else }}
Last sync:        never
{{- end }}
{{- if .Stats.LastCompactionAt }}
Last compaction:  {{ .Stats.LastCompactionAt.Format "2006-01-02 15:04:05" }}
{{- end }}
`
