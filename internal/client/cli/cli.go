package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/voxnote/tasksync/internal/client/engine"
	"github.com/voxnote/tasksync/internal/client/queue"
	"github.com/voxnote/tasksync/internal/client/storage"
	"github.com/voxnote/tasksync/internal/client/transport"
)

type Cli struct {
	engine    engine.Service
	store     storage.Storage
	queue     queue.Manager
	transport transport.Transport
	out       io.Writer
}

func New(eng engine.Service, store storage.Storage, qm queue.Manager, tr transport.Transport) *Cli {
	return &Cli{
		engine:    eng,
		store:     store,
		queue:     qm,
		transport: tr,
		out:       os.Stdout,
	}
}

// SetOutput перенаправляет вывод команд. Используется в тестах.
func (c *Cli) SetOutput(out io.Writer) {
	c.out = out
}

func PrintUsage() {
	fmt.Println("TaskSync Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tasksync [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version            Show version information")
	fmt.Println("  --server URL         Server URL (default: http://localhost:8080)")
	fmt.Println("  --ws URL             WebSocket URL for event delivery (used instead of --server)")
	fmt.Println("  --db PATH            Path to local database (default: tasksync-client.db)")
	fmt.Println("  --workspace ID       Workspace identifier (default: default)")
	fmt.Println("  --node ID            Override the node id used for vector clocks")
	fmt.Println("  --redis ADDR         Redis address for cross-process tab sync (optional)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  add <title>                 Create a task")
	fmt.Println("  list                        List tasks (filters: --status, --priority, --search, --label, --due)")
	fmt.Println("  get <id>                    Show full task details")
	fmt.Println("  update <id> <field> <value> Update a task (title, status, priority, assignee)")
	fmt.Println("  done <id>                   Toggle task status")
	fmt.Println("  snooze <id> <duration>      Hide a task for a while (e.g. 2h, 24h)")
	fmt.Println("  label <id> +name|-name      Add or remove a label")
	fmt.Println("  delete <id>                 Delete a task")
	fmt.Println("  sync                        Replay the offline queue now")
	fmt.Println("  status                      Show store and queue diagnostics")
	fmt.Println("  compact [days]              Compact synced events older than the retention window")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tasksync add Send the follow-up email --priority high --label followup")
	fmt.Println("  tasksync list --status todo --due today")
	fmt.Println("  tasksync snooze 42 24h")
	fmt.Println("  tasksync label 42 +urgent")
	fmt.Println("  tasksync --server https://example.com sync")
}

// splitTitleAndFlags отделяет слова заголовка от флагов вида --x
func splitTitleAndFlags(args []string) (string, []string) {
	var words []string
	i := 0
	for ; i < len(args); i++ {
		if strings.HasPrefix(args[i], "--") {
			break
		}
		words = append(words, args[i])
	}

	return strings.Join(words, " "), args[i:]
}
