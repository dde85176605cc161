package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/voxnote/tasksync/internal/models"
	"github.com/voxnote/tasksync/pkg/api"
)

// CheckDrift compares a checksum of local task state against the
// server's. Mismatch means this tab silently diverged (missed
// broadcasts while backgrounded); the reaction is a soft re-fetch
// signal, not an error.
func (s *service) CheckDrift(ctx context.Context) (bool, error) {
	tasks, err := s.store.GetAllTasks(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load tasks for drift check: %w", err)
	}

	local, counted := stateChecksum(tasks)

	var resp api.ChecksumResponse
	err = s.transport.EmitWithAck(ctx, api.EventWorkspaceChecksum,
		api.ChecksumRequest{WorkspaceID: s.workspaceID}, &resp)
	if err != nil {
		return false, fmt.Errorf("failed to fetch server checksum: %w", err)
	}

	if s.broadcast != nil {
		if err := s.broadcast.NotifyDriftCheck(ctx, local, counted); err != nil {
			s.logger.Warn("broadcast failed, continuing local-only", "error", err)
		}
	}

	if local == resp.Checksum {
		return false, nil
	}

	s.logger.Warn("state drift detected",
		"local_checksum", local,
		"server_checksum", resp.Checksum,
		"local_tasks", counted,
		"server_tasks", resp.TaskCount)

	// Другие вкладки перечитывают локальное состояние сами
	if s.broadcast != nil {
		if err := s.broadcast.NotifyCacheInvalidate(ctx); err != nil {
			s.logger.Warn("broadcast failed, continuing local-only", "error", err)
		}
	}

	return true, nil
}

// StateChecksum возвращает контрольную сумму подтвержденного локального
// состояния в том же виде, в котором ее считает сервер
func StateChecksum(tasks []*models.Task) string {
	sum, _ := stateChecksum(tasks)
	return sum
}

// stateChecksum hashes (id, updated_at) of every confirmed task in id
// order. Optimistic records are excluded: the server does not know them
// yet and they would read as false divergence.
func stateChecksum(tasks []*models.Task) (string, int) {
	rows := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Optimistic {
			continue
		}
		rows = append(rows, t)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	h := fnv.New64a()
	for _, t := range rows {
		fmt.Fprintf(h, "%s:%d;", t.ID, t.UpdatedAt.UnixMilli())
	}

	return fmt.Sprintf("%016x", h.Sum64()), len(rows)
}
