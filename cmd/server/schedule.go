package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/medflow/priorauth/internal/notification"
	"github.com/medflow/priorauth/internal/orchestrator"
	"github.com/medflow/priorauth/internal/workflow"
)

// scheduleTable declares the periodic work. Entries go through the same
// submit path as on-demand tasks; the queue comes from the routing rules.
func scheduleTable() []orchestrator.ScheduleEntry {
	return []orchestrator.ScheduleEntry{
		{Name: documentsCleanupTask, Period: 24 * time.Hour},
		{Name: workflow.TaskExpireStale, Period: time.Hour},
		{Name: notification.PurgeTaskName, Period: 6 * time.Hour},
	}
}

// documentsCleanupHandler acknowledges the periodic document cleanup tick.
// Document storage lives outside this service; the schedule entry keeps the
// task name routable so an external owner can take the handler over without
// touching the orchestrator configuration.
func documentsCleanupHandler(log *slog.Logger) orchestrator.Handler {
	return func(ctx context.Context, task *orchestrator.Task) error {
		log.InfoContext(ctx, "document cleanup tick acknowledged",
			"task_id", task.ID)
		return nil
	}
}
