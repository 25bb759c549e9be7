package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// SweepExpiredCopiesWorkflow drops every database copy whose lease has run
// out. It is started on a cron schedule by the worker.
func SweepExpiredCopiesWorkflow(ctx workflow.Context) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var deleted int
	err := workflow.ExecuteActivity(ctx, "SweepExpiredCopies").Get(ctx, &deleted)
	if err != nil {
		return err
	}

	var remaining int64
	err = workflow.ExecuteActivity(ctx, "CountActiveCopies").Get(ctx, &remaining)
	if err != nil {
		return err
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("swept expired database copies", "deleted", deleted, "remaining", remaining)

	return nil
}

// CleanupQueryAuditLogsWorkflow deletes query audit entries older than the
// specified days.
func CleanupQueryAuditLogsWorkflow(ctx workflow.Context, retentionDays int) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var deleted int64
	err := workflow.ExecuteActivity(ctx, "DeleteOldQueryAuditLogs", retentionDays).Get(ctx, &deleted)
	if err != nil {
		return err
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("cleaned up old query audit logs", "deleted", deleted, "retentionDays", retentionDays)

	return nil
}
