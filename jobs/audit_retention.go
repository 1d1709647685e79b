package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/quillbooks/quillbooks/internal/jobs"
	"github.com/quillbooks/quillbooks/internal/shared"
)

// AuditRetentionJob deletes audit rows older than the retention window.
type AuditRetentionJob struct {
	Audit     *shared.AuditLogger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewAuditRetentionJob wires dependencies for the retention handler.
func NewAuditRetentionJob(audit *shared.AuditLogger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRetentionJob {
	return &AuditRetentionJob{Audit: audit, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle processes TaskAuditRetention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track("audit_retention")
	pruned, err := j.Audit.Prune(ctx, j.Retention)
	if err == nil {
		j.Logger.Info("audit retention", slog.Int64("pruned", pruned))
	}
	return tracker.End(err)
}
