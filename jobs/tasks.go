package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReorderScan warms reorder projections and records critical stock.
	TaskReorderScan = "stock:reorder_scan"
	// TaskAuditRetention prunes audit rows past the retention window.
	TaskAuditRetention = "audit:retention"
)

// ReorderScanPayload carries scheduling metadata for the reorder scan.
type ReorderScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReorderScanTask constructs an Asynq task for the reorder scan.
func NewReorderScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReorderScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReorderScan, body, asynq.Queue(QueueDefault)), nil
}

// AuditRetentionPayload carries scheduling metadata for retention pruning.
type AuditRetentionPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewAuditRetentionTask constructs an Asynq task for audit pruning.
func NewAuditRetentionTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AuditRetentionPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, body, asynq.Queue(QueueDefault)), nil
}
