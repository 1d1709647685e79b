package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/quillbooks/quillbooks/internal/jobs"
	"github.com/quillbooks/quillbooks/internal/stock"
)

// ReorderScanJob rebuilds reorder projections for every organization with
// inventory, keeping the cache warm and the critical-stock gauge current.
type ReorderScanJob struct {
	Stock   *stock.Service
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReorderScanJob wires dependencies for the scan handler.
func NewReorderScanJob(stockSvc *stock.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReorderScanJob {
	return &ReorderScanJob{
		Stock:   stockSvc,
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes TaskReorderScan tasks.
func (j *ReorderScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReorderScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track("reorder_scan")
	return tracker.End(j.run(ctx))
}

func (j *ReorderScanJob) run(ctx context.Context) error {
	orgs, err := j.listOrgs(ctx)
	if err != nil {
		return err
	}
	for _, orgID := range orgs {
		suggestions, err := j.Stock.ReorderSuggestions(ctx, orgID)
		if err != nil {
			j.Logger.Error("reorder scan", slog.Int64("org_id", orgID), slog.Any("error", err))
			return err
		}
		critical := 0
		for _, s := range suggestions {
			if s.Priority == stock.PriorityCritical {
				critical++
			}
		}
		j.Metrics.SetCriticalStock(orgID, critical)
		j.Logger.Info("reorder scan",
			slog.Int64("org_id", orgID),
			slog.Int("suggestions", len(suggestions)),
			slog.Int("critical", critical))
	}
	return nil
}

func (j *ReorderScanJob) listOrgs(ctx context.Context) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT org_id FROM inventory`)
	if err != nil {
		return nil, fmt.Errorf("jobs: list orgs: %w", err)
	}
	defer rows.Close()

	var orgs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("jobs: scan org: %w", err)
		}
		orgs = append(orgs, id)
	}
	return orgs, rows.Err()
}
