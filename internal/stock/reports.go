package stock

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/quillbooks/quillbooks/internal/shared"
)

const salesWindowDays = 30

var priorityRank = map[ReorderPriority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
}

// ReorderSuggestions lists products below their reorder level, most urgent
// first. Ties within a priority band break on product id ascending.
func (s *Service) ReorderSuggestions(ctx context.Context, orgID int64) ([]ReorderSuggestion, error) {
	if orgID == 0 {
		return nil, fmt.Errorf("stock: %w: organization required", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, orgID, "stock", "reorder")
	if err != nil {
		return nil, err
	}
	var suggestions []ReorderSuggestion
	err = s.cache.FetchJSON(ctx, key, &suggestions, func(ctx context.Context) (any, error) {
		return s.buildReorderSuggestions(ctx, orgID)
	})
	return suggestions, err
}

func (s *Service) buildReorderSuggestions(ctx context.Context, orgID int64) ([]ReorderSuggestion, error) {
	levels, err := s.repo.ListStockLevels(ctx, orgID)
	if err != nil {
		return nil, err
	}
	suggestions := []ReorderSuggestion{}
	for _, lvl := range levels {
		if lvl.Quantity >= lvl.ReorderLevel {
			continue
		}
		priority := PriorityMedium
		switch {
		case lvl.Quantity == 0:
			priority = PriorityCritical
		case lvl.Quantity < lvl.ReorderLevel/2:
			priority = PriorityHigh
		}
		suggestions = append(suggestions, ReorderSuggestion{
			ProductID:       lvl.ProductID,
			Quantity:        lvl.Quantity,
			ReorderLevel:    lvl.ReorderLevel,
			ReorderQuantity: lvl.ReorderQuantity,
			Priority:        priority,
			EstimatedCost:   lvl.UnitPrice.Mul(decimal.NewFromFloat(lvl.ReorderQuantity)),
		})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if priorityRank[suggestions[i].Priority] != priorityRank[suggestions[j].Priority] {
			return priorityRank[suggestions[i].Priority] < priorityRank[suggestions[j].Priority]
		}
		return suggestions[i].ProductID < suggestions[j].ProductID
	})
	return suggestions, nil
}

// Forecast projects stock depletion over the requested window using the
// trailing 30-day sales average.
func (s *Service) Forecast(ctx context.Context, orgID int64, windowDays int) ([]ForecastEntry, error) {
	if orgID == 0 {
		return nil, fmt.Errorf("stock: %w: organization required", shared.ErrValidation)
	}
	if windowDays <= 0 {
		return nil, fmt.Errorf("stock: %w: window days must be positive", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, orgID, "stock", "forecast", fmt.Sprintf("%d", windowDays))
	if err != nil {
		return nil, err
	}
	var entries []ForecastEntry
	err = s.cache.FetchJSON(ctx, key, &entries, func(ctx context.Context) (any, error) {
		return s.buildForecast(ctx, orgID, windowDays)
	})
	return entries, err
}

func (s *Service) buildForecast(ctx context.Context, orgID int64, windowDays int) ([]ForecastEntry, error) {
	var (
		levels []StockLevel
		sales  map[int64]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		levels, err = s.repo.ListStockLevels(gctx, orgID)
		return err
	})
	g.Go(func() error {
		var err error
		since := s.now().AddDate(0, 0, -salesWindowDays)
		sales, err = s.repo.SaleTotalsSince(gctx, orgID, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := []ForecastEntry{}
	for _, lvl := range levels {
		avgDaily := sales[lvl.ProductID] / salesWindowDays
		entry := ForecastEntry{
			ProductID:      lvl.ProductID,
			Quantity:       lvl.Quantity,
			AvgDailySales:  round2(avgDaily),
			ProjectedStock: round2(lvl.Quantity - avgDaily*float64(windowDays)),
		}
		if avgDaily > 0 {
			days := round2(lvl.Quantity / avgDaily)
			entry.DaysUntilStockout = &days
		}
		switch {
		case entry.ProjectedStock < 0:
			entry.Status = ForecastStockout
		case entry.ProjectedStock >= lvl.ReorderLevel:
			entry.Status = ForecastHealthy
		default:
			entry.Status = ForecastWarning
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ProductID < entries[j].ProductID })
	return entries, nil
}

// HealthScore averages per-product scores into a single inventory rating.
func (s *Service) HealthScore(ctx context.Context, orgID int64) (HealthReport, error) {
	if orgID == 0 {
		return HealthReport{}, fmt.Errorf("stock: %w: organization required", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, orgID, "stock", "health")
	if err != nil {
		return HealthReport{}, err
	}
	var report HealthReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
		return s.buildHealthScore(ctx, orgID)
	})
	return report, err
}

func (s *Service) buildHealthScore(ctx context.Context, orgID int64) (HealthReport, error) {
	levels, err := s.repo.ListStockLevels(ctx, orgID)
	if err != nil {
		return HealthReport{}, err
	}
	if len(levels) == 0 {
		return HealthReport{Score: 100, Band: HealthExcellent}, nil
	}
	total := 0.0
	for _, lvl := range levels {
		score := 100.0
		switch {
		case lvl.Quantity == 0:
			score -= 30
		case lvl.Quantity < lvl.ReorderLevel:
			score -= 15
		}
		if lvl.Quantity > 3*lvl.ReorderLevel {
			score -= 10
		}
		total += score
	}
	avg := round2(total / float64(len(levels)))
	band := HealthPoor
	switch {
	case avg >= 90:
		band = HealthExcellent
	case avg >= 75:
		band = HealthGood
	case avg >= 50:
		band = HealthFair
	}
	return HealthReport{Score: avg, Band: band, Products: len(levels)}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
