package stock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	inventory map[string]Inventory
	movements []Movement
	levels    []StockLevel
	sales     map[int64]float64
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{inventory: make(map[string]Inventory), sales: make(map[int64]float64)}
}

func invKey(orgID, productID int64) string {
	return fmt.Sprintf("%d:%d", orgID, productID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetInventory(ctx context.Context, orgID, productID int64) (Inventory, error) {
	if inv, ok := r.inventory[invKey(orgID, productID)]; ok {
		return inv, nil
	}
	return Inventory{}, ErrInventoryNotFound
}

func (r *memoryRepo) ListMovements(ctx context.Context, orgID, productID int64, limit, offset int) ([]Movement, int, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.OrgID == orgID && m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListStockLevels(ctx context.Context, orgID int64) ([]StockLevel, error) {
	result := make([]StockLevel, len(r.levels))
	copy(result, r.levels)
	return result, nil
}

func (r *memoryRepo) SaleTotalsSince(ctx context.Context, orgID int64, since time.Time) (map[int64]float64, error) {
	totals := make(map[int64]float64, len(r.sales))
	for k, v := range r.sales {
		totals[k] = v
	}
	return totals, nil
}

func (tx *memoryTx) GetInventoryForUpdate(ctx context.Context, orgID, productID int64) (Inventory, error) {
	if inv, ok := tx.repo.inventory[invKey(orgID, productID)]; ok {
		return inv, nil
	}
	return Inventory{OrgID: orgID, ProductID: productID}, ErrInventoryNotFound
}

func (tx *memoryTx) UpsertInventory(ctx context.Context, inv Inventory) error {
	tx.repo.inventory[invKey(inv.OrgID, inv.ProductID)] = inv
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, ServiceConfig{})
}

func TestMovementArithmetic(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: MovementOpeningStock, Quantity: 100})
	require.NoError(t, err)
	inv, err := svc.Snapshot(ctx, 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 100.0, inv.Quantity, 0.0001)

	_, err = svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: MovementSale, Quantity: 30})
	require.NoError(t, err)
	inv, err = svc.Snapshot(ctx, 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 70.0, inv.Quantity, 0.0001)

	_, err = svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: MovementPurchase, Quantity: 20})
	require.NoError(t, err)
	inv, err = svc.Snapshot(ctx, 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 90.0, inv.Quantity, 0.0001)
}

func TestAdjustmentSetsAbsoluteQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: MovementOpeningStock, Quantity: 50})
	require.NoError(t, err)

	_, err = svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: MovementAdjustment, Quantity: 12})
	require.NoError(t, err)

	inv, err := svc.Snapshot(ctx, 1, 1)
	require.NoError(t, err)
	require.InDelta(t, 12.0, inv.Quantity, 0.0001, "adjustment overwrites, not adds")
}

func TestQuantityEqualsSignedSumSinceLastAbsoluteSet(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	steps := []struct {
		typ MovementType
		qty float64
	}{
		{MovementOpeningStock, 40},
		{MovementSale, 10},
		{MovementReturn, 3},
		{MovementAdjustment, 25},
		{MovementPurchase, 7},
		{MovementDamage, 2},
	}
	for _, step := range steps {
		_, err := svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 9, Type: step.typ, Quantity: step.qty})
		require.NoError(t, err)
	}

	// Replay the events since the last absolute-set: 25 + 7 - 2.
	inv, err := svc.Snapshot(ctx, 1, 9)
	require.NoError(t, err)
	require.InDelta(t, 30.0, inv.Quantity, 0.0001)
}

func TestNegativeStockRejectedUniformly(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: MovementOpeningStock, Quantity: 5})
	require.NoError(t, err)

	_, err = svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: MovementSale, Quantity: 6})
	require.ErrorIs(t, err, ErrNegativeStock)

	_, err = svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: MovementDamage, Quantity: 6})
	require.ErrorIs(t, err, ErrNegativeStock)

	// The rejected movements must not have been appended.
	movements, _, err := repo.ListMovements(ctx, 1, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
}

func TestNegativeStockAllowedWhenConfigured(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{AllowNegativeStock: true})
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: MovementSale, Quantity: 4})
	require.NoError(t, err)

	inv, err := svc.Snapshot(ctx, 1, 1)
	require.NoError(t, err)
	require.InDelta(t, -4.0, inv.Quantity, 0.0001)
}

func TestRecordMovementValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: MovementSale, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: MovementSale, Quantity: -3})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.RecordMovement(ctx, MovementInput{OrgID: 1, ProductID: 1, Type: "TRANSFER", Quantity: 5})
	require.ErrorIs(t, err, ErrUnknownMovementType)
}

func TestReorderSuggestionPriorities(t *testing.T) {
	repo := newMemoryRepo()
	repo.levels = []StockLevel{
		{ProductID: 4, Quantity: 8, ReorderLevel: 10, ReorderQuantity: 20, UnitPrice: decimal.NewFromInt(5)},
		{ProductID: 2, Quantity: 0, ReorderLevel: 10, ReorderQuantity: 50, UnitPrice: decimal.NewFromInt(20)},
		{ProductID: 3, Quantity: 4, ReorderLevel: 10, ReorderQuantity: 30, UnitPrice: decimal.NewFromInt(10)},
		{ProductID: 1, Quantity: 15, ReorderLevel: 10, ReorderQuantity: 30, UnitPrice: decimal.NewFromInt(10)},
		{ProductID: 5, Quantity: 0, ReorderLevel: 10, ReorderQuantity: 10, UnitPrice: decimal.NewFromInt(2)},
	}
	svc := newTestService(repo)

	suggestions, err := svc.ReorderSuggestions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, suggestions, 4, "healthy product excluded")

	require.Equal(t, int64(2), suggestions[0].ProductID)
	require.Equal(t, PriorityCritical, suggestions[0].Priority)
	require.True(t, suggestions[0].EstimatedCost.Equal(decimal.NewFromInt(1000)))

	// Equal priority ties break on product id ascending.
	require.Equal(t, int64(5), suggestions[1].ProductID)
	require.Equal(t, PriorityCritical, suggestions[1].Priority)

	require.Equal(t, int64(3), suggestions[2].ProductID)
	require.Equal(t, PriorityHigh, suggestions[2].Priority)

	require.Equal(t, int64(4), suggestions[3].ProductID)
	require.Equal(t, PriorityMedium, suggestions[3].Priority)
}

func TestForecast(t *testing.T) {
	repo := newMemoryRepo()
	repo.levels = []StockLevel{
		{ProductID: 1, Quantity: 60, ReorderLevel: 20},
		{ProductID: 2, Quantity: 10, ReorderLevel: 20},
	}
	repo.sales = map[int64]float64{1: 60} // 2/day trailing average
	svc := newTestService(repo)

	entries, err := svc.Forecast(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.InDelta(t, 2.0, entries[0].AvgDailySales, 0.0001)
	require.InDelta(t, 40.0, entries[0].ProjectedStock, 0.0001)
	require.NotNil(t, entries[0].DaysUntilStockout)
	require.InDelta(t, 30.0, *entries[0].DaysUntilStockout, 0.0001)
	require.Equal(t, ForecastHealthy, entries[0].Status)

	require.Nil(t, entries[1].DaysUntilStockout, "no sales means no stockout estimate")
	require.Equal(t, ForecastWarning, entries[1].Status)
}

func TestForecastStockout(t *testing.T) {
	repo := newMemoryRepo()
	repo.levels = []StockLevel{{ProductID: 1, Quantity: 5, ReorderLevel: 2}}
	repo.sales = map[int64]float64{1: 30} // 1/day
	svc := newTestService(repo)

	entries, err := svc.Forecast(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.InDelta(t, -5.0, entries[0].ProjectedStock, 0.0001)
	require.Equal(t, ForecastStockout, entries[0].Status)
}

func TestHealthScoreBands(t *testing.T) {
	repo := newMemoryRepo()
	repo.levels = []StockLevel{
		{ProductID: 1, Quantity: 0, ReorderLevel: 10},  // 70
		{ProductID: 2, Quantity: 5, ReorderLevel: 10},  // 85
		{ProductID: 3, Quantity: 50, ReorderLevel: 10}, // 90: overstocked
		{ProductID: 4, Quantity: 15, ReorderLevel: 10}, // 100
	}
	svc := newTestService(repo)

	report, err := svc.HealthScore(context.Background(), 1)
	require.NoError(t, err)
	require.InDelta(t, 86.25, report.Score, 0.0001)
	require.Equal(t, HealthGood, report.Band)
	require.Equal(t, 4, report.Products)
}

func TestHealthScoreEmptyInventory(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	report, err := svc.HealthScore(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, HealthExcellent, report.Band)
	require.InDelta(t, 100.0, report.Score, 0.0001)
}
