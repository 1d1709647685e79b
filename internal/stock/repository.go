package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillbooks/quillbooks/internal/platform/db"
	"github.com/quillbooks/quillbooks/internal/shared"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetInventoryForUpdate(ctx context.Context, orgID, productID int64) (Inventory, error)
	UpsertInventory(ctx context.Context, inv Inventory) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// ErrInventoryNotFound indicates a missing inventory row.
var ErrInventoryNotFound = errors.New("stock: inventory not found")

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetInventory loads the inventory projection for a product.
func (r *Repository) GetInventory(ctx context.Context, orgID, productID int64) (Inventory, error) {
	var inv Inventory
	var restocked *time.Time
	err := r.pool.QueryRow(ctx, `SELECT org_id, product_id, quantity, reorder_level, reorder_quantity, last_restock_date
FROM inventory WHERE org_id=$1 AND product_id=$2`, orgID, productID).
		Scan(&inv.OrgID, &inv.ProductID, &inv.Quantity, &inv.ReorderLevel, &inv.ReorderQuantity, &restocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Inventory{}, shared.ErrNotFound
		}
		return Inventory{}, err
	}
	inv.LastRestockDate = restocked
	return inv, nil
}

// ListMovements returns movements for one product, newest first, plus the total count.
func (r *Repository) ListMovements(ctx context.Context, orgID, productID int64, limit, offset int) ([]Movement, int, error) {
	if limit <= 0 {
		limit = 20
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements WHERE org_id=$1 AND product_id=$2`, orgID, productID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, product_id, movement_type, quantity, reference, notes, created_at
FROM stock_movements
WHERE org_id=$1 AND product_id=$2
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4`, orgID, productID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.OrgID, &m.ProductID, &m.Type, &m.Quantity, &m.Reference, &m.Notes, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

// ListStockLevels joins inventory with product pricing for report queries.
func (r *Repository) ListStockLevels(ctx context.Context, orgID int64) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.product_id, i.quantity, i.reorder_level, i.reorder_quantity, p.unit_price
FROM inventory i
JOIN products p ON p.id = i.product_id AND p.org_id = i.org_id
WHERE i.org_id=$1
ORDER BY i.product_id ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	levels := []StockLevel{}
	for rows.Next() {
		var lvl StockLevel
		if err := rows.Scan(&lvl.ProductID, &lvl.Quantity, &lvl.ReorderLevel, &lvl.ReorderQuantity, &lvl.UnitPrice); err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return levels, nil
}

// SaleTotalsSince sums SALE quantities per product within the trailing window.
func (r *Repository) SaleTotalsSince(ctx context.Context, orgID int64, since time.Time) (map[int64]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, COALESCE(SUM(quantity), 0)
FROM stock_movements
WHERE org_id=$1 AND movement_type=$2 AND created_at >= $3
GROUP BY product_id`, orgID, string(MovementSale), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := map[int64]float64{}
	for rows.Next() {
		var productID int64
		var qty float64
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		totals[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *txRepository) GetInventoryForUpdate(ctx context.Context, orgID, productID int64) (Inventory, error) {
	var inv Inventory
	var restocked *time.Time
	err := r.tx.QueryRow(ctx, `SELECT org_id, product_id, quantity, reorder_level, reorder_quantity, last_restock_date
FROM inventory WHERE org_id=$1 AND product_id=$2 FOR UPDATE`, orgID, productID).
		Scan(&inv.OrgID, &inv.ProductID, &inv.Quantity, &inv.ReorderLevel, &inv.ReorderQuantity, &restocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Inventory{OrgID: orgID, ProductID: productID}, ErrInventoryNotFound
		}
		return Inventory{}, err
	}
	inv.LastRestockDate = restocked
	return inv, nil
}

func (r *txRepository) UpsertInventory(ctx context.Context, inv Inventory) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory (org_id, product_id, quantity, reorder_level, reorder_quantity, last_restock_date, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (org_id, product_id) DO UPDATE
SET quantity=EXCLUDED.quantity,
    last_restock_date=COALESCE(EXCLUDED.last_restock_date, inventory.last_restock_date),
    updated_at=NOW()`,
		inv.OrgID, inv.ProductID, inv.Quantity, inv.ReorderLevel, inv.ReorderQuantity, inv.LastRestockDate)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (org_id, product_id, movement_type, quantity, reference, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		m.OrgID, m.ProductID, string(m.Type), m.Quantity, m.Reference, m.Notes, m.CreatedAt).Scan(&id)
	return id, err
}
