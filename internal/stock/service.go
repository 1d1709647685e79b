package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quillbooks/quillbooks/internal/platform/cache"
	"github.com/quillbooks/quillbooks/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInventory(ctx context.Context, orgID, productID int64) (Inventory, error)
	ListMovements(ctx context.Context, orgID, productID int64, limit, offset int) ([]Movement, int, error)
	ListStockLevels(ctx context.Context, orgID int64) ([]StockLevel, error)
	SaleTotalsSince(ctx context.Context, orgID int64, since time.Time) (map[int64]float64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock ledger operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	cache    *cache.Projection
	allowNeg bool
	now      func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// AllowNegativeStock disables the uniform negative-quantity guard.
	// The guard is on by default; both entry points share one policy.
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, projections *cache.Projection, cfg ServiceConfig) *Service {
	return &Service{
		repo:     repo,
		audit:    audit,
		cache:    projections,
		allowNeg: cfg.AllowNegativeStock,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RecordMovement appends one ledger event and applies its effect to the
// derived inventory quantity inside a single transaction.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if input.OrgID == 0 || input.ProductID == 0 {
		return Movement{}, fmt.Errorf("stock: %w: organization and product required", shared.ErrValidation)
	}
	if !input.Type.Valid() {
		return Movement{}, ErrUnknownMovementType
	}
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}

	now := s.now()
	movement := Movement{
		OrgID:     input.OrgID,
		ProductID: input.ProductID,
		Type:      input.Type,
		Quantity:  input.Quantity,
		Reference: input.Reference,
		Notes:     input.Notes,
		CreatedAt: now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInventoryForUpdate(ctx, input.OrgID, input.ProductID)
		if err != nil && !errors.Is(err, ErrInventoryNotFound) {
			return err
		}
		if errors.Is(err, ErrInventoryNotFound) {
			inv = Inventory{OrgID: input.OrgID, ProductID: input.ProductID}
		}
		newQty, err := applyEffect(inv.Quantity, input.Type, input.Quantity)
		if err != nil {
			return err
		}
		if newQty < 0 && !s.allowNeg {
			return ErrNegativeStock
		}
		inv.Quantity = newQty
		if input.Type == MovementOpeningStock || input.Type == MovementPurchase {
			restocked := now
			inv.LastRestockDate = &restocked
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		return tx.UpsertInventory(ctx, inv)
	})
	if err != nil {
		return Movement{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			OrgID:    input.OrgID,
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("stock:%s", input.Type),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"quantity":   input.Quantity,
				"reference":  input.Reference,
			},
		})
	}
	_ = s.cache.Bump(ctx, input.OrgID)
	return movement, nil
}

// Snapshot returns the derived inventory projection for one product.
func (s *Service) Snapshot(ctx context.Context, orgID, productID int64) (Inventory, error) {
	if orgID == 0 || productID == 0 {
		return Inventory{}, fmt.Errorf("stock: %w: organization and product required", shared.ErrValidation)
	}
	return s.repo.GetInventory(ctx, orgID, productID)
}

// ListMovements returns the append-only movement history for a product,
// newest first.
func (s *Service) ListMovements(ctx context.Context, orgID, productID int64, page, perPage int) ([]Movement, shared.Pagination, error) {
	if orgID == 0 || productID == 0 {
		return nil, shared.Pagination{}, fmt.Errorf("stock: %w: organization and product required", shared.ErrValidation)
	}
	p := shared.NewPagination(page, perPage, 0)
	movements, total, err := s.repo.ListMovements(ctx, orgID, productID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return movements, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// applyEffect computes the resulting on-hand quantity for a movement.
// ADJUSTMENT sets the absolute value; everything else is signed arithmetic.
func applyEffect(current float64, typ MovementType, qty float64) (float64, error) {
	switch typ {
	case MovementOpeningStock, MovementPurchase, MovementReturn:
		return current + qty, nil
	case MovementSale, MovementDamage:
		return current - qty, nil
	case MovementAdjustment:
		return qty, nil
	default:
		return 0, ErrUnknownMovementType
	}
}
