package cheques

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quillbooks/quillbooks/internal/platform/cache"
	"github.com/quillbooks/quillbooks/internal/shared"
)

// RepositoryPort abstracts cheque storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListCheques(ctx context.Context, orgID int64, limit, offset int) ([]Cheque, int, error)
	GetCheque(ctx context.Context, orgID, id int64) (Cheque, error)
	SummarizeByStatus(ctx context.Context, orgID int64) (map[Status]StatusBucket, error)
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the cheque lifecycle.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache *cache.Projection
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, projections *cache.Projection) *Service {
	return &Service{
		repo:  repo,
		audit: audit,
		cache: projections,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a cheque in ISSUED state. Cheque numbers are unique within an
// organization; a linked payment, when given, must exist in the same org.
func (s *Service) Issue(ctx context.Context, input IssueInput) (Cheque, error) {
	if input.OrgID == 0 {
		return Cheque{}, fmt.Errorf("cheques: %w: organization required", shared.ErrValidation)
	}
	if strings.TrimSpace(input.ChequeNumber) == "" {
		return Cheque{}, fmt.Errorf("cheques: %w: cheque number required", shared.ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return Cheque{}, fmt.Errorf("cheques: %w: amount must be positive", shared.ErrValidation)
	}
	if input.ChequeDate.IsZero() {
		return Cheque{}, fmt.Errorf("cheques: %w: cheque date required", shared.ErrValidation)
	}

	cheque := Cheque{
		OrgID:           input.OrgID,
		ChequeNumber:    strings.TrimSpace(input.ChequeNumber),
		Amount:          input.Amount,
		ChequeDate:      input.ChequeDate,
		BankName:        input.BankName,
		Status:          StatusIssued,
		LinkedPaymentID: input.LinkedPaymentID,
		CreatedAt:       s.now(),
		UpdatedAt:       s.now(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.LinkedPaymentID != nil {
			if err := tx.PaymentExists(ctx, input.OrgID, *input.LinkedPaymentID); err != nil {
				return err
			}
		}
		id, err := tx.InsertCheque(ctx, cheque)
		if err != nil {
			return err
		}
		cheque.ID = id
		return nil
	})
	if err != nil {
		return Cheque{}, err
	}

	s.record(ctx, input.OrgID, input.ActorID, "cheques:issue", cheque.ID, map[string]any{
		"cheque_number": cheque.ChequeNumber,
		"amount":        cheque.Amount.String(),
	})
	_ = s.cache.Bump(ctx, input.OrgID)
	return cheque, nil
}

// Transition moves a cheque along the forward-only lifecycle graph. The row
// stays locked while the current state is checked.
func (s *Service) Transition(ctx context.Context, orgID, actorID, id int64, next Status) (Cheque, error) {
	if orgID == 0 || id == 0 {
		return Cheque{}, fmt.Errorf("cheques: %w: organization and cheque required", shared.ErrValidation)
	}
	if !next.Valid() {
		return Cheque{}, ErrUnknownStatus
	}

	var cheque Cheque
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		cheque, err = tx.GetChequeForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if !cheque.Status.CanTransition(next) {
			return fmt.Errorf("cheques: %w: %s to %s not allowed", shared.ErrInvalidTransition, cheque.Status, next)
		}
		if err := tx.UpdateStatus(ctx, id, next, s.now()); err != nil {
			return err
		}
		cheque.Status = next
		cheque.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return Cheque{}, err
	}

	s.record(ctx, orgID, actorID, "cheques:transition", id, map[string]any{"status": next})
	_ = s.cache.Bump(ctx, orgID)
	return cheque, nil
}

// Get returns one cheque.
func (s *Service) Get(ctx context.Context, orgID, id int64) (Cheque, error) {
	if orgID == 0 || id == 0 {
		return Cheque{}, fmt.Errorf("cheques: %w: organization and cheque required", shared.ErrValidation)
	}
	return s.repo.GetCheque(ctx, orgID, id)
}

// List returns cheques for the organization, newest first.
func (s *Service) List(ctx context.Context, orgID int64, page, perPage int) ([]Cheque, shared.Pagination, error) {
	if orgID == 0 {
		return nil, shared.Pagination{}, fmt.Errorf("cheques: %w: organization required", shared.ErrValidation)
	}
	p := shared.NewPagination(page, perPage, 0)
	list, total, err := s.repo.ListCheques(ctx, orgID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// Summary aggregates counts and sums per status. Pending covers cheques that
// have not yet reached a terminal state (ISSUED and DEPOSITED).
func (s *Service) Summary(ctx context.Context, orgID int64) (Summary, error) {
	if orgID == 0 {
		return Summary{}, fmt.Errorf("cheques: %w: organization required", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, orgID, "cheques", "summary")
	if err != nil {
		return Summary{}, err
	}
	var summary Summary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		return s.buildSummary(ctx, orgID)
	})
	return summary, err
}

func (s *Service) buildSummary(ctx context.Context, orgID int64) (Summary, error) {
	buckets, err := s.repo.SummarizeByStatus(ctx, orgID)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{ByStatus: buckets, GeneratedAt: s.now()}
	summary.ClearedAmount = buckets[StatusCleared].Amount
	summary.BouncedAmount = buckets[StatusBounced].Amount
	summary.PendingAmount = buckets[StatusIssued].Amount.Add(buckets[StatusDeposited].Amount)
	return summary, nil
}

func (s *Service) record(ctx context.Context, orgID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    orgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "cheque",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
