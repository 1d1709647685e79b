package bankrecon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quillbooks/quillbooks/internal/platform/cache"
	"github.com/quillbooks/quillbooks/internal/shared"
)

// RepositoryPort abstracts storage for reconciliation sessions.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReconciliation(ctx context.Context, orgID, id int64) (Reconciliation, error)
	ListTransactions(ctx context.Context, orgID, reconciliationID int64) ([]Transaction, error)
	ListReconciliations(ctx context.Context, orgID int64, limit, offset int) ([]Reconciliation, int, error)
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements bank statement reconciliation.
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

// Open starts a PENDING session for one bank account and statement date.
func (s *Service) Open(ctx context.Context, input OpenInput) (Reconciliation, error) {
	if input.OrgID == 0 {
		return Reconciliation{}, fmt.Errorf("bankrecon: %w: organization required", shared.ErrValidation)
	}
	if strings.TrimSpace(input.BankAccount) == "" {
		return Reconciliation{}, fmt.Errorf("bankrecon: %w: bank account required", shared.ErrValidation)
	}
	if input.StatementDate.IsZero() {
		return Reconciliation{}, fmt.Errorf("bankrecon: %w: statement date required", shared.ErrValidation)
	}

	recon := Reconciliation{
		OrgID:            input.OrgID,
		BankAccount:      strings.TrimSpace(input.BankAccount),
		StatementDate:    input.StatementDate,
		OpeningBalance:   input.OpeningBalance,
		ClosingBalance:   input.ClosingBalance,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		Status:           StatusPending,
		CreatedAt:        s.now(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertReconciliation(ctx, recon)
		if err != nil {
			return err
		}
		recon.ID = id
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}

	s.record(ctx, input.OrgID, input.ActorID, "bankrecon:open", recon.ID, map[string]any{
		"bank_account":   recon.BankAccount,
		"statement_date": recon.StatementDate.Format("2006-01-02"),
	})
	return recon, nil
}

// AddTransaction appends a statement line to a session and recomputes the
// parent's running totals from all child rows. The parent row stays locked
// for the whole operation so concurrent adds serialize.
func (s *Service) AddTransaction(ctx context.Context, input TransactionInput) (Transaction, error) {
	if input.OrgID == 0 || input.ReconciliationID == 0 {
		return Transaction{}, fmt.Errorf("bankrecon: %w: organization and reconciliation required", shared.ErrValidation)
	}
	if !input.Type.Valid() {
		return Transaction{}, ErrUnknownTransactionType
	}
	if input.Date.IsZero() {
		return Transaction{}, fmt.Errorf("bankrecon: %w: transaction date required", shared.ErrValidation)
	}

	txn := Transaction{
		ReconciliationID: input.ReconciliationID,
		Date:             input.Date,
		Description:      input.Description,
		Amount:           input.Amount,
		Type:             input.Type,
		ReferenceNo:      input.ReferenceNo,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		recon, err := tx.GetReconciliationForUpdate(ctx, input.OrgID, input.ReconciliationID)
		if err != nil {
			return err
		}
		if recon.Status == StatusCompleted {
			return ErrSessionCompleted
		}
		id, err := tx.InsertTransaction(ctx, txn)
		if err != nil {
			return err
		}
		txn.ID = id
		return tx.RecomputeTotals(ctx, input.ReconciliationID)
	})
	if err != nil {
		return Transaction{}, err
	}

	s.record(ctx, input.OrgID, input.ActorID, "bankrecon:add_transaction", txn.ID, map[string]any{
		"reconciliation_id": input.ReconciliationID,
		"type":              input.Type,
		"amount":            input.Amount.String(),
	})
	return txn, nil
}

// Match links a statement line to a recorded payment. The line's absolute
// amount must equal the payment amount. Matching the same line to the same
// payment again is a no-op; to a different payment while matched it conflicts.
func (s *Service) Match(ctx context.Context, orgID, actorID, txnID, paymentID int64) error {
	if orgID == 0 || txnID == 0 || paymentID == 0 {
		return fmt.Errorf("bankrecon: %w: organization, transaction and payment required", shared.ErrValidation)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, parentStatus, err := tx.GetTransaction(ctx, orgID, txnID)
		if err != nil {
			return err
		}
		if txn.Matched {
			if txn.MatchedPaymentID != nil && *txn.MatchedPaymentID == paymentID {
				return nil
			}
			return ErrAlreadyMatched
		}
		if parentStatus == StatusCompleted {
			return ErrSessionCompleted
		}
		amount, err := tx.GetPaymentAmount(ctx, orgID, paymentID)
		if err != nil {
			return err
		}
		if !txn.Amount.Abs().Equal(amount) {
			return ErrAmountMismatch
		}
		return tx.MarkMatched(ctx, txnID, paymentID)
	})
	if err != nil {
		return err
	}

	s.record(ctx, orgID, actorID, "bankrecon:match", txnID, map[string]any{"payment_id": paymentID})
	return nil
}

// Complete closes a session: COMPLETED when every line is matched, otherwise
// DISCREPANCY. A DISCREPANCY session may be completed again after further
// matching; a COMPLETED one may not.
func (s *Service) Complete(ctx context.Context, orgID, actorID, id int64) (Reconciliation, error) {
	if orgID == 0 || id == 0 {
		return Reconciliation{}, fmt.Errorf("bankrecon: %w: organization and reconciliation required", shared.ErrValidation)
	}

	var recon Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		recon, err = tx.GetReconciliationForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if recon.Status == StatusCompleted {
			return ErrSessionCompleted
		}
		unmatched, err := tx.CountUnmatched(ctx, id)
		if err != nil {
			return err
		}
		status := StatusCompleted
		if unmatched > 0 {
			status = StatusDiscrepancy
		}
		if err := tx.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		recon.Status = status
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}

	s.record(ctx, orgID, actorID, "bankrecon:complete", id, map[string]any{"status": recon.Status})
	_ = s.cache.Bump(ctx, orgID)
	return recon, nil
}

// Get returns a session with its statement lines in date order.
func (s *Service) Get(ctx context.Context, orgID, id int64) (Reconciliation, error) {
	if orgID == 0 || id == 0 {
		return Reconciliation{}, fmt.Errorf("bankrecon: %w: organization and reconciliation required", shared.ErrValidation)
	}
	recon, err := s.repo.GetReconciliation(ctx, orgID, id)
	if err != nil {
		return Reconciliation{}, err
	}
	txns, err := s.repo.ListTransactions(ctx, orgID, id)
	if err != nil {
		return Reconciliation{}, err
	}
	recon.Transactions = txns
	return recon, nil
}

// List returns sessions for the organization, newest statement first.
func (s *Service) List(ctx context.Context, orgID int64, page, perPage int) ([]Reconciliation, shared.Pagination, error) {
	if orgID == 0 {
		return nil, shared.Pagination{}, fmt.Errorf("bankrecon: %w: organization required", shared.ErrValidation)
	}
	p := shared.NewPagination(page, perPage, 0)
	sessions, total, err := s.repo.ListReconciliations(ctx, orgID, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return sessions, shared.NewPagination(p.Page, p.PerPage, total), nil
}

func (s *Service) record(ctx context.Context, orgID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    orgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "bank_reconciliation",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
