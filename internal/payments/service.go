package payments

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/quillbooks/quillbooks/internal/platform/cache"
	"github.com/quillbooks/quillbooks/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDocument(ctx context.Context, orgID int64, kind DocumentKind, id int64) (Document, error)
	SumCompletedPayments(ctx context.Context, orgID int64, kind DocumentKind, id int64) (decimal.Decimal, error)
	ListPayments(ctx context.Context, orgID int64, kind DocumentKind, id int64) ([]Payment, error)
	ListOutstandingDocuments(ctx context.Context, orgID int64, kind DocumentKind) ([]OutstandingDocument, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service reconciles payments against invoices and purchases.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	cache    *cache.Projection
	collator *collate.Collator
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, projections *cache.Projection) *Service {
	return &Service{
		repo:     repo,
		audit:    audit,
		cache:    projections,
		collator: collate.New(language.English, collate.IgnoreCase),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RecordPayment records a COMPLETED payment and decrements the party's cached
// outstanding balance. The document row stays locked while the completed sum
// is checked so concurrent payments cannot jointly overpay.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	if input.OrgID == 0 || input.DocumentID == 0 {
		return Payment{}, fmt.Errorf("payments: %w: organization and document required", shared.ErrValidation)
	}
	if !input.DocumentKind.Valid() {
		return Payment{}, ErrUnknownDocumentKind
	}
	if !input.Amount.IsPositive() {
		return Payment{}, ErrInvalidAmount
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = s.now()
	}
	// Every payment carries a receipt reference for bank-statement matching.
	if input.Reference == "" {
		input.Reference = uuid.NewString()
	}

	payment := Payment{
		OrgID:        input.OrgID,
		DocumentKind: input.DocumentKind,
		DocumentID:   input.DocumentID,
		PartyKind:    input.DocumentKind.PartyKind(),
		Amount:       input.Amount,
		Mode:         input.Mode,
		Status:       PaymentCompleted,
		PaymentDate:  input.PaymentDate,
		Reference:    input.Reference,
		CreatedAt:    s.now(),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetDocumentForUpdate(ctx, input.OrgID, input.DocumentKind, input.DocumentID)
		if err != nil {
			return err
		}
		paid, err := tx.SumCompletedPayments(ctx, input.OrgID, input.DocumentKind, input.DocumentID)
		if err != nil {
			return err
		}
		outstanding := doc.Total.Sub(paid)
		if input.Amount.GreaterThan(outstanding) {
			return ErrOverpayment
		}
		payment.PartyID = doc.PartyID
		id, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id
		// Clamped at zero inside the UPDATE statement.
		return tx.AdjustPartyOutstanding(ctx, input.OrgID, payment.PartyKind, doc.PartyID, input.Amount.Neg())
	})
	if err != nil {
		return Payment{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			OrgID:    input.OrgID,
			ActorID:  input.ActorID,
			Action:   "payments:record",
			Entity:   "payment",
			EntityID: fmt.Sprintf("%d", payment.ID),
			Meta: map[string]any{
				"document_kind": input.DocumentKind,
				"document_id":   input.DocumentID,
				"amount":        input.Amount.String(),
			},
		})
	}
	_ = s.cache.Bump(ctx, input.OrgID)
	return payment, nil
}

// DeletePayment removes a payment and reverses its effect on the party's
// cached outstanding balance.
func (s *Service) DeletePayment(ctx context.Context, orgID, actorID, id int64) error {
	if orgID == 0 || id == 0 {
		return fmt.Errorf("payments: %w: organization and payment id required", shared.ErrValidation)
	}
	var deleted Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.GetPaymentForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := tx.DeletePayment(ctx, orgID, id); err != nil {
			return err
		}
		deleted = payment
		return tx.AdjustPartyOutstanding(ctx, orgID, payment.PartyKind, payment.PartyID, payment.Amount)
	})
	if err != nil {
		return err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			OrgID:    orgID,
			ActorID:  actorID,
			Action:   "payments:delete",
			Entity:   "payment",
			EntityID: fmt.Sprintf("%d", id),
			Meta: map[string]any{
				"document_kind": deleted.DocumentKind,
				"document_id":   deleted.DocumentID,
				"amount":        deleted.Amount.String(),
			},
		})
	}
	_ = s.cache.Bump(ctx, orgID)
	return nil
}

// DocumentStatus classifies a document's settlement state.
func (s *Service) DocumentStatus(ctx context.Context, orgID int64, kind DocumentKind, id int64) (DocumentStatusReport, error) {
	if orgID == 0 || id == 0 {
		return DocumentStatusReport{}, fmt.Errorf("payments: %w: organization and document required", shared.ErrValidation)
	}
	if !kind.Valid() {
		return DocumentStatusReport{}, ErrUnknownDocumentKind
	}
	doc, err := s.repo.GetDocument(ctx, orgID, kind, id)
	if err != nil {
		return DocumentStatusReport{}, err
	}
	paid, err := s.repo.SumCompletedPayments(ctx, orgID, kind, id)
	if err != nil {
		return DocumentStatusReport{}, err
	}
	outstanding := doc.Total.Sub(paid)
	report := DocumentStatusReport{
		DocumentKind: kind,
		DocumentID:   id,
		Total:        doc.Total,
		Paid:         paid,
		Outstanding:  outstanding,
	}
	switch {
	case outstanding.IsZero():
		report.Status = StatusPaid
	case paid.IsZero():
		report.Status = StatusUnpaid
	default:
		report.Status = StatusPartial
	}
	if doc.Total.IsPositive() {
		report.PaymentPercentage = paid.Div(doc.Total).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return report, nil
}

// ListPayments returns all payments recorded against one document.
func (s *Service) ListPayments(ctx context.Context, orgID int64, kind DocumentKind, id int64) ([]Payment, error) {
	if orgID == 0 || id == 0 {
		return nil, fmt.Errorf("payments: %w: organization and document required", shared.ErrValidation)
	}
	if !kind.Valid() {
		return nil, ErrUnknownDocumentKind
	}
	return s.repo.ListPayments(ctx, orgID, kind, id)
}

// OutstandingSummary aggregates pending amounts across both document kinds,
// partitioned into overdue and upcoming and grouped by party name.
func (s *Service) OutstandingSummary(ctx context.Context, orgID int64) (OutstandingSummary, error) {
	if orgID == 0 {
		return OutstandingSummary{}, fmt.Errorf("payments: %w: organization required", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, orgID, "payments", "outstanding")
	if err != nil {
		return OutstandingSummary{}, err
	}
	var summary OutstandingSummary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		return s.buildOutstandingSummary(ctx, orgID)
	})
	return summary, err
}

func (s *Service) buildOutstandingSummary(ctx context.Context, orgID int64) (OutstandingSummary, error) {
	var receivables, payables SideSummary
	now := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.repo.ListOutstandingDocuments(gctx, orgID, DocumentInvoice)
		if err != nil {
			return err
		}
		receivables = s.summariseSide(docs, now)
		return nil
	})
	g.Go(func() error {
		docs, err := s.repo.ListOutstandingDocuments(gctx, orgID, DocumentPurchase)
		if err != nil {
			return err
		}
		payables = s.summariseSide(docs, now)
		return nil
	})
	if err := g.Wait(); err != nil {
		return OutstandingSummary{}, err
	}
	return OutstandingSummary{Receivables: receivables, Payables: payables, GeneratedAt: now}, nil
}

func (s *Service) summariseSide(docs []OutstandingDocument, now time.Time) SideSummary {
	side := SideSummary{
		Total:    decimal.Zero,
		Overdue:  decimal.Zero,
		Upcoming: decimal.Zero,
		Parties:  []PartyOutstanding{},
	}
	byParty := map[int64]*PartyOutstanding{}
	for _, doc := range docs {
		side.Total = side.Total.Add(doc.Outstanding)
		side.Documents++
		if doc.DueDate.Before(now) {
			side.Overdue = side.Overdue.Add(doc.Outstanding)
		} else {
			side.Upcoming = side.Upcoming.Add(doc.Outstanding)
		}
		if group, ok := byParty[doc.PartyID]; ok {
			group.Amount = group.Amount.Add(doc.Outstanding)
		} else {
			byParty[doc.PartyID] = &PartyOutstanding{PartyID: doc.PartyID, Name: doc.PartyName, Amount: doc.Outstanding}
		}
	}
	for _, group := range byParty {
		side.Parties = append(side.Parties, *group)
	}
	sort.Slice(side.Parties, func(i, j int) bool {
		if c := s.collator.CompareString(side.Parties[i].Name, side.Parties[j].Name); c != 0 {
			return c < 0
		}
		return side.Parties[i].PartyID < side.Parties[j].PartyID
	})
	return side
}
