package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quillbooks/quillbooks/internal/shared"
)

type memoryParty struct {
	name        string
	outstanding decimal.Decimal
}

type memoryRepo struct {
	documents map[string]Document
	parties   map[string]*memoryParty
	payments  map[int64]Payment
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		documents: make(map[string]Document),
		parties:   make(map[string]*memoryParty),
		payments:  make(map[int64]Payment),
	}
}

func docKey(orgID int64, kind DocumentKind, id int64) string {
	return fmt.Sprintf("%d:%s:%d", orgID, kind, id)
}

func partyKey(orgID int64, kind PartyKind, id int64) string {
	return fmt.Sprintf("%d:%s:%d", orgID, kind, id)
}

func (r *memoryRepo) addDocument(doc Document, partyKind PartyKind, outstanding decimal.Decimal) {
	r.documents[docKey(doc.OrgID, doc.Kind, doc.ID)] = doc
	r.parties[partyKey(doc.OrgID, partyKind, doc.PartyID)] = &memoryParty{name: doc.PartyName, outstanding: outstanding}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetDocument(ctx context.Context, orgID int64, kind DocumentKind, id int64) (Document, error) {
	if doc, ok := r.documents[docKey(orgID, kind, id)]; ok {
		return doc, nil
	}
	return Document{}, shared.ErrNotFound
}

func (r *memoryRepo) sumCompleted(orgID int64, kind DocumentKind, id int64) decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.payments {
		if p.OrgID == orgID && p.DocumentKind == kind && p.DocumentID == id && p.Status == PaymentCompleted {
			total = total.Add(p.Amount)
		}
	}
	return total
}

func (r *memoryRepo) SumCompletedPayments(ctx context.Context, orgID int64, kind DocumentKind, id int64) (decimal.Decimal, error) {
	return r.sumCompleted(orgID, kind, id), nil
}

func (r *memoryRepo) ListPayments(ctx context.Context, orgID int64, kind DocumentKind, id int64) ([]Payment, error) {
	var result []Payment
	for _, p := range r.payments {
		if p.OrgID == orgID && p.DocumentKind == kind && p.DocumentID == id {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r *memoryRepo) ListOutstandingDocuments(ctx context.Context, orgID int64, kind DocumentKind) ([]OutstandingDocument, error) {
	var docs []OutstandingDocument
	for _, doc := range r.documents {
		if doc.OrgID != orgID || doc.Kind != kind {
			continue
		}
		outstanding := doc.Total.Sub(r.sumCompleted(orgID, kind, doc.ID))
		if outstanding.IsPositive() {
			docs = append(docs, OutstandingDocument{
				DocumentID:  doc.ID,
				PartyID:     doc.PartyID,
				PartyName:   doc.PartyName,
				Outstanding: outstanding,
				DueDate:     doc.DueDate,
			})
		}
	}
	return docs, nil
}

func (tx *memoryTx) GetDocumentForUpdate(ctx context.Context, orgID int64, kind DocumentKind, id int64) (Document, error) {
	return tx.repo.GetDocument(ctx, orgID, kind, id)
}

func (tx *memoryTx) SumCompletedPayments(ctx context.Context, orgID int64, kind DocumentKind, id int64) (decimal.Decimal, error) {
	return tx.repo.sumCompleted(orgID, kind, id), nil
}

func (tx *memoryTx) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.payments[p.ID] = p
	return p.ID, nil
}

func (tx *memoryTx) GetPaymentForUpdate(ctx context.Context, orgID, id int64) (Payment, error) {
	if p, ok := tx.repo.payments[id]; ok && p.OrgID == orgID {
		return p, nil
	}
	return Payment{}, shared.ErrNotFound
}

func (tx *memoryTx) DeletePayment(ctx context.Context, orgID, id int64) error {
	if p, ok := tx.repo.payments[id]; !ok || p.OrgID != orgID {
		return shared.ErrNotFound
	}
	delete(tx.repo.payments, id)
	return nil
}

func (tx *memoryTx) AdjustPartyOutstanding(ctx context.Context, orgID int64, kind PartyKind, partyID int64, delta decimal.Decimal) error {
	party, ok := tx.repo.parties[partyKey(orgID, kind, partyID)]
	if !ok {
		return shared.ErrNotFound
	}
	party.outstanding = party.outstanding.Add(delta)
	if party.outstanding.IsNegative() {
		party.outstanding = decimal.Zero
	}
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func invoiceFixture(repo *memoryRepo, total, outstanding string) {
	repo.addDocument(Document{
		Kind:      DocumentInvoice,
		ID:        10,
		OrgID:     1,
		Total:     dec(total),
		DueDate:   time.Now().Add(72 * time.Hour),
		PartyID:   5,
		PartyName: "Acme Traders",
	}, PartyCustomer, dec(outstanding))
}

func TestPartialThenFullPayment(t *testing.T) {
	repo := newMemoryRepo()
	invoiceFixture(repo, "1180.00", "1180.00")
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{OrgID: 1, DocumentKind: DocumentInvoice, DocumentID: 10, Amount: dec("1000"), Mode: "UPI"})
	require.NoError(t, err)

	report, err := svc.DocumentStatus(ctx, 1, DocumentInvoice, 10)
	require.NoError(t, err)
	require.Equal(t, StatusPartial, report.Status)
	require.True(t, report.PaymentPercentage.Equal(dec("84.75")), "got %s", report.PaymentPercentage)

	_, err = svc.RecordPayment(ctx, PaymentInput{OrgID: 1, DocumentKind: DocumentInvoice, DocumentID: 10, Amount: dec("180"), Mode: "CASH"})
	require.NoError(t, err)

	report, err = svc.DocumentStatus(ctx, 1, DocumentInvoice, 10)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, report.Status)
	require.True(t, report.PaymentPercentage.Equal(dec("100")))
}

func TestOverpaymentRejected(t *testing.T) {
	repo := newMemoryRepo()
	invoiceFixture(repo, "1180.00", "1180.00")
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{OrgID: 1, DocumentKind: DocumentInvoice, DocumentID: 10, Amount: dec("1000"), Mode: "UPI"})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, PaymentInput{OrgID: 1, DocumentKind: DocumentInvoice, DocumentID: 10, Amount: dec("180"), Mode: "CASH"})
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, PaymentInput{OrgID: 1, DocumentKind: DocumentInvoice, DocumentID: 10, Amount: dec("1"), Mode: "CASH"})
	require.ErrorIs(t, err, shared.ErrConflict)

	// The rejected payment must not change the document status.
	report, err := svc.DocumentStatus(ctx, 1, DocumentInvoice, 10)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, report.Status)
	require.True(t, report.Paid.Equal(dec("1180.00")))
}

func TestCompletedSumNeverExceedsTotal(t *testing.T) {
	repo := newMemoryRepo()
	invoiceFixture(repo, "500.00", "500.00")
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	amounts := []string{"200", "200", "200", "100", "50"}
	for _, a := range amounts {
		_, _ = svc.RecordPayment(ctx, PaymentInput{OrgID: 1, DocumentKind: DocumentInvoice, DocumentID: 10, Amount: dec(a), Mode: "CASH"})
		paid := repo.sumCompleted(1, DocumentInvoice, 10)
		require.True(t, paid.LessThanOrEqual(dec("500.00")), "paid %s exceeds total", paid)
	}
}

func TestPaymentDecrementsAndDeleteRestoresOutstanding(t *testing.T) {
	repo := newMemoryRepo()
	invoiceFixture(repo, "1000.00", "1000.00")
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	payment, err := svc.RecordPayment(ctx, PaymentInput{OrgID: 1, DocumentKind: DocumentInvoice, DocumentID: 10, Amount: dec("400"), Mode: "CHEQUE"})
	require.NoError(t, err)

	party := repo.parties[partyKey(1, PartyCustomer, 5)]
	require.True(t, party.outstanding.Equal(dec("600.00")), "got %s", party.outstanding)

	require.NoError(t, svc.DeletePayment(ctx, 1, 0, payment.ID))
	require.True(t, party.outstanding.Equal(dec("1000.00")), "got %s", party.outstanding)
}

func TestOutstandingNeverGoesNegative(t *testing.T) {
	repo := newMemoryRepo()
	// Cached balance starts below the invoice total, e.g. after manual correction.
	invoiceFixture(repo, "1000.00", "300.00")
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{OrgID: 1, DocumentKind: DocumentInvoice, DocumentID: 10, Amount: dec("400"), Mode: "CASH"})
	require.NoError(t, err)

	party := repo.parties[partyKey(1, PartyCustomer, 5)]
	require.True(t, party.outstanding.Equal(decimal.Zero), "clamped at zero, got %s", party.outstanding)
}

func TestDocumentStatusUnpaid(t *testing.T) {
	repo := newMemoryRepo()
	invoiceFixture(repo, "250.00", "250.00")
	svc := NewService(repo, nil, nil)

	report, err := svc.DocumentStatus(context.Background(), 1, DocumentInvoice, 10)
	require.NoError(t, err)
	require.Equal(t, StatusUnpaid, report.Status)
	require.True(t, report.PaymentPercentage.Equal(decimal.Zero))
	require.True(t, report.Outstanding.Equal(dec("250.00")))
}

func TestRecordPaymentValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{OrgID: 1, DocumentKind: DocumentInvoice, DocumentID: 10, Amount: decimal.Zero, Mode: "CASH"})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RecordPayment(ctx, PaymentInput{OrgID: 1, DocumentKind: "receipt", DocumentID: 10, Amount: dec("5"), Mode: "CASH"})
	require.ErrorIs(t, err, ErrUnknownDocumentKind)

	_, err = svc.RecordPayment(ctx, PaymentInput{OrgID: 1, DocumentKind: DocumentInvoice, DocumentID: 99, Amount: dec("5"), Mode: "CASH"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOutstandingSummaryPartitionsAndGroups(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Now()
	repo.addDocument(Document{Kind: DocumentInvoice, ID: 1, OrgID: 1, Total: dec("100"), DueDate: now.Add(-48 * time.Hour), PartyID: 5, PartyName: "Zen Supplies"}, PartyCustomer, dec("100"))
	repo.addDocument(Document{Kind: DocumentInvoice, ID: 2, OrgID: 1, Total: dec("200"), DueDate: now.Add(48 * time.Hour), PartyID: 6, PartyName: "Acme Traders"}, PartyCustomer, dec("200"))
	repo.addDocument(Document{Kind: DocumentInvoice, ID: 3, OrgID: 1, Total: dec("50"), DueDate: now.Add(24 * time.Hour), PartyID: 6, PartyName: "Acme Traders"}, PartyCustomer, dec("50"))
	repo.addDocument(Document{Kind: DocumentPurchase, ID: 4, OrgID: 1, Total: dec("300"), DueDate: now.Add(-24 * time.Hour), PartyID: 9, PartyName: "Mega Mills"}, PartySupplier, dec("300"))
	svc := NewService(repo, nil, nil)

	summary, err := svc.OutstandingSummary(context.Background(), 1)
	require.NoError(t, err)

	require.True(t, summary.Receivables.Total.Equal(dec("350")))
	require.True(t, summary.Receivables.Overdue.Equal(dec("100")))
	require.True(t, summary.Receivables.Upcoming.Equal(dec("250")))
	require.Equal(t, 3, summary.Receivables.Documents)

	require.Len(t, summary.Receivables.Parties, 2)
	require.Equal(t, "Acme Traders", summary.Receivables.Parties[0].Name)
	require.True(t, summary.Receivables.Parties[0].Amount.Equal(dec("250")))
	require.Equal(t, "Zen Supplies", summary.Receivables.Parties[1].Name)

	require.True(t, summary.Payables.Total.Equal(dec("300")))
	require.True(t, summary.Payables.Overdue.Equal(dec("300")))
}
