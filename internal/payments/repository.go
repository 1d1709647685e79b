package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/quillbooks/quillbooks/internal/platform/db"
	"github.com/quillbooks/quillbooks/internal/shared"
)

// Repository persists payment data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetDocumentForUpdate(ctx context.Context, orgID int64, kind DocumentKind, id int64) (Document, error)
	SumCompletedPayments(ctx context.Context, orgID int64, kind DocumentKind, id int64) (decimal.Decimal, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	GetPaymentForUpdate(ctx context.Context, orgID, id int64) (Payment, error)
	DeletePayment(ctx context.Context, orgID, id int64) error
	AdjustPartyOutstanding(ctx context.Context, orgID int64, kind PartyKind, partyID int64, delta decimal.Decimal) error
}

type txRepository struct {
	tx pgx.Tx
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("payments repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func documentTables(kind DocumentKind) (docTable, partyTable, partyColumn string) {
	if kind == DocumentPurchase {
		return "purchases", "suppliers", "supplier_id"
	}
	return "invoices", "customers", "customer_id"
}

func getDocument(ctx context.Context, q queryer, orgID int64, kind DocumentKind, id int64, forUpdate bool) (Document, error) {
	docTable, partyTable, partyColumn := documentTables(kind)
	query := fmt.Sprintf(`SELECT d.id, d.org_id, d.total_amount, d.due_date, d.%s, p.name
FROM %s d
JOIN %s p ON p.id = d.%s AND p.org_id = d.org_id
WHERE d.org_id=$1 AND d.id=$2`, partyColumn, docTable, partyTable, partyColumn)
	if forUpdate {
		query += " FOR UPDATE OF d"
	}
	var doc Document
	doc.Kind = kind
	err := q.QueryRow(ctx, query, orgID, id).
		Scan(&doc.ID, &doc.OrgID, &doc.Total, &doc.DueDate, &doc.PartyID, &doc.PartyName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, shared.ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func sumCompleted(ctx context.Context, q queryer, orgID int64, kind DocumentKind, id int64) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)
FROM payments
WHERE org_id=$1 AND document_kind=$2 AND document_id=$3 AND status=$4`,
		orgID, string(kind), id, string(PaymentCompleted)).Scan(&paid)
	return paid, err
}

// GetDocument loads an invoice or purchase with its party name.
func (r *Repository) GetDocument(ctx context.Context, orgID int64, kind DocumentKind, id int64) (Document, error) {
	return getDocument(ctx, r.pool, orgID, kind, id, false)
}

// SumCompletedPayments totals COMPLETED payments for one document.
func (r *Repository) SumCompletedPayments(ctx context.Context, orgID int64, kind DocumentKind, id int64) (decimal.Decimal, error) {
	return sumCompleted(ctx, r.pool, orgID, kind, id)
}

// ListPayments returns payments for one document, newest first.
func (r *Repository) ListPayments(ctx context.Context, orgID int64, kind DocumentKind, id int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, document_kind, document_id, party_kind, party_id, amount, mode, status, payment_date, reference, created_at
FROM payments
WHERE org_id=$1 AND document_kind=$2 AND document_id=$3
ORDER BY payment_date DESC, id DESC`, orgID, string(kind), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrgID, &p.DocumentKind, &p.DocumentID, &p.PartyKind, &p.PartyID, &p.Amount, &p.Mode, &p.Status, &p.PaymentDate, &p.Reference, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListOutstandingDocuments returns documents with a pending balance.
func (r *Repository) ListOutstandingDocuments(ctx context.Context, orgID int64, kind DocumentKind) ([]OutstandingDocument, error) {
	docTable, partyTable, partyColumn := documentTables(kind)
	query := fmt.Sprintf(`SELECT d.id, d.%s, p.name, d.due_date,
       d.total_amount - COALESCE(paid.amount, 0) AS outstanding
FROM %s d
JOIN %s p ON p.id = d.%s AND p.org_id = d.org_id
LEFT JOIN (
    SELECT document_id, SUM(amount) AS amount
    FROM payments
    WHERE org_id=$1 AND document_kind=$2 AND status=$3
    GROUP BY document_id
) paid ON paid.document_id = d.id
WHERE d.org_id=$1 AND d.total_amount - COALESCE(paid.amount, 0) > 0
ORDER BY d.due_date ASC, d.id ASC`, partyColumn, docTable, partyTable, partyColumn)
	rows, err := r.pool.Query(ctx, query, orgID, string(kind), string(PaymentCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := []OutstandingDocument{}
	for rows.Next() {
		var doc OutstandingDocument
		if err := rows.Scan(&doc.DocumentID, &doc.PartyID, &doc.PartyName, &doc.DueDate, &doc.Outstanding); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *txRepository) GetDocumentForUpdate(ctx context.Context, orgID int64, kind DocumentKind, id int64) (Document, error) {
	return getDocument(ctx, r.tx, orgID, kind, id, true)
}

func (r *txRepository) SumCompletedPayments(ctx context.Context, orgID int64, kind DocumentKind, id int64) (decimal.Decimal, error) {
	return sumCompleted(ctx, r.tx, orgID, kind, id)
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payments (org_id, document_kind, document_id, party_kind, party_id, amount, mode, status, payment_date, reference, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		p.OrgID, string(p.DocumentKind), p.DocumentID, string(p.PartyKind), p.PartyID, p.Amount, p.Mode, string(p.Status), p.PaymentDate, p.Reference, p.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) GetPaymentForUpdate(ctx context.Context, orgID, id int64) (Payment, error) {
	var p Payment
	err := r.tx.QueryRow(ctx, `SELECT id, org_id, document_kind, document_id, party_kind, party_id, amount, mode, status, payment_date, reference, created_at
FROM payments WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id).
		Scan(&p.ID, &p.OrgID, &p.DocumentKind, &p.DocumentID, &p.PartyKind, &p.PartyID, &p.Amount, &p.Mode, &p.Status, &p.PaymentDate, &p.Reference, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, shared.ErrNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

func (r *txRepository) DeletePayment(ctx context.Context, orgID, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM payments WHERE org_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AdjustPartyOutstanding applies the delta to the cached outstanding balance
// in a single conditional UPDATE. Negative results clamp at zero.
func (r *txRepository) AdjustPartyOutstanding(ctx context.Context, orgID int64, kind PartyKind, partyID int64, delta decimal.Decimal) error {
	table := "customers"
	if kind == PartySupplier {
		table = "suppliers"
	}
	query := fmt.Sprintf(`UPDATE %s
SET outstanding_amount = GREATEST(outstanding_amount + $3, 0), updated_at = NOW()
WHERE org_id=$1 AND id=$2`, table)
	tag, err := r.tx.Exec(ctx, query, orgID, partyID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
