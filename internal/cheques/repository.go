package cheques

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillbooks/quillbooks/internal/platform/db"
	"github.com/quillbooks/quillbooks/internal/shared"
)

// Repository persists cheques in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the statements that must run inside one transaction.
type TxRepository interface {
	PaymentExists(ctx context.Context, orgID, paymentID int64) error
	InsertCheque(ctx context.Context, c Cheque) (int64, error)
	GetChequeForUpdate(ctx context.Context, orgID, id int64) (Cheque, error)
	UpdateStatus(ctx context.Context, id int64, status Status, updatedAt time.Time) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const chequeColumns = `id, org_id, cheque_number, amount, cheque_date, bank_name, status, linked_payment_id, created_at, updated_at`

func scanCheque(row pgx.Row) (Cheque, error) {
	var c Cheque
	err := row.Scan(&c.ID, &c.OrgID, &c.ChequeNumber, &c.Amount, &c.ChequeDate, &c.BankName,
		&c.Status, &c.LinkedPaymentID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cheque{}, fmt.Errorf("cheques: %w: cheque not found", shared.ErrNotFound)
	}
	if err != nil {
		return Cheque{}, fmt.Errorf("cheques: get cheque: %w", err)
	}
	return c, nil
}

// GetCheque loads one cheque.
func (r *Repository) GetCheque(ctx context.Context, orgID, id int64) (Cheque, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+chequeColumns+` FROM cheques WHERE org_id = $1 AND id = $2`, orgID, id)
	return scanCheque(row)
}

// ListCheques returns cheques newest first.
func (r *Repository) ListCheques(ctx context.Context, orgID int64, limit, offset int) ([]Cheque, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cheques WHERE org_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("cheques: count cheques: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+chequeColumns+`
		FROM cheques
		WHERE org_id = $1
		ORDER BY cheque_date DESC, id DESC
		LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("cheques: list cheques: %w", err)
	}
	defer rows.Close()

	var list []Cheque
	for rows.Next() {
		var c Cheque
		if err := rows.Scan(&c.ID, &c.OrgID, &c.ChequeNumber, &c.Amount, &c.ChequeDate, &c.BankName,
			&c.Status, &c.LinkedPaymentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("cheques: scan cheque: %w", err)
		}
		list = append(list, c)
	}
	return list, total, rows.Err()
}

// SummarizeByStatus returns per-status counts and amount sums.
func (r *Repository) SummarizeByStatus(ctx context.Context, orgID int64) (map[Status]StatusBucket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM cheques
		WHERE org_id = $1
		GROUP BY status`, orgID)
	if err != nil {
		return nil, fmt.Errorf("cheques: summarize: %w", err)
	}
	defer rows.Close()

	buckets := make(map[Status]StatusBucket)
	for rows.Next() {
		var (
			status Status
			bucket StatusBucket
		)
		if err := rows.Scan(&status, &bucket.Count, &bucket.Amount); err != nil {
			return nil, fmt.Errorf("cheques: scan summary: %w", err)
		}
		buckets[status] = bucket
	}
	return buckets, rows.Err()
}

func (r *txRepository) PaymentExists(ctx context.Context, orgID, paymentID int64) error {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE org_id = $1 AND id = $2)`, orgID, paymentID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("cheques: check payment: %w", err)
	}
	if !exists {
		return fmt.Errorf("cheques: %w: linked payment not found", shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) InsertCheque(ctx context.Context, c Cheque) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO cheques
			(org_id, cheque_number, amount, cheque_date, bank_name, status, linked_payment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`,
		c.OrgID, c.ChequeNumber, c.Amount, c.ChequeDate, c.BankName, c.Status, c.LinkedPaymentID, c.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateNumber
		}
		return 0, fmt.Errorf("cheques: insert cheque: %w", err)
	}
	return id, nil
}

func (r *txRepository) GetChequeForUpdate(ctx context.Context, orgID, id int64) (Cheque, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+chequeColumns+` FROM cheques WHERE org_id = $1 AND id = $2 FOR UPDATE`, orgID, id)
	return scanCheque(row)
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status, updatedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE cheques SET status = $2, updated_at = $3 WHERE id = $1`, id, status, updatedAt)
	if err != nil {
		return fmt.Errorf("cheques: update status: %w", err)
	}
	return nil
}
