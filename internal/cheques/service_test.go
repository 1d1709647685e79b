package cheques

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quillbooks/quillbooks/internal/shared"
)

type memoryRepo struct {
	cheques  map[int64]*Cheque
	payments map[string]bool
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		cheques:  make(map[int64]*Cheque),
		payments: make(map[string]bool),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetCheque(ctx context.Context, orgID, id int64) (Cheque, error) {
	if c, ok := r.cheques[id]; ok && c.OrgID == orgID {
		return *c, nil
	}
	return Cheque{}, shared.ErrNotFound
}

func (r *memoryRepo) ListCheques(ctx context.Context, orgID int64, limit, offset int) ([]Cheque, int, error) {
	var list []Cheque
	for _, c := range r.cheques {
		if c.OrgID == orgID {
			list = append(list, *c)
		}
	}
	return list, len(list), nil
}

func (r *memoryRepo) SummarizeByStatus(ctx context.Context, orgID int64) (map[Status]StatusBucket, error) {
	buckets := make(map[Status]StatusBucket)
	for _, c := range r.cheques {
		if c.OrgID != orgID {
			continue
		}
		b := buckets[c.Status]
		b.Count++
		b.Amount = b.Amount.Add(c.Amount)
		buckets[c.Status] = b
	}
	return buckets, nil
}

func (tx *memoryTx) PaymentExists(ctx context.Context, orgID, paymentID int64) error {
	key := paymentKey(orgID, paymentID)
	if !tx.repo.payments[key] {
		return shared.ErrNotFound
	}
	return nil
}

func (tx *memoryTx) InsertCheque(ctx context.Context, c Cheque) (int64, error) {
	for _, existing := range tx.repo.cheques {
		if existing.OrgID == c.OrgID && existing.ChequeNumber == c.ChequeNumber {
			return 0, ErrDuplicateNumber
		}
	}
	tx.repo.nextID++
	c.ID = tx.repo.nextID
	tx.repo.cheques[c.ID] = &c
	return c.ID, nil
}

func (tx *memoryTx) GetChequeForUpdate(ctx context.Context, orgID, id int64) (Cheque, error) {
	return tx.repo.GetCheque(ctx, orgID, id)
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, id int64, status Status, updatedAt time.Time) error {
	c := tx.repo.cheques[id]
	c.Status = status
	c.UpdatedAt = updatedAt
	return nil
}

func paymentKey(orgID, paymentID int64) string {
	return fmt.Sprintf("%d:%d", orgID, paymentID)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func issue(t *testing.T, svc *Service, orgID int64, number string) Cheque {
	t.Helper()
	cheque, err := svc.Issue(context.Background(), IssueInput{
		OrgID:        orgID,
		ChequeNumber: number,
		Amount:       dec("750"),
		ChequeDate:   time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		BankName:     "HDFC",
	})
	require.NoError(t, err)
	require.Equal(t, StatusIssued, cheque.Status)
	return cheque
}

func TestChequeNumberUniquePerOrganization(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	issue(t, svc, 1, "CHQ-001")

	_, err := svc.Issue(context.Background(), IssueInput{
		OrgID:        1,
		ChequeNumber: "CHQ-001",
		Amount:       dec("100"),
		ChequeDate:   time.Now(),
	})
	require.ErrorIs(t, err, shared.ErrConflict)

	// Same number in a different organization is independent.
	issue(t, svc, 2, "CHQ-001")
}

func TestIssueValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Issue(ctx, IssueInput{OrgID: 1, Amount: dec("10"), ChequeDate: time.Now()})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Issue(ctx, IssueInput{OrgID: 1, ChequeNumber: "CHQ-002", Amount: dec("-5"), ChequeDate: time.Now()})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Issue(ctx, IssueInput{OrgID: 1, ChequeNumber: "CHQ-002", Amount: dec("5")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestIssueLinkedPaymentMustExist(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	paymentID := int64(7)

	_, err := svc.Issue(context.Background(), IssueInput{
		OrgID:           1,
		ChequeNumber:    "CHQ-010",
		Amount:          dec("200"),
		ChequeDate:      time.Now(),
		LinkedPaymentID: &paymentID,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)

	repo.payments[paymentKey(1, paymentID)] = true
	cheque, err := svc.Issue(context.Background(), IssueInput{
		OrgID:           1,
		ChequeNumber:    "CHQ-010",
		Amount:          dec("200"),
		ChequeDate:      time.Now(),
		LinkedPaymentID: &paymentID,
	})
	require.NoError(t, err)
	require.Equal(t, paymentID, *cheque.LinkedPaymentID)
}

func TestTransitionGraph(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusIssued, StatusDeposited, true},
		{StatusIssued, StatusCancelled, true},
		{StatusIssued, StatusCleared, false},
		{StatusIssued, StatusBounced, false},
		{StatusDeposited, StatusCleared, true},
		{StatusDeposited, StatusBounced, true},
		{StatusDeposited, StatusCancelled, true},
		{StatusDeposited, StatusIssued, false},
		{StatusCleared, StatusDeposited, false},
		{StatusCleared, StatusCancelled, false},
		{StatusBounced, StatusDeposited, false},
		{StatusCancelled, StatusIssued, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.allowed, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTransitionLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	cheque := issue(t, svc, 1, "CHQ-100")

	got, err := svc.Transition(ctx, 1, 0, cheque.ID, StatusDeposited)
	require.NoError(t, err)
	require.Equal(t, StatusDeposited, got.Status)

	got, err = svc.Transition(ctx, 1, 0, cheque.ID, StatusCleared)
	require.NoError(t, err)
	require.Equal(t, StatusCleared, got.Status)

	// Cleared is terminal.
	_, err = svc.Transition(ctx, 1, 0, cheque.ID, StatusDeposited)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Equal(t, StatusCleared, repo.cheques[cheque.ID].Status)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	cheque := issue(t, svc, 1, "CHQ-101")

	_, err := svc.Transition(context.Background(), 1, 0, cheque.ID, "SHREDDED")
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestTransitionOrgScoping(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	cheque := issue(t, svc, 1, "CHQ-102")

	_, err := svc.Transition(context.Background(), 2, 0, cheque.ID, StatusDeposited)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSummaryAggregates(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	c1 := issue(t, svc, 1, "CHQ-201") // stays ISSUED, 750
	c2 := issue(t, svc, 1, "CHQ-202")
	c3 := issue(t, svc, 1, "CHQ-203")
	_ = c1

	_, err := svc.Transition(ctx, 1, 0, c2.ID, StatusDeposited)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, 1, 0, c3.ID, StatusDeposited)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, 1, 0, c3.ID, StatusBounced)
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, 1)
	require.NoError(t, err)
	require.True(t, summary.PendingAmount.Equal(dec("1500")), "pending %s", summary.PendingAmount)
	require.True(t, summary.BouncedAmount.Equal(dec("750")))
	require.True(t, summary.ClearedAmount.Equal(decimal.Zero))
	require.Equal(t, 1, summary.ByStatus[StatusIssued].Count)
	require.Equal(t, 1, summary.ByStatus[StatusDeposited].Count)
	require.Equal(t, 1, summary.ByStatus[StatusBounced].Count)
}
