package bankrecon

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quillbooks/quillbooks/internal/shared"
)

// ReconciliationStatus enumerates session states. COMPLETED is terminal;
// DISCREPANCY can be completed again after further matching.
type ReconciliationStatus string

const (
	StatusPending     ReconciliationStatus = "PENDING"
	StatusCompleted   ReconciliationStatus = "COMPLETED"
	StatusDiscrepancy ReconciliationStatus = "DISCREPANCY"
)

// TransactionType classifies a bank-statement line.
type TransactionType string

const (
	TypeDeposit    TransactionType = "DEPOSIT"
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	TypeTransfer   TransactionType = "TRANSFER"
	TypeInterest   TransactionType = "INTEREST"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer, TypeInterest:
		return true
	}
	return false
}

// Inflow reports whether the type accumulates into the session's deposit
// total. Everything else counts as a withdrawal.
func (t TransactionType) Inflow() bool {
	switch t {
	case TypeDeposit, TypeTransfer, TypeInterest:
		return true
	}
	return false
}

// Reconciliation is one statement-matching session for a bank account.
type Reconciliation struct {
	ID               int64                `json:"id"`
	OrgID            int64                `json:"-"`
	BankAccount      string               `json:"bank_account"`
	StatementDate    time.Time            `json:"statement_date"`
	OpeningBalance   decimal.Decimal      `json:"opening_balance"`
	ClosingBalance   decimal.Decimal      `json:"closing_balance"`
	TotalDeposits    decimal.Decimal      `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal      `json:"total_withdrawals"`
	Status           ReconciliationStatus `json:"status"`
	CreatedAt        time.Time            `json:"created_at"`
	Transactions     []Transaction        `json:"transactions,omitempty"`
}

// Transaction is one externally supplied statement line inside a session.
type Transaction struct {
	ID               int64           `json:"id"`
	ReconciliationID int64           `json:"reconciliation_id"`
	Date             time.Time       `json:"date"`
	Description      string          `json:"description"`
	Amount           decimal.Decimal `json:"amount"`
	Type             TransactionType `json:"type"`
	ReferenceNo      string          `json:"reference_no,omitempty"`
	Matched          bool            `json:"matched"`
	MatchedPaymentID *int64          `json:"matched_payment_id,omitempty"`
}

// OpenInput describes a request to open a session.
type OpenInput struct {
	OrgID          int64
	ActorID        int64
	BankAccount    string
	StatementDate  time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
}

// TransactionInput describes a statement line to add to a session.
type TransactionInput struct {
	OrgID            int64
	ActorID          int64
	ReconciliationID int64
	Date             time.Time
	Description      string
	Amount           decimal.Decimal
	Type             TransactionType
	ReferenceNo      string
}

var (
	// ErrUnknownTransactionType rejects statement lines with an unrecognised type.
	ErrUnknownTransactionType = fmt.Errorf("bankrecon: %w: unknown transaction type", shared.ErrValidation)
	// ErrSessionCompleted guards completed sessions against further edits.
	ErrSessionCompleted = fmt.Errorf("bankrecon: %w: reconciliation already completed", shared.ErrInvalidTransition)
	// ErrAmountMismatch rejects matches where the line and payment amounts differ.
	ErrAmountMismatch = fmt.Errorf("bankrecon: %w: transaction amount does not equal payment amount", shared.ErrValidation)
	// ErrAlreadyMatched rejects re-matching a line to a different payment.
	ErrAlreadyMatched = fmt.Errorf("bankrecon: %w: transaction already matched to another payment", shared.ErrConflict)
)
