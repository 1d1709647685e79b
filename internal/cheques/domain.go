package cheques

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quillbooks/quillbooks/internal/shared"
)

// Status enumerates cheque lifecycle states.
type Status string

const (
	StatusIssued    Status = "ISSUED"
	StatusDeposited Status = "DEPOSITED"
	StatusCleared   Status = "CLEARED"
	StatusBounced   Status = "BOUNCED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusIssued, StatusDeposited, StatusCleared, StatusBounced, StatusCancelled:
		return true
	}
	return false
}

// transitions is the forward-only lifecycle graph. CLEARED, BOUNCED and
// CANCELLED are terminal.
var transitions = map[Status][]Status{
	StatusIssued:    {StatusDeposited, StatusCancelled},
	StatusDeposited: {StatusCleared, StatusBounced, StatusCancelled},
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cheque tracks one cheque from issuance to a terminal state.
type Cheque struct {
	ID              int64           `json:"id"`
	OrgID           int64           `json:"-"`
	ChequeNumber    string          `json:"cheque_number"`
	Amount          decimal.Decimal `json:"amount"`
	ChequeDate      time.Time       `json:"cheque_date"`
	BankName        string          `json:"bank_name"`
	Status          Status          `json:"status"`
	LinkedPaymentID *int64          `json:"linked_payment_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IssueInput describes a cheque issuance request.
type IssueInput struct {
	OrgID           int64
	ActorID         int64
	ChequeNumber    string
	Amount          decimal.Decimal
	ChequeDate      time.Time
	BankName        string
	LinkedPaymentID *int64
}

// StatusBucket is the per-status slice of the summary.
type StatusBucket struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// Summary aggregates cheques by status for one organization.
type Summary struct {
	ByStatus      map[Status]StatusBucket `json:"by_status"`
	ClearedAmount decimal.Decimal         `json:"cleared_amount"`
	PendingAmount decimal.Decimal         `json:"pending_amount"`
	BouncedAmount decimal.Decimal         `json:"bounced_amount"`
	GeneratedAt   time.Time               `json:"generated_at"`
}

var (
	// ErrDuplicateNumber rejects a cheque number already issued in the organization.
	ErrDuplicateNumber = fmt.Errorf("cheques: %w: cheque number already exists", shared.ErrConflict)
	// ErrUnknownStatus rejects statuses outside the lifecycle enumeration.
	ErrUnknownStatus = fmt.Errorf("cheques: %w: unknown cheque status", shared.ErrValidation)
)
