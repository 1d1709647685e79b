package payments

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quillbooks/quillbooks/internal/shared"
)

// DocumentKind identifies which master-data document a payment settles.
type DocumentKind string

const (
	DocumentInvoice  DocumentKind = "invoice"
	DocumentPurchase DocumentKind = "purchase"
)

// Valid reports whether the document kind is known.
func (k DocumentKind) Valid() bool {
	return k == DocumentInvoice || k == DocumentPurchase
}

// PartyKind returns the party side settled by the document kind.
func (k DocumentKind) PartyKind() PartyKind {
	if k == DocumentPurchase {
		return PartySupplier
	}
	return PartyCustomer
}

// PartyKind identifies the counterparty carrying the cached outstanding balance.
type PartyKind string

const (
	PartyCustomer PartyKind = "customer"
	PartySupplier PartyKind = "supplier"
)

// PaymentStatus enumerates payment states.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentPending   PaymentStatus = "PENDING"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Payment is one recorded settlement against an invoice or purchase.
type Payment struct {
	ID           int64           `json:"id"`
	OrgID        int64           `json:"-"`
	DocumentKind DocumentKind    `json:"document_kind"`
	DocumentID   int64           `json:"document_id"`
	PartyKind    PartyKind       `json:"party_kind"`
	PartyID      int64           `json:"party_id"`
	Amount       decimal.Decimal `json:"amount"`
	Mode         string          `json:"mode"`
	Status       PaymentStatus   `json:"status"`
	PaymentDate  time.Time       `json:"payment_date"`
	Reference    string          `json:"reference,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Document is the read-only view of an invoice or purchase owned by the
// master-data collaborator.
type Document struct {
	Kind      DocumentKind
	ID        int64
	OrgID     int64
	Total     decimal.Decimal
	DueDate   time.Time
	PartyID   int64
	PartyName string
}

// PaymentInput describes a request to record a payment.
type PaymentInput struct {
	OrgID        int64
	ActorID      int64
	DocumentKind DocumentKind
	DocumentID   int64
	Amount       decimal.Decimal
	Mode         string
	PaymentDate  time.Time
	Reference    string
}

// DocumentPaymentStatus classifies how settled a document is.
type DocumentPaymentStatus string

const (
	StatusPaid    DocumentPaymentStatus = "PAID"
	StatusPartial DocumentPaymentStatus = "PARTIAL"
	StatusUnpaid  DocumentPaymentStatus = "UNPAID"
)

// DocumentStatusReport is the per-document settlement projection.
type DocumentStatusReport struct {
	DocumentKind      DocumentKind          `json:"document_kind"`
	DocumentID        int64                 `json:"document_id"`
	Total             decimal.Decimal       `json:"total"`
	Paid              decimal.Decimal       `json:"paid"`
	Outstanding       decimal.Decimal       `json:"outstanding"`
	Status            DocumentPaymentStatus `json:"status"`
	PaymentPercentage decimal.Decimal       `json:"payment_percentage"`
}

// OutstandingDocument is one unsettled document row used by the summary.
type OutstandingDocument struct {
	DocumentID  int64
	PartyID     int64
	PartyName   string
	Outstanding decimal.Decimal
	DueDate     time.Time
}

// PartyOutstanding groups pending amounts by counterparty.
type PartyOutstanding struct {
	PartyID int64           `json:"party_id"`
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
}

// SideSummary aggregates one side (receivable or payable) of the outstanding
// summary. Overdue holds documents whose due date has passed.
type SideSummary struct {
	Total     decimal.Decimal    `json:"total"`
	Overdue   decimal.Decimal    `json:"overdue"`
	Upcoming  decimal.Decimal    `json:"upcoming"`
	Documents int                `json:"documents"`
	Parties   []PartyOutstanding `json:"parties"`
}

// OutstandingSummary is the org-wide pending balance projection.
type OutstandingSummary struct {
	Receivables SideSummary `json:"receivables"`
	Payables    SideSummary `json:"payables"`
	GeneratedAt time.Time   `json:"generated_at"`
}

var (
	// ErrOverpayment rejects payments exceeding the document's outstanding balance.
	ErrOverpayment = fmt.Errorf("payments: %w: amount exceeds outstanding balance", shared.ErrConflict)
	// ErrInvalidAmount rejects non-positive payment amounts.
	ErrInvalidAmount = fmt.Errorf("payments: %w: amount must be positive", shared.ErrValidation)
	// ErrUnknownDocumentKind rejects document kinds outside the closed set.
	ErrUnknownDocumentKind = fmt.Errorf("payments: %w: unknown document kind", shared.ErrValidation)
)
