// Package domain holds the shared model types. Monetary values use
// decimal.Decimal end to end; binary floats never carry money.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClientStatus defines the lifecycle state of a billing client.
type ClientStatus string

// Constants for client status.
const (
	ClientActive    ClientStatus = "active"
	ClientInactive  ClientStatus = "inactive"
	ClientSuspended ClientStatus = "suspended"
)

// InvoiceStatus defines the lifecycle state of an invoice.
type InvoiceStatus string

// Constants for invoice status.
const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// PendingStatus defines the lifecycle of a proposed reconciliation.
type PendingStatus string

// Constants for pending reconciliation status.
const (
	PendingReview   PendingStatus = "pending"
	PendingApproved PendingStatus = "approved"
	PendingRejected PendingStatus = "rejected"
)

// Direction marks a bank transaction as credit or debit.
type Direction string

// Constants for transaction direction.
const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Client is a billing subject. CNPJDigits holds the normalized 14-digit key.
type Client struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	CNPJ         string          `json:"cnpj"`
	CNPJDigits   string          `json:"cnpj_digits"`
	MonthlyFee   decimal.Decimal `json:"monthly_fee"`
	PaymentDay   int             `json:"payment_day"`
	Status       ClientStatus    `json:"status"`
	ProBono      bool            `json:"pro_bono"`
	ProBonoUntil *time.Time      `json:"pro_bono_until,omitempty"`
}

// Invoice is a billing obligation for one client competence.
type Invoice struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"client_id"`
	Number        string          `json:"number"`
	Competence    string          `json:"competence"` // YYYY-MM
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
	Status        InvoiceStatus   `json:"status"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	CNABReference *string         `json:"cnab_reference,omitempty"`
	ReconciledAt  *time.Time      `json:"reconciled_at,omitempty"`
}

// BankTransaction is one line of an imported bank statement.
type BankTransaction struct {
	ID               string          `json:"id"`
	BankAccountID    string          `json:"bank_account_id"`
	FitID            string          `json:"fitid"`
	Date             time.Time       `json:"date"`
	Amount           decimal.Decimal `json:"amount"` // signed
	Description      string          `json:"description"`
	Direction        Direction       `json:"direction"`
	Matched          bool            `json:"matched"`
	Confidence       *float64        `json:"confidence,omitempty"`
	MatchedInvoiceID *string         `json:"matched_invoice_id,omitempty"`
}

// SettlementRecord is a bank-reported instrument settlement (CNAB return line).
type SettlementRecord struct {
	ID            string          `json:"id"`
	BatchID       string          `json:"batch_id"`
	BankAccountID string          `json:"bank_account_id"`
	Document      string          `json:"document"` // nosso número
	Counterparty  string          `json:"counterparty"`
	DueDate       time.Time       `json:"due_date"`
	PaymentDate   time.Time       `json:"payment_date"`
	NominalAmount decimal.Decimal `json:"nominal_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	StatusText    string          `json:"status_text"` // e.g. LIQUIDADO
}

// PendingReconciliation is a proposed match awaiting human approval.
type PendingReconciliation struct {
	ID                 string          `json:"id"`
	BankTransactionID  *string         `json:"bank_transaction_id,omitempty"`
	SettlementRecordID *string         `json:"settlement_record_id,omitempty"`
	InvoiceID          *string         `json:"invoice_id,omitempty"`
	OFXAmount          decimal.Decimal `json:"ofx_amount"`
	OFXDate            time.Time       `json:"ofx_date"`
	CNABDocument       string          `json:"cnab_document"`
	Confidence         float64         `json:"confidence"`
	Criterion          string          `json:"criterion"`
	Status             PendingStatus   `json:"status"`
	Approver           *string         `json:"approver,omitempty"`
	AccountCode        *string         `json:"account_code,omitempty"`
	CostCenter         *string         `json:"cost_center,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// AuditLog is an append-only audit event.
type AuditLog struct {
	ID          string    `json:"id"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Metadata    string    `json:"metadata"` // JSON document
	CreatedAt   time.Time `json:"created_at"`
}

// ReconciliationResult is the aggregate answer of one reconciliation run.
type ReconciliationResult struct {
	TotalOFXTransactions   int             `json:"total_ofx_transactions"`
	TotalCNABTransactions  int             `json:"total_cnab_transactions"`
	MatchedTransactions    int             `json:"matched_transactions"`
	PendingReconciliations int             `json:"pending_reconciliations"`
	UnmatchedOFX           int             `json:"unmatched_ofx"`
	UnmatchedCNAB          int             `json:"unmatched_cnab"`
	SkippedOFX             int             `json:"skipped_ofx"`
	SkippedCNAB            int             `json:"skipped_cnab"`
	Errors                 []string        `json:"errors"`
	MatchedDetails         []MatchedDetail `json:"matched_details"`
}

// MatchedDetail is one audit row of the reconciliation result.
type MatchedDetail struct {
	OFXAmount     decimal.Decimal `json:"ofx_amount"`
	OFXDate       string          `json:"ofx_date"`
	CNABDocument  string          `json:"cnab_document"`
	CNABAmount    decimal.Decimal `json:"cnab_amount"`
	CNABDate      string          `json:"cnab_date"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Confidence    float64         `json:"confidence"`
	Status        string          `json:"status"`
}

// GapStatus classifies a competence gap.
type GapStatus string

// Constants for gap classification.
const (
	GapCritical      GapStatus = "critical"
	GapPossibleChurn GapStatus = "possible_churn"
)

// CompetenceGap reports missing billing competences for one client.
type CompetenceGap struct {
	ClientID          string    `json:"client_id"`
	ClientName        string    `json:"client_name"`
	MissingMonths     []string  `json:"missing_months"` // MM/YYYY
	LastInvoiceDate   string    `json:"last_invoice_date"`
	HasFutureInvoices bool      `json:"has_future_invoices"`
	TotalMissing      int       `json:"total_missing"`
	Status            GapStatus `json:"status"`
}

// ImportResult summarizes a spreadsheet/report import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}
