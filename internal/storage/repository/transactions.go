package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
)

// BankTransactionRepo handles imported statement lines.
type BankTransactionRepo struct {
	db DBTX
}

func NewBankTransactionRepo(db DBTX) *BankTransactionRepo { return &BankTransactionRepo{db: db} }

const bankTxColumns = `id, bank_account_id, fitid, date, amount, description, direction, matched, confidence, matched_invoice_id`

// Insert stores a statement line. Re-importing the same FITID for the same
// account is reported as a duplicate, not an error.
func (r *BankTransactionRepo) Insert(ctx context.Context, t domain.BankTransaction) (duplicate bool, err error) {
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO bank_transactions(id, bank_account_id, fitid, date, amount, description, direction, matched, confidence, matched_invoice_id)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, t.ID, t.BankAccountID, t.FitID, t.Date, t.Amount.String(), t.Description,
		string(t.Direction), t.Matched, t.Confidence, t.MatchedInvoiceID)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return true, nil
	}
	return false, err
}

// MarkMatched links a transaction to an invoice with the given confidence.
func (r *BankTransactionRepo) MarkMatched(ctx context.Context, id, invoiceID string, confidence float64) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE bank_transactions SET matched = 1, matched_invoice_id = ?, confidence = ? WHERE id = ?`,
		invoiceID, confidence, id)
	return err
}

// Release returns a transaction to the unmatched pool (rejection path).
func (r *BankTransactionRepo) Release(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE bank_transactions SET matched = 0, matched_invoice_id = NULL, confidence = NULL WHERE id = ?`, id)
	return err
}

// UnmatchedCredits lists unmatched credit transactions whose description
// mentions the given token (e.g. "PIX"), newest first.
func (r *BankTransactionRepo) UnmatchedCredits(ctx context.Context, accountID, token string) ([]domain.BankTransaction, error) {
	return r.list(ctx, `SELECT `+bankTxColumns+` FROM bank_transactions
	WHERE bank_account_id = ? AND matched = 0 AND direction = 'credit' AND description LIKE ?
	ORDER BY date DESC`, accountID, "%"+token+"%")
}

func (r *BankTransactionRepo) Get(ctx context.Context, id string) (*domain.BankTransaction, error) {
	rows, err := r.list(ctx, `SELECT `+bankTxColumns+` FROM bank_transactions WHERE id = ?`, id)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *BankTransactionRepo) list(ctx context.Context, query string, args ...interface{}) ([]domain.BankTransaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BankTransaction
	for rows.Next() {
		var t domain.BankTransaction
		var amount, direction string
		var confidence sql.NullFloat64
		var invoiceID sql.NullString
		if err := rows.Scan(&t.ID, &t.BankAccountID, &t.FitID, &t.Date, &amount, &t.Description,
			&direction, &t.Matched, &confidence, &invoiceID); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		t.Direction = domain.Direction(direction)
		if confidence.Valid {
			v := confidence.Float64
			t.Confidence = &v
		}
		if invoiceID.Valid {
			s := invoiceID.String
			t.MatchedInvoiceID = &s
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
