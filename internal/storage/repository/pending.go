package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
)

// PendingRepo handles the human-approval queue.
type PendingRepo struct {
	db DBTX
}

func NewPendingRepo(db DBTX) *PendingRepo { return &PendingRepo{db: db} }

const pendingColumns = `id, bank_transaction_id, settlement_record_id, invoice_id, ofx_amount, ofx_date, cnab_document, confidence, criterion, status, approver, account_code, cost_center, created_at`

func (r *PendingRepo) Insert(ctx context.Context, p domain.PendingReconciliation) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO pending_reconciliations(id, bank_transaction_id, settlement_record_id, invoice_id, ofx_amount, ofx_date, cnab_document, confidence, criterion, status, approver, account_code, cost_center, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, p.ID, p.BankTransactionID, p.SettlementRecordID, p.InvoiceID, p.OFXAmount.String(), p.OFXDate,
		p.CNABDocument, p.Confidence, p.Criterion, string(p.Status), p.Approver, p.AccountCode, p.CostCenter, p.CreatedAt)
	return err
}

// ListPending returns open proposals, oldest first.
func (r *PendingRepo) ListPending(ctx context.Context) ([]domain.PendingReconciliation, error) {
	return r.list(ctx, `SELECT `+pendingColumns+` FROM pending_reconciliations
	WHERE status = 'pending' ORDER BY created_at, id`)
}

func (r *PendingRepo) Get(ctx context.Context, id string) (*domain.PendingReconciliation, error) {
	rows, err := r.list(ctx, `SELECT `+pendingColumns+` FROM pending_reconciliations WHERE id = ?`, id)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// UpdateStatus moves a proposal to a terminal state. Only pending rows can
// transition; a second decision on the same row affects nothing.
func (r *PendingRepo) UpdateStatus(ctx context.Context, id string, status domain.PendingStatus, approver string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE pending_reconciliations SET status = ?, approver = ? WHERE id = ? AND status = 'pending'`,
		string(status), approver, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PendingRepo) list(ctx context.Context, query string, args ...interface{}) ([]domain.PendingReconciliation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PendingReconciliation
	for rows.Next() {
		var p domain.PendingReconciliation
		var amount, status, criterion string
		var txID, setID, invID, approver, account, cost sql.NullString
		var ofxDate sql.NullTime
		if err := rows.Scan(&p.ID, &txID, &setID, &invID, &amount, &ofxDate, &p.CNABDocument,
			&p.Confidence, &criterion, &status, &approver, &account, &cost, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.OFXAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("pending %s: %w", p.ID, err)
		}
		p.Criterion = criterion
		p.Status = domain.PendingStatus(status)
		if ofxDate.Valid {
			p.OFXDate = ofxDate.Time
		}
		p.BankTransactionID = nullString(txID)
		p.SettlementRecordID = nullString(setID)
		p.InvoiceID = nullString(invID)
		p.Approver = nullString(approver)
		p.AccountCode = nullString(account)
		p.CostCenter = nullString(cost)
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
