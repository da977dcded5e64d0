package repository

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
)

// SettlementRepo handles CNAB settlement records.
type SettlementRepo struct {
	db DBTX
}

func NewSettlementRepo(db DBTX) *SettlementRepo { return &SettlementRepo{db: db} }

// Insert stores a settlement record. The (account, document, payment date)
// unique key makes re-imports idempotent: a duplicate row is reported as
// skipped, not as an error.
func (r *SettlementRepo) Insert(ctx context.Context, s domain.SettlementRecord) (duplicate bool, err error) {
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO settlement_records(id, batch_id, bank_account_id, document, counterparty, due_date, payment_date, nominal_amount, paid_amount, status_text)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, s.ID, s.BatchID, s.BankAccountID, s.Document, s.Counterparty, s.DueDate, s.PaymentDate,
		s.NominalAmount.String(), s.PaidAmount.String(), s.StatusText)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return true, nil
	}
	return false, err
}

// ByBatch lists the records imported under one batch id.
func (r *SettlementRepo) ByBatch(ctx context.Context, batchID string) ([]domain.SettlementRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, batch_id, bank_account_id, document, counterparty, due_date, payment_date, nominal_amount, paid_amount, status_text
	FROM settlement_records WHERE batch_id = ? ORDER BY payment_date, document`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SettlementRecord
	for rows.Next() {
		var s domain.SettlementRecord
		var nominal, paid string
		if err := rows.Scan(&s.ID, &s.BatchID, &s.BankAccountID, &s.Document, &s.Counterparty,
			&s.DueDate, &s.PaymentDate, &nominal, &paid, &s.StatusText); err != nil {
			return nil, err
		}
		if s.NominalAmount, err = decimal.NewFromString(nominal); err != nil {
			return nil, err
		}
		if s.PaidAmount, err = decimal.NewFromString(paid); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
