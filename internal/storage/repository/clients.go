// Package repository provides typed sqlite repositories, one per table.
// Monetary columns are stored as exact decimal strings, never floats.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
)

// ClientRepo handles clients.
type ClientRepo struct {
	db DBTX
}

func NewClientRepo(db DBTX) *ClientRepo { return &ClientRepo{db: db} }

func (r *ClientRepo) Insert(ctx context.Context, c domain.Client) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO clients(id, name, cnpj, cnpj_digits, monthly_fee, payment_day, status, pro_bono, pro_bono_until)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, c.ID, c.Name, c.CNPJ, c.CNPJDigits, c.MonthlyFee.String(), c.PaymentDay, string(c.Status), c.ProBono, c.ProBonoUntil)
	return err
}

// ListActive returns active clients, the resolution universe for the PIX path.
func (r *ClientRepo) ListActive(ctx context.Context) ([]domain.Client, error) {
	return r.list(ctx, `SELECT id, name, cnpj, cnpj_digits, monthly_fee, payment_day, status, pro_bono, pro_bono_until
	FROM clients WHERE status = 'active' ORDER BY name`)
}

// ListBillable returns active, non-pro-bono clients with a monthly fee, the
// population the gap detector audits.
func (r *ClientRepo) ListBillable(ctx context.Context) ([]domain.Client, error) {
	return r.list(ctx, `SELECT id, name, cnpj, cnpj_digits, monthly_fee, payment_day, status, pro_bono, pro_bono_until
	FROM clients WHERE status = 'active' AND pro_bono = 0 AND monthly_fee <> '0' ORDER BY name`)
}

func (r *ClientRepo) Get(ctx context.Context, id string) (*domain.Client, error) {
	rows, err := r.list(ctx, `SELECT id, name, cnpj, cnpj_digits, monthly_fee, payment_day, status, pro_bono, pro_bono_until
	FROM clients WHERE id = ?`, id)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *ClientRepo) list(ctx context.Context, query string, args ...interface{}) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		var c domain.Client
		var fee string
		var status string
		var until sql.NullTime
		if err := rows.Scan(&c.ID, &c.Name, &c.CNPJ, &c.CNPJDigits, &fee, &c.PaymentDay, &status, &c.ProBono, &until); err != nil {
			return nil, err
		}
		if c.MonthlyFee, err = decimal.NewFromString(fee); err != nil {
			return nil, err
		}
		c.Status = domain.ClientStatus(status)
		if until.Valid {
			t := until.Time
			c.ProBonoUntil = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// BankAccountRepo handles bank accounts.
type BankAccountRepo struct {
	db DBTX
}

func NewBankAccountRepo(db DBTX) *BankAccountRepo { return &BankAccountRepo{db: db} }

func (r *BankAccountRepo) Insert(ctx context.Context, id, name, bankName string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bank_accounts(id, name, bank_name) VALUES(?, ?, ?)`, id, name, bankName)
	return err
}

// Exists reports whether an active account with the given id exists.
func (r *BankAccountRepo) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM bank_accounts WHERE id = ? AND is_active = 1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
