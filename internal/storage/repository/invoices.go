package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
)

// InvoiceRepo handles invoices.
type InvoiceRepo struct {
	db DBTX
}

func NewInvoiceRepo(db DBTX) *InvoiceRepo { return &InvoiceRepo{db: db} }

const invoiceColumns = `id, client_id, number, competence, due_date, amount, status, payment_date, cnab_reference, reconciled_at`

func (r *InvoiceRepo) Insert(ctx context.Context, inv domain.Invoice) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO invoices(id, client_id, number, competence, due_date, amount, status, payment_date, cnab_reference, reconciled_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, inv.ID, inv.ClientID, inv.Number, inv.Competence, inv.DueDate, inv.Amount.String(),
		string(inv.Status), nullableTime(inv.PaymentDate), inv.CNABReference, nullableTime(inv.ReconciledAt))
	return err
}

// ExistsForCompetence reports whether the client already has an invoice for
// the competence; one invoice per (client, competence) is the import rule.
func (r *InvoiceRepo) ExistsForCompetence(ctx context.Context, clientID, competence string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM invoices WHERE client_id = ? AND competence = ?`, clientID, competence).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Open returns pending and overdue invoices, the matcher's candidate pool.
func (r *InvoiceRepo) Open(ctx context.Context) ([]domain.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices
	WHERE status IN ('pending', 'overdue') ORDER BY due_date, id`)
}

// OpenByClient returns a single client's open invoices, oldest debt first.
func (r *InvoiceRepo) OpenByClient(ctx context.Context, clientID string) ([]domain.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices
	WHERE client_id = ? AND status IN ('pending', 'overdue') ORDER BY due_date, id`, clientID)
}

// ByClient returns all of a client's invoices.
func (r *InvoiceRepo) ByClient(ctx context.Context, clientID string) ([]domain.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices
	WHERE client_id = ? ORDER BY competence`, clientID)
}

// CompetencesSince returns the competence labels and due dates of a client's
// invoices with competence >= since (YYYY-MM), newest first.
func (r *InvoiceRepo) CompetencesSince(ctx context.Context, clientID, since string) ([]domain.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices
	WHERE client_id = ? AND competence >= ? ORDER BY competence DESC`, clientID, since)
}

func (r *InvoiceRepo) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	rows, err := r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// MarkPaid settles an invoice. The status guard makes the claim first-writer-
// wins: a second settlement attempt affects zero rows and reports false.
func (r *InvoiceRepo) MarkPaid(ctx context.Context, id string, paymentDate time.Time, cnabReference string, reconciledAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	UPDATE invoices SET status = 'paid', payment_date = ?, cnab_reference = ?, reconciled_at = ?
	WHERE id = ? AND status IN ('pending', 'overdue')`,
		paymentDate, cnabReference, reconciledAt, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *InvoiceRepo) list(ctx context.Context, query string, args ...interface{}) ([]domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		var amount, status string
		var payment, reconciled sql.NullTime
		var cnabRef sql.NullString
		if err := rows.Scan(&inv.ID, &inv.ClientID, &inv.Number, &inv.Competence, &inv.DueDate,
			&amount, &status, &payment, &cnabRef, &reconciled); err != nil {
			return nil, err
		}
		if inv.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		inv.Status = domain.InvoiceStatus(status)
		if payment.Valid {
			t := payment.Time
			inv.PaymentDate = &t
		}
		if cnabRef.Valid {
			s := cnabRef.String
			inv.CNABReference = &s
		}
		if reconciled.Valid {
			t := reconciled.Time
			inv.ReconciledAt = &t
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
