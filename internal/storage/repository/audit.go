package repository

import (
	"context"

	"reconciliation-service/internal/domain"
)

// AuditRepo appends audit events; the log is never updated or deleted.
type AuditRepo struct {
	db DBTX
}

func NewAuditRepo(db DBTX) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Append(ctx context.Context, e domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO audit_logs(id, severity, title, description, metadata, created_at)
	VALUES(?, ?, ?, ?, ?, ?);
	`, e.ID, e.Severity, e.Title, e.Description, e.Metadata, e.CreatedAt)
	return err
}

// BySeverity lists events of one severity, newest first.
func (r *AuditRepo) BySeverity(ctx context.Context, severity string) ([]domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, severity, title, description, metadata, created_at
	FROM audit_logs WHERE severity = ? ORDER BY created_at DESC`, severity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditLog
	for rows.Next() {
		var e domain.AuditLog
		if err := rows.Scan(&e.ID, &e.Severity, &e.Title, &e.Description, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
