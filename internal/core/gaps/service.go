// Package gaps audits the billing history of active clients and reports the
// competences (reference months) that never received an invoice.
package gaps

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reconciliation-service/internal/core/normalize"
	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/storage"
	"reconciliation-service/internal/storage/repository"
)

// DefaultWindowMonths is how far back the audit looks when the caller does
// not say otherwise.
const DefaultWindowMonths = 12

// Report is the aggregate answer of one audit run.
type Report struct {
	GeneratedAt     string                 `json:"generated_at"`
	WindowMonths    int                    `json:"window_months"`
	TotalClients    int                    `json:"total_clients"`
	ClientsWithGaps int                    `json:"clients_with_gaps"`
	CriticalCount   int                    `json:"critical_count"`
	Gaps            []domain.CompetenceGap `json:"gaps"`
}

// Service detects competence gaps.
type Service interface {
	Detect(ctx context.Context, now time.Time, windowMonths int) (*Report, error)
}

type service struct {
	clients  *repository.ClientRepo
	invoices *repository.InvoiceRepo
	audit    *repository.AuditRepo
	logger   *zap.Logger
}

// NewService creates the gap detection service.
func NewService(clients *repository.ClientRepo, invoices *repository.InvoiceRepo, audit *repository.AuditRepo, logger *zap.Logger) Service {
	return &service{clients: clients, invoices: invoices, audit: audit, logger: logger}
}

func (s *service) Detect(ctx context.Context, now time.Time, windowMonths int) (*Report, error) {
	if windowMonths <= 0 {
		windowMonths = DefaultWindowMonths
	}
	billable, err := s.clients.ListBillable(ctx)
	if err != nil {
		return nil, err
	}

	// The window is anchored at the current month, inclusive: an audit run
	// in May with a 12 month window expects June through May.
	expected := make([]string, 0, windowMonths)
	for i := windowMonths - 1; i >= 0; i-- {
		expected = append(expected, now.AddDate(0, -i, 0).Format("2006-01"))
	}
	since := expected[0]

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		gaps   []domain.CompetenceGap
		errOne error
	)
	for _, client := range billable {
		wg.Add(1)
		go func(client domain.Client) {
			defer wg.Done()
			gap, err := s.auditClient(ctx, client, expected, since)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errOne == nil {
					errOne = err
				}
				return
			}
			if gap != nil {
				gaps = append(gaps, *gap)
			}
		}(client)
	}
	wg.Wait()
	if errOne != nil {
		return nil, errOne
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].Status != gaps[j].Status {
			return gaps[i].Status == domain.GapCritical
		}
		if gaps[i].TotalMissing != gaps[j].TotalMissing {
			return gaps[i].TotalMissing > gaps[j].TotalMissing
		}
		return gaps[i].ClientName < gaps[j].ClientName
	})

	report := &Report{
		GeneratedAt:  now.Format(time.RFC3339),
		WindowMonths: windowMonths,
		TotalClients: len(billable),
		Gaps:         gaps,
	}
	for _, gap := range gaps {
		report.ClientsWithGaps++
		if gap.Status == domain.GapCritical {
			report.CriticalCount++
			s.recordCritical(ctx, gap)
		}
	}

	s.logger.Info("auditoria de competências concluída",
		zap.Int("window_months", windowMonths),
		zap.Int("total_clients", report.TotalClients),
		zap.Int("clients_with_gaps", report.ClientsWithGaps),
		zap.Int("critical", report.CriticalCount),
	)
	return report, nil
}

// auditClient returns nil when the client has no gap. Clients with no invoice
// at all inside the window are skipped: there is no billing history to audit,
// only an onboarding or churn case for another report.
func (s *service) auditClient(ctx context.Context, client domain.Client, expected []string, since string) (*domain.CompetenceGap, error) {
	invoices, err := s.invoices.CompetencesSince(ctx, client.ID, since)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}

	observed := make(map[string]bool, len(invoices))
	for _, inv := range invoices {
		observed[inv.Competence] = true
	}

	var missing []string
	critical := false
	for _, competence := range expected {
		if observed[competence] {
			continue
		}
		missing = append(missing, normalize.CompetenceToDisplay(competence))
		// An invoice in a later competence proves billing resumed after
		// the hole, so the hole is a real lapse, not the end of history.
		for _, inv := range invoices {
			if inv.Competence > competence {
				critical = true
				break
			}
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	gap := &domain.CompetenceGap{
		ClientID:          client.ID,
		ClientName:        client.Name,
		MissingMonths:     missing,
		LastInvoiceDate:   normalize.ISODate(invoices[0].DueDate),
		HasFutureInvoices: critical,
		TotalMissing:      len(missing),
		Status:            domain.GapPossibleChurn,
	}
	if critical {
		gap.Status = domain.GapCritical
	}
	return gap, nil
}

func (s *service) recordCritical(ctx context.Context, gap domain.CompetenceGap) {
	metadata, _ := json.Marshal(gap)
	err := s.audit.Append(ctx, domain.AuditLog{
		ID:          uuid.NewString(),
		Severity:    "error",
		Title:       "Competência sem fatura",
		Description: "Cliente " + gap.ClientName + " possui meses sem faturamento seguidos de faturas posteriores",
		Metadata:    string(metadata),
		CreatedAt:   storage.Now(),
	})
	if err != nil {
		s.logger.Warn("falha ao registrar auditoria", zap.String("client_id", gap.ClientID), zap.Error(err))
		return
	}
	s.logger.Error("competência sem fatura",
		zap.String("client_id", gap.ClientID),
		zap.String("client_name", gap.ClientName),
		zap.Strings("missing_months", gap.MissingMonths),
	)
}
