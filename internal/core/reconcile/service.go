// Package reconcile cross-references bank statements (OFX), settlement
// returns (CNAB) and open invoices, settling what it can prove and queueing
// the rest for human review.
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reconciliation-service/internal/core/extract"
	"reconciliation-service/internal/core/match"
	"reconciliation-service/internal/core/normalize"
	"reconciliation-service/internal/core/parse"
	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/storage"
	"reconciliation-service/internal/storage/repository"
)

// ValidationError marks a request the caller can fix (missing content,
// unknown account, unreadable file). Handlers translate it to a 400.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// cnabPairWindowDays bounds how far apart an OFX credit and a CNAB settlement
// may land and still be treated as the same money movement.
const cnabPairWindowDays = 2

// Request carries one reconciliation run: both files plus the account they
// belong to.
type Request struct {
	OFXContent    string `json:"ofx_content"`
	CNABContent   string `json:"cnab_content"`
	BankAccountID string `json:"bank_account_id"`
}

// Decision is a human verdict on a queued proposal.
type Decision struct {
	PendingID string
	Approver  string
}

// UnmatchedPixEntry is one unmatched PIX credit with the counterparty
// identity pulled from its description and the resolution against the
// client base.
type UnmatchedPixEntry struct {
	Transaction  domain.BankTransaction `json:"transaction"`
	TaxID        string                 `json:"tax_id,omitempty"` // formatted CNPJ/CPF
	Name         string                 `json:"name"`
	Client       *domain.Client         `json:"client,omitempty"`
	OpenInvoices []domain.Invoice       `json:"open_invoices,omitempty"`
	Suggestions  []extract.Suggestion   `json:"suggestions,omitempty"`
}

// Service orchestrates reconciliation runs and the approval queue.
type Service interface {
	Reconcile(ctx context.Context, req Request) (*domain.ReconciliationResult, error)
	ListPending(ctx context.Context) ([]domain.PendingReconciliation, error)
	Approve(ctx context.Context, d Decision) error
	Reject(ctx context.Context, d Decision) error
	UnmatchedPix(ctx context.Context, bankAccountID string) ([]UnmatchedPixEntry, error)
}

type service struct {
	db           *sql.DB
	matcher      *match.Matcher
	clients      *repository.ClientRepo
	accounts     *repository.BankAccountRepo
	invoices     *repository.InvoiceRepo
	transactions *repository.BankTransactionRepo
	settlements  *repository.SettlementRepo
	pending      *repository.PendingRepo
	logger       *zap.Logger
}

// NewService creates the reconciliation service.
func NewService(db *sql.DB, matcher *match.Matcher, logger *zap.Logger) Service {
	return &service{
		db:           db,
		matcher:      matcher,
		clients:      repository.NewClientRepo(db),
		accounts:     repository.NewBankAccountRepo(db),
		invoices:     repository.NewInvoiceRepo(db),
		transactions: repository.NewBankTransactionRepo(db),
		settlements:  repository.NewSettlementRepo(db),
		pending:      repository.NewPendingRepo(db),
		logger:       logger,
	}
}

// settlementEntry tracks one persisted CNAB record through a run.
type settlementEntry struct {
	rec     parse.CNABRecord
	id      string
	docKey  string
	claimed bool
}

func (s *service) Reconcile(ctx context.Context, req Request) (*domain.ReconciliationResult, error) {
	if strings.TrimSpace(req.OFXContent) == "" {
		return nil, ValidationError("conteúdo OFX vazio")
	}
	if strings.TrimSpace(req.CNABContent) == "" {
		return nil, ValidationError("conteúdo CNAB vazio")
	}
	if req.BankAccountID == "" {
		return nil, ValidationError("conta bancária não informada")
	}
	ok, err := s.accounts.Exists(ctx, req.BankAccountID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ValidationError("conta bancária não encontrada ou inativa")
	}

	stmt, err := parse.OFX(req.OFXContent)
	if err != nil {
		return nil, ValidationError(fmt.Sprintf("arquivo OFX inválido: %v", err))
	}

	var records []parse.CNABRecord
	var rowErrs []string
	switch parse.DetectCNABFormat(req.CNABContent) {
	case 400:
		records, rowErrs = parse.CNAB400(req.CNABContent)
	case 240:
		records, rowErrs = parse.CNAB240(req.CNABContent)
	default:
		return nil, ValidationError("formato CNAB não reconhecido")
	}

	result := &domain.ReconciliationResult{Errors: rowErrs}

	batchID := uuid.NewString()
	var entries []*settlementEntry
	for _, rec := range records {
		if !rec.Settled() {
			continue
		}
		result.TotalCNABTransactions++
		docKey := rec.DocumentNumber
		if docKey == "" {
			docKey = rec.Document
		}
		entry := &settlementEntry{rec: rec, id: uuid.NewString(), docKey: docKey}
		dup, err := s.settlements.Insert(ctx, domain.SettlementRecord{
			ID:            entry.id,
			BatchID:       batchID,
			BankAccountID: req.BankAccountID,
			Document:      rec.Document,
			Counterparty:  "",
			DueDate:       rec.DueDate,
			PaymentDate:   rec.PaymentDate,
			NominalAmount: rec.NominalAmount,
			PaidAmount:    rec.PaidAmount,
			StatusText:    rec.StatusText,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("CNAB documento %s: %v", rec.Document, err))
			continue
		}
		if dup {
			result.SkippedCNAB++
			continue
		}
		entries = append(entries, entry)
	}

	pool, err := s.invoices.Open(ctx)
	if err != nil {
		return nil, err
	}
	clients, err := s.clients.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	clientByID := make(map[string]domain.Client, len(clients))
	for _, c := range clients {
		clientByID[c.ID] = c
	}

	for _, tx := range stmt.Transactions {
		result.TotalOFXTransactions++

		btID := uuid.NewString()
		dup, err := s.transactions.Insert(ctx, domain.BankTransaction{
			ID:            btID,
			BankAccountID: req.BankAccountID,
			FitID:         tx.FitID,
			Date:          tx.Date,
			Amount:        tx.Amount,
			Description:   tx.Description,
			Direction:     tx.Direction(),
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("OFX %s: %v", tx.FitID, err))
			result.SkippedOFX++
			continue
		}
		if dup {
			result.SkippedOFX++
			continue
		}

		rec := match.Record{Amount: tx.Amount.Abs(), Date: tx.Date}
		if id := extract.FromDescription(tx.Description); id.TaxID != "" {
			rec.TaxID = id.TaxID
		}

		var entry *settlementEntry
		cnabConf := 0.0
		if tx.Amount.IsPositive() {
			entry = s.pairSettlement(entries, tx)
		}
		if entry != nil {
			entry.claimed = true
			cnabConf = 0.95
			if sameDay(entry.rec.PaymentDate, tx.Date) {
				cnabConf = 0.99
			}
			rec.Document = entry.docKey
			rec.Amount = entry.rec.PaidAmount
			rec.Date = entry.rec.PaymentDate
		}

		// Only credits settle receivables; debits are recorded and left alone.
		var best match.Candidate
		var found, ambiguous bool
		if tx.Amount.IsPositive() {
			best, found, ambiguous = s.matcher.Best(s.matcher.Rank(rec, pool, clientByID))
		}

		detail := domain.MatchedDetail{
			OFXAmount: tx.Amount,
			OFXDate:   normalize.ISODate(tx.Date),
		}
		if entry != nil {
			detail.CNABDocument = entry.docKey
			detail.CNABAmount = entry.rec.PaidAmount
			detail.CNABDate = normalize.ISODate(entry.rec.PaymentDate)
		}

		settled := false
		if found && s.matcher.AutoAccept(best, ambiguous) {
			settled, err = s.settle(ctx, btID, tx, entry, best)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("OFX %s: %v", tx.FitID, err))
			}
		}

		switch {
		case settled:
			pool = removeInvoice(pool, best.Invoice.ID)
			result.MatchedTransactions++
			detail.InvoiceNumber = best.Invoice.Number
			detail.Confidence = best.Confidence
			detail.Status = "matched"
			result.MatchedDetails = append(result.MatchedDetails, detail)
		case found:
			if err := s.enqueue(ctx, btID, tx, entry, &best.Invoice, best.Confidence, string(best.Criterion)); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("OFX %s: %v", tx.FitID, err))
				continue
			}
			result.PendingReconciliations++
			detail.InvoiceNumber = best.Invoice.Number
			detail.Confidence = best.Confidence
			detail.Status = "pending"
			result.MatchedDetails = append(result.MatchedDetails, detail)
		case entry != nil:
			// Statement and CNAB agree on the money but no invoice claims it.
			if err := s.enqueue(ctx, btID, tx, entry, nil, cnabConf, "cnab_pair"); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("OFX %s: %v", tx.FitID, err))
				continue
			}
			result.PendingReconciliations++
			detail.Confidence = cnabConf
			detail.Status = "pending"
			result.MatchedDetails = append(result.MatchedDetails, detail)
		default:
			result.UnmatchedOFX++
		}
	}

	for _, entry := range entries {
		if !entry.claimed {
			result.UnmatchedCNAB++
		}
	}

	s.logger.Info("conciliação concluída",
		zap.String("bank_account_id", req.BankAccountID),
		zap.String("batch_id", batchID),
		zap.Int("total_ofx", result.TotalOFXTransactions),
		zap.Int("total_cnab", result.TotalCNABTransactions),
		zap.Int("matched", result.MatchedTransactions),
		zap.Int("pending", result.PendingReconciliations),
		zap.Int("unmatched_ofx", result.UnmatchedOFX),
		zap.Int("unmatched_cnab", result.UnmatchedCNAB),
		zap.Int("skipped_ofx", result.SkippedOFX),
		zap.Int("skipped_cnab", result.SkippedCNAB),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// pairSettlement finds the unclaimed settlement closest in date to the
// statement credit, within the amount tolerance and the pairing window.
func (s *service) pairSettlement(entries []*settlementEntry, tx parse.OFXTransaction) *settlementEntry {
	tolerance := s.matcher.Config().AmountTolerance
	var best *settlementEntry
	bestDays := cnabPairWindowDays + 1
	for _, entry := range entries {
		if entry.claimed {
			continue
		}
		if entry.rec.PaidAmount.Sub(tx.Amount.Abs()).Abs().GreaterThan(tolerance) {
			continue
		}
		days := daysApart(entry.rec.PaymentDate, tx.Date)
		if days > cnabPairWindowDays {
			continue
		}
		if days < bestDays {
			best, bestDays = entry, days
		}
	}
	return best
}

// settle finalizes an auto-accepted match. The invoice status guard makes the
// claim first-writer-wins; false means another record settled it first.
func (s *service) settle(ctx context.Context, btID string, tx parse.OFXTransaction, entry *settlementEntry, best match.Candidate) (bool, error) {
	payDate := tx.Date
	reference := tx.FitID
	if entry != nil {
		payDate = entry.rec.PaymentDate
		reference = entry.docKey
	}
	claimed, err := s.invoices.MarkPaid(ctx, best.Invoice.ID, payDate, reference, storage.Now())
	if err != nil || !claimed {
		return false, err
	}
	if err := s.transactions.MarkMatched(ctx, btID, best.Invoice.ID, best.Confidence); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) enqueue(ctx context.Context, btID string, tx parse.OFXTransaction, entry *settlementEntry, inv *domain.Invoice, confidence float64, criterion string) error {
	p := domain.PendingReconciliation{
		ID:                uuid.NewString(),
		BankTransactionID: &btID,
		OFXAmount:         tx.Amount,
		OFXDate:           tx.Date,
		Confidence:        confidence,
		Criterion:         criterion,
		Status:            domain.PendingReview,
		CreatedAt:         storage.Now(),
	}
	if entry != nil {
		p.SettlementRecordID = &entry.id
		p.CNABDocument = entry.docKey
	}
	if inv != nil {
		p.InvoiceID = &inv.ID
	}
	return s.pending.Insert(ctx, p)
}

func (s *service) ListPending(ctx context.Context) ([]domain.PendingReconciliation, error) {
	return s.pending.ListPending(ctx)
}

// Approve finalizes a queued proposal: the queue row, the invoice and the
// bank transaction move together or not at all.
func (s *service) Approve(ctx context.Context, d Decision) error {
	p, err := s.pending.Get(ctx, d.PendingID)
	if err != nil {
		return err
	}
	if p == nil {
		return ValidationError("pendência não encontrada")
	}
	if p.Status != domain.PendingReview {
		return ValidationError("pendência já decidida")
	}
	return storage.WithTx(s.db, func(tx *sql.Tx) error {
		ok, err := repository.NewPendingRepo(tx).UpdateStatus(ctx, d.PendingID, domain.PendingApproved, d.Approver)
		if err != nil {
			return err
		}
		if !ok {
			return ValidationError("pendência já decidida")
		}
		if p.InvoiceID != nil {
			claimed, err := repository.NewInvoiceRepo(tx).MarkPaid(ctx, *p.InvoiceID, p.OFXDate, p.CNABDocument, storage.Now())
			if err != nil {
				return err
			}
			if !claimed {
				return ValidationError("fatura já liquidada por outra conciliação")
			}
			if p.BankTransactionID != nil {
				if err := repository.NewBankTransactionRepo(tx).MarkMatched(ctx, *p.BankTransactionID, *p.InvoiceID, p.Confidence); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Reject discards a proposal and returns the bank transaction to the pool.
func (s *service) Reject(ctx context.Context, d Decision) error {
	p, err := s.pending.Get(ctx, d.PendingID)
	if err != nil {
		return err
	}
	if p == nil {
		return ValidationError("pendência não encontrada")
	}
	if p.Status != domain.PendingReview {
		return ValidationError("pendência já decidida")
	}
	return storage.WithTx(s.db, func(tx *sql.Tx) error {
		ok, err := repository.NewPendingRepo(tx).UpdateStatus(ctx, d.PendingID, domain.PendingRejected, d.Approver)
		if err != nil {
			return err
		}
		if !ok {
			return ValidationError("pendência já decidida")
		}
		if p.BankTransactionID != nil {
			return repository.NewBankTransactionRepo(tx).Release(ctx, *p.BankTransactionID)
		}
		return nil
	})
}

// UnmatchedPix reports unmatched PIX credits with the extracted counterparty
// and, when the client base resolves it, the client's open invoices.
func (s *service) UnmatchedPix(ctx context.Context, bankAccountID string) ([]UnmatchedPixEntry, error) {
	if bankAccountID == "" {
		return nil, ValidationError("conta bancária não informada")
	}
	ok, err := s.accounts.Exists(ctx, bankAccountID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ValidationError("conta bancária não encontrada ou inativa")
	}

	txs, err := s.transactions.UnmatchedCredits(ctx, bankAccountID, "PIX")
	if err != nil {
		return nil, err
	}
	clients, err := s.clients.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	resolver := extract.NewResolver(clients)

	out := make([]UnmatchedPixEntry, 0, len(txs))
	for _, tx := range txs {
		id := extract.FromDescription(tx.Description)
		entry := UnmatchedPixEntry{Transaction: tx, Name: id.Name}
		if id.TaxID != "" {
			entry.TaxID = extract.FormatCNPJ(id.TaxID)
		}
		res := resolver.Resolve(id.TaxID, id.Name)
		if res.Exact != nil {
			entry.Client = res.Exact
			if entry.OpenInvoices, err = s.invoices.OpenByClient(ctx, res.Exact.ID); err != nil {
				return nil, err
			}
		} else {
			entry.Suggestions = res.Suggestions
		}
		out = append(out, entry)
	}
	return out, nil
}

func removeInvoice(pool []domain.Invoice, id string) []domain.Invoice {
	out := pool[:0]
	for _, inv := range pool {
		if inv.ID != id {
			out = append(out, inv)
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
