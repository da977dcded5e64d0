// Package importer loads billing data that arrives out of band: invoice
// spreadsheets exported from the ERP and settlement reports pasted from the
// bank portal.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"reconciliation-service/internal/core/extract"
	"reconciliation-service/internal/core/normalize"
	"reconciliation-service/internal/core/parse"
	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/storage/repository"
)

// Service imports invoices and settlement reports.
type Service interface {
	ImportInvoices(ctx context.Context, file io.Reader) (*domain.ImportResult, error)
	ImportSettlementReport(ctx context.Context, content, bankAccountID string) (*domain.ImportResult, error)
}

type service struct {
	clients     *repository.ClientRepo
	invoices    *repository.InvoiceRepo
	settlements *repository.SettlementRepo
	policy      normalize.CompetencePolicy
	logger      *zap.Logger
}

// NewService creates the import service.
func NewService(clients *repository.ClientRepo, invoices *repository.InvoiceRepo, settlements *repository.SettlementRepo, policy normalize.CompetencePolicy, logger *zap.Logger) Service {
	return &service{clients: clients, invoices: invoices, settlements: settlements, policy: policy, logger: logger}
}

// ImportInvoices reads an invoice spreadsheet (xlsx or legacy xls). Expected
// columns: cliente (name or CNPJ), número, vencimento (DD/MM/YYYY) and valor.
// One invoice per client and competence; repeats are skipped.
func (s *service) ImportInvoices(ctx context.Context, file io.Reader) (*domain.ImportResult, error) {
	rows, err := s.loadWorkbook(file)
	if err != nil {
		return nil, err
	}
	header := findHeaderRow(rows)
	if header < 0 {
		return nil, fmt.Errorf("planilha sem cabeçalho reconhecível (cliente, número, vencimento, valor)")
	}
	clientCol := pickColumn(rows[header], "CLIENTE", "RAZAO", "NOME")
	numberCol := pickColumn(rows[header], "NUMERO", "DOCUMENTO", "BOLETO")
	dueCol := pickColumn(rows[header], "VENCIMENTO", "DATA")
	amountCol := pickColumn(rows[header], "VALOR")
	if clientCol < 0 || numberCol < 0 || dueCol < 0 || amountCol < 0 {
		return nil, fmt.Errorf("planilha sem as colunas obrigatórias (cliente, número, vencimento, valor)")
	}

	active, err := s.clients.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	resolver := extract.NewResolver(active)

	result := &domain.ImportResult{}
	for i := header + 1; i < len(rows); i++ {
		row := rows[i]
		if maxCol(clientCol, numberCol, dueCol, amountCol) >= len(row) || strings.TrimSpace(row[clientCol]) == "" {
			continue
		}
		rowNum := i + 1

		dueDate, err := normalize.Date(row[dueCol], "vencimento", rowNum)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		amount, err := normalize.Amount(row[amountCol], "valor", rowNum)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		identity := strings.TrimSpace(row[clientCol])
		resolution := resolver.Resolve(extract.NormalizeTaxID(identity), identity)
		client := resolution.Exact
		if client == nil && len(resolution.Suggestions) > 0 && resolution.Suggestions[0].Similarity >= 0.85 {
			client = &resolution.Suggestions[0].Client
		}
		if client == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("linha %d: cliente %q não encontrado", rowNum, identity))
			continue
		}

		competence := s.policy.Competence(dueDate)
		exists, err := s.invoices.ExistsForCompetence(ctx, client.ID, competence)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("linha %d: fatura já existe para a competência %s", rowNum, normalize.CompetenceToDisplay(competence)))
			continue
		}

		err = s.invoices.Insert(ctx, domain.Invoice{
			ID:         uuid.NewString(),
			ClientID:   client.ID,
			Number:     strings.TrimSpace(row[numberCol]),
			Competence: competence,
			DueDate:    dueDate,
			Amount:     amount,
			Status:     domain.InvoicePending,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("linha %d: %v", rowNum, err))
			continue
		}
		result.Imported++
	}

	s.logger.Info("importação de faturas concluída",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// ImportSettlementReport ingests the tab or space separated report pasted
// from the bank portal. Rows already known for the account are skipped.
func (s *service) ImportSettlementReport(ctx context.Context, content, bankAccountID string) (*domain.ImportResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("relatório vazio")
	}
	if bankAccountID == "" {
		return nil, fmt.Errorf("conta bancária não informada")
	}
	lines, rowErrs := parse.SettlementReport(content)

	batchID := uuid.NewString()
	result := &domain.ImportResult{Errors: rowErrs}
	for _, line := range lines {
		dup, err := s.settlements.Insert(ctx, domain.SettlementRecord{
			ID:            uuid.NewString(),
			BatchID:       batchID,
			BankAccountID: bankAccountID,
			Document:      line.NossoNumero,
			Counterparty:  line.ClientName,
			DueDate:       line.DueDate,
			PaymentDate:   line.PaymentDate,
			NominalAmount: line.NominalAmount,
			PaidAmount:    line.PaidAmount,
			StatusText:    line.StatusText,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("documento %s: %v", line.NossoNumero, err))
			continue
		}
		if dup {
			result.Skipped++
			continue
		}
		result.Imported++
	}

	s.logger.Info("importação de liquidações concluída",
		zap.String("bank_account_id", bankAccountID),
		zap.String("batch_id", batchID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *service) loadWorkbook(file io.Reader) ([][]string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	reader := bytes.NewReader(data)

	// tenta xlsx
	f, err := excelize.OpenReader(reader)
	if err == nil {
		defer f.Close()
		sheetName := f.GetSheetList()[0]
		return f.GetRows(sheetName)
	}

	// tenta xls
	reader.Seek(0, io.SeekStart)
	workbook, err := xls.OpenReader(reader)
	if err == nil {
		if len(workbook.GetSheets()) == 0 {
			return nil, fmt.Errorf("o arquivo .xls não contém planilhas")
		}
		sheet, err := workbook.GetSheet(0)
		if err != nil {
			return nil, fmt.Errorf("erro ao obter planilha do arquivo .xls: %w", err)
		}
		var allRows [][]string
		for _, row := range sheet.GetRows() {
			var cells []string
			for _, cell := range row.GetCols() {
				cells = append(cells, cell.GetString())
			}
			allRows = append(allRows, cells)
		}
		return allRows, nil
	}

	return nil, fmt.Errorf("formato de planilha não suportado")
}

// findHeaderRow scans the first rows for the one naming the client column.
func findHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		if pickColumn(rows[i], "CLIENTE", "RAZAO", "NOME") >= 0 && pickColumn(rows[i], "VALOR") >= 0 {
			return i
		}
	}
	return -1
}

// pickColumn returns the index of the first header cell containing any of the
// keywords, accent and case insensitive.
func pickColumn(header []string, keywords ...string) int {
	for idx, cell := range header {
		normalized := extract.NormalizeName(cell)
		for _, kw := range keywords {
			if strings.Contains(normalized, kw) {
				return idx
			}
		}
	}
	return -1
}

func maxCol(cols ...int) int {
	out := cols[0]
	for _, c := range cols[1:] {
		if c > out {
			out = c
		}
	}
	return out
}
