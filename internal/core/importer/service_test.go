package importer

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"reconciliation-service/internal/core/normalize"
	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/storage"
	"reconciliation-service/internal/storage/repository"
)

func testService(t *testing.T) (Service, *sql.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("../../storage/migrations")
	require.NoError(t, err)
	require.NoError(t, storage.RunMigrations(dbPath, migrations))

	db, err := storage.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	clients := repository.NewClientRepo(db)
	require.NoError(t, clients.Insert(ctx, domain.Client{
		ID:         "c1",
		Name:       "Acme Serviços Ltda",
		CNPJ:       "12.345.678/0001-99",
		CNPJDigits: "12345678000199",
		MonthlyFee: decimal.RequireFromString("1500.00"),
		PaymentDay: 10,
		Status:     domain.ClientActive,
	}))
	require.NoError(t, repository.NewBankAccountRepo(db).Insert(ctx, "acc-1", "Conta Principal", "Itaú"))

	invoices := repository.NewInvoiceRepo(db)
	settlements := repository.NewSettlementRepo(db)
	policy := normalize.CompetencePolicy{OffsetMonths: -1}
	return NewService(clients, invoices, settlements, policy, zap.NewNop()), db
}

func invoiceWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportInvoices(t *testing.T) {
	t.Parallel()

	svc, db := testService(t)
	ctx := context.Background()

	buf := invoiceWorkbook(t, [][]interface{}{
		{"Cliente", "Número", "Vencimento", "Valor"},
		{"Acme Serviços Ltda", "INV-001", "10/03/2025", "1.500,00"},
		{"12.345.678/0001-99", "INV-002", "10/04/2025", "1.500,00"},
		{"Cliente Desconhecido SA", "INV-003", "10/03/2025", "900,00"},
	})

	result, err := svc.ImportInvoices(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, 2, result.Imported)
	require.Equal(t, 0, result.Skipped)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "Cliente Desconhecido")

	invoices, err := repository.NewInvoiceRepo(db).ByClient(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	// Competence is the month before the due date.
	require.Equal(t, "2025-02", invoices[0].Competence)
	require.Equal(t, "2025-03", invoices[1].Competence)
	require.True(t, invoices[0].Amount.Equal(decimal.RequireFromString("1500.00")))
}

func TestImportInvoicesSkipsDuplicateCompetence(t *testing.T) {
	t.Parallel()

	svc, _ := testService(t)
	ctx := context.Background()

	rows := [][]interface{}{
		{"Cliente", "Número", "Vencimento", "Valor"},
		{"Acme Serviços Ltda", "INV-001", "10/03/2025", "1.500,00"},
	}

	first, err := svc.ImportInvoices(ctx, invoiceWorkbook(t, rows))
	require.NoError(t, err)
	require.Equal(t, 1, first.Imported)

	second, err := svc.ImportInvoices(ctx, invoiceWorkbook(t, rows))
	require.NoError(t, err)
	require.Equal(t, 0, second.Imported)
	require.Equal(t, 1, second.Skipped)
	require.Len(t, second.Errors, 1)
	require.Contains(t, second.Errors[0], "já existe para a competência 02/2025")
}

func TestImportInvoicesRejectsUnknownLayout(t *testing.T) {
	t.Parallel()

	svc, _ := testService(t)

	_, err := svc.ImportInvoices(context.Background(), invoiceWorkbook(t, [][]interface{}{
		{"Coluna A", "Coluna B"},
		{"x", "y"},
	}))
	require.Error(t, err)

	_, err = svc.ImportInvoices(context.Background(), bytes.NewBufferString("não é planilha"))
	require.Error(t, err)
}

func TestImportSettlementReport(t *testing.T) {
	t.Parallel()

	svc, db := testService(t)
	ctx := context.Background()

	report := "SIMPLES  0025200008  25/200008-1  ACME SERVICOS LTDA  10/02/2025  10/02/2025  1.500,00  1.500,00  LIQUIDADO COMPE\n"

	first, err := svc.ImportSettlementReport(ctx, report, "acc-1")
	require.NoError(t, err)
	require.Equal(t, 1, first.Imported)
	require.Empty(t, first.Errors)

	// Same report again: the unique key makes the import idempotent.
	second, err := svc.ImportSettlementReport(ctx, report, "acc-1")
	require.NoError(t, err)
	require.Equal(t, 0, second.Imported)
	require.Equal(t, 1, second.Skipped)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM settlement_records").Scan(&count))
	require.Equal(t, 1, count)

	_, err = svc.ImportSettlementReport(ctx, "", "acc-1")
	require.Error(t, err)
	_, err = svc.ImportSettlementReport(ctx, report, "")
	require.Error(t, err)
}
