package parse

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"reconciliation-service/internal/domain"
)

const ofxFixture = `OFXHEADER:100
DATA:OFXSGML
VERSION:102

<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<STMTRS>
<CURDEF>BRL
<BANKACCTFROM>
<BANKID>0341
<ACCTID>12345-6
</BANKACCTFROM>
<BANKTRANLIST>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250210120000[-3:BRT]
<TRNAMT>1500.00
<FITID>2025021001
<MEMO>PIX RECEBIDO 12345678000199 ACME LTDA Ref:123
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250211
<TRNAMT>-250,10
<FITID>2025021102
<MEMO>TARIFA BANCARIA
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250212
<TRNAMT>10.00
<MEMO>SEM FITID, DEVE SER IGNORADA
</STMTTRN>
</BANKTRANLIST>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestOFX(t *testing.T) {
	t.Parallel()

	st, err := OFX(ofxFixture)
	require.NoError(t, err)
	require.Equal(t, "0341", st.BankCode)
	require.Equal(t, "12345-6", st.AccountNumber)
	require.Equal(t, "BRL", st.Currency)
	require.Len(t, st.Transactions, 2)

	credit := st.Transactions[0]
	require.Equal(t, "CREDIT", credit.Type)
	require.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), credit.Date)
	require.True(t, credit.Amount.Equal(decimal.RequireFromString("1500.00")))
	require.Equal(t, "2025021001", credit.FitID)
	require.Equal(t, "PIX RECEBIDO 12345678000199 ACME LTDA Ref:123", credit.Description)
	require.Equal(t, domain.Credit, credit.Direction())

	debit := st.Transactions[1]
	require.True(t, debit.Amount.Equal(decimal.RequireFromString("-250.10")))
	require.Equal(t, domain.Debit, debit.Direction())
}

func TestOFXRejectsMissingEnvelope(t *testing.T) {
	t.Parallel()

	_, err := OFX("isto não é um extrato")
	require.Error(t, err)
}

// cnab400Line builds a valid 400-column detail line for tests.
func cnab400Line(nossoNumero, occurrence, paymentDate, seuNumero, dueDate, nominal, paid string) string {
	line := []byte(strings.Repeat(" ", 400))
	line[0] = '1'
	copy(line[70:82], nossoNumero)
	copy(line[108:110], occurrence)
	copy(line[110:116], paymentDate)
	copy(line[116:126], seuNumero)
	copy(line[146:152], dueDate)
	copy(line[152:165], nominal)
	copy(line[253:266], paid)
	return string(line)
}

func TestCNAB400(t *testing.T) {
	t.Parallel()

	header := "0" + strings.Repeat(" ", 399)
	detail := cnab400Line("000000012345", "06", "100225", "INV-001", "100225", "0000000150000", "0000000150000")
	rejected := cnab400Line("000000099999", "03", "110225", "INV-002", "110225", "0000000020000", "0000000000000")
	trailer := "9" + strings.Repeat(" ", 399)
	content := strings.Join([]string{header, detail, rejected, trailer}, "\r\n")

	require.Equal(t, 400, DetectCNABFormat(content))

	records, errs := CNAB400(content)
	require.Empty(t, errs)
	require.Len(t, records, 2)

	rec := records[0]
	require.Equal(t, "000000012345", rec.Document)
	require.Equal(t, "INV-001", rec.DocumentNumber)
	require.True(t, rec.Settled())
	require.Equal(t, "LIQUIDADO", rec.StatusText)
	require.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), rec.PaymentDate)
	require.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), rec.DueDate)
	require.True(t, rec.NominalAmount.Equal(decimal.RequireFromString("1500.00")))
	require.True(t, rec.PaidAmount.Equal(decimal.RequireFromString("1500.00")))

	require.False(t, records[1].Settled())
}

func TestCNAB400CollectsRowErrors(t *testing.T) {
	t.Parallel()

	good := cnab400Line("000000012345", "06", "100225", "INV-001", "100225", "0000000150000", "0000000150000")
	badDate := cnab400Line("000000012346", "06", "999999", "INV-002", "100225", "0000000150000", "0000000150000")
	content := good + "\n" + badDate + "\n"

	records, errs := CNAB400(content)
	require.Len(t, records, 1)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "linha 2")
}

func TestDetectCNABFormat(t *testing.T) {
	t.Parallel()

	require.Equal(t, 240, DetectCNABFormat(strings.Repeat("X", 240)+"\n"))
	require.Equal(t, 0, DetectCNABFormat("linha curta\n"))
	require.Equal(t, 0, DetectCNABFormat(""))
}

func TestSettlementReport(t *testing.T) {
	t.Parallel()

	content := strings.Join([]string{
		"SIMPLES  0025200008  25/200008-1  ACTION SOLUCOES INDUSTRIAIS LTDA  10/02/2025  10/02/2025  12.143,72  12.143,72  LIQUIDADO COMPE",
		"SIMPLES\t0025200009\t25/200009-2\tPADARIA DOIS IRMAOS ME\t15/02/2025\t14/02/2025\t1.500,00\t1.500,00\tLIQUIDADO",
		"linha inválida",
	}, "\n")

	lines, errs := SettlementReport(content)
	require.Len(t, lines, 2)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "linha 3")

	first := lines[0]
	require.Equal(t, "SIMPLES", first.Kind)
	require.Equal(t, "0025200008", first.Number)
	require.Equal(t, "25/200008-1", first.NossoNumero)
	require.Equal(t, "ACTION SOLUCOES INDUSTRIAIS LTDA", first.ClientName)
	require.Equal(t, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), first.PaymentDate)
	require.True(t, first.NominalAmount.Equal(decimal.RequireFromString("12143.72")))
	require.Equal(t, "LIQUIDADO COMPE", first.StatusText)
}
