package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"reconciliation-service/internal/domain"
)

func TestFromDescription(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc  string
		taxID string
		name  string
	}{
		{"PIX RECEBIDO 12345678000199 ACME LTDA Ref:123", "12345678000199", "ACME LTDA"},
		{"PIX RECEBIDO 12.345.678/0001-99 ACME LTDA", "12345678000199", "ACME LTDA"},
		{"TED 123.456.789-09 JOAO DA SILVA", "12345678909", "JOAO DA SILVA"},
		{"PIX RECEBIDO 12345678000199 ACME LTDA    PAGAMENTO MENSAL", "12345678000199", "ACME LTDA"},
		{"PIX RECEBIDO 12345678000199", "12345678000199", UnidentifiedName},
		{"TARIFA BANCARIA", "", UnidentifiedName},
	}
	for _, tc := range cases {
		got := FromDescription(tc.desc)
		require.Equal(t, tc.taxID, got.TaxID, "desc %q", tc.desc)
		require.Equal(t, tc.name, got.Name, "desc %q", tc.desc)
	}
}

func TestFormatCNPJ(t *testing.T) {
	t.Parallel()

	require.Equal(t, "12.345.678/0001-99", FormatCNPJ("12345678000199"))
	require.Equal(t, "123", FormatCNPJ("123"))
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ACOUGUE SAO JOAO LTDA", NormalizeName("Açougue São João Ltda."))
	require.Equal(t, "PADARIA 2 IRMAOS", NormalizeName("  padaria 2 irmãos  "))
}

func testClients() []domain.Client {
	fee := decimal.NewFromInt(1500)
	return []domain.Client{
		{ID: "c1", Name: "Açougue São João Ltda", CNPJ: "12.345.678/0001-99", CNPJDigits: "12345678000199", MonthlyFee: fee, Status: domain.ClientActive},
		{ID: "c2", Name: "Padaria Dois Irmãos ME", CNPJ: "98.765.432/0001-10", CNPJDigits: "98765432000110", MonthlyFee: fee, Status: domain.ClientActive},
		{ID: "c3", Name: "Transportadora Rápida SA", CNPJ: "11.222.333/0001-44", CNPJDigits: "11222333000144", MonthlyFee: fee, Status: domain.ClientActive},
	}
}

func TestResolverByTaxID(t *testing.T) {
	t.Parallel()

	r := NewResolver(testClients())
	res := r.Resolve("12345678000199", "qualquer nome")
	require.NotNil(t, res.Exact)
	require.Equal(t, "c1", res.Exact.ID)
	require.Empty(t, res.Suggestions)

	// Punctuated input resolves to the same client.
	res = r.Resolve("12.345.678/0001-99", "")
	require.NotNil(t, res.Exact)
	require.Equal(t, "c1", res.Exact.ID)
}

func TestResolverFallsBackToName(t *testing.T) {
	t.Parallel()

	r := NewResolver(testClients())
	res := r.Resolve("00000000000000", "ACOUGUE SAO JOAO")
	require.Nil(t, res.Exact)
	require.NotEmpty(t, res.Suggestions)
	require.Equal(t, "c1", res.Suggestions[0].Client.ID)
}

func TestSuggestByName(t *testing.T) {
	t.Parallel()

	r := NewResolver(testClients())

	got := r.SuggestByName("PADARIA DOIS IRMAOS", 3)
	require.NotEmpty(t, got)
	require.Equal(t, "c2", got[0].Client.ID)

	// The sentinel never matches anything.
	require.Empty(t, r.SuggestByName(UnidentifiedName, 3))
	require.Empty(t, r.SuggestByName("", 3))
}
