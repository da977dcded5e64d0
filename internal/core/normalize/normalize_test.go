package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAmountBrazilianFormats(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"12.143,72", "12143.72"},
		{"1.500,00", "1500.00"},
		{"R$ 1.500,00", "1500.00"},
		{"0,00", "0.00"},
		{"1500.00", "1500.00"},
		{"1,500.00", "1500.00"},
		{"(250,10)", "-250.10"},
		{"-99,90", "-99.90"},
		{"145", "145"},
	}
	for _, tc := range cases {
		got, err := Amount(tc.in, "valor", 1)
		require.NoError(t, err, "input %q", tc.in)
		want, err := decimal.NewFromString(tc.want)
		require.NoError(t, err)
		require.True(t, got.Equal(want), "input %q: got %s want %s", tc.in, got, want)
	}
}

func TestAmountRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"abc", "12,,72", "12.34.56.78abc"} {
		_, err := Amount(in, "valor", 7)
		require.Error(t, err, "input %q", in)
		var perr *ParseError
		require.True(t, errors.As(err, &perr), "input %q", in)
		require.Equal(t, "valor", perr.Field)
		require.Equal(t, 7, perr.Row)
	}
}

func TestDate(t *testing.T) {
	t.Parallel()

	got, err := Date("05/03/2025", "vencimento", 2)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), got)

	_, err = Date("2025-03-05", "vencimento", 2)
	require.Error(t, err)
	_, err = Date("31/02/2025", "vencimento", 2)
	require.Error(t, err)
}

func TestCompetencePolicy(t *testing.T) {
	t.Parallel()

	due := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

	// The invoice due in March bills February's work.
	require.Equal(t, "2025-02", CompetencePolicy{OffsetMonths: -1}.Competence(due))
	require.Equal(t, "2025-03", CompetencePolicy{}.Competence(due))

	// Year boundary.
	jan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "2024-12", CompetencePolicy{OffsetMonths: -1}.Competence(jan))
}

func TestCompetenceDisplayRoundTrip(t *testing.T) {
	t.Parallel()

	require.Equal(t, "02/2025", CompetenceToDisplay("2025-02"))
	require.Equal(t, "2025-02", DisplayToCompetence("02/2025"))
}
