package match

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"reconciliation-service/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2025, 2, d, 0, 0, 0, 0, time.UTC)
}

func invoice(id, number string, amount string, due time.Time) domain.Invoice {
	return domain.Invoice{
		ID:       id,
		ClientID: "c1",
		Number:   number,
		Amount:   decimal.RequireFromString(amount),
		DueDate:  due,
		Status:   domain.InvoicePending,
	}
}

func TestRankDocumentMatch(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	pool := []domain.Invoice{
		invoice("i1", "INV-001", "1500.00", day(10)),
		invoice("i2", "INV-002", "1500.00", day(10)),
	}
	rec := Record{Amount: decimal.RequireFromString("1500.00"), Date: day(10), Document: "INV-002"}

	got := m.Rank(rec, pool, nil)
	require.NotEmpty(t, got)
	require.Equal(t, "i2", got[0].Invoice.ID)
	require.Equal(t, CriterionDocument, got[0].Criterion)
	require.Equal(t, 0.99, got[0].Confidence)
}

func TestRankExactAmountSameDay(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	pool := []domain.Invoice{invoice("i1", "INV-001", "1500.00", day(10))}
	rec := Record{Amount: decimal.RequireFromString("1500.00"), Date: day(10)}

	best, found, ambiguous := m.Best(m.Rank(rec, pool, nil))
	require.True(t, found)
	require.False(t, ambiguous)
	require.Equal(t, 0.99, best.Confidence)
	require.Equal(t, CriterionExactAmountDate, best.Criterion)
	require.True(t, m.AutoAccept(best, ambiguous))
}

func TestRankExactAmountNearbyDay(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	pool := []domain.Invoice{invoice("i1", "INV-001", "1500.00", day(12))}
	rec := Record{Amount: decimal.RequireFromString("1500.00"), Date: day(10)}

	best, found, _ := m.Best(m.Rank(rec, pool, nil))
	require.True(t, found)
	require.Equal(t, 0.96, best.Confidence)
}

func TestRankToleranceDecaysWithDistance(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	pool := []domain.Invoice{invoice("i1", "INV-001", "1500.00", day(12))}
	// One cent off, two days out: tolerance criterion, decayed confidence.
	rec := Record{Amount: decimal.RequireFromString("1499.99"), Date: day(10)}

	best, found, ambiguous := m.Best(m.Rank(rec, pool, nil))
	require.True(t, found)
	require.Equal(t, CriterionAmountTolerance, best.Criterion)
	require.InDelta(t, 0.82, best.Confidence, 1e-9)
	require.False(t, m.AutoAccept(best, ambiguous))
}

func TestRankTaxIDFallback(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	fee := decimal.RequireFromString("980.00")
	clients := map[string]domain.Client{
		"c1": {ID: "c1", CNPJDigits: "12345678000199", MonthlyFee: fee},
	}
	// Amount equals the monthly fee but the due date is far away.
	pool := []domain.Invoice{invoice("i1", "INV-001", "980.00", day(28))}
	rec := Record{Amount: fee, Date: day(2), TaxID: "12345678000199"}

	best, found, ambiguous := m.Best(m.Rank(rec, pool, clients))
	require.True(t, found)
	require.Equal(t, CriterionTaxID, best.Criterion)
	require.Equal(t, 0.85, best.Confidence)
	require.False(t, m.AutoAccept(best, ambiguous))
}

func TestBestTieBreaksOnOldestDueDate(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	pool := []domain.Invoice{
		invoice("i-newer", "INV-002", "1500.00", day(12)),
		invoice("i-older", "INV-001", "1500.00", day(11)),
	}
	rec := Record{Amount: decimal.RequireFromString("1500.00"), Date: day(12)}

	best, found, ambiguous := m.Best(m.Rank(rec, pool, nil))
	require.True(t, found)
	require.False(t, ambiguous)
	require.Equal(t, "i-older", best.Invoice.ID)
}

func TestBestPrefersOldestDebtOverHigherGrade(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	// Both invoices match the amount exactly inside the window. The newer one
	// is due on the transaction day and would grade higher, but the older
	// open debt must be settled first.
	pool := []domain.Invoice{
		invoice("i-newer", "INV-002", "1500.00", day(12)),
		invoice("i-older", "INV-001", "1500.00", day(10)),
	}
	rec := Record{Amount: decimal.RequireFromString("1500.00"), Date: day(12)}

	got := m.Rank(rec, pool, nil)
	require.Len(t, got, 2)
	require.Equal(t, "i-older", got[0].Invoice.ID)
	require.Equal(t, 0.96, got[0].Confidence)
	require.Equal(t, "i-newer", got[1].Invoice.ID)

	best, found, ambiguous := m.Best(got)
	require.True(t, found)
	require.False(t, ambiguous)
	require.Equal(t, "i-older", best.Invoice.ID)
	require.True(t, m.AutoAccept(best, ambiguous))
}

func TestRankOrdersByCriterionBeforeDueDate(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	// The older invoice only matches within tolerance; the exact-amount
	// criterion still outranks it.
	pool := []domain.Invoice{
		invoice("i-tolerance", "INV-001", "1500.01", day(10)),
		invoice("i-exact", "INV-002", "1500.00", day(12)),
	}
	rec := Record{Amount: decimal.RequireFromString("1500.00"), Date: day(12)}

	got := m.Rank(rec, pool, nil)
	require.Len(t, got, 2)
	require.Equal(t, "i-exact", got[0].Invoice.ID)
	require.Equal(t, CriterionExactAmountDate, got[0].Criterion)
	require.Equal(t, CriterionAmountTolerance, got[1].Criterion)
}

func TestBestAmbiguousWhenDueDatesTie(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	pool := []domain.Invoice{
		invoice("i1", "INV-001", "1500.00", day(10)),
		invoice("i2", "INV-002", "1500.00", day(10)),
	}
	rec := Record{Amount: decimal.RequireFromString("1500.00"), Date: day(10)}

	best, found, ambiguous := m.Best(m.Rank(rec, pool, nil))
	require.True(t, found)
	require.True(t, ambiguous)
	require.False(t, m.AutoAccept(best, ambiguous))
}

func TestRankIgnoresSettledInvoices(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	paid := invoice("i1", "INV-001", "1500.00", day(10))
	paid.Status = domain.InvoicePaid
	rec := Record{Amount: decimal.RequireFromString("1500.00"), Date: day(10)}

	require.Empty(t, m.Rank(rec, []domain.Invoice{paid}, nil))
}
