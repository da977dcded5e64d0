// Package match ranks open invoices against one bank-side record and scores
// the confidence of each pairing. It is pure: candidate pools come in as
// arguments and nothing is written.
package match

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
)

// Criterion names the rule that produced a candidate.
type Criterion string

// Matching criteria in priority order.
const (
	CriterionDocument        Criterion = "document"
	CriterionExactAmountDate Criterion = "exact_amount_date"
	CriterionAmountTolerance Criterion = "amount_tolerance"
	CriterionTaxID           Criterion = "tax_id"
)

// Config holds the matcher tunables. The auto-accept threshold is a policy
// decision calibrated against real statement data, not a constant.
type Config struct {
	DateWindowDays      int
	AmountTolerance     decimal.Decimal
	AutoAcceptThreshold float64
}

// DefaultConfig mirrors the behavior observed in production runs.
func DefaultConfig() Config {
	return Config{
		DateWindowDays:      3,
		AmountTolerance:     decimal.New(1, -2), // 0.01
		AutoAcceptThreshold: 0.95,
	}
}

// Record is the bank-side input to a match: an OFX transaction or a CNAB
// settlement, reduced to the fields that drive matching.
type Record struct {
	Amount   decimal.Decimal
	Date     time.Time
	Document string // settlement "seu número", when present
	TaxID    string // extracted from the description, when present
}

// Candidate is one ranked invoice proposal.
type Candidate struct {
	Invoice    domain.Invoice
	Confidence float64
	Criterion  Criterion
}

// Matcher scores invoices against bank-side records.
type Matcher struct {
	cfg Config
}

// New creates a Matcher with the given tunables.
func New(cfg Config) *Matcher {
	if cfg.DateWindowDays <= 0 {
		cfg.DateWindowDays = 3
	}
	if cfg.AmountTolerance.IsZero() {
		cfg.AmountTolerance = decimal.New(1, -2)
	}
	if cfg.AutoAcceptThreshold <= 0 {
		cfg.AutoAcceptThreshold = 0.95
	}
	return &Matcher{cfg: cfg}
}

// Config returns the effective tunables.
func (m *Matcher) Config() Config { return m.cfg }

// Rank proposes candidates for one record against a pool of open invoices.
// clients indexes the client base by id for the tax-id criterion. The result
// is ordered by criterion priority; within a criterion the earliest due date
// wins, so the oldest debt is settled first.
func (m *Matcher) Rank(rec Record, pool []domain.Invoice, clients map[string]domain.Client) []Candidate {
	amount := rec.Amount.Abs()
	var out []Candidate

	for _, inv := range pool {
		if inv.Status != domain.InvoicePending && inv.Status != domain.InvoiceOverdue {
			continue
		}
		diff := inv.Amount.Sub(amount).Abs()
		days := daysApart(rec.Date, inv.DueDate)

		switch {
		case rec.Document != "" && rec.Document == inv.Number && diff.LessThanOrEqual(m.cfg.AmountTolerance):
			out = append(out, Candidate{Invoice: inv, Confidence: 0.99, Criterion: CriterionDocument})
		case inv.Amount.Equal(amount) && days <= m.cfg.DateWindowDays:
			conf := 0.99
			if days > 0 {
				conf = 0.96
			}
			out = append(out, Candidate{Invoice: inv, Confidence: conf, Criterion: CriterionExactAmountDate})
		case diff.LessThanOrEqual(m.cfg.AmountTolerance) && days <= m.cfg.DateWindowDays:
			conf := 0.90 - 0.04*float64(days)
			if conf < 0.70 {
				conf = 0.70
			}
			out = append(out, Candidate{Invoice: inv, Confidence: conf, Criterion: CriterionAmountTolerance})
		case rec.TaxID != "":
			c, ok := clients[inv.ClientID]
			if ok && c.CNPJDigits == rec.TaxID && !c.MonthlyFee.IsZero() && c.MonthlyFee.Equal(amount) {
				out = append(out, Candidate{Invoice: inv, Confidence: 0.85, Criterion: CriterionTaxID})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priority(out[i].Criterion), priority(out[j].Criterion)
		if pi != pj {
			return pi < pj
		}
		if !out[i].Invoice.DueDate.Equal(out[j].Invoice.DueDate) {
			return out[i].Invoice.DueDate.Before(out[j].Invoice.DueDate)
		}
		return out[i].Invoice.ID < out[j].Invoice.ID
	})
	return out
}

func priority(c Criterion) int {
	switch c {
	case CriterionDocument:
		return 0
	case CriterionExactAmountDate:
		return 1
	case CriterionAmountTolerance:
		return 2
	default:
		return 3
	}
}

// Best returns the top candidate and whether it is ambiguous. A match is
// ambiguous when a second candidate ties on both criterion and due date,
// leaving no tie-break winner; ambiguous matches are never auto-accepted.
func (m *Matcher) Best(candidates []Candidate) (Candidate, bool, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false, false
	}
	best := candidates[0]
	ambiguous := false
	if len(candidates) > 1 {
		next := candidates[1]
		if next.Criterion == best.Criterion && next.Invoice.DueDate.Equal(best.Invoice.DueDate) {
			ambiguous = true
		}
	}
	return best, true, ambiguous
}

// AutoAccept reports whether a candidate clears the auto-accept threshold.
func (m *Matcher) AutoAccept(c Candidate, ambiguous bool) bool {
	return !ambiguous && c.Confidence >= m.cfg.AutoAcceptThreshold
}

func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
