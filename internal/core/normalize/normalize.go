// Package normalize converts locale-formatted money and date strings into
// canonical values. All functions are pure; failures are reported as
// *ParseError so callers can collect them per row without aborting a batch.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseError names the offending field and row of a malformed input.
type ParseError struct {
	Field string
	Row   int
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("linha %d: campo %s inválido (%q): %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Amount parses a Brazilian or anglo formatted monetary string into a decimal.
// Accepts "12.143,72", "1500.00", "R$ 1.500,00", "(100,00)" and "-100,00".
// Empty input parses to zero.
func Amount(val string, field string, row int) (decimal.Decimal, error) {
	s := strings.TrimSpace(val)
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, nil
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimPrefix(strings.TrimSuffix(s, ")"), "(")
	}
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimPrefix(s, "-")
	}
	if strings.HasPrefix(s, "+") {
		s = strings.TrimPrefix(s, "+")
	}

	// Decide separator convention by the last occurrence of each.
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case lastDot > lastComma:
		s = strings.ReplaceAll(s, ",", "")
		if strings.Count(s, ".") > 1 {
			parts := strings.Split(s, ".")
			s = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
		}
	default:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	if s == "" || s == "." || strings.Count(s, ".") > 1 {
		return decimal.Zero, &ParseError{Field: field, Row: row, Value: val, Err: fmt.Errorf("valor não numérico")}
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, &ParseError{Field: field, Row: row, Value: val, Err: fmt.Errorf("caractere inválido %q", r)}
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ParseError{Field: field, Row: row, Value: val, Err: err}
	}
	if neg {
		d = d.Neg()
	}
	return d.Round(2), nil
}

// Date parses DD/MM/YYYY into a UTC midnight time.
func Date(val string, field string, row int) (time.Time, error) {
	s := strings.TrimSpace(val)
	t, err := time.ParseInLocation("02/01/2006", s, time.UTC)
	if err != nil {
		return time.Time{}, &ParseError{Field: field, Row: row, Value: val, Err: fmt.Errorf("esperado DD/MM/AAAA")}
	}
	return t, nil
}

// ISODate formats a time as YYYY-MM-DD.
func ISODate(t time.Time) string { return t.Format("2006-01-02") }

// CompetencePolicy controls how a competence is derived from a due date.
// OffsetMonths is added to the due date's month; the observed business rule
// is -1 (the charge covers the month before it falls due), but one import
// flow treats the due month itself as the competence, so the offset is an
// explicit parameter rather than a constant.
type CompetencePolicy struct {
	OffsetMonths int
}

// Competence derives the YYYY-MM competence label for a due date.
func (p CompetencePolicy) Competence(due time.Time) string {
	return due.AddDate(0, p.OffsetMonths, 0).Format("2006-01")
}

// CompetenceToDisplay converts YYYY-MM to the MM/YYYY label used in reports.
func CompetenceToDisplay(competence string) string {
	parts := strings.SplitN(competence, "-", 2)
	if len(parts) != 2 {
		return competence
	}
	return parts[1] + "/" + parts[0]
}

// DisplayToCompetence converts MM/YYYY back to YYYY-MM.
func DisplayToCompetence(display string) string {
	parts := strings.SplitN(display, "/", 2)
	if len(parts) != 2 {
		return display
	}
	return parts[1] + "-" + parts[0]
}
