// Package parse reads the bank file formats the reconciliation engine
// consumes: OFX statements, CNAB return files and pasted settlement reports.
package parse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/domain"
)

// OFXTransaction is one statement line.
type OFXTransaction struct {
	Type        string // CREDIT or DEBIT
	Date        time.Time
	Amount      decimal.Decimal // signed
	FitID       string
	Description string
}

// Direction maps the OFX transaction type onto the domain direction.
func (t OFXTransaction) Direction() domain.Direction {
	if t.Type == "DEBIT" || t.Amount.IsNegative() {
		return domain.Debit
	}
	return domain.Credit
}

// OFXStatement is the parsed statement.
type OFXStatement struct {
	BankCode      string
	AccountNumber string
	Currency      string
	Transactions  []OFXTransaction
}

var stmtTrnRegex = regexp.MustCompile(`(?is)<STMTTRN>(.*?)</STMTTRN>`)

// OFX parses OFX 1.x (SGML) and 2.x (XML) content. Both flavors use the same
// tag names, so a single tag scraper covers them. Transactions missing a
// date, amount or FITID are skipped; a file without an OFX envelope is an
// error.
func OFX(content string) (*OFXStatement, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	if !strings.Contains(strings.ToUpper(content), "<OFX>") {
		return nil, fmt.Errorf("arquivo OFX inválido: envelope <OFX> ausente")
	}

	st := &OFXStatement{
		BankCode:      tagValue(content, "BANKID"),
		AccountNumber: tagValue(content, "ACCTID"),
		Currency:      tagValue(content, "CURDEF"),
	}
	if st.Currency == "" {
		st.Currency = "BRL"
	}

	for _, m := range stmtTrnRegex.FindAllStringSubmatch(content, -1) {
		block := m[1]
		dateStr := tagValue(block, "DTPOSTED")
		amountStr := tagValue(block, "TRNAMT")
		fitid := tagValue(block, "FITID")
		if dateStr == "" || amountStr == "" || fitid == "" {
			continue
		}
		date, err := ofxDate(dateStr)
		if err != nil {
			continue
		}
		amount, err := ofxAmount(amountStr)
		if err != nil {
			continue
		}
		desc := tagValue(block, "MEMO")
		if desc == "" {
			desc = tagValue(block, "NAME")
		}
		st.Transactions = append(st.Transactions, OFXTransaction{
			Type:        strings.ToUpper(tagValue(block, "TRNTYPE")),
			Date:        date,
			Amount:      amount,
			FitID:       fitid,
			Description: desc,
		})
	}
	return st, nil
}

func tagValue(text, tag string) string {
	re := regexp.MustCompile(`(?i)<` + tag + `>([^<\r\n]*)`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ofxDate accepts YYYYMMDD with optional time and timezone suffix.
func ofxDate(s string) (time.Time, error) {
	if len(s) < 8 {
		return time.Time{}, fmt.Errorf("data OFX curta: %q", s)
	}
	return time.ParseInLocation("20060102", s[:8], time.UTC)
}

// ofxAmount accepts both "." and "," decimal separators (Brazilian banks
// emit either).
func ofxAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	return decimal.NewFromString(s)
}
