package parse

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"reconciliation-service/internal/core/normalize"
)

// SettlementLine is one row of a pasted bank settlement report, e.g.:
//
//	SIMPLES  0025200008  25/200008-1  ACTION SOLUCOES INDUSTRIAIS LTDA  10/02/2025  10/02/2025  12.143,72  12.143,72  LIQUIDADO COMPE
type SettlementLine struct {
	Kind          string
	Number        string
	NossoNumero   string
	ClientName    string
	DueDate       time.Time
	PaymentDate   time.Time
	NominalAmount decimal.Decimal
	PaidAmount    decimal.Decimal
	StatusText    string
}

var settlementFieldSep = regexp.MustCompile(`\t+|\s{2,}`)

// Rows collapsed to single spaces fall back to this shape.
var settlementLineRegex = regexp.MustCompile(
	`^(\w+)\s+(\d+)\s+([\d/-]+)\s+(.+?)\s+(\d{2}/\d{2}/\d{4})\s+(\d{2}/\d{2}/\d{4})\s+([\d.,]+)\s+([\d.,]+)\s+(.+)$`)

// SettlementReport parses tab or multi-space separated report lines.
// Rows that fail to parse are reported as error strings and skipped.
func SettlementReport(content string) ([]SettlementLine, []string) {
	var lines []SettlementLine
	var errs []string

	row := 0
	for _, raw := range strings.Split(content, "\n") {
		raw = strings.TrimSpace(strings.TrimRight(raw, "\r"))
		if raw == "" {
			continue
		}
		row++

		parts := settlementFieldSep.Split(raw, -1)
		if len(parts) < 8 {
			m := settlementLineRegex.FindStringSubmatch(raw)
			if m == nil {
				errs = append(errs, fmt.Sprintf("linha %d: formato de boleto não reconhecido", row))
				continue
			}
			parts = m[1:]
		}

		line, err := settlementFromFields(parts, row)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		lines = append(lines, line)
	}
	return lines, errs
}

func settlementFromFields(parts []string, row int) (SettlementLine, error) {
	line := SettlementLine{
		Kind:        strings.TrimSpace(parts[0]),
		Number:      strings.TrimSpace(parts[1]),
		NossoNumero: strings.TrimSpace(parts[2]),
		ClientName:  strings.TrimSpace(parts[3]),
	}

	var err error
	if line.DueDate, err = normalize.Date(parts[4], "data_vencimento", row); err != nil {
		return line, err
	}
	if line.PaymentDate, err = normalize.Date(parts[5], "data_pagamento", row); err != nil {
		return line, err
	}
	if line.NominalAmount, err = normalize.Amount(parts[6], "valor_nominal", row); err != nil {
		return line, err
	}
	if line.PaidAmount, err = normalize.Amount(parts[7], "valor_pago", row); err != nil {
		return line, err
	}
	line.StatusText = strings.TrimSpace(strings.Join(parts[8:], " "))
	return line, nil
}
