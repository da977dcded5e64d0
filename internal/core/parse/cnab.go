package parse

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// CNABRecord is one settled instrument reported by a CNAB return file.
type CNABRecord struct {
	Document       string // nosso número, without check digit padding
	DocumentNumber string // seu número (the issuer's document reference)
	OccurrenceCode string
	DueDate        time.Time
	PaymentDate    time.Time
	NominalAmount  decimal.Decimal
	PaidAmount     decimal.Decimal
	StatusText     string
}

// Settled reports whether the occurrence code marks a liquidation.
func (r CNABRecord) Settled() bool {
	return r.OccurrenceCode == "06" || r.OccurrenceCode == "17"
}

// CNAB400 line layout (retorno de cobrança), 1-based columns:
//
//	1       record type ('0' header, '1' detail, '9' trailer)
//	71-82   nosso número
//	109-110 occurrence code (06/17 = liquidação)
//	111-116 occurrence date DDMMYY
//	117-126 seu número
//	147-152 due date DDMMYY
//	153-165 nominal value, 2 implied decimals
//	254-266 paid value, 2 implied decimals
const (
	cnab400LineLen = 400
	cnab240LineLen = 240
)

// DetectCNABFormat returns 400, 240 or 0 based on the width of the first
// non-empty line.
func DetectCNABFormat(content string) int {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		switch len(line) {
		case 0:
			continue
		case cnab400LineLen:
			return 400
		case cnab240LineLen:
			return 240
		default:
			return 0
		}
	}
	return 0
}

// DecodeLatin1 re-decodes bank files and reports uploaded as ISO8859-1 bytes.
func DecodeLatin1(raw []byte) string {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// CNAB400 parses detail records of a CNAB 400 return file. Malformed rows
// are collected as error strings; the file always parses to completion.
func CNAB400(content string) ([]CNABRecord, []string) {
	var records []CNABRecord
	var errs []string

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 1024), 1024*1024)
	row := 0
	for scanner.Scan() {
		row++
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) == 0 || line[0] != '1' {
			continue
		}
		if len(line) < cnab400LineLen {
			errs = append(errs, fmt.Sprintf("linha %d: registro CNAB 400 com %d colunas", row, len(line)))
			continue
		}

		rec := CNABRecord{
			Document:       strings.TrimSpace(line[70:82]),
			OccurrenceCode: line[108:110],
			DocumentNumber: strings.TrimSpace(line[116:126]),
			StatusText:     occurrenceText(line[108:110]),
		}

		var err error
		if rec.PaymentDate, err = cnabShortDate(line[110:116]); err != nil {
			errs = append(errs, fmt.Sprintf("linha %d: data de ocorrência inválida: %v", row, err))
			continue
		}
		if rec.DueDate, err = cnabShortDate(line[146:152]); err != nil {
			errs = append(errs, fmt.Sprintf("linha %d: data de vencimento inválida: %v", row, err))
			continue
		}
		if rec.NominalAmount, err = cnabValue(line[152:165]); err != nil {
			errs = append(errs, fmt.Sprintf("linha %d: valor nominal inválido: %v", row, err))
			continue
		}
		if rec.PaidAmount, err = cnabValue(line[253:266]); err != nil {
			errs = append(errs, fmt.Sprintf("linha %d: valor pago inválido: %v", row, err))
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

// CNAB240 parses the cobrança return subset of CNAB 240: segment T carries
// the instrument identification and segment U, which follows it, the
// settlement values.
func CNAB240(content string) ([]CNABRecord, []string) {
	var records []CNABRecord
	var errs []string

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 1024), 1024*1024)
	row := 0
	var pending *CNABRecord
	for scanner.Scan() {
		row++
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) < cnab240LineLen || line[7] != '3' {
			continue
		}
		switch line[13] {
		case 'T':
			rec := CNABRecord{
				Document:       strings.TrimSpace(line[37:57]),
				DocumentNumber: strings.TrimSpace(line[58:73]),
				OccurrenceCode: line[15:17],
				StatusText:     occurrenceText(line[15:17]),
			}
			var err error
			if rec.DueDate, err = cnabLongDate(line[73:81]); err != nil {
				errs = append(errs, fmt.Sprintf("linha %d: data de vencimento inválida: %v", row, err))
				pending = nil
				continue
			}
			if rec.NominalAmount, err = cnabValue(line[81:96]); err != nil {
				errs = append(errs, fmt.Sprintf("linha %d: valor nominal inválido: %v", row, err))
				pending = nil
				continue
			}
			pending = &rec
		case 'U':
			if pending == nil {
				continue
			}
			var err error
			if pending.PaidAmount, err = cnabValue(line[77:92]); err != nil {
				errs = append(errs, fmt.Sprintf("linha %d: valor pago inválido: %v", row, err))
				pending = nil
				continue
			}
			if pending.PaymentDate, err = cnabLongDate(line[137:145]); err != nil {
				errs = append(errs, fmt.Sprintf("linha %d: data de pagamento inválida: %v", row, err))
				pending = nil
				continue
			}
			records = append(records, *pending)
			pending = nil
		}
	}
	return records, errs
}

func occurrenceText(code string) string {
	switch code {
	case "02":
		return "ENTRADA CONFIRMADA"
	case "03":
		return "ENTRADA REJEITADA"
	case "06":
		return "LIQUIDADO"
	case "09", "10":
		return "BAIXADO"
	case "14":
		return "VENCIMENTO ALTERADO"
	case "17":
		return "LIQUIDADO APOS BAIXA"
	default:
		return "OCORRENCIA " + code
	}
}

func cnabShortDate(s string) (time.Time, error) {
	return time.ParseInLocation("020106", s, time.UTC)
}

func cnabLongDate(s string) (time.Time, error) {
	return time.ParseInLocation("02012006", s, time.UTC)
}

// cnabValue parses a zero-padded integer field with two implied decimals.
func cnabValue(s string) (decimal.Decimal, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(v, -2), nil
}
