package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RowRecord is one pre-tokenized row from an external file, keyed by
// source column name.
type RowRecord map[string]string

// ColumnMapping maps transaction fields to source column names. Empty
// entries fall back to the field's own name.
type ColumnMapping struct {
	Date        string `json:"date,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Merchant    string `json:"merchant,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Category    string `json:"categoryId,omitempty"`
}

// Candidate is a validated, not-yet-persisted transaction. Dates are
// normalized to UTC midnight; amounts to signed cents.
type Candidate struct {
	Row         int
	Date        time.Time
	Description string
	AmountCents int64
	Merchant    *string
	Notes       *string
	CategoryID  *string
}

// RowError is a per-row validation failure, collected rather than raised.
type RowError struct {
	Row   int       `json:"row"`
	Error string    `json:"error"`
	Data  RowRecord `json:"data,omitempty"`
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02 Jan 2006",
}

func (m ColumnMapping) column(mapped, field string) string {
	if mapped != "" {
		return mapped
	}
	return field
}

// ValidateRow normalizes one raw row into a candidate or a structured
// error. It never touches the store. Row numbers are 1-based to match
// the source file.
func ValidateRow(raw RowRecord, mapping ColumnMapping, row int, loc *time.Location) (Candidate, *RowError) {
	if loc == nil {
		loc = time.UTC
	}

	dateStr := strings.TrimSpace(raw[mapping.column(mapping.Date, "date")])
	desc := strings.TrimSpace(raw[mapping.column(mapping.Description, "description")])
	amountStr := strings.TrimSpace(raw[mapping.column(mapping.Amount, "amount")])

	if dateStr == "" || desc == "" || amountStr == "" {
		return Candidate{}, &RowError{Row: row, Error: "missing required fields: date, description, or amount", Data: raw}
	}

	date, err := parseRowDate(dateStr, loc)
	if err != nil {
		return Candidate{}, &RowError{Row: row, Error: "invalid date format", Data: raw}
	}

	cents, err := parseAmountCents(amountStr)
	if err != nil {
		return Candidate{}, &RowError{Row: row, Error: "invalid amount format", Data: raw}
	}

	c := Candidate{
		Row:         row,
		Date:        date,
		Description: desc,
		AmountCents: cents,
		Merchant:    optionalField(raw, mapping.column(mapping.Merchant, "merchant")),
		Notes:       optionalField(raw, mapping.column(mapping.Notes, "notes")),
		CategoryID:  optionalField(raw, mapping.column(mapping.Category, "categoryId")),
	}
	return c, nil
}

// ValidateRows runs ValidateRow over a whole batch, splitting it into
// candidates and row errors.
func ValidateRows(rows []RowRecord, mapping ColumnMapping, loc *time.Location) ([]Candidate, []RowError) {
	var candidates []Candidate
	var rowErrors []RowError
	for i, raw := range rows {
		c, rowErr := ValidateRow(raw, mapping, i+1, loc)
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, rowErrors
}

// parseRowDate accepts the common bank-export layouts and pins the
// result to UTC midnight so the duplicate key is timezone-stable.
func parseRowDate(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// parseAmountCents converts a display amount to signed cents. Currency
// symbols and thousands separators are stripped; accounting-style
// parentheses mean negative.
func parseAmountCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ',', ' ':
			return -1
		}
		return r
	}, s))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	// ParseFloat accepts "NaN", "Inf" and overflowing magnitudes; none
	// of those are money, and converting them to int64 produces garbage.
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxAmount {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	if negative {
		f = -f
	}
	return int64(math.Round(f * 100)), nil
}

// maxAmount keeps the cents conversion well inside int64 range.
const maxAmount = 1e15

func optionalField(raw RowRecord, column string) *string {
	v := strings.TrimSpace(raw[column])
	if v == "" {
		return nil
	}
	return &v
}
