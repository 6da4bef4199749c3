package csvimport

import (
	"encoding/csv"
	"regexp"
	"strings"

	"github.com/dvloznov/statement-import/internal/domain"
)

// RowSkip records one skipped data row.
type RowSkip struct {
	RowIndex int        `json:"rowIndex"`
	Reason   SkipReason `json:"reason"`
}

// ParseResult is the outcome of parsing one CSV text.
// TotalRows always equals len(Transactions) + SkippedRows.
type ParseResult struct {
	Transactions []domain.NormalizedTransaction `json:"transactions"`
	Headers      []string                       `json:"headers"`
	TotalRows    int                            `json:"totalRows"`
	SkippedRows  int                            `json:"skippedRows"`
	Skips        []RowSkip                      `json:"skips,omitempty"`
}

// thousandsFragment matches the tail of a number whose grouping comma was
// taken for a field delimiter, e.g. the "250.00" of an unquoted -1,250.00.
var thousandsFragment = regexp.MustCompile(`^\d{3}(\.\d+)?$`)

// Parse splits raw CSV text into header and rows, normalizes every data row
// and fingerprints the survivors. The output depends only on text and mapping.
func Parse(text string, m domain.ColumnMapping) ParseResult {
	result := ParseResult{
		Transactions: []domain.NormalizedTransaction{},
		Headers:      []string{},
	}

	lines := splitLines(text)
	headerAt := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return result
	}

	result.Headers = parseHeader(lines[headerAt])
	amountCol := indexOf(result.Headers, m.Amount)

	ordinal := 0
	for _, line := range lines[headerAt+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rowIndex := ordinal
		ordinal++
		result.TotalRows++

		cells := alignCells(tokenize(line), len(result.Headers), amountCol)
		row := make(domain.RawRow, len(result.Headers))
		for i, h := range result.Headers {
			row[h] = cells[i]
		}

		tx, skip := Normalize(row, m, rowIndex)
		if skip != SkipNone {
			result.SkippedRows++
			result.Skips = append(result.Skips, RowSkip{RowIndex: rowIndex, Reason: skip})
			continue
		}
		tx.ReferenceID = Fingerprint(tx, rowIndex)
		result.Transactions = append(result.Transactions, tx)
	}

	return result
}

// Headers returns the trimmed header row of a CSV text.
func Headers(text string) []string {
	for _, line := range splitLines(text) {
		if strings.TrimSpace(line) != "" {
			return parseHeader(line)
		}
	}
	return nil
}

func splitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

func parseHeader(line string) []string {
	cells := tokenize(line)
	headers := make([]string, len(cells))
	for i, c := range cells {
		headers[i] = strings.TrimSpace(strings.Trim(strings.TrimSpace(c), `"'`))
	}
	return headers
}

// tokenize reads one line as a CSV record, honouring quotes. Lines the csv
// reader rejects fall back to a plain comma split.
func tokenize(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rec, err := r.Read()
	if err != nil {
		return strings.Split(line, ",")
	}
	return rec
}

// alignCells fits a record to the header width. Overflow cells that look like
// thousands fragments are re-joined into the amount column; any other
// overflow is folded into the last column.
func alignCells(cells []string, width, amountCol int) []string {
	if width == 0 {
		return cells
	}
	if len(cells) < width {
		padded := make([]string, width)
		copy(padded, cells)
		return padded
	}
	extra := len(cells) - width
	if extra == 0 {
		return cells
	}

	if amountCol >= 0 && amountCol+extra < len(cells) && allFragments(cells[amountCol+1:amountCol+1+extra]) {
		out := make([]string, 0, width)
		out = append(out, cells[:amountCol]...)
		out = append(out, strings.Join(cells[amountCol:amountCol+1+extra], ","))
		out = append(out, cells[amountCol+1+extra:]...)
		return out
	}

	out := make([]string, 0, width)
	out = append(out, cells[:width-1]...)
	out = append(out, strings.Join(cells[width-1:], ","))
	return out
}

func allFragments(cells []string) bool {
	for _, c := range cells {
		if !thousandsFragment.MatchString(strings.TrimSpace(c)) {
			return false
		}
	}
	return true
}

func indexOf(headers []string, name string) int {
	if name == "" {
		return -1
	}
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}
