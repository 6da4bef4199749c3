package csvimport

import (
	"errors"
	"strings"

	"github.com/dvloznov/statement-import/internal/domain"
)

// SkipReason explains why a row produced no transaction.
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipMissingColumn SkipReason = "missing_column"
	SkipMissingAmount SkipReason = "missing_amount"
	SkipInvalidAmount SkipReason = "invalid_amount"
	SkipZeroAmount    SkipReason = "zero_amount"
	SkipInvalidDate   SkipReason = "invalid_date"
)

// Normalize converts one raw row into a canonical transaction, or reports why
// the row has to be skipped. Skips are expected and never errors.
func Normalize(row domain.RawRow, m domain.ColumnMapping, rowIndex int) (domain.NormalizedTransaction, SkipReason) {
	rawDate, ok := row[m.Date]
	if !ok {
		return domain.NormalizedTransaction{}, SkipMissingColumn
	}
	rawDesc, ok := row[m.Description]
	if !ok {
		return domain.NormalizedTransaction{}, SkipMissingColumn
	}
	rawAmount, ok := row[m.Amount]
	if !ok {
		return domain.NormalizedTransaction{}, SkipMissingColumn
	}

	amount, err := ParseAmount(rawAmount)
	switch {
	case errors.Is(err, errEmptyAmount):
		return domain.NormalizedTransaction{}, SkipMissingAmount
	case err != nil:
		return domain.NormalizedTransaction{}, SkipInvalidAmount
	case amount.IsZero():
		return domain.NormalizedTransaction{}, SkipZeroAmount
	}

	date, err := ParseDate(rawDate)
	if err != nil {
		return domain.NormalizedTransaction{}, SkipInvalidDate
	}

	txType := domain.Income
	if amount.IsNegative() {
		txType = domain.Expense
	}
	if m.Type != "" {
		if t, ok := domain.ParseTransactionType(row[m.Type]); ok {
			txType = t
		}
	}

	return domain.NormalizedTransaction{
		Date:        date,
		Description: strings.TrimSpace(rawDesc),
		Amount:      amount.Abs(),
		Type:        txType,
		RawRowIndex: rowIndex,
	}, SkipNone
}
