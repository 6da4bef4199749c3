package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/store"
	"github.com/shopspring/decimal"
)

// numericScale is the fractional precision of BigQuery NUMERIC.
const numericScale = 9

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	AccountID     string `bigquery:"account_id"`     // REQUIRED
	ImportID      string `bigquery:"import_id"`      // NULLABLE
	Source        string `bigquery:"source"`         // NULLABLE

	TransactionDate civil.Date          `bigquery:"transaction_date"` // REQUIRED
	TransactionTime bigquery.NullString `bigquery:"transaction_time"` // NULLABLE, HH:mm

	Amount    *big.Rat `bigquery:"amount"`    // REQUIRED NUMERIC, always positive
	Direction string   `bigquery:"direction"` // REQUIRED, INCOME or EXPENSE

	RawDescription string `bigquery:"raw_description"` // REQUIRED STRING
	CategoryID     string `bigquery:"category_id"`     // REQUIRED

	ExternalReference bigquery.NullString `bigquery:"external_reference"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// insertRow is the STRUCT element of the bulk insert array parameter.
// Nullable columns travel as empty strings and are converted with NULLIF.
type insertRow struct {
	TransactionID     string     `bigquery:"transaction_id"`
	AccountID         string     `bigquery:"account_id"`
	ImportID          string     `bigquery:"import_id"`
	Source            string     `bigquery:"source"`
	TransactionDate   civil.Date `bigquery:"transaction_date"`
	TransactionTime   string     `bigquery:"transaction_time"`
	Amount            *big.Rat   `bigquery:"amount"`
	Direction         string     `bigquery:"direction"`
	RawDescription    string     `bigquery:"raw_description"`
	CategoryID        string     `bigquery:"category_id"`
	ExternalReference string     `bigquery:"external_reference"`
	CreatedTS         time.Time  `bigquery:"created_ts"`
}

// toInsertRow converts a record into its insert parameter form.
func toInsertRow(rec store.TransactionRecord) insertRow {
	return insertRow{
		TransactionID:     rec.ID,
		AccountID:         rec.AccountID,
		ImportID:          rec.ImportID,
		Source:            rec.Source,
		TransactionDate:   rec.Date,
		TransactionTime:   rec.Time,
		Amount:            rec.Amount.Rat(),
		Direction:         string(rec.Type),
		RawDescription:    rec.Description,
		CategoryID:        rec.CategoryID,
		ExternalReference: rec.ReferenceID,
		CreatedTS:         rec.CreatedAt.UTC(),
	}
}

// toRecord converts a stored row back into a record.
func (row TransactionRow) toRecord() (store.TransactionRecord, error) {
	if row.Amount == nil {
		return store.TransactionRecord{}, fmt.Errorf("transaction %s: missing amount", row.TransactionID)
	}
	amount, err := decimal.NewFromString(row.Amount.FloatString(numericScale))
	if err != nil {
		return store.TransactionRecord{}, fmt.Errorf("transaction %s: amount: %w", row.TransactionID, err)
	}
	typ, ok := domain.ParseTransactionType(row.Direction)
	if !ok {
		return store.TransactionRecord{}, fmt.Errorf("transaction %s: unknown direction %q", row.TransactionID, row.Direction)
	}

	return store.TransactionRecord{
		ID:          row.TransactionID,
		AccountID:   row.AccountID,
		Date:        row.TransactionDate,
		Time:        row.TransactionTime.StringVal,
		Description: row.RawDescription,
		Amount:      amount,
		Type:        typ,
		CategoryID:  row.CategoryID,
		ReferenceID: row.ExternalReference.StringVal,
		ImportID:    row.ImportID,
		Source:      row.Source,
		CreatedAt:   row.CreatedTS,
	}, nil
}
