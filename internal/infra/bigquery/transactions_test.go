package bigquery

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/store"
	"github.com/shopspring/decimal"
)

func TestToInsertRow(t *testing.T) {
	created := time.Date(2026, 2, 17, 10, 30, 0, 0, time.FixedZone("X", 3600))
	rec := store.TransactionRecord{
		ID:          "tx-1",
		AccountID:   "acc-1",
		Date:        civil.Date{Year: 2026, Month: time.February, Day: 17},
		Time:        "09:15",
		Description: "Coffee Shop",
		Amount:      decimal.RequireFromString("1234.56"),
		Type:        domain.Expense,
		CategoryID:  "food",
		ReferenceID: "fp-1",
		ImportID:    "imp-1",
		CreatedAt:   created,
	}

	row := toInsertRow(rec)

	if row.Amount.Cmp(big.NewRat(123456, 100)) != 0 {
		t.Errorf("amount = %s, want 1234.56", row.Amount.FloatString(2))
	}
	if row.Direction != "EXPENSE" {
		t.Errorf("direction = %q", row.Direction)
	}
	if row.ExternalReference != "fp-1" || row.TransactionTime != "09:15" {
		t.Errorf("unexpected row: %+v", row)
	}
	if row.CreatedTS.Location() != time.UTC || !row.CreatedTS.Equal(created) {
		t.Errorf("created_ts = %v, want UTC of %v", row.CreatedTS, created)
	}
}

func TestTransactionRowToRecord(t *testing.T) {
	row := TransactionRow{
		TransactionID:     "tx-1",
		AccountID:         "acc-1",
		TransactionDate:   civil.Date{Year: 2026, Month: time.January, Day: 3},
		TransactionTime:   bigquery.NullString{StringVal: "18:00", Valid: true},
		Amount:            big.NewRat(4500000, 100),
		Direction:         "INCOME",
		RawDescription:    "Salary",
		CategoryID:        "salary",
		ExternalReference: bigquery.NullString{},
	}

	rec, err := row.toRecord()
	if err != nil {
		t.Fatalf("toRecord() error = %v", err)
	}
	if !rec.Amount.Equal(decimal.NewFromInt(45000)) {
		t.Errorf("amount = %s", rec.Amount)
	}
	if rec.Type != domain.Income || rec.Time != "18:00" || rec.ReferenceID != "" {
		t.Errorf("unexpected record: %+v", rec)
	}

	row.Direction = "TRANSFER"
	if _, err := row.toRecord(); err == nil {
		t.Error("expected error for unknown direction")
	}

	row.Direction = "INCOME"
	row.Amount = nil
	if _, err := row.toRecord(); err == nil {
		t.Error("expected error for missing amount")
	}
}

func TestListQuery(t *testing.T) {
	tests := []struct {
		name       string
		filter     store.ListFilter
		wantParams int
		contains   []string
		excludes   []string
	}{
		{
			name:     "no filter",
			filter:   store.ListFilter{},
			excludes: []string{"WHERE", "LIMIT", "OFFSET"},
		},
		{
			name:       "account and range",
			filter:     store.ListFilter{AccountID: "acc", From: civil.Date{Year: 2026, Month: 1, Day: 1}, To: civil.Date{Year: 2026, Month: 1, Day: 31}},
			wantParams: 3,
			contains:   []string{"account_id = @account_id", "transaction_date >= @start_date", "AND transaction_date <= @end_date"},
		},
		{
			name:     "paging",
			filter:   store.ListFilter{Limit: 50, Offset: 100},
			contains: []string{"LIMIT 50 OFFSET 100"},
		},
		{
			name:     "offset without limit",
			filter:   store.ListFilter{Offset: 5},
			contains: []string{"LIMIT 9223372036854775807 OFFSET 5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params := listQuery(tableRef("p", "d", transactionsTable), tt.filter)
			if len(params) != tt.wantParams {
				t.Errorf("params = %d, want %d", len(params), tt.wantParams)
			}
			if !strings.Contains(sql, "`p.d.transactions`") {
				t.Errorf("table missing from %s", sql)
			}
			for _, c := range tt.contains {
				if !strings.Contains(sql, c) {
					t.Errorf("expected %q in %s", c, sql)
				}
			}
			for _, e := range tt.excludes {
				if strings.Contains(sql, e) {
					t.Errorf("unexpected %q in %s", e, sql)
				}
			}
		})
	}
}

func TestBulkInsertSQL(t *testing.T) {
	sql := bulkInsertSQL(tableRef("p", "d", transactionsTable))
	for _, want := range []string{"INSERT INTO `p.d.transactions`", "FROM UNNEST(@rows) AS r", "NULLIF(r.external_reference, '')"} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected %q in %s", want, sql)
		}
	}
}
