package store

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/shopspring/decimal"
)

func validRecord() TransactionRecord {
	return TransactionRecord{
		ID:         "r-1",
		AccountID:  "acc",
		Date:       civil.Date{Year: 2026, Month: time.February, Day: 17},
		Amount:     decimal.NewFromInt(59),
		Type:       domain.Expense,
		CategoryID: "food",
	}
}

func TestTransactionRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *TransactionRecord)
		wantErr bool
	}{
		{"valid", func(r *TransactionRecord) {}, false},
		{"empty description allowed", func(r *TransactionRecord) { r.Description = "" }, false},
		{"missing id", func(r *TransactionRecord) { r.ID = "" }, true},
		{"missing account", func(r *TransactionRecord) { r.AccountID = "" }, true},
		{"missing category", func(r *TransactionRecord) { r.CategoryID = "" }, true},
		{"zero date", func(r *TransactionRecord) { r.Date = civil.Date{} }, true},
		{"zero amount", func(r *TransactionRecord) { r.Amount = decimal.Zero }, true},
		{"negative amount", func(r *TransactionRecord) { r.Amount = decimal.NewFromInt(-1) }, true},
		{"bad type", func(r *TransactionRecord) { r.Type = "TRANSFER" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestRecordsFromCandidates(t *testing.T) {
	now := time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)
	candidates := []domain.CandidateTransaction{
		{ID: "c1", Description: "Coffee", Amount: decimal.NewFromInt(3), Type: domain.Expense, CategoryID: "food", ReferenceID: "fp-1", Time: "08:15"},
		{ID: "c2", Description: "Coffee", Amount: decimal.NewFromInt(3), Type: domain.Expense, CategoryID: "food"},
	}

	recs := RecordsFromCandidates(candidates, "acc", "imp-1", "csv", now)

	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID == "" || recs[0].ID == recs[1].ID {
		t.Errorf("expected distinct record ids, got %q and %q", recs[0].ID, recs[1].ID)
	}
	if recs[0].ReferenceID != "fp-1" || recs[0].Time != "08:15" || recs[0].ImportID != "imp-1" || recs[0].Source != "csv" {
		t.Errorf("fields not carried: %+v", recs[0])
	}
	if recs[1].AccountID != "acc" || !recs[1].CreatedAt.Equal(now) {
		t.Errorf("unexpected record: %+v", recs[1])
	}
}
