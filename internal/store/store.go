// Package store defines the persistence collaborators of the import flow.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidRecord is returned when a record misses a required field.
var ErrInvalidRecord = errors.New("invalid transaction record")

// TransactionRecord is a committed ledger entry.
type TransactionRecord struct {
	ID          string                 `json:"id"`
	AccountID   string                 `json:"accountId"`
	Date        civil.Date             `json:"date"`
	Time        string                 `json:"time,omitempty"`
	Description string                 `json:"description"`
	Amount      decimal.Decimal        `json:"amount"`
	Type        domain.TransactionType `json:"type"`
	CategoryID  string                 `json:"categoryId"`
	ReferenceID string                 `json:"referenceId,omitempty"`
	ImportID    string                 `json:"importId,omitempty"`
	Source      string                 `json:"source,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// Validate checks the fields every store requires.
func (r TransactionRecord) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case r.AccountID == "":
		return fmt.Errorf("%w: missing account", ErrInvalidRecord)
	case r.CategoryID == "":
		return fmt.Errorf("%w: missing category", ErrInvalidRecord)
	case !r.Date.IsValid():
		return fmt.Errorf("%w: invalid date", ErrInvalidRecord)
	case !r.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRecord)
	case !r.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, r.Type)
	}
	return nil
}

// Account is a destination for imported transactions.
type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
}

// Category classifies transactions. ParentID is empty for top-level categories.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// ListFilter narrows transaction listings. Zero values mean no constraint.
type ListFilter struct {
	AccountID string
	From      civil.Date
	To        civil.Date
	Limit     int
	Offset    int
}

// TransactionStore persists committed transactions. CreateBulk is all or
// nothing: either every record is stored or none is.
type TransactionStore interface {
	Create(ctx context.Context, rec TransactionRecord) (TransactionRecord, error)
	CreateBulk(ctx context.Context, recs []TransactionRecord) ([]TransactionRecord, error)
}

// TransactionLister lists committed transactions.
type TransactionLister interface {
	ListTransactions(ctx context.Context, filter ListFilter) ([]TransactionRecord, error)
}

// AccountDirectory lists destination accounts.
type AccountDirectory interface {
	ListAccounts(ctx context.Context) ([]Account, error)
}

// CategoryDirectory lists categories.
type CategoryDirectory interface {
	ListCategories(ctx context.Context) ([]Category, error)
}

// RecordsFromCandidates turns reviewed candidates into records for accountID.
// Record ids are fresh; the candidate fingerprint is kept as ReferenceID.
func RecordsFromCandidates(candidates []domain.CandidateTransaction, accountID, importID, source string, now time.Time) []TransactionRecord {
	recs := make([]TransactionRecord, 0, len(candidates))
	for _, c := range candidates {
		recs = append(recs, TransactionRecord{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Date:        c.Date,
			Time:        c.Time,
			Description: c.Description,
			Amount:      c.Amount,
			Type:        c.Type,
			CategoryID:  c.CategoryID,
			ReferenceID: c.ReferenceID,
			ImportID:    importID,
			Source:      source,
			CreatedAt:   now,
		})
	}
	return recs
}
