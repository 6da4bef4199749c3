package domain

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money movement. Amounts are always
// stored as positive magnitudes and the direction lives here.
type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

var typeTokens = map[string]TransactionType{
	"income":     Income,
	"credit":     Income,
	"cr":         Income,
	"deposit":    Income,
	"in":         Income,
	"expense":    Expense,
	"debit":      Expense,
	"dr":         Expense,
	"withdrawal": Expense,
	"out":        Expense,
}

// ParseTransactionType matches a raw type cell case-insensitively.
func ParseTransactionType(s string) (TransactionType, bool) {
	t, ok := typeTokens[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Valid reports whether t is one of the known directions.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Opposite returns the other direction.
func (t TransactionType) Opposite() TransactionType {
	if t == Income {
		return Expense
	}
	return Income
}

// NormalizedTransaction is the canonical output of the CSV path.
type NormalizedTransaction struct {
	Date        civil.Date      `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"` // positive magnitude
	Type        TransactionType `json:"type"`
	ReferenceID string          `json:"referenceId"`
	RawRowIndex int             `json:"rawRowIndex"`
}

// CandidateTransaction is a not-yet-committed record under review.
// ID is synthetic and stable for the lifetime of the import session;
// selection and deletion are keyed on it, never on list position.
type CandidateTransaction struct {
	ID          string          `json:"id"`
	Date        civil.Date      `json:"date"`
	Time        string          `json:"time,omitempty"` // HH:mm, empty when unknown
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	CategoryID  string          `json:"categoryId,omitempty"`
	ReferenceID string          `json:"referenceId,omitempty"`
	RawRowIndex int             `json:"rawRowIndex,omitempty"`
}

// NewCandidateID returns a fresh synthetic candidate id.
func NewCandidateID() string {
	return uuid.NewString()
}

// FromNormalized converts a CSV row into a review candidate, keeping its fingerprint.
func FromNormalized(tx NormalizedTransaction) CandidateTransaction {
	return CandidateTransaction{
		ID:          NewCandidateID(),
		Date:        tx.Date,
		Description: tx.Description,
		Amount:      tx.Amount,
		Type:        tx.Type,
		ReferenceID: tx.ReferenceID,
		RawRowIndex: tx.RawRowIndex,
	}
}
