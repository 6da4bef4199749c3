package session

import (
	"time"

	"github.com/dvloznov/statement-import/internal/csvimport"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/shopspring/decimal"
)

// Snapshot is an immutable view of a session.
type Snapshot struct {
	ID        string      `json:"id"`
	Phase     Phase       `json:"phase"`
	File      string      `json:"file,omitempty"`
	Message   string      `json:"message,omitempty"`
	Stage     Phase       `json:"failedStage,omitempty"`
	Kind      FailureKind `json:"failureKind,omitempty"`
	Preset    string      `json:"preset,omitempty"`
	AccountID string      `json:"accountId,omitempty"`
	Committed int         `json:"committed,omitempty"`

	Candidates    []domain.CandidateTransaction `json:"candidates"`
	Selected      []string                      `json:"selected"`
	SelectionType domain.TransactionType        `json:"selectionType,omitempty"`
	Uncategorized int                           `json:"uncategorized"`
	TotalIncome   decimal.Decimal               `json:"totalIncome"`
	TotalExpense  decimal.Decimal               `json:"totalExpense"`

	TotalRows   int                 `json:"totalRows,omitempty"`
	SkippedRows int                 `json:"skippedRows,omitempty"`
	Skips       []csvimport.RowSkip `json:"skips,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.id,
		Phase:        s.state.Phase(),
		Message:      message(s.state),
		Preset:       s.preset,
		Candidates:   []domain.CandidateTransaction{},
		Selected:     []string{},
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		UpdatedAt:    s.updatedAt,
	}
	if s.file != nil {
		snap.File = s.file.Name
		if snap.File == "" {
			snap.File = s.file.URI
		}
	}

	switch st := s.state.(type) {
	case Failed:
		snap.Stage = st.Stage
		snap.Kind = st.Kind
	case Importing:
		snap.AccountID = st.AccountID
	case Done:
		snap.Committed = st.Committed
	}

	if s.batch != nil {
		snap.Candidates = s.batch.Candidates()
		snap.Selected = s.batch.Selected()
		if t, ok := s.batch.SelectionType(); ok {
			snap.SelectionType = t
		}
		snap.Uncategorized = s.batch.Uncategorized()
		snap.TotalIncome, snap.TotalExpense = s.batch.Totals()
	}

	if s.parsed != nil {
		snap.TotalRows = s.parsed.TotalRows
		snap.SkippedRows = s.parsed.SkippedRows
		snap.Skips = append([]csvimport.RowSkip(nil), s.parsed.Skips...)
	}

	return snap
}
