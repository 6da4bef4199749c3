// Package reconcile holds the editable working set of an import under review.
package reconcile

import (
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/shopspring/decimal"
)

// Batch is the review-stage list of candidates plus the current selection.
// Every operation is keyed on the candidate's stable ID. A selection only
// ever holds candidates of one transaction type.
type Batch struct {
	items    []domain.CandidateTransaction
	selected map[string]bool
}

// NewBatch copies candidates into a new batch. Candidates without an ID get one.
func NewBatch(candidates []domain.CandidateTransaction) *Batch {
	items := make([]domain.CandidateTransaction, len(candidates))
	copy(items, candidates)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = domain.NewCandidateID()
		}
	}
	return &Batch{items: items, selected: make(map[string]bool)}
}

// Len returns the number of candidates.
func (b *Batch) Len() int {
	return len(b.items)
}

// Candidates returns a copy of the working list in order.
func (b *Batch) Candidates() []domain.CandidateTransaction {
	out := make([]domain.CandidateTransaction, len(b.items))
	copy(out, b.items)
	return out
}

// Get returns the candidate with id.
func (b *Batch) Get(id string) (domain.CandidateTransaction, bool) {
	if i := b.index(id); i >= 0 {
		return b.items[i], true
	}
	return domain.CandidateTransaction{}, false
}

// SelectionType returns the type shared by the selected candidates.
func (b *Batch) SelectionType() (domain.TransactionType, bool) {
	for _, c := range b.items {
		if b.selected[c.ID] {
			return c.Type, true
		}
	}
	return "", false
}

// Select adds id to the selection. Selecting a candidate whose type differs
// from the active selection is a no-op and returns false.
func (b *Batch) Select(id string) bool {
	i := b.index(id)
	if i < 0 {
		return false
	}
	if t, active := b.SelectionType(); active && t != b.items[i].Type {
		return false
	}
	b.selected[id] = true
	return true
}

// Deselect removes id from the selection.
func (b *Batch) Deselect(id string) {
	delete(b.selected, id)
}

// Toggle flips the selection state of id and reports whether it is now selected.
func (b *Batch) Toggle(id string) bool {
	if b.selected[id] {
		b.Deselect(id)
		return false
	}
	return b.Select(id)
}

// SelectAll selects every candidate of type t. While a selection of the
// other type is active it does nothing. It returns the number now selected.
func (b *Batch) SelectAll(t domain.TransactionType) int {
	if active, ok := b.SelectionType(); ok && active != t {
		return 0
	}
	n := 0
	for _, c := range b.items {
		if c.Type == t {
			b.selected[c.ID] = true
			n++
		}
	}
	return n
}

// ClearSelection empties the selection.
func (b *Batch) ClearSelection() {
	b.selected = make(map[string]bool)
}

// Selected returns the selected ids in list order.
func (b *Batch) Selected() []string {
	ids := make([]string, 0, len(b.selected))
	for _, c := range b.items {
		if b.selected[c.ID] {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// AssignCategory writes categoryID into every selected candidate, then
// clears the selection. It returns the number of candidates updated.
func (b *Batch) AssignCategory(categoryID string) int {
	n := 0
	for i := range b.items {
		if b.selected[b.items[i].ID] {
			b.items[i].CategoryID = categoryID
			n++
		}
	}
	b.ClearSelection()
	return n
}

// SetCategory sets the category of a single candidate.
func (b *Batch) SetCategory(id, categoryID string) bool {
	i := b.index(id)
	if i < 0 {
		return false
	}
	b.items[i].CategoryID = categoryID
	return true
}

// Delete removes one candidate.
func (b *Batch) Delete(id string) bool {
	i := b.index(id)
	if i < 0 {
		return false
	}
	b.items = append(b.items[:i], b.items[i+1:]...)
	delete(b.selected, id)
	return true
}

// DeleteSelected removes every selected candidate and returns how many were removed.
func (b *Batch) DeleteSelected() int {
	kept := b.items[:0]
	removed := 0
	for _, c := range b.items {
		if b.selected[c.ID] {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	b.items = kept
	b.ClearSelection()
	return removed
}

// Uncategorized counts candidates without a category.
func (b *Batch) Uncategorized() int {
	n := 0
	for _, c := range b.items {
		if c.CategoryID == "" {
			n++
		}
	}
	return n
}

// FillUncategorized assigns placeholder to every candidate still lacking a
// category and returns how many were filled.
func (b *Batch) FillUncategorized(placeholder string) int {
	n := 0
	for i := range b.items {
		if b.items[i].CategoryID == "" {
			b.items[i].CategoryID = placeholder
			n++
		}
	}
	return n
}

// Totals sums amounts per direction.
func (b *Batch) Totals() (income, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, c := range b.items {
		if c.Type == domain.Income {
			income = income.Add(c.Amount)
		} else {
			expense = expense.Add(c.Amount)
		}
	}
	return income, expense
}

// Clone returns an independent copy, selection included.
func (b *Batch) Clone() *Batch {
	c := NewBatch(b.items)
	for id := range b.selected {
		c.selected[id] = true
	}
	return c
}

func (b *Batch) index(id string) int {
	for i, c := range b.items {
		if c.ID == id {
			return i
		}
	}
	return -1
}
