package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/statement-import/internal/store"
)

// Store is an in-memory transaction store and account/category directory.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]store.TransactionRecord
	order        []string
	accounts     []store.Account
	categories   []store.Category
}

// NewStore creates a store seeded with the given directories.
func NewStore(accounts []store.Account, categories []store.Category) *Store {
	return &Store{
		transactions: make(map[string]store.TransactionRecord),
		accounts:     append([]store.Account(nil), accounts...),
		categories:   append([]store.Category(nil), categories...),
	}
}

// Create stores a single record.
func (s *Store) Create(ctx context.Context, rec store.TransactionRecord) (store.TransactionRecord, error) {
	out, err := s.CreateBulk(ctx, []store.TransactionRecord{rec})
	if err != nil {
		return store.TransactionRecord{}, err
	}
	return out[0], nil
}

// CreateBulk validates every record before storing any of them.
func (s *Store) CreateBulk(ctx context.Context, recs []store.TransactionRecord) ([]store.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(recs))
	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("CreateBulk: record %d: %w", i, err)
		}
		if _, exists := s.transactions[rec.ID]; exists || seen[rec.ID] {
			return nil, fmt.Errorf("CreateBulk: record %d: duplicate id %s", i, rec.ID)
		}
		seen[rec.ID] = true
	}

	out := make([]store.TransactionRecord, len(recs))
	for i, rec := range recs {
		s.transactions[rec.ID] = rec
		s.order = append(s.order, rec.ID)
		out[i] = rec
	}
	return out, nil
}

// ListTransactions returns stored records filtered, in date then insertion order.
func (s *Store) ListTransactions(ctx context.Context, filter store.ListFilter) ([]store.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []store.TransactionRecord
	for _, id := range s.order {
		rec := s.transactions[id]
		if filter.AccountID != "" && rec.AccountID != filter.AccountID {
			continue
		}
		if filter.From.IsValid() && rec.Date.Before(filter.From) {
			continue
		}
		if filter.To.IsValid() && rec.Date.After(filter.To) {
			continue
		}
		result = append(result, rec)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []store.TransactionRecord{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// ListAccounts returns a copy of the seeded accounts.
func (s *Store) ListAccounts(ctx context.Context) ([]store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.Account(nil), s.accounts...), nil
}

// ListCategories returns a copy of the seeded categories.
func (s *Store) ListCategories(ctx context.Context) ([]store.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.Category(nil), s.categories...), nil
}

// Len returns the number of stored transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions)
}

var (
	_ store.TransactionStore  = (*Store)(nil)
	_ store.TransactionLister = (*Store)(nil)
	_ store.AccountDirectory  = (*Store)(nil)
	_ store.CategoryDirectory = (*Store)(nil)
)
