package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-import/internal/store"
	"google.golang.org/api/iterator"
)

type AccountRow struct {
	AccountID   string              `bigquery:"account_id"`   // REQUIRED
	AccountName bigquery.NullString `bigquery:"account_name"` // NULLABLE
	Currency    bigquery.NullString `bigquery:"currency"`     // NULLABLE
}

func (row AccountRow) toAccount() store.Account {
	name := row.AccountName.StringVal
	if name == "" {
		name = row.AccountID
	}
	return store.Account{ID: row.AccountID, Name: name, Currency: row.Currency.StringVal}
}

// ListAccounts returns every open account ordered by name.
func (r *Repository) ListAccounts(ctx context.Context) ([]store.Account, error) {
	q := r.client.Query(`
		SELECT
			account_id,
			account_name,
			currency
		FROM ` + r.table(accountsTable) + `
		WHERE closed_date IS NULL
		ORDER BY account_name, account_id
	`)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: reading query: %w", err)
	}

	var accounts []store.Account
	for {
		var row AccountRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: iterating: %w", err)
		}
		accounts = append(accounts, row.toAccount())
	}

	return accounts, nil
}
