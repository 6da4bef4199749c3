package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-import/internal/store"
	"google.golang.org/api/option"
)

const (
	transactionsTable = "transactions"
	accountsTable     = "accounts"
	categoriesTable   = "categories"
)

// Repository is the BigQuery-backed transaction store and directory.
// It holds a shared client so each operation reuses one connection.
type Repository struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewRepository creates a repository for project.dataset.
func NewRepository(ctx context.Context, project, dataset string, opts ...option.ClientOption) (*Repository, error) {
	if project == "" || dataset == "" {
		return nil, fmt.Errorf("NewRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, project: project, dataset: dataset}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// table returns the fully qualified, backquoted table name.
func (r *Repository) table(name string) string {
	return tableRef(r.project, r.dataset, name)
}

func tableRef(project, dataset, name string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, name)
}

var (
	_ store.TransactionStore  = (*Repository)(nil)
	_ store.TransactionLister = (*Repository)(nil)
	_ store.AccountDirectory  = (*Repository)(nil)
	_ store.CategoryDirectory = (*Repository)(nil)
)
