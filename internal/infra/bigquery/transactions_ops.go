package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-import/internal/store"
	"google.golang.org/api/iterator"
)

// Create inserts a single record.
func (r *Repository) Create(ctx context.Context, rec store.TransactionRecord) (store.TransactionRecord, error) {
	out, err := r.CreateBulk(ctx, []store.TransactionRecord{rec})
	if err != nil {
		return store.TransactionRecord{}, err
	}
	return out[0], nil
}

// CreateBulk inserts all records with one DML statement. BigQuery applies a
// single statement atomically, so a failure stores nothing. The streaming
// inserter is not used because it can partially succeed.
func (r *Repository) CreateBulk(ctx context.Context, recs []store.TransactionRecord) ([]store.TransactionRecord, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	rows := make([]insertRow, 0, len(recs))
	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("CreateBulk: record %d: %w", i, err)
		}
		rows = append(rows, toInsertRow(rec))
	}

	q := r.client.Query(bulkInsertSQL(r.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: rows},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("CreateBulk: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("CreateBulk: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("CreateBulk: job error: %w", err)
	}

	return recs, nil
}

func bulkInsertSQL(table string) string {
	return `
		INSERT INTO ` + table + ` (
			transaction_id, account_id, import_id, source,
			transaction_date, transaction_time,
			amount, direction,
			raw_description, category_id,
			external_reference, created_ts
		)
		SELECT
			r.transaction_id, r.account_id, NULLIF(r.import_id, ''), NULLIF(r.source, ''),
			r.transaction_date, NULLIF(r.transaction_time, ''),
			r.amount, r.direction,
			r.raw_description, r.category_id,
			NULLIF(r.external_reference, ''), r.created_ts
		FROM UNNEST(@rows) AS r
	`
}

// listQuery builds the SELECT and parameters for a filter.
func listQuery(table string, filter store.ListFilter) (string, []bigquery.QueryParameter) {
	var where []string
	var params []bigquery.QueryParameter

	if filter.AccountID != "" {
		where = append(where, "account_id = @account_id")
		params = append(params, bigquery.QueryParameter{Name: "account_id", Value: filter.AccountID})
	}
	if filter.From.IsValid() {
		where = append(where, "transaction_date >= @start_date")
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: filter.From})
	}
	if filter.To.IsValid() {
		where = append(where, "transaction_date <= @end_date")
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: filter.To})
	}

	var b strings.Builder
	b.WriteString(`
		SELECT
			transaction_id,
			account_id,
			IFNULL(import_id, '') AS import_id,
			IFNULL(source, '') AS source,
			transaction_date,
			transaction_time,
			amount,
			direction,
			raw_description,
			category_id,
			external_reference,
			created_ts
		FROM ` + table)
	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE " + strings.Join(where, "\n\t\t  AND "))
	}
	b.WriteString("\n\t\tORDER BY transaction_date, created_ts")
	if filter.Limit > 0 {
		fmt.Fprintf(&b, "\n\t\tLIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			// BigQuery requires LIMIT with OFFSET.
			b.WriteString("\n\t\tLIMIT 9223372036854775807")
		}
		fmt.Fprintf(&b, " OFFSET %d", filter.Offset)
	}
	return b.String(), params
}

// ListTransactions returns committed transactions matching filter.
func (r *Repository) ListTransactions(ctx context.Context, filter store.ListFilter) ([]store.TransactionRecord, error) {
	sql, params := listQuery(r.table(transactionsTable), filter)
	q := r.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var recs []store.TransactionRecord
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		rec, err := row.toRecord()
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, nil
}
