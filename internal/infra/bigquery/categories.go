package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-import/internal/store"
	"google.golang.org/api/iterator"
)

type CategoryRow struct {
	CategoryID       string              `bigquery:"category_id"`        // REQUIRED
	ParentCategoryID bigquery.NullString `bigquery:"parent_category_id"` // NULLABLE
	Name             string              `bigquery:"name"`               // REQUIRED
}

func (row CategoryRow) toCategory() store.Category {
	return store.Category{ID: row.CategoryID, Name: row.Name, ParentID: row.ParentCategoryID.StringVal}
}

// ListCategories returns active categories ordered by depth then name.
func (r *Repository) ListCategories(ctx context.Context) ([]store.Category, error) {
	q := r.client.Query(`
		SELECT
		  category_id,
		  parent_category_id,
		  name
		FROM ` + r.table(categoriesTable) + `
		WHERE is_active IS NOT FALSE
		ORDER BY depth, name
	`)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var categories []store.Category
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		categories = append(categories, row.toCategory())
	}

	return categories, nil
}
