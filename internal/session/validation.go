package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-import/internal/store"
)

// directory resolves account and category references against the configured
// directories. Lookups are case-insensitive and match either id or name.
type directory struct {
	accounts   map[string]string
	categories map[string]string
}

// loadDirectory reads both directories. A nil directory disables that check.
func loadDirectory(ctx context.Context, accounts store.AccountDirectory, categories store.CategoryDirectory) (*directory, error) {
	d := &directory{}

	if accounts != nil {
		rows, err := accounts.ListAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("loadDirectory: list accounts: %w", err)
		}
		d.accounts = make(map[string]string, len(rows)*2)
		for _, a := range rows {
			d.accounts[normalizeRef(a.ID)] = a.ID
			if a.Name != "" {
				d.accounts[normalizeRef(a.Name)] = a.ID
			}
		}
	}

	if categories != nil {
		rows, err := categories.ListCategories(ctx)
		if err != nil {
			return nil, fmt.Errorf("loadDirectory: list categories: %w", err)
		}
		d.categories = make(map[string]string, len(rows)*2)
		for _, c := range rows {
			d.categories[normalizeRef(c.ID)] = c.ID
			if c.Name != "" {
				if _, taken := d.categories[normalizeRef(c.Name)]; !taken {
					d.categories[normalizeRef(c.Name)] = c.ID
				}
			}
		}
	}

	return d, nil
}

// account returns the canonical account id.
func (d *directory) account(ref string) (string, error) {
	if d.accounts == nil {
		return ref, nil
	}
	id, ok := d.accounts[normalizeRef(ref)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAccount, ref)
	}
	return id, nil
}

// category returns the canonical category id.
func (d *directory) category(ref string) (string, error) {
	if d.categories == nil {
		return ref, nil
	}
	id, ok := d.categories[normalizeRef(ref)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, ref)
	}
	return id, nil
}

// normalizeRef converts to uppercase and trims whitespace for comparison.
func normalizeRef(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
