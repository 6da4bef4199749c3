package domain

import (
	"fmt"
	"strings"
)

// ColumnMapping associates logical fields with header names of a source table.
type ColumnMapping struct {
	Date        string `yaml:"date" json:"date"`
	Description string `yaml:"description" json:"description"`
	Amount      string `yaml:"amount" json:"amount"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
}

// RawRow maps header name to raw cell value.
type RawRow map[string]string

// Validate checks that the required fields are declared. Whether the
// declared headers exist in a given file is decided per row.
func (m ColumnMapping) Validate() error {
	var missing []string
	if strings.TrimSpace(m.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(m.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(m.Amount) == "" {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return fmt.Errorf("column mapping: missing %s", strings.Join(missing, ", "))
	}
	return nil
}
