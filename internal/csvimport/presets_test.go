package csvimport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const presetsYAML = `
presets:
  KBank:
    date: Transaction Date
    description: Details
    amount: Amount
  revolut:
    date: Completed Date
    description: Description
    amount: Amount
    type: Type
`

func TestLoadPresets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(presetsYAML), 0o600))

	p, err := LoadPresets(path)
	require.NoError(t, err)
	require.Len(t, p, 2)

	m, ok := p.Lookup("kbank")
	require.True(t, ok)
	assert.Equal(t, domain.ColumnMapping{Date: "Transaction Date", Description: "Details", Amount: "Amount"}, m)

	_, ok = p.Lookup("unknown")
	assert.False(t, ok)
}

func TestParsePresets_RejectsIncomplete(t *testing.T) {
	_, err := ParsePresets([]byte("presets:\n  broken:\n    date: Date\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"broken"`)
}

func TestLoadPresets_MissingFile(t *testing.T) {
	_, err := LoadPresets(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPresetsDetect(t *testing.T) {
	p, err := ParsePresets([]byte(presetsYAML))
	require.NoError(t, err)

	name, m, ok := p.Detect([]string{"Type", "Started Date", "Completed Date", "Description", "Amount", "Fee"})
	require.True(t, ok)
	assert.Equal(t, "revolut", name)
	assert.Equal(t, "Type", m.Type)

	_, _, ok = p.Detect([]string{"Date", "Memo", "Value"})
	assert.False(t, ok)
}
