package csvimport

import (
	"testing"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_NegativeAmountWithoutTypeColumn(t *testing.T) {
	row := domain.RawRow{"Date": "2026-01-16", "Description": "  Coffee  ", "Amount": "-250"}

	tx, skip := Normalize(row, basicMapping, 7)

	require.Equal(t, SkipNone, skip)
	assert.Equal(t, domain.Expense, tx.Type)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("250")))
	assert.Equal(t, "Coffee", tx.Description)
	assert.Equal(t, 7, tx.RawRowIndex)
	assert.Empty(t, tx.ReferenceID)
}

func TestNormalize_DescriptionPassesThrough(t *testing.T) {
	for _, desc := range []string{"ค่ากาแฟ", "קפה ומאפה", "مقهى", "東京駅 コーヒー"} {
		row := domain.RawRow{"Date": "2026-01-16", "Description": " " + desc + " ", "Amount": "10"}
		tx, skip := Normalize(row, basicMapping, 0)
		require.Equal(t, SkipNone, skip)
		assert.Equal(t, desc, tx.Description)
	}
}

func TestNormalize_SkipReasons(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		date   string
		want   SkipReason
	}{
		{"empty amount", "", "2026-01-15", SkipMissingAmount},
		{"blank amount", "   ", "2026-01-15", SkipMissingAmount},
		{"zero amount", "0", "2026-01-15", SkipZeroAmount},
		{"zero with decimals", "0.00", "2026-01-15", SkipZeroAmount},
		{"non numeric amount", "n/a", "2026-01-15", SkipInvalidAmount},
		{"two decimal points", "1.2.3", "2026-01-15", SkipInvalidAmount},
		{"letters between digits", "12abc34", "2026-01-15", SkipInvalidAmount},
		{"exponent", "1e3", "2026-01-15", SkipInvalidAmount},
		{"reference text", "Ref 7 59.00", "2026-01-15", SkipInvalidAmount},
		{"bad date", "10", "yesterday", SkipInvalidDate},
		{"impossible date", "10", "31/02/2026", SkipInvalidDate},
		{"month out of range", "10", "2026-13-01", SkipInvalidDate},
		{"valid", "10", "2026-01-15", SkipNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := domain.RawRow{"Date": tt.date, "Description": "x", "Amount": tt.amount}
			_, skip := Normalize(row, basicMapping, 0)
			assert.Equal(t, tt.want, skip)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"45000", "45000"},
		{"-120", "-120"},
		{"+7", "7"},
		{"฿1,234.50", "1234.5"},
		{"£ 12.00", "12"},
		{"€1 000.10", "1000.1"},
		{"USD 10", "10"},
		{"10.50 EUR", "10.5"},
		{"(120.00)", "-120"},
		{"120-", "-120"},
		{"−45", "-45"},
		{"1 250", "1250"},
		{".5", "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}

	for _, bad := range []string{"abc", "1.2.3", "--", "1-2", "12abc34", "1e3", "Ref 7 59.00", "usd 10"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2026-01-15", "2026-01-15"},
		{"2026/1/5", "2026-01-05"},
		{"17/02/2026", "2026-02-17"},
		{"01-12-2025", "2025-12-01"},
		{"5.3.2026", "2026-03-05"},
		{"2026-01-15 08:30:00", "2026-01-15"},
		{"2026-01-15T08:30:00Z", "2026-01-15"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	for _, bad := range []string{"", "15/13/2026", "32/01/2026", "26-01-15", "2026-02-30", "Jan 5 2026"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestFingerprint(t *testing.T) {
	tx, skip := Normalize(domain.RawRow{"Date": "2026-03-01", "Description": "7-Eleven", "Amount": "-59"}, basicMapping, 0)
	require.Equal(t, SkipNone, skip)

	assert.Equal(t, Fingerprint(tx, 0), Fingerprint(tx, 0))
	assert.NotEqual(t, Fingerprint(tx, 0), Fingerprint(tx, 1))

	other := tx
	other.Description = "7-Eleven Silom"
	assert.NotEqual(t, Fingerprint(tx, 0), Fingerprint(other, 0))

	refund := tx
	refund.Type = tx.Type.Opposite()
	assert.NotEqual(t, Fingerprint(tx, 0), Fingerprint(refund, 0), "type is part of the key")
}
