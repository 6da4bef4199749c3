package extraction

import (
	"strings"
	"testing"

	"github.com/dvloznov/statement-import/internal/document"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain array", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n[]\n```", `[]`},
		{"single line fence", "```json[{\"a\":1}]```", `[{"a":1}]`},
		{"single line fence without array", "```{\"error\":\"x\"}```", `{"error":"x"}`},
		{"prose then fence", "Here are the transactions I found.\n```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"prose around", "Sure! [1, 2] Hope this helps.", `[1, 2]`},
		{"no array", `{"error":"password_required"}`, `{"error":"password_required"}`},
		{"whitespace", "  \n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.raw))
		})
	}
}

func TestInterpret_FencedWithProse(t *testing.T) {
	raw := "I extracted the following transactions from the statement.\n" +
		"```json\n" +
		`[
  {"date":"2026-01-15","time":"09:41","description":"Salary ACME","amount":45000,"type":"income"},
  {"date":"2026-01-16","time":"","description":"Starbucks Siam","amount":"120.50","type":"expense"}
]` + "\n```"

	got, dropped, err := Interpret(raw)

	require.NoError(t, err)
	assert.Zero(t, dropped)
	require.Len(t, got, 2)

	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Equal(t, "2026-01-15", got[0].Date.String())
	assert.Equal(t, "09:41", got[0].Time)
	assert.Equal(t, domain.Income, got[0].Type)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("45000")))
	assert.Empty(t, got[0].ReferenceID)

	assert.Equal(t, "", got[1].Time)
	assert.Equal(t, domain.Expense, got[1].Type)
	assert.True(t, got[1].Amount.Equal(decimal.RequireFromString("120.5")))
}

func TestInterpret_DropsInvalidCandidates(t *testing.T) {
	raw := `[
  {"date":"2026-01-15","description":"ok","amount":10,"type":"expense"},
  {"date":"","description":"no date","amount":10,"type":"expense"},
  {"date":"15/01/2026","description":"wrong date format","amount":10,"type":"expense"},
  {"date":"2026-01-15","description":"  ","amount":10,"type":"expense"},
  {"date":"2026-01-15","description":"text amount","amount":"ten","type":"expense"},
  {"date":"2026-01-15","description":"unknown type","amount":10,"type":"transfer"},
  {"date":"2026-01-15","description":"missing type defaults","amount":-7},
  {"date":"2026-01-15","description":"bad time","amount":3,"type":"income","time":"25:99"},
  "not an object"
]`

	got, dropped, err := Interpret(raw)

	require.NoError(t, err)
	assert.Equal(t, 6, dropped)
	require.Len(t, got, 3)
	assert.Equal(t, "ok", got[0].Description)

	assert.Equal(t, "missing type defaults", got[1].Description)
	assert.Equal(t, domain.Expense, got[1].Type)
	assert.True(t, got[1].Amount.Equal(decimal.NewFromInt(7)))

	assert.Equal(t, "", got[2].Time)
}

func TestInterpret_Failures(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"empty", "", ErrMalformedResponse},
		{"prose only", "I could not find anything useful.", ErrMalformedResponse},
		{"broken json", "[{\"date\": ", ErrMalformedResponse},
		{"empty array", "[]", ErrNoTransactions},
		{"all invalid", `[{"date":"x"}]`, ErrNoTransactions},
		{"password marker", "```json\n{\"error\":\"password_required\"}\n```", document.ErrPasswordRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Interpret(tt.raw)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	textPrompt := BuildPrompt(Request{Text: "01/02 COFFEE 3.50"})
	assert.Contains(t, textPrompt, "statement text")
	assert.True(t, strings.HasSuffix(textPrompt, "Statement text:\n"))

	imagePrompt := BuildPrompt(Request{MediaType: "image/png", PasswordHint: "secret"})
	assert.Contains(t, imagePrompt, "statement image")
	assert.NotContains(t, imagePrompt, "secret")
	assert.Contains(t, imagePrompt, passwordRequiredMarker)
}

func TestBuildParts(t *testing.T) {
	parts := buildParts(Request{Text: "rows"})
	require.Len(t, parts, 2)
	assert.Equal(t, "rows", parts[1].Text)

	parts = buildParts(Request{Data: []byte("%PDF"), MediaType: "application/pdf"})
	require.Len(t, parts, 2)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "application/pdf", parts[1].InlineData.MIMEType)
}
