package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/document"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/shopspring/decimal"
)

var clockTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Interpret sanitizes raw model output and validates every candidate.
// Candidates failing validation are dropped and counted in dropped. A payload
// that is not a JSON array is ErrMalformedResponse; an array with no valid
// candidate is ErrNoTransactions.
func Interpret(raw string) (candidates []domain.CandidateTransaction, dropped int, err error) {
	clean := Sanitize(raw)
	if clean == "" {
		return nil, 0, fmt.Errorf("Interpret: empty response: %w", ErrMalformedResponse)
	}

	var items []interface{}
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		if isPasswordMarker(clean) {
			return nil, 0, fmt.Errorf("Interpret: %w", document.ErrPasswordRequired)
		}
		return nil, 0, fmt.Errorf("Interpret: unmarshal: %v: %w", err, ErrMalformedResponse)
	}

	candidates = make([]domain.CandidateTransaction, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			dropped++
			continue
		}
		c, ok := candidateFromObject(obj)
		if !ok {
			dropped++
			continue
		}
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		return nil, dropped, fmt.Errorf("Interpret: %d items, none valid: %w", len(items), ErrNoTransactions)
	}
	return candidates, dropped, nil
}

func candidateFromObject(obj map[string]interface{}) (domain.CandidateTransaction, bool) {
	dateStr, ok := getStringField(obj, "date")
	if !ok {
		return domain.CandidateTransaction{}, false
	}
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return domain.CandidateTransaction{}, false
	}

	desc, ok := getStringField(obj, "description")
	if !ok {
		return domain.CandidateTransaction{}, false
	}

	amount, ok := getDecimalField(obj, "amount")
	if !ok || amount.IsZero() {
		return domain.CandidateTransaction{}, false
	}

	txType := domain.Expense
	if rawType, present := obj["type"]; present && rawType != nil {
		s, isString := rawType.(string)
		if !isString {
			return domain.CandidateTransaction{}, false
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "income":
			txType = domain.Income
		case "expense", "":
			txType = domain.Expense
		default:
			return domain.CandidateTransaction{}, false
		}
	}

	clock, _ := getStringField(obj, "time")
	if !clockTime.MatchString(clock) {
		clock = ""
	}

	return domain.CandidateTransaction{
		ID:          domain.NewCandidateID(),
		Date:        civil.DateOf(t),
		Time:        clock,
		Description: desc,
		Amount:      amount.Abs(),
		Type:        txType,
	}, true
}

// getStringField returns a trimmed, non-empty string value.
func getStringField(m map[string]interface{}, key string) (string, bool) {
	s, ok := m[key].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// getDecimalField accepts JSON numbers and numeric strings.
func getDecimalField(m map[string]interface{}, key string) (decimal.Decimal, bool) {
	switch v := m[key].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func isPasswordMarker(s string) bool {
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return false
	}
	return obj.Error == passwordRequiredMarker
}
