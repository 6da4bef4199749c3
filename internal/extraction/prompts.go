package extraction

import "strings"

// PromptVersion identifies the prompt/response contract. Bump it whenever
// the instructions or the expected output shape change.
const PromptVersion = "v2"

// passwordRequiredMarker is what the model is told to return for documents
// it cannot open because they are encrypted.
const passwordRequiredMarker = "password_required"

// BuildPrompt constructs the extraction instructions for one request.
func BuildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You are a financial statement parser.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Find EVERY transaction in the attached ")
	switch {
	case req.Text != "":
		b.WriteString("statement text.\n")
	case strings.HasPrefix(req.MediaType, "image/"):
		b.WriteString("statement image.\n")
	default:
		b.WriteString("statement document.\n")
	}
	b.WriteString("- Output STRICT JSON only: a JSON array of objects, no comments, no trailing commas, no prose.\n\n")

	b.WriteString("Each object must have exactly these fields:\n")
	b.WriteString("- \"date\": string, ISO format \"YYYY-MM-DD\"\n")
	b.WriteString("- \"time\": string, 24-hour \"HH:mm\", or \"\" when the statement shows no time\n")
	b.WriteString("- \"description\": string. When a row has both a generic label (e.g. \"Card payment\", \"Transfer\") and a\n")
	b.WriteString("  specific one (merchant, payee, memo), use the specific one\n")
	b.WriteString("- \"amount\": number, always positive, no currency symbols, no thousands separators\n")
	b.WriteString("- \"type\": \"income\" for money received, \"expense\" for money spent; use \"expense\" when unsure\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Skip opening/closing balances, subtotals and summary lines.\n")
	b.WriteString("- If the statement has separate \"paid in\" / \"paid out\" columns, use them to decide \"type\".\n")
	b.WriteString("- If a date has no year, infer it from the statement period.\n")
	b.WriteString("- If there are no transactions, return [].\n")
	b.WriteString("- If the document is encrypted and cannot be read without a password, return exactly {\"error\":\"" +
		passwordRequiredMarker + "\"}.\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")

	if req.Text != "" {
		b.WriteString("\nStatement text:\n")
	}
	return b.String()
}
