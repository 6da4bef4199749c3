package csvimport

import (
	"strconv"
	"strings"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/google/uuid"
)

var fingerprintNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("statement-import/transaction-fingerprint"))

// Fingerprint derives the dedup key of a normalized row. The ordinal keeps
// identical purchases on the same day apart within one file, and re-parsing
// the same file yields the same keys.
func Fingerprint(tx domain.NormalizedTransaction, ordinal int) string {
	name := strings.Join([]string{
		tx.Date.String(),
		tx.Description,
		tx.Amount.String(),
		string(tx.Type),
		strconv.Itoa(ordinal),
	}, "|")
	return uuid.NewSHA1(fingerprintNamespace, []byte(name)).String()
}
