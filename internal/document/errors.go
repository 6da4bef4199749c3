package document

import "errors"

var (
	// ErrPasswordRequired signals an encrypted document and no password yet.
	ErrPasswordRequired = errors.New("document is password protected")
	// ErrIncorrectPassword signals that the supplied password did not open the document.
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrUnsupportedType is returned for media types the import flow cannot read.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrTooLarge is returned when a document exceeds the configured size limit.
	ErrTooLarge = errors.New("document too large")
	// ErrUnreadable is returned when no content could be obtained from a document.
	ErrUnreadable = errors.New("document could not be read")
)

// IsPasswordError reports whether err is one of the decryption signals. These
// are a normal branch of the import flow, not failures.
func IsPasswordError(err error) bool {
	return errors.Is(err, ErrPasswordRequired) || errors.Is(err, ErrIncorrectPassword)
}
