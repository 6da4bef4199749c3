package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-import/internal/document"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/logger"
)

var (
	// ErrMalformedResponse means the service output could not be read as a JSON array.
	ErrMalformedResponse = errors.New("malformed extraction response")
	// ErrNoTransactions means the response parsed but no candidate survived validation.
	ErrNoTransactions = errors.New("no transactions found")
	// ErrServiceFailed wraps transport, quota and timeout failures of the service.
	ErrServiceFailed = errors.New("extraction service failed")
)

// Request is one extraction call. When Text is set it is sent instead of Data.
// PasswordHint is consumed by the reading stage and never forwarded to the
// model.
type Request struct {
	FileName     string
	Data         []byte
	MediaType    string
	Text         string
	PasswordHint string
}

// RequestFromDocument builds a request from a read document.
func RequestFromDocument(doc *document.Document, password string) Request {
	return Request{
		FileName:     doc.Name,
		Data:         doc.Data,
		MediaType:    doc.MediaType,
		Text:         doc.Text,
		PasswordHint: password,
	}
}

// Service turns a document into raw model output.
type Service interface {
	Extract(ctx context.Context, req Request) (string, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, req Request) (string, error)

// Extract calls f.
func (f ServiceFunc) Extract(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Extractor runs a Service once and interprets its output.
type Extractor struct {
	service Service
}

// NewExtractor wraps service.
func NewExtractor(service Service) *Extractor {
	return &Extractor{service: service}
}

// Run calls the service exactly once and returns validated candidates.
// Password signals pass through unchanged; every other service error is
// reported as ErrServiceFailed, never as an empty result.
func (e *Extractor) Run(ctx context.Context, req Request) ([]domain.CandidateTransaction, error) {
	log := logger.FromContext(ctx)

	raw, err := e.service.Extract(ctx, req)
	if err != nil {
		if document.IsPasswordError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrServiceFailed, err)
	}

	candidates, dropped, err := Interpret(raw)
	if err != nil {
		log.Warn().
			Err(err).
			Str("file", req.FileName).
			Int("dropped", dropped).
			Msg("Extraction produced no usable transactions")
		return nil, err
	}

	log.Info().
		Str("file", req.FileName).
		Int("candidates", len(candidates)).
		Int("dropped", dropped).
		Str("prompt_version", PromptVersion).
		Msg("Extraction completed")

	return candidates, nil
}

// UserMessage maps a failure of the extraction stage to actionable text.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, document.ErrIncorrectPassword):
		return "incorrect password"
	case errors.Is(err, document.ErrPasswordRequired):
		return "this document is password protected"
	case errors.Is(err, ErrNoTransactions):
		return "no transactions found in this document"
	case errors.Is(err, ErrMalformedResponse):
		return "could not extract transactions, try a clearer document"
	case errors.Is(err, context.DeadlineExceeded):
		return "extraction timed out, try again"
	default:
		return "extraction failed, try again or use a clearer document"
	}
}
