package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/statement-import/internal/logger"
)

// DefaultMaxBytes bounds documents sent inline to the extraction service.
const DefaultMaxBytes = 20 << 20

// FileHandle identifies the file selected for an import. Data, when set,
// holds the uploaded bytes and URI is ignored.
type FileHandle struct {
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
	Data []byte `json:"-"`
}

// Document is the result of the reading stage.
type Document struct {
	Name      string
	MediaType string
	// Data is the raw document, sent to the extraction service when Text is empty.
	Data []byte
	// Text holds CSV content, or text recovered from an encrypted PDF.
	Text      string
	Encrypted bool
}

// GCSFetcher downloads gs:// objects.
type GCSFetcher interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// Reader loads selected files and prepares them for extraction.
type Reader struct {
	GCS      GCSFetcher
	MaxBytes int64
}

// NewReader creates a reader. gcs may be nil when only local files are used.
func NewReader(gcs GCSFetcher) *Reader {
	return &Reader{GCS: gcs, MaxBytes: DefaultMaxBytes}
}

// Read fetches the file, detects its media type and, for PDFs, checks for
// encryption. Password problems come back as ErrPasswordRequired or
// ErrIncorrectPassword.
func (r *Reader) Read(ctx context.Context, fh FileHandle, password string) (*Document, error) {
	log := logger.FromContext(ctx)

	data, err := r.fetch(ctx, fh)
	if err != nil {
		return nil, err
	}
	if r.MaxBytes > 0 && int64(len(data)) > r.MaxBytes {
		return nil, fmt.Errorf("Read: %d bytes: %w", len(data), ErrTooLarge)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("Read: empty file: %w", ErrUnreadable)
	}

	name := fh.Name
	if name == "" {
		name = filepath.Base(fh.URI)
	}
	doc := &Document{Name: name, MediaType: DetectMediaType(name, data), Data: data}

	log.Debug().
		Str("file", name).
		Str("media_type", doc.MediaType).
		Int("bytes", len(data)).
		Msg("Document fetched")

	switch {
	case doc.MediaType == MediaCSV:
		text := string(data)
		if !utf8.ValidString(text) {
			text = strings.ToValidUTF8(text, "\uFFFD")
		}
		doc.Text = text
		return doc, nil

	case doc.MediaType == MediaPDF:
		pr, encrypted, err := openPDF(data, password)
		doc.Encrypted = encrypted
		if IsPasswordError(err) {
			return nil, err
		}
		if err != nil {
			// Unencrypted PDFs the library cannot parse still go to the
			// extraction service as raw bytes.
			log.Warn().Err(err).Str("file", name).Msg("PDF text layer unavailable")
			return doc, nil
		}
		if !encrypted {
			return doc, nil
		}
		text, err := pdfText(pr)
		if err != nil {
			return nil, fmt.Errorf("Read: %w", err)
		}
		if text == "" {
			return nil, fmt.Errorf("Read: encrypted PDF has no text layer: %w", ErrUnreadable)
		}
		doc.Text = text
		doc.Data = nil
		return doc, nil

	case IsImage(doc.MediaType):
		return doc, nil
	}

	return nil, fmt.Errorf("Read: %s: %w", doc.MediaType, ErrUnsupportedType)
}

func (r *Reader) fetch(ctx context.Context, fh FileHandle) ([]byte, error) {
	if fh.Data != nil {
		return fh.Data, nil
	}
	if fh.URI == "" {
		return nil, errors.New("Read: no file selected")
	}

	if strings.HasPrefix(fh.URI, "gs://") {
		if r.GCS == nil {
			return nil, fmt.Errorf("Read: %s: cloud storage not configured", fh.URI)
		}
		data, err := r.GCS.FetchFromGCS(ctx, fh.URI)
		if err != nil {
			return nil, fmt.Errorf("Read: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(strings.TrimPrefix(fh.URI, "file://"))
	if err != nil {
		return nil, fmt.Errorf("Read: %w", err)
	}
	return data, nil
}
