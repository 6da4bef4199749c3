package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGCS struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

func (m *mockGCS) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return m.FetchFromGCSFunc(ctx, gcsURI)
}

func TestRead_LocalCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date,Description,Amount\n2026-01-15,Salary,45000\n"), 0o600))

	doc, err := NewReader(nil).Read(context.Background(), FileHandle{URI: path}, "")

	require.NoError(t, err)
	assert.Equal(t, "export.csv", doc.Name)
	assert.Equal(t, MediaCSV, doc.MediaType)
	assert.Contains(t, doc.Text, "Salary")
}

func TestRead_InvalidUTF8IsRepaired(t *testing.T) {
	fh := FileHandle{Name: "x.csv", Data: []byte("Date,Description,Amount\n2026-01-15,Caf\xe9,5\n")}

	doc, err := NewReader(nil).Read(context.Background(), fh, "")

	require.NoError(t, err)
	assert.Contains(t, doc.Text, "Caf\uFFFD")
}

func TestRead_FromGCS(t *testing.T) {
	var gotURI string
	gcs := &mockGCS{FetchFromGCSFunc: func(ctx context.Context, uri string) ([]byte, error) {
		gotURI = uri
		return []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F'}, nil
	}}

	doc, err := NewReader(gcs).Read(context.Background(), FileHandle{URI: "gs://bucket/receipts/scan.jpg"}, "")

	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/receipts/scan.jpg", gotURI)
	assert.Equal(t, "scan.jpg", doc.Name)
	assert.Equal(t, MediaJPEG, doc.MediaType)
	assert.NotEmpty(t, doc.Data)
	assert.Empty(t, doc.Text)
}

func TestRead_GCSWithoutClient(t *testing.T) {
	_, err := NewReader(nil).Read(context.Background(), FileHandle{URI: "gs://bucket/a.pdf"}, "")
	assert.Error(t, err)
}

func TestRead_GCSFailurePropagates(t *testing.T) {
	boom := errors.New("permission denied")
	gcs := &mockGCS{FetchFromGCSFunc: func(ctx context.Context, uri string) ([]byte, error) {
		return nil, boom
	}}

	_, err := NewReader(gcs).Read(context.Background(), FileHandle{URI: "gs://bucket/a.pdf"}, "")

	assert.ErrorIs(t, err, boom)
	assert.False(t, IsPasswordError(err))
}

func TestRead_Rejections(t *testing.T) {
	r := NewReader(nil)
	r.MaxBytes = 8

	_, err := r.Read(context.Background(), FileHandle{Name: "a.csv", Data: []byte("0123456789")}, "")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = r.Read(context.Background(), FileHandle{Name: "a.csv", Data: []byte{}}, "")
	assert.ErrorIs(t, err, ErrUnreadable)

	_, err = r.Read(context.Background(), FileHandle{Name: "a.zip", Data: []byte("PK\x03\x04")}, "")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = r.Read(context.Background(), FileHandle{}, "")
	assert.Error(t, err)
}

func TestRead_UnparseablePDFStillGoesToExtraction(t *testing.T) {
	fh := FileHandle{Name: "statement.pdf", Data: []byte("%PDF-1.4\nnot really a pdf")}

	doc, err := NewReader(nil).Read(context.Background(), fh, "")

	require.NoError(t, err)
	assert.Equal(t, MediaPDF, doc.MediaType)
	assert.False(t, doc.Encrypted)
	assert.Equal(t, fh.Data, doc.Data)
}

func TestOpenPDF_Garbage(t *testing.T) {
	_, encrypted, err := openPDF([]byte("garbage"), "")
	assert.ErrorIs(t, err, ErrUnreadable)
	assert.False(t, encrypted)
}

func TestIsPasswordError(t *testing.T) {
	assert.True(t, IsPasswordError(ErrPasswordRequired))
	assert.True(t, IsPasswordError(errors.Join(errors.New("read"), ErrIncorrectPassword)))
	assert.False(t, IsPasswordError(ErrUnreadable))
	assert.False(t, IsPasswordError(nil))
}

func TestDetectMediaType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"a.CSV", nil, MediaCSV},
		{"a.pdf", nil, MediaPDF},
		{"photo.JPEG", nil, MediaJPEG},
		{"upload", []byte("%PDF-1.7\n"), MediaPDF},
		{"upload", []byte("\x89PNG\r\n\x1a\n"), MediaPNG},
		{"upload", []byte("Date,Description,Amount\n"), MediaCSV},
		{"upload", []byte("hello world"), "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMediaType(tt.name, tt.data))
		})
	}
}
