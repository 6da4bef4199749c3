package document

import (
	"net/http"
	"path/filepath"
	"strings"
)

// Media types the reader understands.
const (
	MediaCSV  = "text/csv"
	MediaPDF  = "application/pdf"
	MediaPNG  = "image/png"
	MediaJPEG = "image/jpeg"
	MediaWEBP = "image/webp"
	MediaHEIC = "image/heic"
)

var extMediaTypes = map[string]string{
	".csv":  MediaCSV,
	".pdf":  MediaPDF,
	".png":  MediaPNG,
	".jpg":  MediaJPEG,
	".jpeg": MediaJPEG,
	".webp": MediaWEBP,
	".heic": MediaHEIC,
}

// DetectMediaType decides the media type from the file extension, falling
// back to content sniffing.
func DetectMediaType(name string, data []byte) string {
	if mt, ok := extMediaTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}

	sniffed := http.DetectContentType(data)
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	if sniffed == "text/plain" && looksLikeCSV(data) {
		return MediaCSV
	}
	return sniffed
}

// Supported reports whether mediaType can go through the import flow.
func Supported(mediaType string) bool {
	switch mediaType {
	case MediaCSV, MediaPDF, MediaPNG, MediaJPEG, MediaWEBP, MediaHEIC:
		return true
	}
	return false
}

// IsImage reports whether mediaType is one of the supported image formats.
func IsImage(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/") && Supported(mediaType)
}

func looksLikeCSV(data []byte) bool {
	head := string(data)
	if i := strings.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	return strings.Count(head, ",") >= 2
}
