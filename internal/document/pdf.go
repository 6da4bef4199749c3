package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// openPDF opens PDF bytes. Documents encrypted with a non-empty user password
// need password; the library is asked exactly once so a wrong password is
// reported instead of retried.
func openPDF(data []byte, password string) (r *pdf.Reader, encrypted bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: pdf library crashed: %v", ErrUnreadable, rec)
		}
	}()

	src := bytes.NewReader(data)
	size := int64(len(data))

	r, err = pdf.NewReader(src, size)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, pdf.ErrInvalidPassword) {
		return nil, false, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if password == "" {
		return nil, true, ErrPasswordRequired
	}

	asked := false
	r, err = pdf.NewReaderEncrypted(src, size, func() string {
		if asked {
			return ""
		}
		asked = true
		return password
	})
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, true, ErrIncorrectPassword
		}
		return nil, true, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return r, true, nil
}

// pdfText extracts text row by row, page by page.
func pdfText(r *pdf.Reader) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: pdf library crashed: %v", ErrUnreadable, rec)
		}
	}()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}

		var lines []string
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, w := range row.Content {
				words = append(words, w.S)
			}
			if line := strings.TrimSpace(strings.Join(words, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}

	return strings.TrimSpace(strings.Join(pages, "\n\n")), nil
}
