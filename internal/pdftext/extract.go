// Package pdftext pulls the text layer out of PDF documents.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ledongthuc/pdf"
)

// Signature is the prefix every PDF document starts with.
const Signature = "%PDF"

// ErrUnreadable is returned for documents the reader cannot open.
var ErrUnreadable = errors.New("unreadable PDF document")

// IsPDF reports whether data starts with the PDF signature.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte(Signature))
}

// Extractor returns the concatenated text of every page. Image-only
// documents yield an empty string and no error.
type Extractor interface {
	ExtractText(data []byte) (string, error)
}

// Reader is the Extractor backed by ledongthuc/pdf.
type Reader struct{}

// ExtractText implements Extractor. Pages are joined with a newline.
func (Reader) ExtractText(data []byte) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errors.Mark(errors.Newf("parse PDF: %v", r), ErrUnreadable)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "open PDF"), ErrUnreadable)
	}

	var builder strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			return "", errors.Mark(errors.Wrap(pageErr, fmt.Sprintf("read page %d", i)), ErrUnreadable)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(content)
	}

	return builder.String(), nil
}
