package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// Document is what the analyzer needs from a PDF.
type Document struct {
	Pages     int
	Text      string
	Encrypted bool
	Header    string
}

// Extract reads PDF bytes with ledongthuc/pdf and returns the page count and
// the concatenated plain text. Pages whose text cannot be extracted are
// skipped; scanned PDFs often have none. Encrypted files that cannot be opened
// with an empty password come back with Encrypted set and no text.
func Extract(data []byte) (*Document, error) {
	out := &Document{Header: header(data)}
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			out.Encrypted = true
			return out, nil
		}
		return nil, fmt.Errorf("new pdf reader: %w", err)
	}
	out.Encrypted = !doc.Trailer().Key("Encrypt").IsNull()
	out.Pages = doc.NumPage()

	var builder strings.Builder
	for page := 1; page <= out.Pages; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	out.Text = builder.String()
	return out, nil
}

func header(data []byte) string {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return ""
	}
	line := data
	if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	if len(line) > 16 {
		line = line[:16]
	}
	return string(line)
}
