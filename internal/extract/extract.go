// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

// defaultPageTimeout bounds extraction of a single PDF page. Malformed pages
// can send the parser into unbounded work.
const defaultPageTimeout = 10 * time.Second

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrInvalidEncoding marks plaintext documents that are not valid UTF-8.
	ErrInvalidEncoding = errors.New("document text is not valid UTF-8")
)

// Extractor dispatches on mime type (falling back to file extension) and
// extracts plain text from PDF, docx, odt, rtf, and plaintext documents.
type Extractor struct {
	pageTimeout time.Duration
}

// New creates an Extractor with default limits.
func New() *Extractor {
	return &Extractor{pageTimeout: defaultPageTimeout}
}

// Extract returns the plain text content of a document.
func (e *Extractor) Extract(filename, mimeType string, data []byte) (string, error) {
	switch kind(filename, mimeType) {
	case "pdf":
		return e.extractPDF(data)
	case "office":
		text, err := cat.FromBytes(data)
		if err != nil {
			return "", fmt.Errorf("failed to extract document text: %w", err)
		}
		return text, nil
	case "text":
		return decodePlainText(data)
	default:
		return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, filepath.Ext(filename), mimeType)
	}
}

func kind(filename, mimeType string) string {
	mt := strings.ToLower(mimeType)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch mt {
	case "application/pdf":
		return "pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.oasis.opendocument.text",
		"application/rtf", "text/rtf":
		return "office"
	case "text/plain", "text/markdown", "text/csv", "application/json":
		return "text"
	}
	if strings.HasPrefix(mt, "text/") {
		return "text"
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".docx", ".odt", ".rtf":
		return "office"
	case ".txt", ".md", ".csv", ".json":
		return "text"
	}
	return ""
}

// extractPDF walks every page, skipping null or unparseable pages so one bad
// page never loses the rest of the document.
func (e *Extractor) extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := e.extractPage(page)
		if err != nil {
			log.Printf("extract: pdf page %d/%d unparseable, skipping: %v", i, numPages, err)
			continue
		}

		b.WriteString(content)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// extractPage guards a single page extraction with a timeout.
func (e *Extractor) extractPage(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(e.pageTimeout):
		return "", errors.New("page extraction timed out")
	}
}

func decodePlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	return string(data), nil
}
