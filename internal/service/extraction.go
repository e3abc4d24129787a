package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/extract"
)

const (
	// extractionMaxAttempts bounds retries for a transient extraction failure
	// before the document is skipped.
	extractionMaxAttempts = 3
	extractionBackoffBase = 500 * time.Millisecond
)

// ObjectFetcher fetches raw document bytes from object storage.
type ObjectFetcher interface {
	FetchObject(ctx context.Context, key string) ([]byte, error)
}

// TextExtractor turns raw document bytes into plain text.
type TextExtractor interface {
	Extract(filename, mimeType string, data []byte) (string, error)
}

// ExtractionService fetches a document's bytes and extracts plain text, with
// bounded retries and backoff on transient failures.
type ExtractionService struct {
	storage   ObjectFetcher
	extractor TextExtractor
	backoff   time.Duration
}

// NewExtractionService creates a new ExtractionService instance.
func NewExtractionService(storage ObjectFetcher, extractor TextExtractor) *ExtractionService {
	return &ExtractionService{
		storage:   storage,
		extractor: extractor,
		backoff:   extractionBackoffBase,
	}
}

// permanentExtractionErr reports failures no retry can recover: the stored
// bytes themselves are unreadable.
func permanentExtractionErr(err error) bool {
	return errors.Is(err, extract.ErrUnsupportedFormat) || errors.Is(err, extract.ErrInvalidEncoding)
}

// ExtractDocument returns the plain text of one document. Empty text is a
// degenerate success (the document contributes zero chunks), not an error.
// Permanent failures (unsupported format, malformed text) fail immediately;
// the retry budget covers transient fetch and parse failures only. In both
// cases the error carries the extraction code so callers can skip the
// document and continue the build.
func (s *ExtractionService) ExtractDocument(ctx context.Context, doc *domain.Document) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= extractionMaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.backoff * time.Duration(1<<(attempt-2))):
			}
		}

		data, err := s.storage.FetchObject(ctx, doc.StorageKey)
		if err != nil {
			lastErr = err
			log.Printf("extraction: fetch failed for document %s (attempt %d/%d): %v",
				doc.ID, attempt, extractionMaxAttempts, err)
			continue
		}

		text, err := s.extractor.Extract(doc.Name, doc.MimeType, data)
		if err != nil {
			if permanentExtractionErr(err) {
				log.Printf("extraction: document %s unreadable, not retrying: %v", doc.ID, err)
				return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtraction,
					fmt.Sprintf("document %s unreadable", doc.ID), err)
			}
			lastErr = err
			log.Printf("extraction: extract failed for document %s (attempt %d/%d): %v",
				doc.ID, attempt, extractionMaxAttempts, err)
			continue
		}

		return strings.TrimSpace(text), nil
	}

	return "", domain.NewDomainErrorWithCause(domain.ErrCodeExtraction,
		fmt.Sprintf("document %s unreadable after %d attempts", doc.ID, extractionMaxAttempts), lastErr)
}
