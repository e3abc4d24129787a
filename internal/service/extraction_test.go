package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/extract"
)

// MockObjectFetcher is a mock implementation of ObjectFetcher
type MockObjectFetcher struct {
	mock.Mock
}

func (m *MockObjectFetcher) FetchObject(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockTextExtractor is a mock implementation of TextExtractor
type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) Extract(filename, mimeType string, data []byte) (string, error) {
	args := m.Called(filename, mimeType, data)
	return args.String(0), args.Error(1)
}

func extractionDoc() *domain.Document {
	return &domain.Document{
		ID:         "doc-1",
		Name:       "report.pdf",
		MimeType:   "application/pdf",
		StorageKey: "proj/doc-1/report.pdf",
	}
}

func newTestExtractionService(storage ObjectFetcher, extractor TextExtractor) *ExtractionService {
	svc := NewExtractionService(storage, extractor)
	svc.backoff = time.Millisecond
	return svc
}

func TestExtractDocument_Success(t *testing.T) {
	storage := new(MockObjectFetcher)
	extractor := new(MockTextExtractor)
	svc := newTestExtractionService(storage, extractor)

	doc := extractionDoc()
	data := []byte("%PDF-1.4 ...")
	storage.On("FetchObject", mock.Anything, doc.StorageKey).Return(data, nil)
	extractor.On("Extract", doc.Name, doc.MimeType, data).Return("  extracted text  ", nil)

	text, err := svc.ExtractDocument(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, "extracted text", text)
	storage.AssertExpectations(t)
	extractor.AssertExpectations(t)
}

func TestExtractDocument_EmptyTextIsNotAnError(t *testing.T) {
	storage := new(MockObjectFetcher)
	extractor := new(MockTextExtractor)
	svc := newTestExtractionService(storage, extractor)

	doc := extractionDoc()
	storage.On("FetchObject", mock.Anything, doc.StorageKey).Return([]byte("x"), nil)
	extractor.On("Extract", doc.Name, doc.MimeType, mock.Anything).Return("", nil)

	text, err := svc.ExtractDocument(context.Background(), doc)

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractDocument_RetriesTransientFetchFailure(t *testing.T) {
	storage := new(MockObjectFetcher)
	extractor := new(MockTextExtractor)
	svc := newTestExtractionService(storage, extractor)

	doc := extractionDoc()
	storage.On("FetchObject", mock.Anything, doc.StorageKey).Return(nil, errors.New("connection reset")).Once()
	storage.On("FetchObject", mock.Anything, doc.StorageKey).Return([]byte("x"), nil).Once()
	extractor.On("Extract", doc.Name, doc.MimeType, mock.Anything).Return("recovered", nil)

	text, err := svc.ExtractDocument(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	storage.AssertExpectations(t)
}

func TestExtractDocument_ExhaustedRetriesReturnExtractionError(t *testing.T) {
	storage := new(MockObjectFetcher)
	extractor := new(MockTextExtractor)
	svc := newTestExtractionService(storage, extractor)

	doc := extractionDoc()
	parseErr := errors.New("corrupt file")
	storage.On("FetchObject", mock.Anything, doc.StorageKey).Return([]byte("x"), nil)
	extractor.On("Extract", doc.Name, doc.MimeType, mock.Anything).Return("", parseErr).Times(3)

	_, err := svc.ExtractDocument(context.Background(), doc)

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeExtraction, domainErr.Code)
	assert.ErrorIs(t, err, parseErr)
	extractor.AssertExpectations(t)
}

func TestExtractDocument_UnsupportedFormatFailsWithoutRetry(t *testing.T) {
	storage := new(MockObjectFetcher)
	extractor := new(MockTextExtractor)
	svc := newTestExtractionService(storage, extractor)

	doc := extractionDoc()
	storage.On("FetchObject", mock.Anything, doc.StorageKey).Return([]byte("x"), nil).Once()
	extractor.On("Extract", doc.Name, doc.MimeType, mock.Anything).
		Return("", fmt.Errorf("%w: .xyz", extract.ErrUnsupportedFormat)).Once()

	_, err := svc.ExtractDocument(context.Background(), doc)

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeExtraction, domainErr.Code)
	assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)
	storage.AssertExpectations(t)
	extractor.AssertExpectations(t)
}

func TestExtractDocument_InvalidEncodingFailsWithoutRetry(t *testing.T) {
	storage := new(MockObjectFetcher)
	extractor := new(MockTextExtractor)
	svc := newTestExtractionService(storage, extractor)

	doc := extractionDoc()
	storage.On("FetchObject", mock.Anything, doc.StorageKey).Return([]byte{0xff}, nil).Once()
	extractor.On("Extract", doc.Name, doc.MimeType, mock.Anything).
		Return("", extract.ErrInvalidEncoding).Once()

	_, err := svc.ExtractDocument(context.Background(), doc)

	assert.ErrorIs(t, err, extract.ErrInvalidEncoding)
	extractor.AssertNumberOfCalls(t, "Extract", 1)
}

func TestExtractDocument_ContextCancelledDuringBackoff(t *testing.T) {
	storage := new(MockObjectFetcher)
	extractor := new(MockTextExtractor)
	svc := NewExtractionService(storage, extractor) // real backoff

	doc := extractionDoc()
	storage.On("FetchObject", mock.Anything, doc.StorageKey).Return(nil, errors.New("down"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ExtractDocument(ctx, doc)

	assert.ErrorIs(t, err, context.Canceled)
}
