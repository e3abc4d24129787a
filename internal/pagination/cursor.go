package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Cursor is a decoded keyset position: the id and creation timestamp of the
// last item on the previous page.
type Cursor struct {
	LastID    string
	Timestamp time.Time
}

// PageResult is one page of a cursor-paginated listing.
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

// ErrInvalidCursor is returned when a cursor string cannot be decoded.
var ErrInvalidCursor = errors.New("malformed pagination cursor")

// EncodeCursor packs an item id and timestamp into an opaque cursor string.
// An empty id yields an empty cursor.
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := lastID + "|" + timestamp.UTC().Format(time.RFC3339Nano)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor unpacks a cursor produced by EncodeCursor. An empty cursor
// decodes to nil, meaning the first page.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	id, ts, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, ErrInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{
		LastID:    id,
		Timestamp: timestamp,
	}, nil
}

// CreateNextCursor derives the next-page cursor from a full page of items.
// A short or empty page means nothing follows and yields "".
func CreateNextCursor[T any](items []T, limit int, getID func(T) string, getTimestamp func(T) time.Time) string {
	if len(items) == 0 || len(items) < limit {
		return ""
	}
	last := items[len(items)-1]
	return EncodeCursor(getID(last), getTimestamp(last))
}
