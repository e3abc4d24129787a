package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 5, 14, 9, 30, 0, 123456789, time.UTC)

	encoded := EncodeCursor("item-42", ts)
	require.NotEmpty(t, encoded)

	cursor, err := DecodeCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, "item-42", cursor.LastID)
	assert.True(t, cursor.Timestamp.Equal(ts))
}

func TestEncodeCursor_EmptyID(t *testing.T) {
	assert.Empty(t, EncodeCursor("", time.Now()))
}

func TestDecodeCursor_Empty(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "not-base64!!"},
		{"missing separator", "aXRlbS00Mg=="},                 // "item-42"
		{"bad timestamp", "aXRlbS00Mnxub3QtYS10aW1lc3RhbXA="}, // "item-42|not-a-timestamp"
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.cursor)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

func TestCreateNextCursor(t *testing.T) {
	type item struct {
		id string
		ts time.Time
	}
	getID := func(i item) string { return i.id }
	getTS := func(i item) time.Time { return i.ts }
	ts := time.Date(2026, 5, 14, 9, 30, 0, 0, time.UTC)

	t.Run("full page yields cursor for last item", func(t *testing.T) {
		items := []item{{"a", ts}, {"b", ts.Add(time.Minute)}}
		got := CreateNextCursor(items, 2, getID, getTS)
		assert.Equal(t, EncodeCursor("b", ts.Add(time.Minute)), got)
	})

	t.Run("short page yields no cursor", func(t *testing.T) {
		items := []item{{"a", ts}}
		assert.Empty(t, CreateNextCursor(items, 2, getID, getTS))
	})

	t.Run("empty page yields no cursor", func(t *testing.T) {
		assert.Empty(t, CreateNextCursor(nil, 2, getID, getTS))
	})
}
