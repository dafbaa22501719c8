package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID string
}

func TestTimeCursorRoundTrip(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 30, 0, 123, time.UTC)
	token := EncodeTimeCursor("42", at)

	createdAt, id, err := DecodeTimeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.True(t, at.Equal(createdAt))
}

func TestDecodeTimeCursorRejectsGarbage(t *testing.T) {
	_, _, err := DecodeTimeCursor("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestBuildCursorPageInfo(t *testing.T) {
	items := []*row{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	info := BuildCursorPageInfo(items, 2, func(r *row) string { return r.ID })
	assert.True(t, info.HasMore)
	assert.Equal(t, "2", info.NextPageToken)

	info = BuildCursorPageInfo(items, 5, func(r *row) string { return r.ID })
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestPageSizeClamp(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Size())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Size())
}
