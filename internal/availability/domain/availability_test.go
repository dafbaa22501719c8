package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-06-01")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, "2024-06-01", FormatDate(got))

	_, err = ParseDate("06/01/2024")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestNightsBetween(t *testing.T) {
	in := time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)
	out := time.Date(2024, 4, 2, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, NightsBetween(in, out))
	assert.Equal(t, 0, NightsBetween(in, in))
	assert.Equal(t, -1, NightsBetween(in, in.AddDate(0, 0, -1)))
}
