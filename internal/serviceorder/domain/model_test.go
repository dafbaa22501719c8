package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderNumberFormat(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 30, 0, 0, time.FixedZone("WIB", 7*3600))
	prefix := DayPrefix(at)
	assert.Equal(t, "ORD-20241231", prefix)
	assert.Equal(t, "ORD-20241231-007", FormatOrderNumber(prefix, 7))
	assert.Equal(t, "ORD-20241231-1234", FormatOrderNumber(prefix, 1234))
}
