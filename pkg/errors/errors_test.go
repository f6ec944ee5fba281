package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrapeErrorFormatting(t *testing.T) {
	err := Value("cityhall_bids", "unparsable session date", fmt.Errorf("bad input"))
	assert.Contains(t, err.Error(), "[value]")
	assert.Contains(t, err.Error(), "cityhall_bids")
	assert.Contains(t, err.Error(), "bad input")

	shape := Shape("cityhall_payments", "odd label sequence")
	assert.Contains(t, shape.Error(), "[shape]")
	assert.NotContains(t, shape.Error(), "<nil>")
}

func TestUnwrap(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := Network("cityhall_contracts", "fetch failed", inner)
	assert.Equal(t, inner, err.Unwrap())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, Network("s", "m", nil).IsRetryable())
	assert.False(t, Shape("s", "m").IsRetryable())
	assert.False(t, Fatal("s", "m", nil).IsRetryable())
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(Fatal("cityhall_bids", "malformed dt token", nil)))
	assert.True(t, IsFatal(fmt.Errorf("wrapped: %w", Fatal("s", "m", nil))))
	assert.False(t, IsFatal(Shape("s", "m")))
	assert.False(t, IsFatal(fmt.Errorf("plain")))
}
