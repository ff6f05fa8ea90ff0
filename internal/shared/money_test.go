package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 3.33, Round2(10.0/3.0))
	assert.Equal(t, 0.13, Round2(0.125))
	assert.Equal(t, -0.13, Round2(-0.125))
	assert.Equal(t, 100.0, Round2(99.999))
}

func TestEqualAmountMinorUnitTolerance(t *testing.T) {
	assert.True(t, EqualAmount(100.00, 100.004))
	assert.True(t, EqualAmount(100.004, 100.00))
	assert.False(t, EqualAmount(100.00, 100.01))
	assert.False(t, EqualAmount(100.00, 99.98))
}

func TestFormatAmountIndianGrouping(t *testing.T) {
	assert.Equal(t, "1,00,000.00", FormatAmount(100000))
	assert.Equal(t, "12,34,567.89", FormatAmount(1234567.89))
	assert.Equal(t, "999.50", FormatAmount(999.5))
}
