package payout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEligibility_AcceptsValidRequest(t *testing.T) {
	f := NewEligibilityFilter(decimal.NewFromInt(1))

	d := f.Evaluate("EQabcdef", decimal.RequireFromString("0.5"))
	assert.True(t, d.Accept)
}

func TestEligibility_RejectsMissingAddress(t *testing.T) {
	f := NewEligibilityFilter(decimal.NewFromInt(1))

	d := f.Evaluate("", decimal.RequireFromString("0.5"))
	assert.False(t, d.Accept)
	assert.True(t, d.Terminal)
}

func TestEligibility_RejectsNonPositiveAmount(t *testing.T) {
	f := NewEligibilityFilter(decimal.NewFromInt(1))

	d := f.Evaluate("EQabcdef", decimal.Zero)
	assert.False(t, d.Accept)
	assert.True(t, d.Terminal)
}

func TestEligibility_RejectsUnknownAddressFormat(t *testing.T) {
	f := NewEligibilityFilter(decimal.NewFromInt(1))

	d := f.Evaluate("XYZbad", decimal.RequireFromString("0.5"))
	assert.False(t, d.Accept)
	assert.True(t, d.Terminal)
	assert.Contains(t, d.Reason, "XYZbad")
}

func TestEligibility_AcceptsBothKnownPrefixes(t *testing.T) {
	f := NewEligibilityFilter(decimal.NewFromInt(1))

	assert.True(t, f.Evaluate("EQabc", decimal.RequireFromString("0.1")).Accept)
	assert.True(t, f.Evaluate("UQabc", decimal.RequireFromString("0.1")).Accept)
}

func TestEligibility_OverCeilingIsSoftReject(t *testing.T) {
	f := NewEligibilityFilter(decimal.NewFromInt(1))

	d := f.Evaluate("EQabcdef", decimal.RequireFromString("1.5"))
	assert.False(t, d.Accept)
	assert.False(t, d.Terminal, "over-ceiling requests stay pending for manual review")
}

func TestEligibility_FirstFailingRuleWins(t *testing.T) {
	f := NewEligibilityFilter(decimal.NewFromInt(1))

	// Bad format and over ceiling: the format rule fires first.
	d := f.Evaluate("XYZbad", decimal.RequireFromString("5"))
	assert.True(t, d.Terminal)
	assert.Contains(t, d.Reason, "does not match an accepted format")
}
