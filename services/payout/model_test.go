package payout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusFailed},
		{StatusProcessing, StatusPaid},
		{StatusProcessing, StatusPending},
		{StatusProcessing, StatusFailed},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct{ from, to Status }{
		{StatusPending, StatusPaid},
		{StatusPaid, StatusPending},
		{StatusPaid, StatusProcessing},
		{StatusPaid, StatusFailed},
		{StatusFailed, StatusPending},
		{StatusFailed, StatusPaid},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestTransitionSources(t *testing.T) {
	assert.ElementsMatch(t, []Status{StatusPending}, TransitionSources(StatusProcessing))
	assert.ElementsMatch(t, []Status{StatusProcessing}, TransitionSources(StatusPaid))
	assert.ElementsMatch(t, []Status{StatusProcessing}, TransitionSources(StatusPending))
	assert.ElementsMatch(t, []Status{StatusPending, StatusProcessing}, TransitionSources(StatusFailed))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestNotificationTarget(t *testing.T) {
	req := WithdrawalRequest{ID: "wd_1000_42"}
	target, ok := req.NotificationTarget()
	assert.True(t, ok)
	assert.Equal(t, "42", target)

	for _, id := range []string{"wd_1000", "plain-id", "wd_1000_", ""} {
		req := WithdrawalRequest{ID: id}
		_, ok := req.NotificationTarget()
		assert.False(t, ok, "id %q must not yield a target", id)
	}
}
