package payout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestGuard(ledgerMock *mockLedger, notifier *mockNotifier, cooldown time.Duration) *SolvencyGuard {
	return NewSolvencyGuard(ledgerMock, notifier, decimal.RequireFromString("0.05"), cooldown, newTestLogger())
}

func TestSolvency_SufficientBalance(t *testing.T) {
	notifier := newMockNotifier()
	guard := newTestGuard(&mockLedger{balance: decimal.NewFromInt(10)}, notifier, time.Hour)

	result := guard.CheckSufficiency(context.Background(), decimal.RequireFromString("0.5"))

	assert.True(t, result.Sufficient)
	assert.Equal(t, "10", result.Balance.String())
	assert.Zero(t, notifier.alertCount())
}

func TestSolvency_BufferCountsAgainstBalance(t *testing.T) {
	notifier := newMockNotifier()
	// Balance covers the amount but not amount + buffer.
	guard := newTestGuard(&mockLedger{balance: decimal.RequireFromString("0.52")}, notifier, time.Hour)

	result := guard.CheckSufficiency(context.Background(), decimal.RequireFromString("0.5"))

	assert.False(t, result.Sufficient)
	assert.Equal(t, "0.03", result.Deficit.String())
	assert.Equal(t, 1, notifier.alertCount())
}

func TestSolvency_AlertRateLimited(t *testing.T) {
	notifier := newMockNotifier()
	guard := newTestGuard(&mockLedger{balance: decimal.Zero}, notifier, time.Hour)

	for i := 0; i < 5; i++ {
		guard.CheckSufficiency(context.Background(), decimal.NewFromInt(1))
	}

	assert.Equal(t, 1, notifier.alertCount(), "repeated shortfalls inside the window alert once")
}

func TestSolvency_AlertResumesAfterCooldown(t *testing.T) {
	notifier := newMockNotifier()
	guard := newTestGuard(&mockLedger{balance: decimal.Zero}, notifier, 20*time.Millisecond)

	guard.CheckSufficiency(context.Background(), decimal.NewFromInt(1))
	time.Sleep(40 * time.Millisecond)
	guard.CheckSufficiency(context.Background(), decimal.NewFromInt(1))

	assert.Equal(t, 2, notifier.alertCount())
}

func TestSolvency_ForceBypassesCooldown(t *testing.T) {
	notifier := newMockNotifier()
	guard := newTestGuard(&mockLedger{balance: decimal.Zero}, notifier, time.Hour)

	guard.Alert(context.Background(), "first", false)
	guard.Alert(context.Background(), "suppressed", false)
	guard.Alert(context.Background(), "forced", true)

	assert.Equal(t, 2, notifier.alertCount())
}

func TestSolvency_BalanceReadErrorIsInsufficient(t *testing.T) {
	notifier := newMockNotifier()
	guard := newTestGuard(&mockLedger{balanceErr: assert.AnError}, notifier, time.Hour)

	result := guard.CheckSufficiency(context.Background(), decimal.NewFromInt(1))

	assert.False(t, result.Sufficient, "an unreadable balance is an unspendable balance")
	assert.Equal(t, 1, notifier.alertCount())
}
