package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/CrystalRanch/Payout-Backend/services/monitoring/logging"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const solvencyAlertKey = "solvency_alert"

// SufficiencyResult reports whether the wallet can cover a transfer plus
// the fee safety buffer.
type SufficiencyResult struct {
	Sufficient bool
	Balance    decimal.Decimal
	Deficit    decimal.Decimal
}

// SolvencyGuard compares wallet balance against required amounts before the
// engine commits to a transfer. It never returns an error: a balance it
// cannot read is treated as a balance it cannot spend.
type SolvencyGuard struct {
	ledger   LedgerClient
	notifier Notifier
	buffer   decimal.Decimal
	cooldown time.Duration
	alerts   *cache.Cache
	logger   *logging.Logger
}

func NewSolvencyGuard(ledger LedgerClient, notifier Notifier, buffer decimal.Decimal, cooldown time.Duration, logger *logging.Logger) *SolvencyGuard {
	return &SolvencyGuard{
		ledger:   ledger,
		notifier: notifier,
		buffer:   buffer,
		cooldown: cooldown,
		alerts:   cache.New(cooldown, 10*time.Minute),
		logger:   logger,
	}
}

// CheckSufficiency reads the live balance and compares it against
// required + buffer. On shortfall it raises a rate-limited operator alert
// and reports insufficient; the caller must leave the request pending and
// stop the batch.
func (g *SolvencyGuard) CheckSufficiency(ctx context.Context, required decimal.Decimal) SufficiencyResult {
	needed := required.Add(g.buffer)

	balance, err := g.ledger.GetBalance(ctx)
	if err != nil {
		g.logger.WithFields(logrus.Fields{
			"required": needed.String(),
		}).Error("solvency check could not read wallet balance: ", err)
		g.Alert(ctx, fmt.Sprintf("Wallet balance check failed: %v", err), false)
		return SufficiencyResult{Sufficient: false, Balance: decimal.Zero, Deficit: needed}
	}

	if balance.LessThan(needed) {
		deficit := needed.Sub(balance)
		g.Alert(ctx, fmt.Sprintf(
			"Hot wallet balance too low: balance %s, required %s (incl. %s fee buffer), deficit %s. Top up the wallet to resume payouts.",
			balance, needed, g.buffer, deficit), false)
		return SufficiencyResult{Sufficient: false, Balance: balance, Deficit: deficit}
	}

	return SufficiencyResult{Sufficient: true, Balance: balance}
}

// Alert notifies the operator, at most once per cooldown window unless
// forced.
func (g *SolvencyGuard) Alert(ctx context.Context, message string, force bool) {
	if !force {
		if _, throttled := g.alerts.Get(solvencyAlertKey); throttled {
			g.logger.Debug("operator alert suppressed by cooldown window")
			return
		}
	}
	g.alerts.Set(solvencyAlertKey, time.Now(), g.cooldown)
	g.notifier.AlertOperator(ctx, message)
}
