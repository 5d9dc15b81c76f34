package payout

import (
	"strings"

	"github.com/CrystalRanch/Payout-Backend/services/monitoring/logging"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Normalizer converts a raw submitted amount into the amount actually sent.
// Amounts are always rounded down to Precision fractional places so a
// floating-point artifact can never overpay.
//
// Invalid input (non-numeric, non-positive) does not reject the request:
// the amount degrades to the policy Floor and the event is logged for
// audit. This mirrors the historical behaviour of the payout pipeline and
// keeps malformed producer records visible instead of silently stuck.
// Parseable dust below one precision step is different: padding it up to
// the floor would pay out more than was asked, so it rounds to zero and the
// eligibility rules fail the request.
type Normalizer struct {
	Precision int32
	Floor     decimal.Decimal
	logger    *logging.Logger
}

func NewNormalizer(precision int32, floor decimal.Decimal, logger *logging.Logger) *Normalizer {
	return &Normalizer{
		Precision: precision,
		Floor:     floor,
		logger:    logger,
	}
}

// Normalize returns the amount rounded down, never above the raw amount for
// any parseable input.
func (n *Normalizer) Normalize(raw string) decimal.Decimal {
	parsed, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !parsed.IsPositive() {
		n.audit(raw, "unparseable or non-positive amount")
		return n.Floor
	}

	normalized := parsed.RoundFloor(n.Precision)
	if !normalized.IsPositive() {
		n.audit(raw, "amount rounds down to zero")
		return decimal.Zero
	}

	return normalized
}

func (n *Normalizer) audit(raw, reason string) {
	if n.logger == nil {
		return
	}
	n.logger.WithFields(logrus.Fields{
		"raw_amount": raw,
		"fallback":   n.Floor.String(),
	}).Warn("amount normalization degraded: " + reason)
}
