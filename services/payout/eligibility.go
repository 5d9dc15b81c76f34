package payout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AcceptedAddressPrefixes are the destination formats payouts may go to:
// bounceable (EQ) and non-bounceable (UQ) user-friendly addresses.
var AcceptedAddressPrefixes = []string{"EQ", "UQ"}

// Decision is the outcome of an eligibility check. Terminal decisions mark
// the request failed; non-terminal rejections leave it pending for manual
// correction.
type Decision struct {
	Accept   bool
	Terminal bool
	Reason   string
}

func accept() Decision {
	return Decision{Accept: true}
}

func reject(terminal bool, reason string) Decision {
	return Decision{Accept: false, Terminal: terminal, Reason: reason}
}

// EligibilityFilter applies the payout acceptance rules in order; the first
// failing rule wins. Each rule carries a fixed rejection policy:
// malformed payloads and unknown address formats fail the request outright,
// an over-ceiling amount leaves it pending for operator review.
type EligibilityFilter struct {
	Prefixes []string
	Ceiling  decimal.Decimal
}

func NewEligibilityFilter(ceiling decimal.Decimal) *EligibilityFilter {
	return &EligibilityFilter{
		Prefixes: AcceptedAddressPrefixes,
		Ceiling:  ceiling,
	}
}

// Evaluate is a pure function over the request's address and its normalized
// amount.
func (f *EligibilityFilter) Evaluate(address string, amount decimal.Decimal) Decision {
	if address == "" || !amount.IsPositive() {
		return reject(true, "missing destination address or non-positive amount")
	}

	if !f.hasAcceptedPrefix(address) {
		return reject(true, fmt.Sprintf("destination address %q does not match an accepted format", address))
	}

	if amount.GreaterThan(f.Ceiling) {
		return reject(false, fmt.Sprintf("amount %s exceeds per-request ceiling %s", amount, f.Ceiling))
	}

	return accept()
}

func (f *EligibilityFilter) hasAcceptedPrefix(address string) bool {
	for _, prefix := range f.Prefixes {
		if strings.HasPrefix(address, prefix) {
			return true
		}
	}
	return false
}
