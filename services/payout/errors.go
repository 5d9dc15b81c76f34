package payout

import (
	"errors"
	"strings"
)

// ErrBatchHalted stops the current batch without failing the request that
// triggered it; the remaining requests stay pending for the next run.
var ErrBatchHalted = errors.New("batch halted")

// retryableFragments match transient network and server-side ledger
// failures. Anything else is treated as permanent.
var retryableFragments = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"unexpected EOF",
	"temporarily unavailable",
	"too many requests",
	"status code: 429",
	"status code: 500",
	"status code: 502",
	"status code: 503",
	"status code: 504",
	"lite-server",
}

// IsRetryable classifies a transfer failure by substring on the error text,
// the only signal the ledger daemon exposes.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, strings.ToLower(fragment)) {
			return true
		}
	}
	return false
}
