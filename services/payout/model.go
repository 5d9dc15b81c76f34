package payout

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a withdrawal request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
)

// legalTransitions encodes the only status changes the engine may make.
// Paid and failed are terminal.
var legalTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusPaid, StatusPending, StatusFailed},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionSources lists the statuses a request may legally be in for a
// write moving it to the given status. Stores use it to guard status
// updates at the row.
func TransitionSources(to Status) []Status {
	var sources []Status
	for from, targets := range legalTransitions {
		for _, target := range targets {
			if target == to {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// Terminal reports whether a status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

// WithdrawalRequest is one payout intent. Requests are created by an
// upstream producer with status pending and are mutated exclusively by the
// processing engine. They are never deleted; terminal rows are the audit
// trail.
type WithdrawalRequest struct {
	ID                   string
	Address              string
	RequestedAmount      string
	Status               Status
	Attempts             int
	LastError            string
	RetryNotBefore       time.Time
	SentAmount           decimal.Decimal
	TransactionReference string
	CompletedAt          time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NotificationTarget recovers the requester id embedded in request ids of
// the form "wd_<timestamp>_<userId>". The convention is documented but not
// enforced; when the segment is missing, notification is skipped.
func (r *WithdrawalRequest) NotificationTarget() (string, bool) {
	parts := strings.Split(r.ID, "_")
	if len(parts) < 3 || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
