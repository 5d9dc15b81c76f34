package payout

import (
	"context"
	"errors"
	"time"

	"github.com/CrystalRanch/Payout-Backend/providers/ledger"
	"github.com/shopspring/decimal"
)

var (
	ErrRequestNotFound   = errors.New("withdrawal request not found")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Update is a partial field set merged atomically into a stored request.
// Nil fields are left untouched. The store stamps updated_at on every write.
type Update struct {
	Status               *Status
	LastError            *string
	RetryNotBefore       *time.Time
	SentAmount           *decimal.Decimal
	TransactionReference *string
	CompletedAt          *time.Time
}

// RequestStore is the durable, ordered collection of withdrawal requests.
// The store carries no business logic; the engine is the sole writer once a
// request exists.
type RequestStore interface {
	// Create appends a new pending request.
	Create(ctx context.Context, req WithdrawalRequest) error
	// ListByStatus returns all requests in the given status, oldest first.
	ListByStatus(ctx context.Context, status Status) ([]WithdrawalRequest, error)
	// Get returns the request or nil when absent.
	Get(ctx context.Context, id string) (*WithdrawalRequest, error)
	// Update merges the given fields into the request. A status change that
	// the transition table forbids fails with ErrIllegalTransition.
	Update(ctx context.Context, id string, upd Update) error
	// Claim atomically moves a pending request to processing and increments
	// its attempt counter. It reports false when the request was no longer
	// pending, which is how duplicate triggers lose the race.
	Claim(ctx context.Context, id string) (bool, error)
	// Events delivers ids of newly created requests, at least once.
	// Duplicates and replays after reconnect are expected; the engine's
	// pending-status re-check absorbs them.
	Events() <-chan string
}

// LedgerClient wraps the transfer primitive of the underlying ledger.
type LedgerClient interface {
	// GetSequenceNumber returns nil when the wallet is not activated
	// on-chain, a hard precondition failure.
	GetSequenceNumber(ctx context.Context) (*uint32, error)
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	Transfer(ctx context.Context, destination string, amount decimal.Decimal, seqno uint32, memo string) error
	GetRecentTransactions(ctx context.Context, count int) ([]ledger.Transaction, error)
}

// Notifier is the outbound notification surface. All calls are
// fire-and-forget; their failure never changes request state.
type Notifier interface {
	NotifyRequester(ctx context.Context, targetID string, amount decimal.Decimal, destination string) bool
	NotifyOperations(ctx context.Context, amount decimal.Decimal, destination string, targetID string)
	AlertOperator(ctx context.Context, message string)
}

// PayoutTracker records aggregate payout volume. Best effort.
type PayoutTracker interface {
	TrackDailyPayout(ctx context.Context, amount decimal.Decimal) error
}
