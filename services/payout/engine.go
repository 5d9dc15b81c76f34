package payout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CrystalRanch/Payout-Backend/services/monitoring/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// EngineConfig carries the retry and pacing policy for the engine.
type EngineConfig struct {
	MaxRetries             int
	RetryDelay             time.Duration
	InterRequestDelay      time.Duration
	TransferCooldown       time.Duration
	ReferencePollAttempts  int
	ReferencePollDelay     time.Duration
	RecentTransactionCount int
	TransferTimeout        time.Duration
}

func (c *EngineConfig) withDefaults() EngineConfig {
	out := *c
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.ReferencePollAttempts <= 0 {
		out.ReferencePollAttempts = 3
	}
	if out.ReferencePollDelay <= 0 {
		out.ReferencePollDelay = 5 * time.Second
	}
	if out.RecentTransactionCount <= 0 {
		out.RecentTransactionCount = 50
	}
	if out.TransferTimeout <= 0 {
		out.TransferTimeout = 60 * time.Second
	}
	return out
}

// Engine owns the hot wallet and drives every request through
// pending → processing → paid/failed. All triggers funnel into a single
// worker loop, so at most one transfer is ever in flight and sequence
// numbers are fetched fresh under that exclusivity.
type Engine struct {
	wallet     *Wallet
	store      RequestStore
	ledger     LedgerClient
	notifier   Notifier
	normalizer *Normalizer
	filter     *EligibilityFilter
	guard      *SolvencyGuard
	tracker    PayoutTracker
	logger     *logging.Logger
	cfg        EngineConfig

	// kick coalesces batch triggers: ticks, store events and manual runs
	// all collapse into at most one queued run.
	kick chan struct{}

	inFlight   map[string]struct{}
	inFlightMu sync.Mutex

	closeOnce sync.Once
}

func NewEngine(
	wallet *Wallet,
	store RequestStore,
	ledgerClient LedgerClient,
	notifier Notifier,
	normalizer *Normalizer,
	filter *EligibilityFilter,
	guard *SolvencyGuard,
	tracker PayoutTracker,
	cfg EngineConfig,
	logger *logging.Logger,
) (*Engine, error) {
	if wallet == nil || wallet.Address == "" {
		return nil, fmt.Errorf("engine requires a wallet handle")
	}

	if err := claimWallet(wallet.Address); err != nil {
		return nil, err
	}

	return &Engine{
		wallet:     wallet,
		store:      store,
		ledger:     ledgerClient,
		notifier:   notifier,
		normalizer: normalizer,
		filter:     filter,
		guard:      guard,
		tracker:    tracker,
		logger:     logger,
		cfg:        cfg.withDefaults(),
		kick:       make(chan struct{}, 1),
		inFlight:   make(map[string]struct{}),
	}, nil
}

// Close releases the wallet handle.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		releaseWallet(e.wallet.Address)
	})
}

// Trigger requests a batch run. Non-blocking: a trigger arriving while a
// run is already queued or executing is dropped, the queued run will see
// the same pending rows.
func (e *Engine) Trigger() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Run is the single worker loop. It exits when ctx is cancelled, after the
// request currently being processed has run to completion; an in-flight
// transfer is never aborted.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.kick:
			e.runBatch(ctx)
		}
	}
}

// VerifyWalletActive checks the startup precondition that the wallet
// contract exists on-chain. A wallet without a sequence number can never
// transfer, so the process must not start against one.
func (e *Engine) VerifyWalletActive(ctx context.Context) error {
	seqno, err := e.ledger.GetSequenceNumber(ctx)
	if err != nil {
		return fmt.Errorf("could not read wallet sequence number: %w", err)
	}
	if seqno == nil {
		return fmt.Errorf("wallet %s is not activated on-chain", e.wallet.Address)
	}
	return nil
}

// Reconcile cross-references requests stuck in processing (a crash between
// transfer and the paid write) against recent ledger history. A transfer
// whose memo matches the request id proves the funds moved: the request is
// completed. Requests with no matching transfer are escalated to the
// operator and left in processing; re-sending automatically could
// double-pay.
func (e *Engine) Reconcile(ctx context.Context) error {
	stuck, err := e.store.ListByStatus(ctx, StatusProcessing)
	if err != nil {
		return fmt.Errorf("list processing requests: %w", err)
	}
	if len(stuck) == 0 {
		return nil
	}

	txs, err := e.ledger.GetRecentTransactions(ctx, e.cfg.RecentTransactionCount)
	if err != nil {
		return fmt.Errorf("fetch ledger history for reconciliation: %w", err)
	}

	byMemo := make(map[string]string, len(txs))
	for _, tx := range txs {
		if tx.Memo != "" {
			byMemo[tx.Memo] = tx.Reference
		}
	}

	for i := range stuck {
		req := &stuck[i]
		reference, found := byMemo[req.ID]
		if found {
			amount := e.normalizer.Normalize(req.RequestedAmount)
			e.logger.WithFields(logrus.Fields{
				"request_id": req.ID,
				"reference":  reference,
			}).Info("reconciliation: transfer confirmed on ledger, completing request")
			e.completePaid(ctx, req, amount, reference)
			continue
		}

		e.logger.WithFields(logrus.Fields{
			"request_id": req.ID,
		}).Warn("reconciliation: no ledger transfer found for processing request")
		e.notifier.AlertOperator(ctx, fmt.Sprintf(
			"Request %s was interrupted mid-transfer and no matching ledger transaction was found. Manual reconciliation required before it can be retried.", req.ID))
	}

	return nil
}

func (e *Engine) runBatch(ctx context.Context) {
	runID := uuid.New().String()

	pending, err := e.store.ListByStatus(ctx, StatusPending)
	if err != nil {
		e.logger.Error("could not list pending requests: ", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	e.logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"pending": len(pending),
	}).Info("starting payout batch")

	// Advisory pre-check only: even when the whole batch cannot be covered,
	// requests are attempted in order until one individually fails solvency.
	e.logAggregateShortfall(ctx, runID, pending)

	for i := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := e.processOne(ctx, pending[i].ID)
		if errors.Is(err, ErrBatchHalted) {
			e.logger.WithFields(logrus.Fields{
				"run_id":     runID,
				"request_id": pending[i].ID,
			}).Warn("batch halted: wallet cannot cover next payout")
			return
		}

		if i < len(pending)-1 {
			e.sleep(ctx, e.cfg.InterRequestDelay)
		}
	}
}

func (e *Engine) logAggregateShortfall(ctx context.Context, runID string, pending []WithdrawalRequest) {
	total := decimal.Zero
	for i := range pending {
		total = total.Add(e.normalizer.Normalize(pending[i].RequestedAmount))
	}

	balance, err := e.ledger.GetBalance(ctx)
	if err != nil {
		return
	}
	if balance.LessThan(total) {
		e.logger.WithFields(logrus.Fields{
			"run_id":  runID,
			"balance": balance.String(),
			"total":   total.String(),
		}).Warn("wallet balance below aggregate batch total; batch will stop early")
	}
}

// processOne runs the full state machine for one request. It returns
// ErrBatchHalted when the wallet cannot cover the transfer; every other
// outcome is terminal for this attempt and the batch moves on.
func (e *Engine) processOne(ctx context.Context, id string) error {
	if !e.markInFlight(id) {
		// A duplicate trigger for an id already being handled.
		return nil
	}
	defer e.clearInFlight(id)

	// Re-read: the creating event may have been delivered more than once,
	// or another run may already have finished this request.
	req, err := e.store.Get(ctx, id)
	if err != nil {
		e.logger.Error("could not re-read request "+id+": ", err)
		return nil
	}
	if req == nil || req.Status != StatusPending {
		return nil
	}

	// A request inside its retry backoff window waits for the delayed
	// re-kick; an earlier tick or store event must not shortcut it.
	if req.RetryNotBefore.After(time.Now()) {
		return nil
	}

	amount := e.normalizer.Normalize(req.RequestedAmount)

	if decision := e.filter.Evaluate(req.Address, amount); !decision.Accept {
		if decision.Terminal {
			e.failRequest(ctx, id, decision.Reason)
		} else {
			e.logger.WithFields(logrus.Fields{
				"request_id": id,
				"reason":     decision.Reason,
			}).Warn("request left pending awaiting manual correction")
		}
		return nil
	}

	if result := e.guard.CheckSufficiency(ctx, amount); !result.Sufficient {
		// Not a request failure: the wallet needs funding. Leave pending and
		// stop the batch, later requests cannot fare better under FIFO.
		return ErrBatchHalted
	}

	claimed, err := e.store.Claim(ctx, id)
	if err != nil {
		e.logger.Error("could not claim request "+id+": ", err)
		return nil
	}
	if !claimed {
		return nil
	}
	attempts := req.Attempts + 1

	seqno, err := e.ledger.GetSequenceNumber(ctx)
	if err != nil {
		e.handleTransferFailure(ctx, id, attempts, err)
		e.sleep(ctx, e.cfg.TransferCooldown)
		return nil
	}
	if seqno == nil {
		e.failRequest(ctx, id, "wallet not activated on-chain")
		return nil
	}

	// The transfer itself is never cancelled mid-flight; shutdown waits for
	// it. A bounded timeout still applies.
	transferCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.TransferTimeout)
	err = e.ledger.Transfer(transferCtx, req.Address, amount, *seqno, id)
	cancel()
	if err != nil {
		e.handleTransferFailure(ctx, id, attempts, err)
		e.sleep(ctx, e.cfg.TransferCooldown)
		return nil
	}

	e.logger.WithFields(logrus.Fields{
		"request_id": id,
		"amount":     amount.String(),
		"seqno":      *seqno,
	}).Info("transfer submitted")

	reference := e.lookupReference(ctx, id)
	e.completePaid(ctx, req, amount, reference)

	// Brief pause after touching the ledger before the next request.
	e.sleep(ctx, e.cfg.TransferCooldown)
	return nil
}

// handleTransferFailure classifies the error and either schedules a retry
// (linear backoff, back to pending) or fails the request for good.
func (e *Engine) handleTransferFailure(ctx context.Context, id string, attempts int, cause error) {
	lastError := cause.Error()

	if IsRetryable(cause) && attempts < e.cfg.MaxRetries {
		pending := StatusPending
		delay := e.cfg.RetryDelay * time.Duration(attempts)
		notBefore := time.Now().Add(delay)
		if err := e.store.Update(ctx, id, Update{Status: &pending, LastError: &lastError, RetryNotBefore: &notBefore}); err != nil {
			e.logger.Error("could not return request "+id+" to pending: ", err)
			return
		}

		e.logger.WithFields(logrus.Fields{
			"request_id": id,
			"attempts":   attempts,
			"retry_in":   delay.String(),
		}).Warn("transfer failed, will retry: " + lastError)
		time.AfterFunc(delay, e.Trigger)
		return
	}

	e.failRequest(ctx, id, lastError)
}

func (e *Engine) failRequest(ctx context.Context, id, reason string) {
	failed := StatusFailed
	if err := e.store.Update(ctx, id, Update{Status: &failed, LastError: &reason}); err != nil {
		e.logger.Error("could not mark request "+id+" failed: ", err)
		return
	}
	e.logger.WithFields(logrus.Fields{
		"request_id": id,
		"reason":     reason,
	}).Warn("request failed")
}

// completePaid writes the terminal paid state and fires the downstream
// notifications. The transaction reference is enrichment; the request is
// paid with or without it.
func (e *Engine) completePaid(ctx context.Context, req *WithdrawalRequest, amount decimal.Decimal, reference string) {
	paid := StatusPaid
	now := time.Now()
	upd := Update{
		Status:      &paid,
		SentAmount:  &amount,
		CompletedAt: &now,
	}
	if reference != "" {
		upd.TransactionReference = &reference
	}
	if err := e.store.Update(ctx, req.ID, upd); err != nil {
		e.logger.Error("could not mark request "+req.ID+" paid: ", err)
		return
	}

	e.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"amount":     amount.String(),
		"reference":  reference,
	}).Info("request paid")

	if e.tracker != nil {
		if err := e.tracker.TrackDailyPayout(ctx, amount); err != nil {
			e.logger.Warn("could not track daily payout total: ", err)
		}
	}

	if target, ok := req.NotificationTarget(); ok {
		if e.notifier.NotifyRequester(ctx, target, amount, req.Address) {
			e.notifier.NotifyOperations(ctx, amount, req.Address, target)
		}
	}
}

// lookupReference polls recent ledger history for the transfer carrying the
// request id as memo. Bounded attempts with linear backoff; returns ""
// when the reference has not surfaced in time.
func (e *Engine) lookupReference(ctx context.Context, id string) string {
	for attempt := 1; attempt <= e.cfg.ReferencePollAttempts; attempt++ {
		if !e.sleep(ctx, e.cfg.ReferencePollDelay*time.Duration(attempt)) {
			return ""
		}

		txs, err := e.ledger.GetRecentTransactions(ctx, e.cfg.RecentTransactionCount)
		if err != nil {
			e.logger.Debug("reference lookup failed: ", err)
			continue
		}
		for _, tx := range txs {
			if tx.Memo == id {
				return tx.Reference
			}
		}
	}
	return ""
}

func (e *Engine) markInFlight(id string) bool {
	e.inFlightMu.Lock()
	defer e.inFlightMu.Unlock()
	if _, exists := e.inFlight[id]; exists {
		return false
	}
	e.inFlight[id] = struct{}{}
	return true
}

func (e *Engine) clearInFlight(id string) {
	e.inFlightMu.Lock()
	defer e.inFlightMu.Unlock()
	delete(e.inFlight, id)
}

// sleep waits for d or until ctx is done; reports whether the full wait
// elapsed.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
