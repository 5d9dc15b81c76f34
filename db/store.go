package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/CrystalRanch/Payout-Backend/services/monitoring/logging"
	"github.com/CrystalRanch/Payout-Backend/services/payout"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// notifyChannel is raised by a trigger on withdrawal_requests inserts; the
// payload is the request id.
const notifyChannel = "withdrawal_created"

// Store is the Postgres-backed request store. It owns the LISTEN/NOTIFY
// subscription that turns inserted rows into engine triggers.
type Store struct {
	DB       *sql.DB
	listener *pq.Listener
	events   chan string
	logger   *logging.Logger
}

func NewStore(conn *sql.DB, dsn string, logger *logging.Logger) (*Store, error) {
	s := &Store{
		DB:     conn,
		events: make(chan string, 64),
		logger: logger,
	}

	s.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Error("request store listener event: ", err)
		}
	})
	if err := s.listener.Listen(notifyChannel); err != nil {
		return nil, fmt.Errorf("listen on %s: %w", notifyChannel, err)
	}

	go s.forwardNotifications()

	return s, nil
}

// forwardNotifications pumps listener payloads into the events channel.
// Delivery is at-least-once: a reconnect produces a nil notification and
// anything missed in between is swept up by the engine's periodic tick, so
// a full channel may simply drop.
func (s *Store) forwardNotifications() {
	for notification := range s.listener.Notify {
		if notification == nil {
			// Connection re-established; rows inserted meanwhile were not
			// notified. The periodic batch tick re-lists pending rows.
			continue
		}
		select {
		case s.events <- notification.Extra:
		default:
			s.logger.Warn("request event channel full, dropping notification for " + notification.Extra)
		}
	}
}

func (s *Store) Events() <-chan string {
	return s.events
}

func (s *Store) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

const requestColumns = `id, address, requested_amount, status, attempts, last_error, retry_not_before, sent_amount, transaction_reference, completed_at, created_at, updated_at`

func (s *Store) Create(ctx context.Context, req payout.WithdrawalRequest) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO withdrawal_requests (id, address, requested_amount, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, now(), now())`,
		req.ID, req.Address, req.RequestedAmount, payout.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal request: %w", err)
	}
	return nil
}

func (s *Store) ListByStatus(ctx context.Context, status payout.Status) ([]payout.WithdrawalRequest, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM withdrawal_requests
		WHERE status = $1
		ORDER BY created_at ASC`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var requests []payout.WithdrawalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (*payout.WithdrawalRequest, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM withdrawal_requests
		WHERE id = $1`,
		id,
	)

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return req, nil
}

// Update merges only the provided fields; updated_at is stamped on every
// write. Status writes carry the transition table into the predicate, so an
// illegal transition touches no row.
func (s *Store) Update(ctx context.Context, id string, upd payout.Update) error {
	sets := []string{"updated_at = now()"}
	args := []interface{}{id}
	where := "id = $1"

	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Status != nil {
		appendSet("status", *upd.Status)
		args = append(args, pq.Array(statusStrings(payout.TransitionSources(*upd.Status))))
		where += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if upd.LastError != nil {
		appendSet("last_error", *upd.LastError)
	}
	if upd.RetryNotBefore != nil {
		appendSet("retry_not_before", *upd.RetryNotBefore)
	}
	if upd.SentAmount != nil {
		appendSet("sent_amount", upd.SentAmount.String())
	}
	if upd.TransactionReference != nil {
		appendSet("transaction_reference", *upd.TransactionReference)
	}
	if upd.CompletedAt != nil {
		appendSet("completed_at", *upd.CompletedAt)
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE withdrawal_requests SET `+strings.Join(sets, ", ")+` WHERE `+where,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update withdrawal request %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if upd.Status != nil {
			current, err := s.currentStatus(ctx, id)
			if err != nil {
				return err
			}
			return fmt.Errorf("%w: %s to %s for request %s", payout.ErrIllegalTransition, current, *upd.Status, id)
		}
		return payout.ErrRequestNotFound
	}
	return nil
}

func (s *Store) currentStatus(ctx context.Context, id string) (payout.Status, error) {
	var status payout.Status
	err := s.DB.QueryRowContext(ctx, `SELECT status FROM withdrawal_requests WHERE id = $1`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", payout.ErrRequestNotFound
	}
	return status, err
}

func statusStrings(statuses []payout.Status) []string {
	out := make([]string, len(statuses))
	for i, status := range statuses {
		out[i] = string(status)
	}
	return out
}

// Claim flips pending to processing and bumps the attempt counter in one
// statement; concurrent claimers race on the status predicate and only one
// wins.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	result, err := s.DB.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $2, attempts = attempts + 1, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, payout.StatusProcessing, payout.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim withdrawal request %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*payout.WithdrawalRequest, error) {
	var (
		req            payout.WithdrawalRequest
		lastError      sql.NullString
		retryNotBefore sql.NullTime
		sentAmount     sql.NullString
		reference      sql.NullString
		completedAt    sql.NullTime
	)

	err := row.Scan(
		&req.ID,
		&req.Address,
		&req.RequestedAmount,
		&req.Status,
		&req.Attempts,
		&lastError,
		&retryNotBefore,
		&sentAmount,
		&reference,
		&completedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.LastError = lastError.String
	req.TransactionReference = reference.String
	if retryNotBefore.Valid {
		req.RetryNotBefore = retryNotBefore.Time
	}
	if completedAt.Valid {
		req.CompletedAt = completedAt.Time
	}
	if sentAmount.Valid {
		amount, err := decimal.NewFromString(sentAmount.String)
		if err != nil {
			return nil, fmt.Errorf("invalid sent_amount %q for request %s: %w", sentAmount.String, req.ID, err)
		}
		req.SentAmount = amount
	}

	return &req, nil
}
