package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

/// This file tracks the aggregate volume paid out of the hot wallet per
/// calendar day, for operator dashboards and end-of-day checks.

// DailyPayouts is the running total for one calendar day.
type DailyPayouts struct {
	TotalAmount decimal.Decimal
	Count       int64
	CreatedAt   time.Time
}

// isSameDay checks if two times are on the same calendar day
func isSameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func dailyPayoutKey(t time.Time) string {
	return fmt.Sprintf("daily_payouts:%s", t.Format("2006-01-02"))
}

// nextMidnight is the start of the next calendar day in t's location, so
// the totals roll over on the same boundary isSameDay uses.
func nextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

func (r *RedisService) TrackDailyPayout(ctx context.Context, amount decimal.Decimal) error {
	key := dailyPayoutKey(time.Now())

	current, err := r.GetDailyPayouts(ctx)
	if err != nil {
		return err
	}

	current.TotalAmount = current.TotalAmount.Add(amount)
	current.Count++
	if current.CreatedAt.IsZero() {
		current.CreatedAt = time.Now()
	}

	err = r.client.HSet(ctx, key, map[string]interface{}{
		"total_amount": current.TotalAmount.String(),
		"count":        current.Count,
		"created_at":   current.CreatedAt.Format(time.RFC3339),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to store daily payout total: %w", err)
	}

	// Set expiration for end of day
	err = r.client.ExpireAt(ctx, key, nextMidnight(time.Now())).Err()
	if err != nil {
		return fmt.Errorf("failed to set expiration: %w", err)
	}

	return nil
}

func (r *RedisService) GetDailyPayouts(ctx context.Context) (DailyPayouts, error) {
	key := dailyPayoutKey(time.Now())

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return DailyPayouts{}, fmt.Errorf("failed to get daily payouts: %w", err)
	}

	// If no data exists
	if len(fields) == 0 {
		return DailyPayouts{TotalAmount: decimal.Zero, CreatedAt: time.Now()}, nil
	}

	createdAt, err := time.Parse(time.RFC3339, fields["created_at"])
	if err != nil {
		return DailyPayouts{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	amount, err := decimal.NewFromString(fields["total_amount"])
	if err != nil {
		return DailyPayouts{}, fmt.Errorf("failed to parse total_amount: %w", err)
	}

	var count int64
	fmt.Sscanf(fields["count"], "%d", &count)

	payouts := DailyPayouts{
		TotalAmount: amount,
		Count:       count,
		CreatedAt:   createdAt,
	}

	// Stale entry from a previous day that has not expired yet
	if !isSameDay(payouts.CreatedAt, time.Now()) {
		return DailyPayouts{TotalAmount: decimal.Zero, CreatedAt: time.Now()}, nil
	}

	return payouts, nil
}
