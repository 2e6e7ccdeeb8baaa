package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/retail-ledger/internal/domain"
	"github.com/ayo6706/retail-ledger/internal/ledger"
)

// LimitTracker enforces independent per-currency daily ceilings on the
// principal of limit-counting transfers. Callers must hold the user's lock in
// the same unit of work so two transfers cannot both pass the check.
type LimitTracker struct {
	limits domain.PerCurrency[domain.Amount]
	loc    *time.Location
}

func NewLimitTracker(limits domain.PerCurrency[domain.Amount], loc *time.Location) LimitTracker {
	if loc == nil {
		loc = time.UTC
	}
	return LimitTracker{limits: limits, loc: loc}
}

// Window returns the calendar day containing now in the limit timezone.
func (l LimitTracker) Window(now time.Time) (time.Time, time.Time) {
	local := now.In(l.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, l.loc)
	return start, start.AddDate(0, 0, 1)
}

// UsedToday returns the consumed principal per currency.
func (l LimitTracker) UsedToday(ctx context.Context, r ledger.Reader, userID int64, now time.Time) (map[domain.Currency]domain.Amount, error) {
	from, to := l.Window(now)
	used, err := r.SumInitiated(ctx, userID, domain.LimitSubkinds(), from, to)
	if err != nil {
		return nil, fmt.Errorf("sum daily usage: %w", err)
	}
	return used, nil
}

// Check fails with domain.ErrDailyLimitExceeded when amount would take the
// user over the currency's ceiling.
func (l LimitTracker) Check(ctx context.Context, r ledger.Reader, userID int64, currency domain.Currency, amount domain.Amount, now time.Time) error {
	limit, ok := l.limits.Get(currency)
	if !ok {
		// Accounts only exist in configured currencies, so this is a
		// misconfigured tracker rather than a bad request.
		return fmt.Errorf("no daily limit configured for %q", currency)
	}
	used, err := l.UsedToday(ctx, r, userID, now)
	if err != nil {
		return err
	}
	if used[currency]+amount > limit {
		return domain.ErrDailyLimitExceeded
	}
	return nil
}

// DailyUsage is one currency's limit position.
type DailyUsage struct {
	Currency   domain.Currency
	DailyLimit domain.Amount
	UsedToday  domain.Amount
	Remaining  domain.Amount
}

func (l LimitTracker) Usage(ctx context.Context, r ledger.Reader, userID int64, now time.Time) ([]DailyUsage, error) {
	used, err := l.UsedToday(ctx, r, userID, now)
	if err != nil {
		return nil, err
	}
	out := make([]DailyUsage, 0, len(domain.Currencies))
	for _, c := range domain.Currencies {
		limit, _ := l.limits.Get(c)
		out = append(out, DailyUsage{
			Currency:   c,
			DailyLimit: limit,
			UsedToday:  used[c],
			Remaining:  max(limit-used[c], 0),
		})
	}
	return out, nil
}
