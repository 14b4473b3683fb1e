package subscription

import (
	"context"

	"studioflow/internal/activity"
	"studioflow/internal/logger"
	"studioflow/internal/metrics"
)

// Ledger fronts administrative changes to the remaining-classes balance.
// Booking transactions draw and restore credits through ConsumeOneTx and
// RestoreOneTx, so every write to the column runs one of this package's
// guarded statements.
type Ledger struct {
	repo     Repository
	activity *activity.Emitter
}

func NewLedger(repo Repository, emitter *activity.Emitter) *Ledger {
	return &Ledger{repo: repo, activity: emitter}
}

// AddCredits tops up a subscription by a positive count. Rejected on closed
// (cancelled/terminated/expired) subscriptions; a subscription past its end
// date expires first and rejects the top-up the same way.
func (l *Ledger) AddCredits(ctx context.Context, actorID *int, subscriptionID, count int) (int, error) {
	if count <= 0 {
		return 0, ErrInvalidCreditCount
	}

	if err := l.lazyExpire(ctx, subscriptionID); err != nil {
		return 0, err
	}

	sub, err := l.repo.GetByID(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}

	balance, err := l.repo.AddCredits(ctx, subscriptionID, count)
	if err != nil {
		return 0, err
	}

	metrics.RecordCredits("added", count)
	l.activity.Record(ctx, sub.ClientID, actorID, activity.ActionCreditsAdded,
		"credits added", map[string]interface{}{
			"subscription_id": subscriptionID,
			"count":           count,
			"new_balance":     balance,
		})

	return balance, nil
}

// RemoveCredits is an administrative correction. It works on paused
// subscriptions too, but never lets the balance go negative.
func (l *Ledger) RemoveCredits(ctx context.Context, actorID *int, subscriptionID, count int, reason string) (int, error) {
	if count <= 0 {
		return 0, ErrInvalidCreditCount
	}

	if err := l.lazyExpire(ctx, subscriptionID); err != nil {
		return 0, err
	}

	sub, err := l.repo.GetByID(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}

	balance, err := l.repo.RemoveCredits(ctx, subscriptionID, count)
	if err != nil {
		return 0, err
	}

	metrics.RecordCredits("removed", count)
	l.activity.Record(ctx, sub.ClientID, actorID, activity.ActionCreditsRemoved,
		"credits removed", map[string]interface{}{
			"subscription_id": subscriptionID,
			"count":           count,
			"reason":          reason,
			"new_balance":     balance,
		})

	return balance, nil
}

// lazyExpire applies the past-end-date expiry before a credit operation, so
// a top-up cannot land on a subscription whose row still reads active.
func (l *Ledger) lazyExpire(ctx context.Context, id int) error {
	expired, err := l.repo.ExpireIfDue(ctx, id)
	if err != nil {
		return err
	}
	if expired {
		logger.Infof("Subscription %d expired lazily", id)
		metrics.RecordSubscriptionTransition(string(StatusExpired))
	}
	return nil
}
