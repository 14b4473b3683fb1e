package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const subscriptionColumns = `id, client_id, plan_id, status, remaining_classes, start_date, end_date, paused_until, created_at, updated_at`

func (r *repository) Create(ctx context.Context, clientID int, planID string, classes, validityDays int) (*Subscription, error) {
	now := time.Now()
	endDate := now.AddDate(0, 0, validityDays)

	query := `
		INSERT INTO subscriptions (client_id, plan_id, status, remaining_classes, start_date, end_date)
		VALUES ($1, $2, 'active', $3, $4, $5)
		RETURNING ` + subscriptionColumns

	var sub Subscription
	err := r.db.QueryRowxContext(ctx, query, clientID, planID, classes, now, endDate).StructScan(&sub)
	if err != nil {
		// Partial unique index on (client_id, plan_id) for live statuses
		// backs the no-overlap invariant.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrOverlappingSubscription
		}
		return nil, err
	}

	return &sub, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &sub, nil
}

func (r *repository) ListByClient(ctx context.Context, clientID int) ([]*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE client_id = $1
		ORDER BY created_at DESC
	`

	subs := []*Subscription{}
	err := r.db.SelectContext(ctx, &subs, query, clientID)
	return subs, err
}

func (r *repository) ListActiveByClient(ctx context.Context, clientID int) ([]*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE client_id = $1
		  AND status = 'active'
		  AND end_date >= NOW()
		ORDER BY remaining_classes DESC, created_at DESC
	`

	subs := []*Subscription{}
	err := r.db.SelectContext(ctx, &subs, query, clientID)
	return subs, err
}

// AddCredits increments the balance as one conditional update. Terminal
// subscriptions reject the change.
func (r *repository) AddCredits(ctx context.Context, id, count int) (int, error) {
	query := `
		UPDATE subscriptions
		SET remaining_classes = remaining_classes + $2,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('active', 'paused')
		RETURNING remaining_classes
	`

	var balance int
	err := r.db.GetContext(ctx, &balance, query, id, count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, r.classifyCreditFailure(ctx, id, 0)
		}
		return 0, err
	}

	return balance, nil
}

// RemoveCredits decrements the balance, failing when it would go negative.
// The balance guard lives in the WHERE clause so concurrent callers cannot
// interleave a read-modify-write.
func (r *repository) RemoveCredits(ctx context.Context, id, count int) (int, error) {
	query := `
		UPDATE subscriptions
		SET remaining_classes = remaining_classes - $2,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('active', 'paused') AND remaining_classes >= $2
		RETURNING remaining_classes
	`

	var balance int
	err := r.db.GetContext(ctx, &balance, query, id, count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, r.classifyCreditFailure(ctx, id, count)
		}
		return 0, err
	}

	return balance, nil
}

// ConsumeOneTx draws a single credit for a booking. It runs against the
// caller's executor so booking transactions consume through the same guarded
// statement while holding their row locks. Only active subscriptions can be
// drawn from.
func ConsumeOneTx(ctx context.Context, q sqlx.QueryerContext, id int) (int, error) {
	query := `
		UPDATE subscriptions
		SET remaining_classes = remaining_classes - 1,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND remaining_classes >= 1
		RETURNING remaining_classes
	`

	var balance int
	err := sqlx.GetContext(ctx, q, &balance, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, classifyConsumeFailure(ctx, q, id)
		}
		return 0, err
	}

	return balance, nil
}

// RestoreOneTx returns a credit on booking cancellation. Deliberately not
// gated on status: the credit goes back to the subscription it was drawn
// from even if that subscription has since closed, keeping the balance an
// accurate record of what was consumed.
func RestoreOneTx(ctx context.Context, q sqlx.QueryerContext, id int) (int, error) {
	query := `
		UPDATE subscriptions
		SET remaining_classes = remaining_classes + 1,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING remaining_classes
	`

	var balance int
	err := sqlx.GetContext(ctx, q, &balance, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	return balance, nil
}

// UpdateStatus performs a guarded lifecycle transition. The from-statuses go
// into the WHERE clause so a concurrent transition loses cleanly instead of
// overwriting.
func (r *repository) UpdateStatus(ctx context.Context, id int, from []Status, to Status, closeOut bool, pausedUntil *time.Time) (*Subscription, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	query := `
		UPDATE subscriptions
		SET status = $2,
		    paused_until = $3,
		    end_date = CASE WHEN $4 THEN NOW() ELSE end_date END,
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($5)
		RETURNING ` + subscriptionColumns

	var sub Subscription
	err := r.db.QueryRowxContext(ctx, query, id, to, pausedUntil, closeOut, pq.Array(fromStrs)).StructScan(&sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}

	return &sub, nil
}

// ExpireIfDue lazily moves a subscription past its end date into expired.
// Returns true when the transition happened.
func (r *repository) ExpireIfDue(ctx context.Context, id int) (bool, error) {
	query := `
		UPDATE subscriptions
		SET status = 'expired',
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('active', 'paused') AND end_date < NOW()
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// classifyCreditFailure turns a zero-row conditional update into the precise
// business error.
func (r *repository) classifyCreditFailure(ctx context.Context, id, count int) error {
	sub, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status.Terminal() {
		return ErrSubscriptionClosed
	}
	if count > 0 && sub.RemainingClasses < count {
		return ErrInsufficientCredits
	}
	return ErrInvalidStateTransition
}

func classifyConsumeFailure(ctx context.Context, q sqlx.QueryerContext, id int) error {
	var sub Subscription
	err := sqlx.GetContext(ctx, q, &sub, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if sub.Status != StatusActive {
		return ErrSubscriptionInactive
	}
	return ErrInsufficientCredits
}
