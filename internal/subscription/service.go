package subscription

import (
	"context"
	"time"

	"studioflow/internal/activity"
	"studioflow/internal/logger"
	"studioflow/internal/metrics"
)

type Service interface {
	Purchase(ctx context.Context, actorID *int, clientID int, planID string) (*Subscription, Plan, error)
	Get(ctx context.Context, id int) (*Subscription, error)
	ListByClient(ctx context.Context, clientID int) ([]*Subscription, error)
	ListActiveByClient(ctx context.Context, clientID int) ([]*Subscription, error)

	Pause(ctx context.Context, actorID *int, id, days int) (*Subscription, error)
	Resume(ctx context.Context, actorID *int, id int) (*Subscription, error)
	Cancel(ctx context.Context, actorID *int, id int, reason string) (*Subscription, error)
	Terminate(ctx context.Context, actorID *int, id int, reason string) (*Subscription, error)
}

type service struct {
	repo     Repository
	activity *activity.Emitter
}

func NewService(repo Repository, emitter *activity.Emitter) Service {
	return &service{repo: repo, activity: emitter}
}

func (s *service) Purchase(ctx context.Context, actorID *int, clientID int, planID string) (*Subscription, Plan, error) {
	plan, err := FindPlan(planID)
	if err != nil {
		return nil, Plan{}, err
	}

	sub, err := s.repo.Create(ctx, clientID, plan.ID, plan.Classes, plan.ValidityDays)
	if err != nil {
		return nil, Plan{}, err
	}

	metrics.RecordSubscription(plan.ID)
	s.activity.Record(ctx, clientID, actorID, activity.ActionSubscriptionPurchased,
		"subscription purchased", map[string]interface{}{
			"subscription_id": sub.ID,
			"plan_id":         plan.ID,
			"classes":         plan.Classes,
		})

	return sub, plan, nil
}

// Get reads a subscription, applying the lazy past-end-date expiry first so
// callers always see the effective status.
func (s *service) Get(ctx context.Context, id int) (*Subscription, error) {
	if err := s.lazyExpire(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListByClient(ctx context.Context, clientID int) ([]*Subscription, error) {
	return s.repo.ListByClient(ctx, clientID)
}

func (s *service) ListActiveByClient(ctx context.Context, clientID int) ([]*Subscription, error) {
	return s.repo.ListActiveByClient(ctx, clientID)
}

// Pause freezes an active subscription for 1..365 days. Credits and future
// bookings are untouched. Pausing an already paused subscription is a no-op
// returning the current record.
func (s *service) Pause(ctx context.Context, actorID *int, id, days int) (*Subscription, error) {
	if days < 1 || days > 365 {
		return nil, ErrPauseDaysOutOfRange
	}

	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.Status == StatusPaused {
		return sub, nil
	}
	if !CanTransition(sub.Status, StatusPaused) {
		return nil, ErrInvalidStateTransition
	}

	pausedUntil := time.Now().AddDate(0, 0, days)
	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusActive}, StatusPaused, false, &pausedUntil)
	if err != nil {
		return nil, err
	}

	metrics.RecordSubscriptionTransition(string(StatusPaused))
	s.activity.Record(ctx, sub.ClientID, actorID, activity.ActionSubscriptionPaused,
		"subscription paused", map[string]interface{}{
			"subscription_id": id,
			"days":            days,
			"paused_until":    pausedUntil,
		})

	return updated, nil
}

// Resume reactivates a paused subscription immediately. Resume on a
// subscription that is not paused is an invalid transition, never a no-op.
func (s *service) Resume(ctx context.Context, actorID *int, id int) (*Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.Status != StatusPaused {
		return nil, ErrInvalidStateTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusPaused}, StatusActive, false, nil)
	if err != nil {
		return nil, err
	}

	metrics.RecordSubscriptionTransition(string(StatusActive))
	s.activity.Record(ctx, sub.ClientID, actorID, activity.ActionSubscriptionResumed,
		"subscription resumed", map[string]interface{}{"subscription_id": id})

	return updated, nil
}

// Cancel closes a subscription as refundable. The credit balance is kept for
// audit; bookings can no longer draw from it because ConsumeOneTx requires
// an active status.
func (s *service) Cancel(ctx context.Context, actorID *int, id int, reason string) (*Subscription, error) {
	return s.close(ctx, actorID, id, reason, StatusCancelled, activity.ActionSubscriptionCancelled)
}

// Terminate closes a subscription as non-refundable, immediate effect.
// Existing future bookings stay; the subscription just cannot be drawn from
// again.
func (s *service) Terminate(ctx context.Context, actorID *int, id int, reason string) (*Subscription, error) {
	return s.close(ctx, actorID, id, reason, StatusTerminated, activity.ActionSubscriptionEnded)
}

func (s *service) close(ctx context.Context, actorID *int, id int, reason string, to Status, action string) (*Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Re-invoking with the same target status returns the existing record.
	if sub.Status == to {
		return sub, nil
	}
	if !CanTransition(sub.Status, to) {
		return nil, ErrInvalidStateTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusActive, StatusPaused}, to, true, nil)
	if err != nil {
		return nil, err
	}

	metrics.RecordSubscriptionTransition(string(to))
	s.activity.Record(ctx, sub.ClientID, actorID, action,
		"subscription "+string(to), map[string]interface{}{
			"subscription_id":   id,
			"reason":            reason,
			"remaining_classes": updated.RemainingClasses,
		})

	return updated, nil
}

func (s *service) lazyExpire(ctx context.Context, id int) error {
	expired, err := s.repo.ExpireIfDue(ctx, id)
	if err != nil {
		return err
	}
	if expired {
		logger.Infof("Subscription %d expired lazily", id)
		metrics.RecordSubscriptionTransition(string(StatusExpired))
	}
	return nil
}
