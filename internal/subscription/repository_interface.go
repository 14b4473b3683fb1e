package subscription

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, clientID int, planID string, classes, validityDays int) (*Subscription, error)
	GetByID(ctx context.Context, id int) (*Subscription, error)
	ListByClient(ctx context.Context, clientID int) ([]*Subscription, error)
	ListActiveByClient(ctx context.Context, clientID int) ([]*Subscription, error)

	AddCredits(ctx context.Context, id, count int) (int, error)
	RemoveCredits(ctx context.Context, id, count int) (int, error)

	UpdateStatus(ctx context.Context, id int, from []Status, to Status, closeOut bool, pausedUntil *time.Time) (*Subscription, error)
	ExpireIfDue(ctx context.Context, id int) (bool, error)
}
