package subscription

import (
	"errors"
	"time"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusPaused     Status = "paused"
	StatusCancelled  Status = "cancelled"
	StatusTerminated Status = "terminated"
	StatusExpired    Status = "expired"
)

// Terminal reports whether the status has no outbound transitions. Terminal
// subscriptions are kept for billing history and never deleted.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusTerminated || s == StatusExpired
}

type transition struct {
	From Status
	To   Status
}

// validTransitions is the full lifecycle table. Expiry is system-driven but
// still goes through the same table.
var validTransitions = map[transition]bool{
	{StatusActive, StatusPaused}:     true,
	{StatusPaused, StatusActive}:     true,
	{StatusActive, StatusCancelled}:  true,
	{StatusPaused, StatusCancelled}:  true,
	{StatusActive, StatusTerminated}: true,
	{StatusPaused, StatusTerminated}: true,
	{StatusActive, StatusExpired}:    true,
	{StatusPaused, StatusExpired}:    true,
}

func CanTransition(from, to Status) bool {
	return validTransitions[transition{from, to}]
}

var (
	ErrNotFound                = errors.New("subscription not found")
	ErrInsufficientCredits     = errors.New("insufficient credits")
	ErrInvalidStateTransition  = errors.New("invalid subscription state transition")
	ErrSubscriptionInactive    = errors.New("subscription is not active")
	ErrSubscriptionClosed      = errors.New("subscription is closed to credit changes")
	ErrInvalidCreditCount      = errors.New("credit count must be a positive integer")
	ErrPauseDaysOutOfRange     = errors.New("pause days must be between 1 and 365")
	ErrOverlappingSubscription = errors.New("client already has a live subscription for this plan")
)

type Subscription struct {
	ID               int        `db:"id" json:"id"`
	ClientID         int        `db:"client_id" json:"client_id"`
	PlanID           string     `db:"plan_id" json:"plan_id"`
	Status           Status     `db:"status" json:"status"`
	RemainingClasses int        `db:"remaining_classes" json:"remaining_classes"`
	StartDate        time.Time  `db:"start_date" json:"start_date"`
	EndDate          time.Time  `db:"end_date" json:"end_date"`
	PausedUntil      *time.Time `db:"paused_until" json:"paused_until,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

type PurchaseRequest struct {
	ClientID int    `json:"client_id" binding:"required"`
	PlanID   string `json:"plan_id" binding:"required"`
}

type PurchaseResponse struct {
	Subscription *Subscription `json:"subscription"`
	Plan         Plan          `json:"plan"`
}

type CreditRequest struct {
	Count  int    `json:"count" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

type CreditResponse struct {
	SubscriptionID   int `json:"subscription_id"`
	RemainingClasses int `json:"remaining_classes"`
}

type PauseRequest struct {
	Days int `json:"days" binding:"required"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}
