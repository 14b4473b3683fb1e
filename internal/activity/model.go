package activity

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Action types recorded by the engine. The viewer filters on these, so they
// are part of the contract with the admin UI.
const (
	ActionCreditsAdded          = "credits_added"
	ActionCreditsRemoved        = "credits_removed"
	ActionSubscriptionPurchased = "subscription_purchased"
	ActionSubscriptionPaused    = "subscription_paused"
	ActionSubscriptionResumed   = "subscription_resumed"
	ActionSubscriptionCancelled = "subscription_cancelled"
	ActionSubscriptionEnded     = "subscription_terminated"
	ActionBookingConfirmed      = "booking_confirmed"
	ActionBookingWaitlisted     = "booking_waitlisted"
	ActionBookingCancelled      = "booking_cancelled"
	ActionAttendanceMarked      = "attendance_marked"
	ActionWaitlistPromoted      = "waitlist_promoted"
	ActionWaitlistSkipped       = "waitlist_skipped"
	ActionWaitlistWithdrawn     = "waitlist_withdrawn"
)

// Entry is an append-only activity record. ActorID is nil for
// system-initiated actions such as waitlist promotion.
type Entry struct {
	ID          int            `db:"id" json:"id"`
	ClientID    int            `db:"client_id" json:"client_id"`
	ActorID     *int           `db:"actor_id" json:"actor_id,omitempty"`
	Action      string         `db:"action" json:"action"`
	Description string         `db:"description" json:"description"`
	Metadata    types.JSONText `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
