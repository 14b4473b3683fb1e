package booking

import (
	"errors"
	"time"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusAttended  Status = "attended"
	StatusNoShow    Status = "no_show"
)

// Who cancelled a booking.
const (
	CancelledByClient    = "client"
	CancelledByReception = "reception"
	CancelledByStudio    = "studio"
)

var (
	ErrBookingNotFound        = errors.New("booking not found")
	ErrClassNotFound          = errors.New("class not found")
	ErrDuplicateBooking       = errors.New("client already has a booking for this class")
	ErrInvalidStateTransition = errors.New("invalid booking state transition")
	ErrSubscriptionMismatch   = errors.New("subscription does not belong to this client")
	ErrWaitlistEntryNotFound  = errors.New("waitlist entry not found")
)

type Booking struct {
	ID             int       `db:"id" json:"id"`
	ClientID       int       `db:"client_id" json:"client_id"`
	ClassID        int       `db:"class_id" json:"class_id"`
	SubscriptionID int       `db:"subscription_id" json:"subscription_id"`
	Status         Status    `db:"status" json:"status"`
	CancelledBy    *string   `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type BookingWithDetails struct {
	Booking
	ClassName     string    `db:"class_name" json:"class_name"`
	ClassStartsAt time.Time `db:"class_starts_at" json:"class_starts_at"`
	ClientName    string    `db:"client_name" json:"client_name"`
	ClientEmail   string    `db:"client_email" json:"client_email"`
}

// WaitlistEntry queues a client for a full class. Positions are assigned at
// insertion and strictly increase per class; promotion always takes the
// minimum remaining position.
type WaitlistEntry struct {
	ID        int       `db:"id" json:"id"`
	ClassID   int       `db:"class_id" json:"class_id"`
	ClientID  int       `db:"client_id" json:"client_id"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BookResult is the outcome of a Book call: either a confirmed booking or a
// waitlist placement. A full class is not an error for the caller.
type BookResult struct {
	Booking          *Booking `json:"booking,omitempty"`
	Waitlisted       bool     `json:"waitlisted"`
	WaitlistPosition int      `json:"waitlist_position,omitempty"`
	RemainingClasses int      `json:"remaining_classes"`
}

// Promotion records one waitlist entry converted into a confirmed booking.
type Promotion struct {
	Booking        *Booking
	ClientID       int
	SubscriptionID int
	Position       int
}

// PromotionOutcome is what a single promotion pass over a class produced.
// Skipped lists client ids whose waitlist entries were removed as
// unfulfillable (no active subscription with credit).
type PromotionOutcome struct {
	Promotions []Promotion
	Skipped    []int
}

type CancelResult struct {
	Booking *Booking
}

type BookRequest struct {
	ClientID       int `json:"client_id"`
	SubscriptionID int `json:"subscription_id" binding:"required"`
}

type CancelBookingRequest struct {
	ClientID int `json:"client_id"`
}
