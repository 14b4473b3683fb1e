package booking

import "context"

// Repository is the persistence surface of the booking engine. Book, Cancel
// and Promote are composite operations: each runs as one transaction that
// locks the class row first and any subscription rows second, so concurrent
// calls against the same class serialize in a fixed order.
type Repository interface {
	// Book places a confirmed booking when a seat and a credit are both
	// available, or appends a waitlist entry when the class is full. The
	// credit check runs before the capacity check.
	Book(ctx context.Context, clientID, classID, subscriptionID int) (*BookResult, error)

	// Cancel marks a confirmed booking cancelled and restores one credit to
	// the booking's subscription. It does not promote; the caller decides
	// whether to run a promotion pass afterwards.
	Cancel(ctx context.Context, bookingID int, cancelledBy string) (*CancelResult, error)

	// Promote fills freed seats from the waitlist in position order. Entries
	// whose client cannot be booked (duplicate booking, no usable
	// subscription) are removed and reported as skipped. The class row stays
	// locked from the seat count through the last insert.
	Promote(ctx context.Context, classID int) (*PromotionOutcome, error)

	MarkAttended(ctx context.Context, bookingID int) (*Booking, error)
	MarkNoShow(ctx context.Context, bookingID int) (*Booking, error)

	// Withdraw removes a client's waitlist entry for a class.
	Withdraw(ctx context.Context, classID, clientID int) error

	GetByID(ctx context.Context, bookingID int) (*Booking, error)
	ListByClient(ctx context.Context, clientID int) ([]BookingWithDetails, error)
	ListByClass(ctx context.Context, classID int) ([]BookingWithDetails, error)
	ListWaitlist(ctx context.Context, classID int) ([]WaitlistEntry, error)
}
