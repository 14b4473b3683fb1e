package booking

import (
	"context"
	"fmt"

	"studioflow/internal/activity"
	"studioflow/internal/logger"
	"studioflow/internal/metrics"
)

// Notifier enqueues client-facing messages. Implementations must not block
// the booking flow; delivery is best effort.
type Notifier interface {
	BookingConfirmed(ctx context.Context, clientID, classID int)
	BookingCancelled(ctx context.Context, clientID, classID int)
	WaitlistPromoted(ctx context.Context, clientID, classID int)
}

type Service interface {
	Book(ctx context.Context, actorID *int, clientID, classID, subscriptionID int) (*BookResult, error)
	Cancel(ctx context.Context, actorID *int, bookingID int, cancelledBy string) (*Booking, error)
	MarkAttended(ctx context.Context, actorID *int, bookingID int) (*Booking, error)
	MarkNoShow(ctx context.Context, actorID *int, bookingID int) (*Booking, error)
	Withdraw(ctx context.Context, actorID *int, classID, clientID int) error
	GetByID(ctx context.Context, bookingID int) (*Booking, error)
	ListByClient(ctx context.Context, clientID int) ([]BookingWithDetails, error)
	ListByClass(ctx context.Context, classID int) ([]BookingWithDetails, error)
	ListWaitlist(ctx context.Context, classID int) ([]WaitlistEntry, error)
}

type service struct {
	repo     Repository
	audit    *activity.Emitter
	notifier Notifier
}

func NewService(repo Repository, audit *activity.Emitter, notifier Notifier) Service {
	return &service{repo: repo, audit: audit, notifier: notifier}
}

func (s *service) Book(ctx context.Context, actorID *int, clientID, classID, subscriptionID int) (*BookResult, error) {
	result, err := s.repo.Book(ctx, clientID, classID, subscriptionID)
	if err != nil {
		metrics.RecordBooking("rejected")
		return nil, err
	}

	if result.Waitlisted {
		metrics.RecordBooking("waitlisted")
		s.audit.Record(ctx, clientID, actorID, activity.ActionBookingWaitlisted,
			fmt.Sprintf("Joined waitlist for class %d at position %d", classID, result.WaitlistPosition),
			map[string]interface{}{
				"class_id": classID,
				"position": result.WaitlistPosition,
			})
		return result, nil
	}

	metrics.RecordBooking("confirmed")
	metrics.RecordCredits("consumed", 1)
	s.audit.Record(ctx, clientID, actorID, activity.ActionBookingConfirmed,
		fmt.Sprintf("Booked class %d", classID),
		map[string]interface{}{
			"class_id":          classID,
			"booking_id":        result.Booking.ID,
			"subscription_id":   subscriptionID,
			"remaining_classes": result.RemainingClasses,
		})
	s.notifier.BookingConfirmed(ctx, clientID, classID)
	return result, nil
}

func (s *service) Cancel(ctx context.Context, actorID *int, bookingID int, cancelledBy string) (*Booking, error) {
	result, err := s.repo.Cancel(ctx, bookingID, cancelledBy)
	if err != nil {
		return nil, err
	}
	booking := result.Booking

	metrics.RecordBookingCancellation()
	metrics.RecordCredits("restored", 1)
	s.audit.Record(ctx, booking.ClientID, actorID, activity.ActionBookingCancelled,
		fmt.Sprintf("Cancelled booking for class %d", booking.ClassID),
		map[string]interface{}{
			"class_id":        booking.ClassID,
			"booking_id":      booking.ID,
			"subscription_id": booking.SubscriptionID,
			"cancelled_by":    cancelledBy,
		})
	s.notifier.BookingCancelled(ctx, booking.ClientID, booking.ClassID)

	// The cancellation is already committed; a promotion failure must not
	// undo it.
	s.promote(ctx, booking.ClassID)
	return booking, nil
}

func (s *service) MarkAttended(ctx context.Context, actorID *int, bookingID int) (*Booking, error) {
	booking, err := s.repo.MarkAttended(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, booking.ClientID, actorID, activity.ActionAttendanceMarked,
		fmt.Sprintf("Attended class %d", booking.ClassID),
		map[string]interface{}{
			"class_id":   booking.ClassID,
			"booking_id": booking.ID,
			"status":     booking.Status,
		})
	return booking, nil
}

func (s *service) MarkNoShow(ctx context.Context, actorID *int, bookingID int) (*Booking, error) {
	booking, err := s.repo.MarkNoShow(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, booking.ClientID, actorID, activity.ActionAttendanceMarked,
		fmt.Sprintf("Missed class %d", booking.ClassID),
		map[string]interface{}{
			"class_id":   booking.ClassID,
			"booking_id": booking.ID,
			"status":     booking.Status,
		})
	return booking, nil
}

func (s *service) Withdraw(ctx context.Context, actorID *int, classID, clientID int) error {
	if err := s.repo.Withdraw(ctx, classID, clientID); err != nil {
		return err
	}
	s.audit.Record(ctx, clientID, actorID, activity.ActionWaitlistWithdrawn,
		fmt.Sprintf("Withdrew from waitlist for class %d", classID),
		map[string]interface{}{"class_id": classID})
	return nil
}

func (s *service) GetByID(ctx context.Context, bookingID int) (*Booking, error) {
	return s.repo.GetByID(ctx, bookingID)
}

func (s *service) ListByClient(ctx context.Context, clientID int) ([]BookingWithDetails, error) {
	return s.repo.ListByClient(ctx, clientID)
}

func (s *service) ListByClass(ctx context.Context, classID int) ([]BookingWithDetails, error) {
	return s.repo.ListByClass(ctx, classID)
}

func (s *service) ListWaitlist(ctx context.Context, classID int) ([]WaitlistEntry, error) {
	return s.repo.ListWaitlist(ctx, classID)
}

// promote runs a best-effort promotion pass. Failures are logged, never
// surfaced.
func (s *service) promote(ctx context.Context, classID int) {
	outcome, err := s.repo.Promote(ctx, classID)
	if err != nil {
		logger.Error("Waitlist promotion pass failed", "class_id", classID, "error", err)
		return
	}

	for _, p := range outcome.Promotions {
		metrics.RecordWaitlistPromotion()
		metrics.RecordCredits("consumed", 1)
		s.audit.Record(ctx, p.ClientID, nil, activity.ActionWaitlistPromoted,
			fmt.Sprintf("Promoted from waitlist into class %d", classID),
			map[string]interface{}{
				"class_id":        classID,
				"booking_id":      p.Booking.ID,
				"subscription_id": p.SubscriptionID,
				"position":        p.Position,
			})
		s.notifier.WaitlistPromoted(ctx, p.ClientID, classID)
	}
	for _, clientID := range outcome.Skipped {
		s.audit.Record(ctx, clientID, nil, activity.ActionWaitlistSkipped,
			fmt.Sprintf("Removed from waitlist for class %d: no usable subscription", classID),
			map[string]interface{}{"class_id": classID})
	}
}
