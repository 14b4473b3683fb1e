package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"studioflow/internal/subscription"
)

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// lockedClass is the class row snapshot taken under FOR UPDATE.
type lockedClass struct {
	ID       int `db:"id"`
	Capacity int `db:"capacity"`
}

// lockedSubscription is the subscription row snapshot taken under FOR UPDATE.
type lockedSubscription struct {
	ID               int    `db:"id"`
	ClientID         int    `db:"client_id"`
	Status           string `db:"status"`
	RemainingClasses int    `db:"remaining_classes"`
	Expired          bool   `db:"expired"`
}

// Lock order inside every transaction here is class row first, subscription
// rows second. Book and Promote both follow it, which keeps concurrent
// bookings, cancellations and promotion passes on the same class deadlock
// free.
func (r *postgresRepository) Book(ctx context.Context, clientID, classID, subscriptionID int) (*BookResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback()

	class, err := lockClass(ctx, tx, classID)
	if err != nil {
		return nil, err
	}

	var sub lockedSubscription
	err = tx.GetContext(ctx, &sub, `
		SELECT id, client_id, status, remaining_classes, end_date < NOW() AS expired
		FROM subscriptions
		WHERE id = $1
		FOR UPDATE`, subscriptionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscription.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock subscription %d: %w", subscriptionID, err)
	}

	if sub.ClientID != clientID {
		return nil, ErrSubscriptionMismatch
	}
	if sub.Status != string(subscription.StatusActive) || sub.Expired {
		return nil, subscription.ErrSubscriptionInactive
	}
	if sub.RemainingClasses < 1 {
		return nil, subscription.ErrInsufficientCredits
	}

	dup, err := clientHoldsSeat(ctx, tx, classID, clientID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateBooking
	}

	enrolled, err := countEnrolled(ctx, tx, classID)
	if err != nil {
		return nil, err
	}

	if enrolled >= class.Capacity {
		var position int
		err = tx.GetContext(ctx, &position, `
			INSERT INTO waitlist_entries (class_id, client_id, position)
			VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM waitlist_entries WHERE class_id = $1))
			RETURNING position`, classID, clientID)
		if err != nil {
			return nil, fmt.Errorf("append waitlist entry: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit waitlist tx: %w", err)
		}
		return &BookResult{
			Waitlisted:       true,
			WaitlistPosition: position,
			RemainingClasses: sub.RemainingClasses,
		}, nil
	}

	remaining, err := subscription.ConsumeOneTx(ctx, tx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("consume credit for subscription %d: %w", subscriptionID, err)
	}

	booking, err := insertConfirmed(ctx, tx, clientID, classID, subscriptionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}
	return &BookResult{Booking: booking, RemainingClasses: remaining}, nil
}

func (r *postgresRepository) Cancel(ctx context.Context, bookingID int, cancelledBy string) (*CancelResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback()

	var current Booking
	err = tx.GetContext(ctx, &current, `
		SELECT id, client_id, class_id, subscription_id, status, cancelled_by, created_at, updated_at
		FROM bookings
		WHERE id = $1
		FOR UPDATE`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock booking %d: %w", bookingID, err)
	}
	if current.Status != StatusConfirmed {
		return nil, ErrInvalidStateTransition
	}

	var cancelled Booking
	err = tx.GetContext(ctx, &cancelled, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_by = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, client_id, class_id, subscription_id, status, cancelled_by, created_at, updated_at`,
		bookingID, cancelledBy)
	if err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", bookingID, err)
	}

	// Credit goes back unconditionally, even when the subscription has since
	// been paused, cancelled or expired.
	if _, err := subscription.RestoreOneTx(ctx, tx, current.SubscriptionID); err != nil {
		return nil, fmt.Errorf("restore credit for subscription %d: %w", current.SubscriptionID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel tx: %w", err)
	}
	return &CancelResult{Booking: &cancelled}, nil
}

func (r *postgresRepository) Promote(ctx context.Context, classID int) (*PromotionOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin promotion tx: %w", err)
	}
	defer tx.Rollback()

	class, err := lockClass(ctx, tx, classID)
	if err != nil {
		return nil, err
	}

	outcome := &PromotionOutcome{}
	for {
		enrolled, err := countEnrolled(ctx, tx, classID)
		if err != nil {
			return nil, err
		}
		if enrolled >= class.Capacity {
			break
		}

		var entry WaitlistEntry
		err = tx.GetContext(ctx, &entry, `
			SELECT id, class_id, client_id, position, created_at
			FROM waitlist_entries
			WHERE class_id = $1
			ORDER BY position
			LIMIT 1
			FOR UPDATE`, classID)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read waitlist head for class %d: %w", classID, err)
		}

		dup, err := clientHoldsBooking(ctx, tx, classID, entry.ClientID)
		if err != nil {
			return nil, err
		}
		if dup {
			if err := deleteWaitlistEntry(ctx, tx, entry.ID); err != nil {
				return nil, err
			}
			outcome.Skipped = append(outcome.Skipped, entry.ClientID)
			continue
		}

		// Most credits first, then newest. FOR UPDATE keeps the chosen
		// subscription stable until the decrement below.
		var sub lockedSubscription
		err = tx.GetContext(ctx, &sub, `
			SELECT id, client_id, status, remaining_classes, FALSE AS expired
			FROM subscriptions
			WHERE client_id = $1
			  AND status = 'active'
			  AND end_date >= NOW()
			  AND remaining_classes >= 1
			ORDER BY remaining_classes DESC, created_at DESC
			LIMIT 1
			FOR UPDATE`, entry.ClientID)
		if errors.Is(err, sql.ErrNoRows) {
			if err := deleteWaitlistEntry(ctx, tx, entry.ID); err != nil {
				return nil, err
			}
			outcome.Skipped = append(outcome.Skipped, entry.ClientID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("pick subscription for client %d: %w", entry.ClientID, err)
		}

		if _, err := subscription.ConsumeOneTx(ctx, tx, sub.ID); err != nil {
			return nil, fmt.Errorf("consume credit for subscription %d: %w", sub.ID, err)
		}

		booking, err := insertConfirmed(ctx, tx, entry.ClientID, classID, sub.ID)
		if err != nil {
			return nil, err
		}
		if err := deleteWaitlistEntry(ctx, tx, entry.ID); err != nil {
			return nil, err
		}

		outcome.Promotions = append(outcome.Promotions, Promotion{
			Booking:        booking,
			ClientID:       entry.ClientID,
			SubscriptionID: sub.ID,
			Position:       entry.Position,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit promotion tx: %w", err)
	}
	return outcome, nil
}

func (r *postgresRepository) MarkAttended(ctx context.Context, bookingID int) (*Booking, error) {
	return r.transition(ctx, bookingID, StatusAttended)
}

func (r *postgresRepository) MarkNoShow(ctx context.Context, bookingID int) (*Booking, error) {
	return r.transition(ctx, bookingID, StatusNoShow)
}

// transition moves a confirmed booking to a terminal attendance status. The
// credit stays consumed either way.
func (r *postgresRepository) transition(ctx context.Context, bookingID int, to Status) (*Booking, error) {
	var booking Booking
	err := r.db.GetContext(ctx, &booking, `
		UPDATE bookings
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING id, client_id, class_id, subscription_id, status, cancelled_by, created_at, updated_at`,
		bookingID, to)
	if errors.Is(err, sql.ErrNoRows) {
		exists, existsErr := r.bookingExists(ctx, bookingID)
		if existsErr != nil {
			return nil, existsErr
		}
		if !exists {
			return nil, ErrBookingNotFound
		}
		return nil, ErrInvalidStateTransition
	}
	if err != nil {
		return nil, fmt.Errorf("mark booking %d %s: %w", bookingID, to, err)
	}
	return &booking, nil
}

func (r *postgresRepository) Withdraw(ctx context.Context, classID, clientID int) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM waitlist_entries WHERE class_id = $1 AND client_id = $2`, classID, clientID)
	if err != nil {
		return fmt.Errorf("withdraw from waitlist: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("withdraw from waitlist: %w", err)
	}
	if affected == 0 {
		return ErrWaitlistEntryNotFound
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, bookingID int) (*Booking, error) {
	var booking Booking
	err := r.db.GetContext(ctx, &booking, `
		SELECT id, client_id, class_id, subscription_id, status, cancelled_by, created_at, updated_at
		FROM bookings
		WHERE id = $1`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", bookingID, err)
	}
	return &booking, nil
}

func (r *postgresRepository) ListByClient(ctx context.Context, clientID int) ([]BookingWithDetails, error) {
	bookings := []BookingWithDetails{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT b.id, b.client_id, b.class_id, b.subscription_id, b.status, b.cancelled_by,
		       b.created_at, b.updated_at,
		       c.name AS class_name, c.starts_at AS class_starts_at,
		       cl.name AS client_name, cl.email AS client_email
		FROM bookings b
		JOIN classes c ON c.id = b.class_id
		JOIN clients cl ON cl.id = b.client_id
		WHERE b.client_id = $1
		ORDER BY c.starts_at DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for client %d: %w", clientID, err)
	}
	return bookings, nil
}

func (r *postgresRepository) ListByClass(ctx context.Context, classID int) ([]BookingWithDetails, error) {
	bookings := []BookingWithDetails{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT b.id, b.client_id, b.class_id, b.subscription_id, b.status, b.cancelled_by,
		       b.created_at, b.updated_at,
		       c.name AS class_name, c.starts_at AS class_starts_at,
		       cl.name AS client_name, cl.email AS client_email
		FROM bookings b
		JOIN classes c ON c.id = b.class_id
		JOIN clients cl ON cl.id = b.client_id
		WHERE b.class_id = $1
		ORDER BY b.created_at`, classID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for class %d: %w", classID, err)
	}
	return bookings, nil
}

func (r *postgresRepository) ListWaitlist(ctx context.Context, classID int) ([]WaitlistEntry, error) {
	entries := []WaitlistEntry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, class_id, client_id, position, created_at
		FROM waitlist_entries
		WHERE class_id = $1
		ORDER BY position`, classID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist for class %d: %w", classID, err)
	}
	return entries, nil
}

func (r *postgresRepository) bookingExists(ctx context.Context, bookingID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, bookingID)
	if err != nil {
		return false, fmt.Errorf("check booking %d: %w", bookingID, err)
	}
	return exists, nil
}

func lockClass(ctx context.Context, tx *sqlx.Tx, classID int) (*lockedClass, error) {
	var class lockedClass
	err := tx.GetContext(ctx, &class,
		`SELECT id, capacity FROM classes WHERE id = $1 FOR UPDATE`, classID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClassNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock class %d: %w", classID, err)
	}
	return &class, nil
}

func countEnrolled(ctx context.Context, tx *sqlx.Tx, classID int) (int, error) {
	var enrolled int
	err := tx.GetContext(ctx, &enrolled, `
		SELECT COUNT(*)
		FROM bookings
		WHERE class_id = $1 AND status IN ('confirmed', 'attended')`, classID)
	if err != nil {
		return 0, fmt.Errorf("count enrolled for class %d: %w", classID, err)
	}
	return enrolled, nil
}

// clientHoldsBooking reports a non-cancelled booking for the class.
func clientHoldsBooking(ctx context.Context, tx *sqlx.Tx, classID, clientID int) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE class_id = $1 AND client_id = $2 AND status <> 'cancelled'
		)`, classID, clientID)
	if err != nil {
		return false, fmt.Errorf("check duplicate booking: %w", err)
	}
	return exists, nil
}

// clientHoldsSeat additionally counts a pending waitlist entry as a seat.
func clientHoldsSeat(ctx context.Context, tx *sqlx.Tx, classID, clientID int) (bool, error) {
	booked, err := clientHoldsBooking(ctx, tx, classID, clientID)
	if err != nil {
		return false, err
	}
	if booked {
		return true, nil
	}
	var exists bool
	err = tx.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM waitlist_entries
			WHERE class_id = $1 AND client_id = $2
		)`, classID, clientID)
	if err != nil {
		return false, fmt.Errorf("check waitlist entry: %w", err)
	}
	return exists, nil
}

func insertConfirmed(ctx context.Context, tx *sqlx.Tx, clientID, classID, subscriptionID int) (*Booking, error) {
	var booking Booking
	err := tx.GetContext(ctx, &booking, `
		INSERT INTO bookings (client_id, class_id, subscription_id, status)
		VALUES ($1, $2, $3, 'confirmed')
		RETURNING id, client_id, class_id, subscription_id, status, cancelled_by, created_at, updated_at`,
		clientID, classID, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return &booking, nil
}

func deleteWaitlistEntry(ctx context.Context, tx *sqlx.Tx, entryID int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = $1`, entryID); err != nil {
		return fmt.Errorf("remove waitlist entry %d: %w", entryID, err)
	}
	return nil
}
