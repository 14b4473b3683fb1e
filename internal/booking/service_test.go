package booking

import (
	"context"
	"errors"
	"testing"

	"studioflow/internal/activity"
	"studioflow/internal/logger"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRepo struct{ mock.Mock }

func (m *MockRepo) Book(ctx context.Context, clientID, classID, subscriptionID int) (*BookResult, error) {
	args := m.Called(ctx, clientID, classID, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BookResult), args.Error(1)
}

func (m *MockRepo) Cancel(ctx context.Context, bookingID int, cancelledBy string) (*CancelResult, error) {
	args := m.Called(ctx, bookingID, cancelledBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CancelResult), args.Error(1)
}

func (m *MockRepo) Promote(ctx context.Context, classID int) (*PromotionOutcome, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PromotionOutcome), args.Error(1)
}

func (m *MockRepo) MarkAttended(ctx context.Context, bookingID int) (*Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *MockRepo) MarkNoShow(ctx context.Context, bookingID int) (*Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *MockRepo) Withdraw(ctx context.Context, classID, clientID int) error {
	return m.Called(ctx, classID, clientID).Error(0)
}

func (m *MockRepo) GetByID(ctx context.Context, bookingID int) (*Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *MockRepo) ListByClient(ctx context.Context, clientID int) ([]BookingWithDetails, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]BookingWithDetails), args.Error(1)
}

func (m *MockRepo) ListByClass(ctx context.Context, classID int) ([]BookingWithDetails, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]BookingWithDetails), args.Error(1)
}

func (m *MockRepo) ListWaitlist(ctx context.Context, classID int) ([]WaitlistEntry, error) {
	args := m.Called(ctx, classID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]WaitlistEntry), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) BookingConfirmed(ctx context.Context, clientID, classID int) {
	m.Called(ctx, clientID, classID)
}

func (m *MockNotifier) BookingCancelled(ctx context.Context, clientID, classID int) {
	m.Called(ctx, clientID, classID)
}

func (m *MockNotifier) WaitlistPromoted(ctx context.Context, clientID, classID int) {
	m.Called(ctx, clientID, classID)
}

// recordingActivityRepo captures audit inserts in memory.
type recordingActivityRepo struct {
	actions []string
	clients []int
}

func (r *recordingActivityRepo) Insert(_ context.Context, clientID int, _ *int, action, _ string, _ types.JSONText) error {
	r.actions = append(r.actions, action)
	r.clients = append(r.clients, clientID)
	return nil
}

func (r *recordingActivityRepo) ListByClient(context.Context, int, int, int) ([]activity.Entry, error) {
	return nil, nil
}

func newTestService(repo Repository, notifier Notifier) (Service, *recordingActivityRepo) {
	logger.Init()
	audit := &recordingActivityRepo{}
	return NewService(repo, activity.NewEmitter(audit), notifier), audit
}

func TestService_BookConfirmed(t *testing.T) {
	repo := new(MockRepo)
	notifier := new(MockNotifier)
	svc, audit := newTestService(repo, notifier)

	repo.On("Book", mock.Anything, 7, 3, 12).Return(&BookResult{
		Booking:          &Booking{ID: 99, ClientID: 7, ClassID: 3, SubscriptionID: 12, Status: StatusConfirmed},
		RemainingClasses: 4,
	}, nil)
	notifier.On("BookingConfirmed", mock.Anything, 7, 3).Return()

	result, err := svc.Book(context.Background(), nil, 7, 3, 12)

	assert.NoError(t, err)
	assert.False(t, result.Waitlisted)
	assert.Equal(t, 4, result.RemainingClasses)
	assert.Equal(t, []string{activity.ActionBookingConfirmed}, audit.actions)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestService_BookWaitlisted(t *testing.T) {
	repo := new(MockRepo)
	notifier := new(MockNotifier)
	svc, audit := newTestService(repo, notifier)

	repo.On("Book", mock.Anything, 7, 3, 12).Return(&BookResult{
		Waitlisted:       true,
		WaitlistPosition: 2,
		RemainingClasses: 4,
	}, nil)

	result, err := svc.Book(context.Background(), nil, 7, 3, 12)

	assert.NoError(t, err)
	assert.True(t, result.Waitlisted)
	assert.Equal(t, 2, result.WaitlistPosition)
	assert.Equal(t, []string{activity.ActionBookingWaitlisted}, audit.actions)
	// No confirmation email for a waitlist placement.
	notifier.AssertNotCalled(t, "BookingConfirmed", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_BookErrorPassesThrough(t *testing.T) {
	repo := new(MockRepo)
	notifier := new(MockNotifier)
	svc, audit := newTestService(repo, notifier)

	repo.On("Book", mock.Anything, 7, 3, 12).Return(nil, ErrDuplicateBooking)

	result, err := svc.Book(context.Background(), nil, 7, 3, 12)

	assert.ErrorIs(t, err, ErrDuplicateBooking)
	assert.Nil(t, result)
	assert.Empty(t, audit.actions)
}

func TestService_CancelRunsPromotionPass(t *testing.T) {
	repo := new(MockRepo)
	notifier := new(MockNotifier)
	svc, audit := newTestService(repo, notifier)

	cancelled := &Booking{ID: 5, ClientID: 7, ClassID: 3, SubscriptionID: 12, Status: StatusCancelled}
	repo.On("Cancel", mock.Anything, 5, CancelledByClient).Return(&CancelResult{Booking: cancelled}, nil)
	repo.On("Promote", mock.Anything, 3).Return(&PromotionOutcome{
		Promotions: []Promotion{
			{Booking: &Booking{ID: 6, ClientID: 8, ClassID: 3}, ClientID: 8, SubscriptionID: 20, Position: 1},
		},
		Skipped: []int{9},
	}, nil)
	notifier.On("BookingCancelled", mock.Anything, 7, 3).Return()
	notifier.On("WaitlistPromoted", mock.Anything, 8, 3).Return()

	booking, err := svc.Cancel(context.Background(), nil, 5, CancelledByClient)

	assert.NoError(t, err)
	assert.Equal(t, StatusCancelled, booking.Status)
	assert.Equal(t, []string{
		activity.ActionBookingCancelled,
		activity.ActionWaitlistPromoted,
		activity.ActionWaitlistSkipped,
	}, audit.actions)
	assert.Equal(t, []int{7, 8, 9}, audit.clients)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestService_CancelSurvivesPromotionFailure(t *testing.T) {
	repo := new(MockRepo)
	notifier := new(MockNotifier)
	svc, _ := newTestService(repo, notifier)

	cancelled := &Booking{ID: 5, ClientID: 7, ClassID: 3, Status: StatusCancelled}
	repo.On("Cancel", mock.Anything, 5, CancelledByReception).Return(&CancelResult{Booking: cancelled}, nil)
	repo.On("Promote", mock.Anything, 3).Return(nil, errors.New("deadlock detected"))
	notifier.On("BookingCancelled", mock.Anything, 7, 3).Return()

	booking, err := svc.Cancel(context.Background(), nil, 5, CancelledByReception)

	assert.NoError(t, err)
	assert.NotNil(t, booking)
	repo.AssertExpectations(t)
}

func TestService_CancelErrorPassesThrough(t *testing.T) {
	repo := new(MockRepo)
	notifier := new(MockNotifier)
	svc, _ := newTestService(repo, notifier)

	repo.On("Cancel", mock.Anything, 5, CancelledByClient).Return(nil, ErrInvalidStateTransition)

	_, err := svc.Cancel(context.Background(), nil, 5, CancelledByClient)

	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	repo.AssertNotCalled(t, "Promote", mock.Anything, mock.Anything)
}

func TestService_MarkNoShow(t *testing.T) {
	repo := new(MockRepo)
	notifier := new(MockNotifier)
	svc, audit := newTestService(repo, notifier)

	repo.On("MarkNoShow", mock.Anything, 5).Return(&Booking{ID: 5, ClientID: 7, ClassID: 3, Status: StatusNoShow}, nil)

	booking, err := svc.MarkNoShow(context.Background(), nil, 5)

	assert.NoError(t, err)
	assert.Equal(t, StatusNoShow, booking.Status)
	assert.Equal(t, []string{activity.ActionAttendanceMarked}, audit.actions)
}

func TestService_Withdraw(t *testing.T) {
	repo := new(MockRepo)
	notifier := new(MockNotifier)
	svc, audit := newTestService(repo, notifier)

	repo.On("Withdraw", mock.Anything, 3, 7).Return(nil)

	err := svc.Withdraw(context.Background(), nil, 3, 7)

	assert.NoError(t, err)
	assert.Equal(t, []string{activity.ActionWaitlistWithdrawn}, audit.actions)

	repo.On("Withdraw", mock.Anything, 3, 8).Return(ErrWaitlistEntryNotFound)
	err = svc.Withdraw(context.Background(), nil, 3, 8)
	assert.ErrorIs(t, err, ErrWaitlistEntryNotFound)
}
