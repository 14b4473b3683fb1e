package subscription

import (
	"context"
	"os"
	"testing"
	"time"

	"studioflow/internal/activity"
	"studioflow/internal/logger"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	logger.Init()

	os.Exit(m.Run())
}

type MockRepo struct{ mock.Mock }

func (m *MockRepo) Create(ctx context.Context, clientID int, planID string, classes, validityDays int) (*Subscription, error) {
	args := m.Called(ctx, clientID, planID, classes, validityDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func (m *MockRepo) GetByID(ctx context.Context, id int) (*Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func (m *MockRepo) ListByClient(ctx context.Context, clientID int) ([]*Subscription, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Subscription), args.Error(1)
}

func (m *MockRepo) ListActiveByClient(ctx context.Context, clientID int) ([]*Subscription, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Subscription), args.Error(1)
}

func (m *MockRepo) AddCredits(ctx context.Context, id, count int) (int, error) {
	args := m.Called(ctx, id, count)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) RemoveCredits(ctx context.Context, id, count int) (int, error) {
	args := m.Called(ctx, id, count)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) UpdateStatus(ctx context.Context, id int, from []Status, to Status, closeOut bool, pausedUntil *time.Time) (*Subscription, error) {
	args := m.Called(ctx, id, from, to, closeOut, pausedUntil)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func (m *MockRepo) ExpireIfDue(ctx context.Context, id int) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type recordingActivityRepo struct {
	actions []string
}

func (r *recordingActivityRepo) Insert(_ context.Context, _ int, _ *int, action, _ string, _ types.JSONText) error {
	r.actions = append(r.actions, action)
	return nil
}

func (r *recordingActivityRepo) ListByClient(context.Context, int, int, int) ([]activity.Entry, error) {
	return nil, nil
}

func newTestService(repo Repository) (Service, *recordingActivityRepo) {
	audit := &recordingActivityRepo{}
	return NewService(repo, activity.NewEmitter(audit)), audit
}

func activeSub(id, clientID, remaining int) *Subscription {
	return &Subscription{
		ID:               id,
		ClientID:         clientID,
		PlanID:           "reformer_8",
		Status:           StatusActive,
		RemainingClasses: remaining,
		StartDate:        time.Now(),
		EndDate:          time.Now().AddDate(0, 0, 30),
	}
}

func TestService_Purchase(t *testing.T) {
	repo := new(MockRepo)
	svc, audit := newTestService(repo)

	repo.On("Create", mock.Anything, 7, "reformer_8", 8, mock.Anything).Return(activeSub(1, 7, 8), nil)

	sub, plan, err := svc.Purchase(context.Background(), nil, 7, "reformer_8")

	assert.NoError(t, err)
	assert.Equal(t, 8, sub.RemainingClasses)
	assert.Equal(t, "reformer_8", plan.ID)
	assert.Equal(t, []string{activity.ActionSubscriptionPurchased}, audit.actions)
	repo.AssertExpectations(t)
}

func TestService_PurchaseUnknownPlan(t *testing.T) {
	repo := new(MockRepo)
	svc, _ := newTestService(repo)

	_, _, err := svc.Purchase(context.Background(), nil, 7, "gold_unlimited")

	assert.ErrorIs(t, err, ErrUnknownPlan)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_PauseAndResume(t *testing.T) {
	repo := new(MockRepo)
	svc, audit := newTestService(repo)

	sub := activeSub(1, 7, 5)
	paused := *sub
	paused.Status = StatusPaused

	repo.On("ExpireIfDue", mock.Anything, 1).Return(false, nil)
	repo.On("GetByID", mock.Anything, 1).Return(sub, nil).Once()
	repo.On("UpdateStatus", mock.Anything, 1, []Status{StatusActive}, StatusPaused, false, mock.Anything).Return(&paused, nil)

	got, err := svc.Pause(context.Background(), nil, 1, 14)
	assert.NoError(t, err)
	assert.Equal(t, StatusPaused, got.Status)

	repo.On("GetByID", mock.Anything, 1).Return(&paused, nil).Once()
	repo.On("UpdateStatus", mock.Anything, 1, []Status{StatusPaused}, StatusActive, false, (*time.Time)(nil)).Return(sub, nil)

	got, err = svc.Resume(context.Background(), nil, 1)
	assert.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)

	assert.Equal(t, []string{activity.ActionSubscriptionPaused, activity.ActionSubscriptionResumed}, audit.actions)
}

func TestService_PauseDaysValidation(t *testing.T) {
	repo := new(MockRepo)
	svc, _ := newTestService(repo)

	for _, days := range []int{0, -3, 366} {
		_, err := svc.Pause(context.Background(), nil, 1, days)
		assert.ErrorIs(t, err, ErrPauseDaysOutOfRange)
	}
}

// Pausing an already paused subscription returns the record unchanged.
func TestService_PausePausedIsNoOp(t *testing.T) {
	repo := new(MockRepo)
	svc, audit := newTestService(repo)

	sub := activeSub(1, 7, 5)
	sub.Status = StatusPaused

	repo.On("ExpireIfDue", mock.Anything, 1).Return(false, nil)
	repo.On("GetByID", mock.Anything, 1).Return(sub, nil)

	got, err := svc.Pause(context.Background(), nil, 1, 14)

	assert.NoError(t, err)
	assert.Equal(t, StatusPaused, got.Status)
	assert.Empty(t, audit.actions)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// Resume on a non-paused subscription is an invalid transition, never a no-op.
func TestService_ResumeActiveFails(t *testing.T) {
	repo := new(MockRepo)
	svc, _ := newTestService(repo)

	repo.On("ExpireIfDue", mock.Anything, 1).Return(false, nil)
	repo.On("GetByID", mock.Anything, 1).Return(activeSub(1, 7, 5), nil)

	_, err := svc.Resume(context.Background(), nil, 1)

	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestService_CancelKeepsBalance(t *testing.T) {
	repo := new(MockRepo)
	svc, audit := newTestService(repo)

	sub := activeSub(1, 7, 5)
	cancelled := *sub
	cancelled.Status = StatusCancelled

	repo.On("ExpireIfDue", mock.Anything, 1).Return(false, nil)
	repo.On("GetByID", mock.Anything, 1).Return(sub, nil)
	repo.On("UpdateStatus", mock.Anything, 1, []Status{StatusActive, StatusPaused}, StatusCancelled, true, (*time.Time)(nil)).Return(&cancelled, nil)

	got, err := svc.Cancel(context.Background(), nil, 1, "moving away")

	assert.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, 5, got.RemainingClasses)
	assert.Equal(t, []string{activity.ActionSubscriptionCancelled}, audit.actions)
}

// Re-invoking a close with the same target status returns the existing
// record instead of failing.
func TestService_CancelTwiceIsIdempotent(t *testing.T) {
	repo := new(MockRepo)
	svc, audit := newTestService(repo)

	cancelled := activeSub(1, 7, 5)
	cancelled.Status = StatusCancelled

	repo.On("ExpireIfDue", mock.Anything, 1).Return(false, nil)
	repo.On("GetByID", mock.Anything, 1).Return(cancelled, nil)

	got, err := svc.Cancel(context.Background(), nil, 1, "again")

	assert.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Empty(t, audit.actions)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// Terminating a cancelled subscription is a different target status and a
// terminal source, so it fails.
func TestService_TerminateCancelledFails(t *testing.T) {
	repo := new(MockRepo)
	svc, _ := newTestService(repo)

	cancelled := activeSub(1, 7, 5)
	cancelled.Status = StatusCancelled

	repo.On("ExpireIfDue", mock.Anything, 1).Return(false, nil)
	repo.On("GetByID", mock.Anything, 1).Return(cancelled, nil)

	_, err := svc.Terminate(context.Background(), nil, 1, "cleanup")

	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

// Get applies lazy expiry before reading.
func TestService_GetExpiresLazily(t *testing.T) {
	repo := new(MockRepo)
	svc, _ := newTestService(repo)

	expired := activeSub(1, 7, 2)
	expired.Status = StatusExpired

	repo.On("ExpireIfDue", mock.Anything, 1).Return(true, nil)
	repo.On("GetByID", mock.Anything, 1).Return(expired, nil)

	got, err := svc.Get(context.Background(), 1)

	assert.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
	repo.AssertExpectations(t)
}
