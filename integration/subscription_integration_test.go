package booking_test

import (
	"context"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"studioflow/internal/activity"
	"studioflow/internal/subscription"
)

func TestPurchaseRejectsOverlap_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	database := setupTestDB(t)
	defer database.Close()

	cleanDatabase(t, database)

	repo := subscription.NewRepository(database)
	ctx := context.Background()

	clientID := createTestClient(t, database, "Anna Client", "anna@test.com")

	first, err := repo.Create(ctx, clientID, "reformer_8", 8, 60)
	require.NoError(t, err)
	require.Equal(t, subscription.StatusActive, first.Status)

	// Second live subscription for the same plan is blocked.
	_, err = repo.Create(ctx, clientID, "reformer_8", 8, 60)
	require.ErrorIs(t, err, subscription.ErrOverlappingSubscription)

	// A different plan is fine.
	_, err = repo.Create(ctx, clientID, "starter_4", 4, 30)
	require.NoError(t, err)

	// Cancelling frees the slot for a repurchase.
	_, err = repo.UpdateStatus(ctx, first.ID, []subscription.Status{subscription.StatusActive, subscription.StatusPaused}, subscription.StatusCancelled, true, nil)
	require.NoError(t, err)

	_, err = repo.Create(ctx, clientID, "reformer_8", 8, 60)
	require.NoError(t, err)
}

func TestCreditOperations_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	database := setupTestDB(t)
	defer database.Close()

	cleanDatabase(t, database)

	repo := subscription.NewRepository(database)
	ctx := context.Background()

	clientID := createTestClient(t, database, "Anna Client", "anna@test.com")

	sub, err := repo.Create(ctx, clientID, "starter_4", 4, 30)
	require.NoError(t, err)

	balance, err := repo.AddCredits(ctx, sub.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 6, balance)

	balance, err = subscription.ConsumeOneTx(ctx, database, sub.ID)
	require.NoError(t, err)
	require.Equal(t, 5, balance)

	balance, err = subscription.RestoreOneTx(ctx, database, sub.ID)
	require.NoError(t, err)
	require.Equal(t, 6, balance)

	_, err = repo.RemoveCredits(ctx, sub.ID, 10)
	require.ErrorIs(t, err, subscription.ErrInsufficientCredits)

	balance, err = repo.RemoveCredits(ctx, sub.ID, 6)
	require.NoError(t, err)
	require.Equal(t, 0, balance)
}

func TestCreditsRejectedOnClosed_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	database := setupTestDB(t)
	defer database.Close()

	cleanDatabase(t, database)

	repo := subscription.NewRepository(database)
	ctx := context.Background()

	clientID := createTestClient(t, database, "Anna Client", "anna@test.com")

	sub, err := repo.Create(ctx, clientID, "starter_4", 4, 30)
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, sub.ID, []subscription.Status{subscription.StatusActive, subscription.StatusPaused}, subscription.StatusTerminated, true, nil)
	require.NoError(t, err)

	_, err = repo.AddCredits(ctx, sub.ID, 2)
	require.ErrorIs(t, err, subscription.ErrSubscriptionClosed)

	_, err = subscription.ConsumeOneTx(ctx, database, sub.ID)
	require.ErrorIs(t, err, subscription.ErrSubscriptionInactive)

	// Restore still works so a late booking cancellation is not lost.
	balance, err := subscription.RestoreOneTx(ctx, database, sub.ID)
	require.NoError(t, err)
	require.Equal(t, 5, balance)
}

func TestLazyExpiry_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	database := setupTestDB(t)
	defer database.Close()

	cleanDatabase(t, database)

	repo := subscription.NewRepository(database)
	ctx := context.Background()

	clientID := createTestClient(t, database, "Anna Client", "anna@test.com")

	sub, err := repo.Create(ctx, clientID, "starter_4", 4, 30)
	require.NoError(t, err)

	expired, err := repo.ExpireIfDue(ctx, sub.ID)
	require.NoError(t, err)
	require.False(t, expired)

	// Push the end date into the past and expire lazily.
	_, err = database.Exec("UPDATE subscriptions SET end_date = NOW() - INTERVAL '1 day' WHERE id = $1", sub.ID)
	require.NoError(t, err)

	expired, err = repo.ExpireIfDue(ctx, sub.ID)
	require.NoError(t, err)
	require.True(t, expired)

	got, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, subscription.StatusExpired, got.Status)

	// Idempotent on a second pass.
	expired, err = repo.ExpireIfDue(ctx, sub.ID)
	require.NoError(t, err)
	require.False(t, expired)

	// A row still reading active past its end date cannot take a top-up:
	// the ledger expires it first and rejects the change as closed.
	second, err := repo.Create(ctx, clientID, "reformer_8", 8, 60)
	require.NoError(t, err)
	_, err = database.Exec("UPDATE subscriptions SET end_date = NOW() - INTERVAL '1 day' WHERE id = $1", second.ID)
	require.NoError(t, err)

	ledger := subscription.NewLedger(repo, activity.NewEmitter(activity.NewRepository(database)))
	_, err = ledger.AddCredits(ctx, nil, second.ID, 2)
	require.ErrorIs(t, err, subscription.ErrSubscriptionClosed)

	got, err = repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, subscription.StatusExpired, got.Status)
}
