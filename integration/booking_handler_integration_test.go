package booking_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"studioflow/internal/activity"
	"studioflow/internal/booking"
	"studioflow/internal/client"
)

// noopNotifier satisfies booking.Notifier without an SMTP or Redis backend.
type noopNotifier struct{}

func (noopNotifier) BookingConfirmed(ctx context.Context, clientID, classID int) {}
func (noopNotifier) BookingCancelled(ctx context.Context, clientID, classID int) {}
func (noopNotifier) WaitlistPromoted(ctx context.Context, clientID, classID int) {}

func newBookingRouter(database *sqlx.DB, userID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	emitter := activity.NewEmitter(activity.NewRepository(database))
	repo := booking.NewRepository(database)
	svc := booking.NewService(repo, emitter, noopNotifier{})
	handler := booking.NewHandler(svc, client.NewRepository(database))

	router.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("user_role", "client")
		c.Next()
	})

	router.POST("/classes/:classID/bookings", handler.Book)
	router.DELETE("/bookings/:bookingID", handler.Cancel)
	router.DELETE("/classes/:classID/waitlist", handler.Withdraw)
	router.GET("/bookings", handler.ListMine)

	return router
}

func linkClientToUser(t *testing.T, database *sqlx.DB, clientID, userID int) {
	_, err := database.Exec("UPDATE clients SET user_id = $1 WHERE id = $2", userID, clientID)
	require.NoError(t, err)
}

func TestBookHandler_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	database := setupTestDB(t)
	defer database.Close()

	cleanDatabase(t, database)

	instructorID := createTestUser(t, database, "instructor@test.com", "Test Instructor", "instructor")
	userID := createTestUser(t, database, "anna@test.com", "Anna Client", "client")
	clientID := createTestClient(t, database, "Anna Client", "anna@test.com")
	linkClientToUser(t, database, clientID, userID)
	classID := createTestClass(t, database, "Reformer Flow", instructorID, 10)
	subID := createTestSubscription(t, database, clientID, "reformer_8", 8)

	router := newBookingRouter(database, userID)

	reqBody, _ := json.Marshal(map[string]interface{}{"subscription_id": subID})
	req, _ := http.NewRequest("POST", fmt.Sprintf("/classes/%d/bookings", classID), bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var result booking.BookResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.False(t, result.Waitlisted)
	require.Equal(t, 7, result.RemainingClasses)
}

func TestBookHandlerInsufficientCredits_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	database := setupTestDB(t)
	defer database.Close()

	cleanDatabase(t, database)

	instructorID := createTestUser(t, database, "instructor@test.com", "Test Instructor", "instructor")
	userID := createTestUser(t, database, "anna@test.com", "Anna Client", "client")
	clientID := createTestClient(t, database, "Anna Client", "anna@test.com")
	linkClientToUser(t, database, clientID, userID)
	classID := createTestClass(t, database, "Reformer Flow", instructorID, 10)
	subID := createTestSubscription(t, database, clientID, "reformer_8", 0)

	router := newBookingRouter(database, userID)

	reqBody, _ := json.Marshal(map[string]interface{}{"subscription_id": subID})
	req, _ := http.NewRequest("POST", fmt.Sprintf("/classes/%d/bookings", classID), bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCancelHandlerRejectsForeignBooking_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	database := setupTestDB(t)
	defer database.Close()

	cleanDatabase(t, database)

	instructorID := createTestUser(t, database, "instructor@test.com", "Test Instructor", "instructor")

	annaUserID := createTestUser(t, database, "anna@test.com", "Anna Client", "client")
	annaID := createTestClient(t, database, "Anna Client", "anna@test.com")
	linkClientToUser(t, database, annaID, annaUserID)

	borisUserID := createTestUser(t, database, "boris@test.com", "Boris Client", "client")
	borisID := createTestClient(t, database, "Boris Client", "boris@test.com")
	linkClientToUser(t, database, borisID, borisUserID)

	classID := createTestClass(t, database, "Reformer Flow", instructorID, 10)
	annaSubID := createTestSubscription(t, database, annaID, "reformer_8", 8)

	annaRouter := newBookingRouter(database, annaUserID)

	reqBody, _ := json.Marshal(map[string]interface{}{"subscription_id": annaSubID})
	req, _ := http.NewRequest("POST", fmt.Sprintf("/classes/%d/bookings", classID), bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	annaRouter.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var result booking.BookResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	// Boris cannot cancel Anna's booking.
	borisRouter := newBookingRouter(database, borisUserID)

	req, _ = http.NewRequest("DELETE", fmt.Sprintf("/bookings/%d", result.Booking.ID), nil)
	w = httptest.NewRecorder()
	borisRouter.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestListMineHandler_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	database := setupTestDB(t)
	defer database.Close()

	cleanDatabase(t, database)

	instructorID := createTestUser(t, database, "instructor@test.com", "Test Instructor", "instructor")
	userID := createTestUser(t, database, "anna@test.com", "Anna Client", "client")
	clientID := createTestClient(t, database, "Anna Client", "anna@test.com")
	linkClientToUser(t, database, clientID, userID)
	classID := createTestClass(t, database, "Reformer Flow", instructorID, 10)
	subID := createTestSubscription(t, database, clientID, "reformer_8", 8)

	router := newBookingRouter(database, userID)

	reqBody, _ := json.Marshal(map[string]interface{}{"subscription_id": subID})
	req, _ := http.NewRequest("POST", fmt.Sprintf("/classes/%d/bookings", classID), bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	req, _ = http.NewRequest("GET", "/bookings", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var bookings []booking.BookingWithDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bookings))
	require.Len(t, bookings, 1)
}
