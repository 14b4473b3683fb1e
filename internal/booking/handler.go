package booking

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"studioflow/internal/auth"
	"studioflow/internal/client"
	"studioflow/internal/logger"
	"studioflow/internal/subscription"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc        Service
	clientRepo client.Repository
}

func NewHandler(svc Service, clientRepo client.Repository) *Handler {
	return &Handler{svc: svc, clientRepo: clientRepo}
}

// Book godoc
// @Summary      Book a class
// @Description  Confirms a seat when one is free, otherwise appends the client to the waitlist. One class credit is consumed only on confirmation.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        classID  path      int          true  "Class ID"
// @Param        request  body      BookRequest  true  "Subscription to book against"
// @Success      201      {object}  BookResult
// @Failure      404      {object}  gin.H
// @Failure      409      {object}  gin.H
// @Failure      422      {object}  gin.H
// @Router       /classes/{classID}/bookings [post]
func (h *Handler) Book(c *gin.Context) {
	cl, ok := h.requireClient(c)
	if !ok {
		return
	}
	h.book(c, nil, cl.ID)
}

// BookForClient godoc
// @Summary      Book a class for a client
// @Description  Reception-desk booking on a client's behalf.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        classID  path      int          true  "Class ID"
// @Param        request  body      BookRequest  true  "Client and subscription"
// @Success      201      {object}  BookResult
// @Failure      404      {object}  gin.H
// @Failure      409      {object}  gin.H
// @Failure      422      {object}  gin.H
// @Router       /admin/classes/{classID}/bookings [post]
func (h *Handler) BookForClient(c *gin.Context) {
	actorID, _ := auth.GetUserID(c)
	h.book(c, &actorID, 0)
}

func (h *Handler) book(c *gin.Context, actorID *int, clientID int) {
	classID, err := strconv.Atoi(c.Param("classID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid class ID"})
		return
	}

	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if clientID == 0 {
		clientID = req.ClientID
	}
	if clientID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Client ID is required"})
		return
	}

	result, err := h.svc.Book(c.Request.Context(), actorID, clientID, classID, req.SubscriptionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Cancel godoc
// @Summary      Cancel my booking
// @Description  Restores the consumed credit and promotes the head of the waitlist if a seat opened.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  Booking
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /bookings/{bookingID} [delete]
func (h *Handler) Cancel(c *gin.Context) {
	cl, ok := h.requireClient(c)
	if !ok {
		return
	}

	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	existing, err := h.svc.GetByID(c.Request.Context(), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if existing.ClientID != cl.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your booking"})
		return
	}

	booking, err := h.svc.Cancel(c.Request.Context(), nil, bookingID, CancelledByClient)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CancelForClient godoc
// @Summary      Cancel a booking
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  Booking
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /admin/bookings/{bookingID} [delete]
func (h *Handler) CancelForClient(c *gin.Context) {
	actorID, _ := auth.GetUserID(c)

	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, err := h.svc.Cancel(c.Request.Context(), &actorID, bookingID, CancelledByReception)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// MarkAttended godoc
// @Summary      Mark booking attended
// @Tags         attendance
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  Booking
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /staff/bookings/{bookingID}/attended [post]
func (h *Handler) MarkAttended(c *gin.Context) {
	h.markAttendance(c, h.svc.MarkAttended)
}

// MarkNoShow godoc
// @Summary      Mark booking no-show
// @Description  The class credit stays consumed.
// @Tags         attendance
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  Booking
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /staff/bookings/{bookingID}/no-show [post]
func (h *Handler) MarkNoShow(c *gin.Context) {
	h.markAttendance(c, h.svc.MarkNoShow)
}

// Withdraw godoc
// @Summary      Leave a waitlist
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        classID  path      int  true  "Class ID"
// @Success      200      {object}  api.MessageResponse
// @Failure      404      {object}  gin.H
// @Router       /classes/{classID}/waitlist [delete]
func (h *Handler) Withdraw(c *gin.Context) {
	cl, ok := h.requireClient(c)
	if !ok {
		return
	}

	classID, err := strconv.Atoi(c.Param("classID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid class ID"})
		return
	}

	if err := h.svc.Withdraw(c.Request.Context(), nil, classID, cl.ID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Removed from waitlist"})
}

// ListMine godoc
// @Summary      List my bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  BookingWithDetails
// @Router       /bookings [get]
func (h *Handler) ListMine(c *gin.Context) {
	cl, ok := h.requireClient(c)
	if !ok {
		return
	}

	bookings, err := h.svc.ListByClient(c.Request.Context(), cl.ID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// ListByClass godoc
// @Summary      List class roster
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        classID  path      int  true  "Class ID"
// @Success      200      {array}  BookingWithDetails
// @Router       /staff/classes/{classID}/bookings [get]
func (h *Handler) ListByClass(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("classID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid class ID"})
		return
	}

	bookings, err := h.svc.ListByClass(c.Request.Context(), classID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// ListWaitlist godoc
// @Summary      List class waitlist
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        classID  path      int  true  "Class ID"
// @Success      200      {array}  WaitlistEntry
// @Router       /staff/classes/{classID}/waitlist [get]
func (h *Handler) ListWaitlist(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("classID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid class ID"})
		return
	}

	entries, err := h.svc.ListWaitlist(c.Request.Context(), classID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *Handler) markAttendance(c *gin.Context, op func(ctx context.Context, actorID *int, bookingID int) (*Booking, error)) {
	actorID, _ := auth.GetUserID(c)

	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, err := op(c.Request.Context(), &actorID, bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

func (h *Handler) requireClient(c *gin.Context) (*client.Client, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}

	cl, err := h.clientRepo.FindByUserID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No client record for this account"})
			return nil, false
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return nil, false
	}
	return cl, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrClassNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
	case errors.Is(err, ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case errors.Is(err, ErrWaitlistEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not on the waitlist"})
	case errors.Is(err, subscription.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
	case errors.Is(err, ErrSubscriptionMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": "Subscription belongs to another client"})
	case errors.Is(err, subscription.ErrSubscriptionInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "Subscription is not active"})
	case errors.Is(err, subscription.ErrInsufficientCredits):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Insufficient credits"})
	case errors.Is(err, ErrDuplicateBooking):
		c.JSON(http.StatusConflict, gin.H{"error": "Client already holds a booking or waitlist spot for this class"})
	case errors.Is(err, ErrInvalidStateTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Booking is not in a cancellable state"})
	default:
		logger.Errorf("Booking operation failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
	}
}
