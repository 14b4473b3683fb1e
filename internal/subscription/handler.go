package subscription

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"studioflow/internal/auth"
	"studioflow/internal/client"
	"studioflow/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	svc        Service
	ledger     *Ledger
	clientRepo client.Repository
}

func NewHandler(svc Service, ledger *Ledger, clientRepo client.Repository) *Handler {
	return &Handler{svc: svc, ledger: ledger, clientRepo: clientRepo}
}

func NewHandlerFromDB(db *sqlx.DB, svc Service, ledger *Ledger) *Handler {
	return NewHandler(svc, ledger, client.NewRepository(db))
}

// ListPlans godoc
// @Summary      List subscription plans
// @Tags         subscriptions
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Plan
// @Router       /plans [get]
func (h *Handler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, Plans())
}

// Purchase godoc
// @Summary      Purchase subscription
// @Description  Creates an active subscription for a client loaded with the plan's class credits.
// @Tags         subscriptions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      PurchaseRequest  true  "Purchase data"
// @Success      201      {object}  PurchaseResponse
// @Failure      400      {object}  gin.H
// @Failure      409      {object}  gin.H
// @Failure      503      {object}  gin.H
// @Router       /admin/subscriptions [post]
func (h *Handler) Purchase(c *gin.Context) {
	actorID, _ := auth.GetUserID(c)

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.clientRepo.GetByID(c.Request.Context(), req.ClientID); err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}

	sub, plan, err := h.svc.Purchase(c.Request.Context(), &actorID, req.ClientID, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownPlan):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan"})
		case errors.Is(err, ErrOverlappingSubscription):
			c.JSON(http.StatusConflict, gin.H{"error": "Client already has a live subscription for this plan"})
		default:
			logger.Errorf("Failed to purchase subscription for client %d: %v", req.ClientID, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		}
		return
	}

	c.JSON(http.StatusCreated, PurchaseResponse{Subscription: sub, Plan: plan})
}

// Get godoc
// @Summary      Get subscription
// @Tags         subscriptions
// @Security     BearerAuth
// @Produce      json
// @Param        subID  path      int  true  "Subscription ID"
// @Success      200    {object}  Subscription
// @Failure      404    {object}  gin.H
// @Router       /admin/subscriptions/{subID} [get]
func (h *Handler) Get(c *gin.Context) {
	subID, err := strconv.Atoi(c.Param("subID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	sub, err := h.svc.Get(c.Request.Context(), subID)
	if err != nil {
		h.respondError(c, err, subID)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ListByClient godoc
// @Summary      List client subscriptions
// @Tags         subscriptions
// @Security     BearerAuth
// @Produce      json
// @Param        clientID  path      int  true  "Client ID"
// @Success      200       {array}   Subscription
// @Failure      400       {object}  gin.H
// @Router       /admin/clients/{clientID}/subscriptions [get]
func (h *Handler) ListByClient(c *gin.Context) {
	clientID, err := strconv.Atoi(c.Param("clientID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	subs, err := h.svc.ListByClient(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}

	c.JSON(http.StatusOK, subs)
}

// ListMine godoc
// @Summary      List my subscriptions
// @Description  Returns the authenticated client's subscriptions.
// @Tags         subscriptions
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Subscription
// @Failure      404  {object}  gin.H
// @Router       /subscriptions [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	cl, err := h.clientRepo.FindByUserID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, client.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No client record for this account"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}

	subs, err := h.svc.ListByClient(c.Request.Context(), cl.ID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}

	c.JSON(http.StatusOK, subs)
}

// AddCredits godoc
// @Summary      Add class credits
// @Tags         credits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        subID    path      int            true  "Subscription ID"
// @Param        request  body      CreditRequest  true  "Credit count"
// @Success      200      {object}  CreditResponse
// @Failure      400      {object}  gin.H
// @Failure      404      {object}  gin.H
// @Router       /admin/subscriptions/{subID}/credits [post]
func (h *Handler) AddCredits(c *gin.Context) {
	actorID, _ := auth.GetUserID(c)

	subID, err := strconv.Atoi(c.Param("subID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.ledger.AddCredits(c.Request.Context(), &actorID, subID, req.Count)
	if err != nil {
		h.respondError(c, err, subID)
		return
	}

	c.JSON(http.StatusOK, CreditResponse{SubscriptionID: subID, RemainingClasses: balance})
}

// RemoveCredits godoc
// @Summary      Remove class credits
// @Description  Administrative correction; works on paused subscriptions too.
// @Tags         credits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        subID    path      int            true  "Subscription ID"
// @Param        request  body      CreditRequest  true  "Credit count and reason"
// @Success      200      {object}  CreditResponse
// @Failure      400      {object}  gin.H
// @Failure      404      {object}  gin.H
// @Failure      422      {object}  gin.H
// @Router       /admin/subscriptions/{subID}/credits/remove [post]
func (h *Handler) RemoveCredits(c *gin.Context) {
	actorID, _ := auth.GetUserID(c)

	subID, err := strconv.Atoi(c.Param("subID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.ledger.RemoveCredits(c.Request.Context(), &actorID, subID, req.Count, req.Reason)
	if err != nil {
		h.respondError(c, err, subID)
		return
	}

	c.JSON(http.StatusOK, CreditResponse{SubscriptionID: subID, RemainingClasses: balance})
}

// Pause godoc
// @Summary      Pause subscription
// @Tags         subscriptions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        subID    path      int           true  "Subscription ID"
// @Param        request  body      PauseRequest  true  "Days to pause (1-365)"
// @Success      200      {object}  Subscription
// @Failure      400      {object}  gin.H
// @Failure      409      {object}  gin.H
// @Router       /admin/subscriptions/{subID}/pause [post]
func (h *Handler) Pause(c *gin.Context) {
	actorID, _ := auth.GetUserID(c)

	subID, err := strconv.Atoi(c.Param("subID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	var req PauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.svc.Pause(c.Request.Context(), &actorID, subID, req.Days)
	if err != nil {
		h.respondError(c, err, subID)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Resume godoc
// @Summary      Resume paused subscription
// @Tags         subscriptions
// @Security     BearerAuth
// @Produce      json
// @Param        subID  path      int  true  "Subscription ID"
// @Success      200    {object}  Subscription
// @Failure      409    {object}  gin.H
// @Router       /admin/subscriptions/{subID}/resume [post]
func (h *Handler) Resume(c *gin.Context) {
	actorID, _ := auth.GetUserID(c)

	subID, err := strconv.Atoi(c.Param("subID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	sub, err := h.svc.Resume(c.Request.Context(), &actorID, subID)
	if err != nil {
		h.respondError(c, err, subID)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Cancel godoc
// @Summary      Cancel subscription
// @Description  Refundable close: stops future bookings, keeps the credit balance for audit.
// @Tags         subscriptions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        subID    path      int            true  "Subscription ID"
// @Param        request  body      CancelRequest  false "Reason"
// @Success      200      {object}  Subscription
// @Failure      409      {object}  gin.H
// @Router       /admin/subscriptions/{subID}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	h.closeSubscription(c, h.svc.Cancel)
}

// Terminate godoc
// @Summary      Terminate subscription
// @Description  Non-refundable close, immediate effect.
// @Tags         subscriptions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        subID    path      int            true  "Subscription ID"
// @Param        request  body      CancelRequest  false "Reason"
// @Success      200      {object}  Subscription
// @Failure      409      {object}  gin.H
// @Router       /admin/subscriptions/{subID}/terminate [post]
func (h *Handler) Terminate(c *gin.Context) {
	h.closeSubscription(c, h.svc.Terminate)
}

func (h *Handler) closeSubscription(c *gin.Context, op func(ctx context.Context, actorID *int, id int, reason string) (*Subscription, error)) {
	actorID, _ := auth.GetUserID(c)

	subID, err := strconv.Atoi(c.Param("subID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	var req CancelRequest
	_ = c.ShouldBindJSON(&req)

	sub, err := op(c.Request.Context(), &actorID, subID, req.Reason)
	if err != nil {
		h.respondError(c, err, subID)
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (h *Handler) respondError(c *gin.Context, err error, subID int) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
	case errors.Is(err, ErrInvalidCreditCount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Credit count must be a positive integer"})
	case errors.Is(err, ErrPauseDaysOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Pause days must be between 1 and 365"})
	case errors.Is(err, ErrSubscriptionClosed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subscription is closed to credit changes"})
	case errors.Is(err, ErrInsufficientCredits):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Insufficient credits"})
	case errors.Is(err, ErrInvalidStateTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid subscription state transition"})
	default:
		logger.Errorf("Subscription %d operation failed: %v", subID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
	}
}
