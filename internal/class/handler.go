package class

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"studioflow/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	repo Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{repo: NewRepository(db)}
}

func (h *Handler) Repo() Repository {
	return h.repo
}

// Create godoc
// @Summary      Schedule class
// @Description  Creates a scheduled class with an instructor and a capacity.
// @Tags         classes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateClassRequest  true  "Class data"
// @Success      201      {object}  Class
// @Failure      400      {object}  gin.H
// @Failure      500      {object}  gin.H
// @Router       /admin/classes [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid starts_at format, use RFC3339"})
		return
	}

	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ends_at format, use RFC3339"})
		return
	}

	if !endsAt.After(startsAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ends_at must be after starts_at"})
		return
	}

	class, err := h.repo.Create(c.Request.Context(), req.Name, req.InstructorID, startsAt, endsAt, req.Capacity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create class"})
		return
	}

	c.JSON(http.StatusCreated, class)
}

// List godoc
// @Summary      List upcoming classes
// @Description  Returns upcoming classes with enrolled counts and availability.
// @Tags         classes
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   ClassWithAvailability
// @Failure      500  {object}  gin.H
// @Router       /classes [get]
func (h *Handler) List(c *gin.Context) {
	classes, err := h.repo.ListWithAvailability(c.Request.Context(), true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch classes"})
		return
	}

	c.JSON(http.StatusOK, classes)
}

// Get godoc
// @Summary      Get class
// @Tags         classes
// @Security     BearerAuth
// @Produce      json
// @Param        classID  path      int  true  "Class ID"
// @Success      200      {object}  Class
// @Failure      404      {object}  gin.H
// @Router       /classes/{classID} [get]
func (h *Handler) Get(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("classID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid class ID"})
		return
	}

	class, err := h.repo.GetByID(c.Request.Context(), classID)
	if err != nil {
		if errors.Is(err, ErrClassNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch class"})
		return
	}

	c.JSON(http.StatusOK, class)
}

// ListMine godoc
// @Summary      Instructor schedule
// @Description  Returns classes taught by the authenticated instructor.
// @Tags         classes
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Class
// @Failure      500  {object}  gin.H
// @Router       /instructor/classes [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	classes, err := h.repo.ListByInstructor(c.Request.Context(), userID, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch classes"})
		return
	}

	c.JSON(http.StatusOK, classes)
}
