package client

import (
	"errors"
	"net/http"
	"strconv"

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
// @Summary      Create client
// @Description  Registers a new studio client record. Reception only.
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateClientRequest  true  "Client data"
// @Success      201      {object}  Client
// @Failure      400      {object}  gin.H
// @Failure      500      {object}  gin.H
// @Router       /admin/clients [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.repo.Create(c.Request.Context(), req.UserID, req.Name, req.Email, req.Phone, req.Notes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create client"})
		return
	}

	c.JSON(http.StatusCreated, client)
}

// Get godoc
// @Summary      Get client
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        clientID  path      int  true  "Client ID"
// @Success      200       {object}  Client
// @Failure      400       {object}  gin.H
// @Failure      404       {object}  gin.H
// @Router       /admin/clients/{clientID} [get]
func (h *Handler) Get(c *gin.Context) {
	clientID, err := strconv.Atoi(c.Param("clientID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	client, err := h.repo.GetByID(c.Request.Context(), clientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch client"})
		return
	}

	c.JSON(http.StatusOK, client)
}

// List godoc
// @Summary      List clients
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Client
// @Failure      500  {object}  gin.H
// @Router       /admin/clients [get]
func (h *Handler) List(c *gin.Context) {
	clients, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch clients"})
		return
	}

	c.JSON(http.StatusOK, clients)
}
