package activity

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	emitter *Emitter
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{emitter: NewEmitter(NewRepository(db))}
}

func (h *Handler) Emitter() *Emitter {
	return h.emitter
}

// ListByClient godoc
// @Summary      Client activity log
// @Description  Returns the append-only activity log for a client, newest first.
// @Tags         activity
// @Security     BearerAuth
// @Produce      json
// @Param        clientID  path      int  true   "Client ID"
// @Param        limit     query     int  false  "Page size (default 50)"
// @Param        offset    query     int  false  "Offset"
// @Success      200       {array}   Entry
// @Failure      400       {object}  gin.H
// @Failure      500       {object}  gin.H
// @Router       /admin/clients/{clientID}/activity [get]
func (h *Handler) ListByClient(c *gin.Context) {
	clientID, err := strconv.Atoi(c.Param("clientID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.emitter.ListByClient(c.Request.Context(), clientID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch activity log"})
		return
	}

	c.JSON(http.StatusOK, entries)
}
