package server

import (
	"net/http"

	"studioflow/internal/api"
	"studioflow/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Router       /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
}

// @Summary      Queue a test notification
// @Tags         system
// @Produce      json
// @Param        client_id query int true "Client ID"
// @Param        class_id  query int true "Class ID"
// @Success      200 {object} api.MessageResponse
// @Failure      400 {object} api.ErrorResponse
// @Router       /test-notification [get]
func TestNotification(notifyService *notify.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query struct {
			ClientID int `form:"client_id" binding:"required"`
			ClassID  int `form:"class_id" binding:"required"`
		}
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "client_id and class_id parameters required"})
			return
		}

		notifyService.BookingConfirmed(c.Request.Context(), query.ClientID, query.ClassID)
		c.JSON(http.StatusOK, api.MessageResponse{Message: "Notification queued"})
	}
}

// @Summary      Prometheus metrics
// @Description  Exposes Prometheus metrics in text format
// @Tags         system
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
