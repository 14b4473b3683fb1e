package booking

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"studioflow/internal/subscription"
)

// DailyAttendance aggregates booking outcomes for one calendar day.
type DailyAttendance struct {
	Day       time.Time `db:"day" json:"day"`
	Attended  int       `db:"attended" json:"attended"`
	NoShows   int       `db:"no_shows" json:"no_shows"`
	Cancelled int       `db:"cancelled" json:"cancelled"`
}

// ClassOccupancy is the fill rate of one scheduled class.
type ClassOccupancy struct {
	ClassID    int       `db:"class_id" json:"class_id"`
	ClassName  string    `db:"class_name" json:"class_name"`
	StartsAt   time.Time `db:"starts_at" json:"starts_at"`
	Capacity   int       `db:"capacity" json:"capacity"`
	Enrolled   int       `db:"enrolled" json:"enrolled"`
	Waitlisted int       `db:"waitlisted" json:"waitlisted"`
}

// ClientSpend is a client's lifetime credit usage. Purchases on subscriptions
// that were cancelled with a refund are excluded, terminated ones count.
type ClientSpend struct {
	ClientID         int   `db:"client_id" json:"client_id"`
	ClassesPurchased int   `db:"classes_purchased" json:"classes_purchased"`
	ClassesAttended  int   `db:"classes_attended" json:"classes_attended"`
	NoShows          int   `db:"no_shows" json:"no_shows"`
	SpendCents       int64 `db:"spend_cents" json:"spend_cents"`
}

type Analytics struct {
	db *sqlx.DB
}

func NewAnalytics(db *sqlx.DB) *Analytics {
	return &Analytics{db: db}
}

func (a *Analytics) DailyAttendance(ctx context.Context, days int) ([]DailyAttendance, error) {
	rows := []DailyAttendance{}
	err := a.db.SelectContext(ctx, &rows, `
		SELECT date_trunc('day', c.starts_at) AS day,
		       COUNT(*) FILTER (WHERE b.status = 'attended') AS attended,
		       COUNT(*) FILTER (WHERE b.status = 'no_show') AS no_shows,
		       COUNT(*) FILTER (WHERE b.status = 'cancelled') AS cancelled
		FROM bookings b
		JOIN classes c ON c.id = b.class_id
		WHERE c.starts_at >= NOW() - ($1 || ' days')::interval
		GROUP BY day
		ORDER BY day`, days)
	if err != nil {
		return nil, fmt.Errorf("daily attendance: %w", err)
	}
	return rows, nil
}

func (a *Analytics) Occupancy(ctx context.Context) ([]ClassOccupancy, error) {
	rows := []ClassOccupancy{}
	err := a.db.SelectContext(ctx, &rows, `
		SELECT c.id AS class_id, c.name AS class_name, c.starts_at, c.capacity,
		       COUNT(b.id) FILTER (WHERE b.status IN ('confirmed', 'attended')) AS enrolled,
		       (SELECT COUNT(*) FROM waitlist_entries w WHERE w.class_id = c.id) AS waitlisted
		FROM classes c
		LEFT JOIN bookings b ON b.class_id = c.id
		WHERE c.starts_at >= NOW()
		GROUP BY c.id
		ORDER BY c.starts_at`)
	if err != nil {
		return nil, fmt.Errorf("class occupancy: %w", err)
	}
	return rows, nil
}

func (a *Analytics) ClientSpend(ctx context.Context, clientID int) (*ClientSpend, error) {
	spend := ClientSpend{ClientID: clientID}

	var planIDs []string
	err := a.db.SelectContext(ctx, &planIDs, `
		SELECT plan_id FROM subscriptions
		WHERE client_id = $1 AND status <> 'cancelled'`, clientID)
	if err != nil {
		return nil, fmt.Errorf("client spend for %d: %w", clientID, err)
	}

	// Plan prices live in the catalogue, not the database. Cancelled
	// subscriptions are refunded and excluded above.
	for _, planID := range planIDs {
		plan, err := subscription.FindPlan(planID)
		if err != nil {
			continue
		}
		spend.ClassesPurchased += plan.Classes
		spend.SpendCents += plan.PriceCents
	}

	err = a.db.GetContext(ctx, &spend.ClassesAttended, `
		SELECT COUNT(*) FROM bookings WHERE client_id = $1 AND status = 'attended'`, clientID)
	if err != nil {
		return nil, fmt.Errorf("client spend for %d: %w", clientID, err)
	}
	err = a.db.GetContext(ctx, &spend.NoShows, `
		SELECT COUNT(*) FROM bookings WHERE client_id = $1 AND status = 'no_show'`, clientID)
	if err != nil {
		return nil, fmt.Errorf("client spend for %d: %w", clientID, err)
	}
	return &spend, nil
}

type AnalyticsHandler struct {
	analytics *Analytics
}

func NewAnalyticsHandler(analytics *Analytics) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// DailyAttendance godoc
// @Summary      Attendance by day
// @Tags         analytics
// @Security     BearerAuth
// @Produce      json
// @Param        days  query     int  false  "Window in days"  default(30)
// @Success      200   {array}   DailyAttendance
// @Router       /admin/analytics/attendance [get]
func (h *AnalyticsHandler) DailyAttendance(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 || days > 365 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days window"})
		return
	}

	rows, err := h.analytics.DailyAttendance(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Occupancy godoc
// @Summary      Upcoming class occupancy
// @Tags         analytics
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  ClassOccupancy
// @Router       /admin/analytics/occupancy [get]
func (h *AnalyticsHandler) Occupancy(c *gin.Context) {
	rows, err := h.analytics.Occupancy(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ClientSpend godoc
// @Summary      Client lifetime spend
// @Tags         analytics
// @Security     BearerAuth
// @Produce      json
// @Param        clientID  path      int  true  "Client ID"
// @Success      200       {object}  ClientSpend
// @Router       /admin/clients/{clientID}/spend [get]
func (h *AnalyticsHandler) ClientSpend(c *gin.Context) {
	clientID, err := strconv.Atoi(c.Param("clientID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client ID"})
		return
	}

	spend, err := h.analytics.ClientSpend(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, spend)
}
