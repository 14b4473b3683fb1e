package server

import (
	"context"
	"net/http"

	"studioflow/internal/activity"
	"studioflow/internal/auth"
	"studioflow/internal/booking"
	"studioflow/internal/class"
	"studioflow/internal/client"
	"studioflow/internal/config"
	"studioflow/internal/notify"
	"studioflow/internal/subscription"
	"studioflow/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
	notify *notify.Service
}

func New(db *sqlx.DB, cfg *config.Config, notifyService *notify.Service) *Server {
	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())

	activityHandler := activity.NewHandler(db)
	emitter := activityHandler.Emitter()

	userHandler := user.NewHandler(db, cfg.JWTSecret)
	clientHandler := client.NewHandler(db)
	classHandler := class.NewHandler(db)

	subRepo := subscription.NewRepository(db)
	subService := subscription.NewService(subRepo, emitter)
	ledger := subscription.NewLedger(subRepo, emitter)
	subHandler := subscription.NewHandler(subService, ledger, clientHandler.Repo())

	bookingRepo := booking.NewRepository(db)
	bookingService := booking.NewService(bookingRepo, emitter, notifyService)
	bookingHandler := booking.NewHandler(bookingService, clientHandler.Repo())
	analyticsHandler := booking.NewAnalyticsHandler(booking.NewAnalytics(db))

	public := router.Group("/auth")
	public.Use(RateLimitMiddleware(5, 10))
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.RefreshToken)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)

	// Client-facing routes. Booking and waitlist operations resolve the
	// client record from the authenticated user.
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.GetMe)
		protected.GET("/plans", subHandler.ListPlans)
		protected.GET("/classes", classHandler.List)
		protected.GET("/classes/:classID", classHandler.Get)
		protected.GET("/subscriptions", subHandler.ListMine)
		protected.POST("/classes/:classID/bookings", bookingHandler.Book)
		protected.DELETE("/classes/:classID/waitlist", bookingHandler.Withdraw)
		protected.GET("/bookings", bookingHandler.ListMine)
		protected.DELETE("/bookings/:bookingID", bookingHandler.Cancel)
	}

	// Instructor and reception routes: rosters and attendance.
	staff := router.Group("/staff")
	staff.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin, auth.RoleReception, auth.RoleInstructor))
	{
		staff.GET("/classes", classHandler.ListMine)
		staff.GET("/classes/:classID/bookings", bookingHandler.ListByClass)
		staff.GET("/classes/:classID/waitlist", bookingHandler.ListWaitlist)
		staff.POST("/bookings/:bookingID/attended", bookingHandler.MarkAttended)
		staff.POST("/bookings/:bookingID/no-show", bookingHandler.MarkNoShow)
	}

	// Reception desk and admin routes: client CRM, subscriptions, the
	// credit ledger and bookings on a client's behalf.
	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin, auth.RoleReception))
	{
		admin.POST("/clients", clientHandler.Create)
		admin.GET("/clients", clientHandler.List)
		admin.GET("/clients/:clientID", clientHandler.Get)
		admin.GET("/clients/:clientID/subscriptions", subHandler.ListByClient)
		admin.GET("/clients/:clientID/activity", activityHandler.ListByClient)

		admin.POST("/subscriptions", subHandler.Purchase)
		admin.GET("/subscriptions/:subID", subHandler.Get)
		admin.POST("/subscriptions/:subID/credits", subHandler.AddCredits)
		admin.POST("/subscriptions/:subID/credits/remove", subHandler.RemoveCredits)
		admin.POST("/subscriptions/:subID/pause", subHandler.Pause)
		admin.POST("/subscriptions/:subID/resume", subHandler.Resume)
		admin.POST("/subscriptions/:subID/cancel", subHandler.Cancel)
		admin.POST("/subscriptions/:subID/terminate", subHandler.Terminate)

		admin.POST("/classes", classHandler.Create)
		admin.POST("/classes/:classID/bookings", bookingHandler.BookForClient)
		admin.DELETE("/bookings/:bookingID", bookingHandler.CancelForClient)
	}

	// Admin-only: staff management and reporting.
	adminOnly := router.Group("/admin")
	adminOnly.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		adminOnly.POST("/staff", userHandler.CreateStaff)
		adminOnly.GET("/instructors", userHandler.ListInstructors)
		adminOnly.GET("/analytics/attendance", analyticsHandler.DailyAttendance)
		adminOnly.GET("/analytics/occupancy", analyticsHandler.Occupancy)
		adminOnly.GET("/clients/:clientID/spend", analyticsHandler.ClientSpend)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.GET("/test-notification", TestNotification(notifyService))
	SetupSwagger(router)

	return &Server{
		router: router,
		db:     db,
		config: cfg,
		notify: notifyService,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
