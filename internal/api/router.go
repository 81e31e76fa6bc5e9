package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/tradelink-hq/tradelink/internal/app"
	"github.com/tradelink-hq/tradelink/internal/auth"
	"github.com/tradelink-hq/tradelink/internal/handlers"
	"github.com/tradelink-hq/tradelink/internal/middleware"
	"github.com/tradelink-hq/tradelink/internal/realtime"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *auth.JWTService, hub *realtime.Hub, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}
	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(cfg.Monitoring.Prometheus.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler, err := handlers.NewAuthHandler(db, jwt)
	if err != nil {
		return nil, err
	}

	// Public auth routes
	public := r.Group("/api/auth")
	{
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
	}

	// Realtime stream authenticates via query token inside the handler,
	// so it stays outside the Auth middleware group.
	realtimeHandler := handlers.NewRealtimeHandler(hub, jwt)
	r.GET("/api/realtime/ws", realtimeHandler.Stream)

	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	profileHandler, err := handlers.NewProfileHandler(db)
	if err != nil {
		return nil, err
	}
	api.GET("/profiles/:id", profileHandler.Get)
	api.PATCH("/profile", profileHandler.Update)

	companyHandler, err := handlers.NewCompanyHandler(db)
	if err != nil {
		return nil, err
	}
	companies := api.Group("/companies")
	{
		companies.GET("", companyHandler.List)
		companies.GET("/:id", companyHandler.Get)
		companies.POST("", companyHandler.Create)
		companies.PATCH("/:id", companyHandler.Update)
	}

	jobHandler, err := handlers.NewJobHandler(db, hub)
	if err != nil {
		return nil, err
	}
	jobs := api.Group("/jobs")
	{
		jobs.GET("", jobHandler.List)
		jobs.GET("/:id", jobHandler.Get)
		jobs.POST("", jobHandler.Create)
		jobs.PATCH("/:id", jobHandler.Update)
		jobs.POST("/:id/close", jobHandler.Close)
		jobs.POST("/:id/apply", jobHandler.Apply)
		jobs.GET("/:id/applications", jobHandler.ListApplications)
	}
	api.POST("/applications/:applicationId/decide", jobHandler.Decide)

	feedHandler, err := handlers.NewFeedHandler(db, hub)
	if err != nil {
		return nil, err
	}
	feed := api.Group("/feed")
	{
		feed.GET("", feedHandler.List)
		feed.POST("", feedHandler.Create)
		feed.GET("/:id", feedHandler.Get)
		feed.POST("/:id/like", feedHandler.Like)
		feed.DELETE("/:id/like", feedHandler.Unlike)
		feed.POST("/:id/comments", feedHandler.Comment)
		feed.GET("/:id/comments", feedHandler.ListComments)
		feed.POST("/:id/share", feedHandler.Share)
	}

	chatHandler, err := handlers.NewChatHandler(db, hub)
	if err != nil {
		return nil, err
	}
	conversations := api.Group("/chat/conversations")
	{
		conversations.GET("", chatHandler.ListConversations)
		conversations.POST("", chatHandler.CreateConversation)
		conversations.GET("/:id", chatHandler.GetConversation)
		conversations.GET("/:id/messages", chatHandler.ListMessages)
		conversations.POST("/:id/messages", chatHandler.SendMessage)
		conversations.PATCH("/:id/messages/:messageId", chatHandler.EditMessage)
		conversations.DELETE("/:id/messages/:messageId", chatHandler.DeleteMessage)
		conversations.POST("/:id/read", chatHandler.MarkRead)
	}

	notificationHandler, err := handlers.NewNotificationHandler(db, hub)
	if err != nil {
		return nil, err
	}
	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read_all", notificationHandler.MarkAllRead)
		notifications.DELETE("/:id", notificationHandler.Delete)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
