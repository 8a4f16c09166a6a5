package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/epicgather/epicgather/internal/auth"
	"github.com/epicgather/epicgather/internal/handlers"
	"github.com/epicgather/epicgather/internal/middleware"
	"github.com/epicgather/epicgather/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, auth *iauth.AuthService) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if auth == nil {
		return nil, fmt.Errorf("auth service must be provided")
	}

	userService, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	eventService, err := services.NewEventService(db)
	if err != nil {
		return nil, err
	}
	bookingService, err := services.NewBookingService(db)
	if err != nil {
		return nil, err
	}
	categoryService, err := services.NewCategoryService(db)
	if err != nil {
		return nil, err
	}
	tagService, err := services.NewTagService(db)
	if err != nil {
		return nil, err
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

	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(auth)
	profileHandler := handlers.NewProfileHandler(userService)
	eventHandler := handlers.NewEventHandler(eventService)
	bookingHandler := handlers.NewBookingHandler(bookingService, userService)
	taxonomyHandler := handlers.NewTaxonomyHandler(categoryService, tagService)

	// Public auth routes
	authRoutes := r.Group("/api/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/activate-account", authHandler.ActivateAccount)
		authRoutes.POST("/resend-activation", authHandler.ResendActivation)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.Refresh)
		authRoutes.POST("/logout", authHandler.Logout)
		authRoutes.POST("/forgot-password", authHandler.ForgotPassword)
		authRoutes.POST("/reset-password", authHandler.ResetPassword)
	}

	// Public catalogue
	r.GET("/api/events", eventHandler.List)
	r.GET("/api/events/:id", eventHandler.Get)
	r.GET("/api/categories", taxonomyHandler.ListCategories)
	r.GET("/api/tags", taxonomyHandler.ListTags)

	requireAuth := middleware.Auth(jwt)

	// Authenticated routes
	api := r.Group("/api", requireAuth)
	{
		api.GET("/users/me", profileHandler.Me)
		api.POST("/events/:id/book", bookingHandler.Book)
		api.GET("/bookings", bookingHandler.List)
		api.DELETE("/bookings/:id", bookingHandler.Cancel)
	}

	// Admin routes
	admin := r.Group("/api/admin", requireAuth, middleware.RequireAdmin())
	{
		admin.POST("/events", eventHandler.Create)
		admin.PUT("/events/:id", eventHandler.Update)
		admin.DELETE("/events/:id", eventHandler.Delete)
		admin.POST("/categories", taxonomyHandler.CreateCategory)
		admin.DELETE("/categories/:id", taxonomyHandler.DeleteCategory)
		admin.POST("/tags", taxonomyHandler.CreateTag)
		admin.DELETE("/tags/:id", taxonomyHandler.DeleteTag)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
