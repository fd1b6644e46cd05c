package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/agenticcms/agenticcms-backend/internal/handlers"
	"github.com/agenticcms/agenticcms-backend/internal/middleware"
)

type RouterConfig struct {
	AllowOrigins []string
	StorageRoot  string

	AuthMiddleware *middleware.AuthMiddleware
	SSEFlush       *middleware.SSEFlushMiddleware
	GlobalLimiter  *middleware.RateLimiter
	AuthLimiter    *middleware.RateLimiter

	AuthHandler           *handlers.AuthHandler
	UserHandler           *handlers.UserHandler
	ClassroomHandler      *handlers.ClassroomHandler
	StudentProfileHandler *handlers.StudentProfileHandler
	LessonPlanHandler     *handlers.LessonPlanHandler
	CreditsHandler        *handlers.CreditsHandler
	SSEHandler            *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware("agenticcms"))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodyLimit())
	router.Use(cfg.GlobalLimiter.Limit())
	router.Use(cfg.SSEFlush.Flush())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Refresh-Token"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	if cfg.StorageRoot != "" {
		router.Static("/mock-storage", cfg.StorageRoot)
	}

	api := router.Group("/api")
	auth := api.Group("/auth")
	auth.Use(cfg.AuthLimiter.Limit())
	{
		auth.POST("/register", cfg.AuthHandler.Register)
		auth.POST("/login", cfg.AuthHandler.Login)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := api.Group("")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	// Auth
	protected.POST("/auth/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/auth/logout", cfg.AuthHandler.Logout)

	// User
	protected.GET("/user", cfg.UserHandler.GetMe)

	// Classrooms
	protected.POST("/classrooms", cfg.ClassroomHandler.Create)
	protected.GET("/classrooms", cfg.ClassroomHandler.List)
	protected.GET("/classrooms/:id", cfg.ClassroomHandler.Get)
	protected.PUT("/classrooms/:id", cfg.ClassroomHandler.Update)
	protected.DELETE("/classrooms/:id", cfg.ClassroomHandler.Delete)
	protected.GET("/classrooms/:id/students", cfg.ClassroomHandler.ListStudents)

	// Student profiles
	protected.POST("/student-profiles", cfg.StudentProfileHandler.Create)
	protected.GET("/student-profiles", cfg.StudentProfileHandler.List)
	protected.GET("/student-profiles/:id", cfg.StudentProfileHandler.Get)
	protected.PUT("/student-profiles/:id", cfg.StudentProfileHandler.Update)
	protected.DELETE("/student-profiles/:id", cfg.StudentProfileHandler.Delete)

	// Lesson plans and the agent workflow
	protected.POST("/lesson-plans", cfg.LessonPlanHandler.Create)
	protected.GET("/lesson-plans", cfg.LessonPlanHandler.List)
	protected.GET("/lesson-plans/:id", cfg.LessonPlanHandler.Get)
	protected.PUT("/lesson-plans/:id", cfg.LessonPlanHandler.Update)
	protected.DELETE("/lesson-plans/:id", cfg.LessonPlanHandler.Delete)
	protected.POST("/lesson-plans/:id/start", cfg.LessonPlanHandler.Start)
	protected.GET("/lesson-plans/:id/artifacts", cfg.LessonPlanHandler.ListArtifacts)
	protected.GET("/lesson-plans/:id/actions", cfg.LessonPlanHandler.Actions)

	// Credits
	protected.POST("/credits/purchase", cfg.CreditsHandler.Purchase)
	protected.GET("/credits/balance", cfg.CreditsHandler.Balance)
	protected.GET("/credits/transactions", cfg.CreditsHandler.Transactions)

	// SSE
	protected.GET("/sse/stream", cfg.SSEHandler.Stream)
	protected.POST("/sse/subscribe", cfg.SSEHandler.Subscribe)
	protected.POST("/sse/unsubscribe", cfg.SSEHandler.Unsubscribe)

	return router
}
