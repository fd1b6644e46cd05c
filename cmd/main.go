package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/agenticcms/agenticcms-backend/internal/agent"
	"github.com/agenticcms/agenticcms-backend/internal/app"
	redisclient "github.com/agenticcms/agenticcms-backend/internal/clients/redis"
	"github.com/agenticcms/agenticcms-backend/internal/db"
	"github.com/agenticcms/agenticcms-backend/internal/handlers"
	"github.com/agenticcms/agenticcms-backend/internal/logger"
	"github.com/agenticcms/agenticcms-backend/internal/middleware"
	"github.com/agenticcms/agenticcms-backend/internal/observability"
	"github.com/agenticcms/agenticcms-backend/internal/repos"
	"github.com/agenticcms/agenticcms-backend/internal/server"
	"github.com/agenticcms/agenticcms-backend/internal/services"
	"github.com/agenticcms/agenticcms-backend/internal/sse"
	"github.com/agenticcms/agenticcms-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	cfg := app.LoadConfig(log)

	// Tracing
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "agenticcms-backend",
		Environment: cfg.Environment,
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})
	if otelShutdown != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(ctx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	classroomRepo := repos.NewClassroomRepo(thePG, log)
	studentProfileRepo := repos.NewStudentProfileRepo(thePG, log)
	lessonPlanRepo := repos.NewLessonPlanRepo(thePG, log)
	creditTxnRepo := repos.NewCreditTransactionRepo(thePG, log)
	artifactRepo := repos.NewArtifactRepo(thePG, log)

	// SSE hub + optional redis fan-out
	log.Info("Setting up SSE hub...")
	sseHub := sse.NewSSEHub(log)
	var sseBus redisclient.SSEBus
	var counterStore middleware.CounterStore
	if utils.GetEnvAsBool("REDIS_ENABLED", false, log) {
		bus, busErr := redisclient.NewSSEBus(log)
		if busErr != nil {
			log.Warn("Redis SSE bus init failed; running single-node", "error", busErr)
		} else {
			sseBus = bus
			if fErr := bus.StartForwarder(context.Background(), sseHub.Broadcast); fErr != nil {
				log.Warn("Redis SSE forwarder failed to start", "error", fErr)
			}
		}
		counters, cErr := redisclient.NewCounterStore(log)
		if cErr != nil {
			log.Warn("Redis counter store init failed; using in-memory limits", "error", cErr)
		} else {
			counterStore = counters
		}
	}

	// Capability registry
	registry := agent.NewRegistry()
	if err := registry.Register(services.NewLessonPlanCapability(classroomRepo, studentProfileRepo)); err != nil {
		log.Fatal("Capability registration failed", "error", err)
	}

	// Services
	log.Info("Setting up services...")
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Fatal("Could not init BucketService", "error", err)
	}
	openaiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Fatal("Could not init OpenAIClient", "error", err)
	}
	notifier := services.NewSSENotifier(log, sseHub, sseBus)
	ledgerService := services.NewCreditLedgerService(thePG, log, userRepo, creditTxnRepo)
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, creditTxnRepo, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	userService := services.NewUserService(thePG, log, userRepo)
	classroomService := services.NewClassroomService(thePG, log, classroomRepo)
	studentProfileService := services.NewStudentProfileService(thePG, log, studentProfileRepo, classroomRepo)
	lessonPlanService := services.NewLessonPlanService(thePG, log, lessonPlanRepo, classroomRepo, artifactRepo, registry)
	agentRunService := services.NewAgentRunService(
		thePG,
		log,
		lessonPlanRepo,
		userRepo,
		artifactRepo,
		ledgerService,
		bucketService,
		openaiClient,
		registry,
		notifier,
		cfg.GenerationTimeout,
	)

	// Handlers
	log.Info("Setting up handlers...")
	authHandler := handlers.NewAuthHandler(log, authService)
	userHandler := handlers.NewUserHandler(log, userService)
	classroomHandler := handlers.NewClassroomHandler(log, classroomService, studentProfileService)
	studentProfileHandler := handlers.NewStudentProfileHandler(log, studentProfileService)
	lessonPlanHandler := handlers.NewLessonPlanHandler(log, lessonPlanService, agentRunService)
	creditsHandler := handlers.NewCreditsHandler(log, ledgerService)
	sseHandler := handlers.NewSSEHandler(log, sseHub, lessonPlanService)

	// Middleware
	log.Info("Setting up middleware...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)
	sseFlush := middleware.NewSSEFlushMiddleware(log, sseHub, sseBus)
	globalLimiter := middleware.NewRateLimiter(log, counterStore, 100, 15*time.Minute, "global")
	authLimiter := middleware.NewRateLimiter(log, counterStore, 5, 15*time.Minute, "auth")

	// Router
	log.Info("Setting up router...")
	router := server.NewRouter(server.RouterConfig{
		AllowOrigins:          cfg.AllowOrigins,
		StorageRoot:           bucketService.StorageRoot(),
		AuthMiddleware:        authMiddleware,
		SSEFlush:              sseFlush,
		GlobalLimiter:         globalLimiter,
		AuthLimiter:           authLimiter,
		AuthHandler:           authHandler,
		UserHandler:           userHandler,
		ClassroomHandler:      classroomHandler,
		StudentProfileHandler: studentProfileHandler,
		LessonPlanHandler:     lessonPlanHandler,
		CreditsHandler:        creditsHandler,
		SSEHandler:            sseHandler,
	})

	fmt.Printf("Server listening on :%s\n", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
