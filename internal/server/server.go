// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	_ "github.com/blondeglamazon/message-board-sub000/docs" // swagger docs
	"github.com/blondeglamazon/message-board-sub000/internal/cache"
	"github.com/blondeglamazon/message-board-sub000/internal/config"
	"github.com/blondeglamazon/message-board-sub000/internal/database"
	"github.com/blondeglamazon/message-board-sub000/internal/middleware"
	"github.com/blondeglamazon/message-board-sub000/internal/models"
	"github.com/blondeglamazon/message-board-sub000/internal/notifications"
	"github.com/blondeglamazon/message-board-sub000/internal/observability"
	"github.com/blondeglamazon/message-board-sub000/internal/repository"
	"github.com/blondeglamazon/message-board-sub000/internal/safety"
	"github.com/blondeglamazon/message-board-sub000/internal/service"
	"github.com/blondeglamazon/message-board-sub000/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	notifier *notifications.Notifier
	hub      *notifications.Hub
	store    *storage.LocalStore
	gate     *safety.Gate
	// fanout is set once the hub receives events through Redis.
	fanout atomic.Bool

	accountService      *service.AccountService
	graphService        *service.GraphService
	feedService         *service.FeedService
	postService         *service.PostService
	interactionService  *service.InteractionService
	notificationService *service.NotificationService
	moderationService   *service.ModerationService
}

// NewServer connects to the database and Redis and builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	// A nil client disables caching, pub/sub fan-out and rate limiting.
	redisClient := cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	classifier := safety.NewVisionClassifier(safety.VisionConfig{
		Endpoint:    cfg.VisionEndpoint,
		APIKey:      cfg.VisionAPIKey,
		Timeout:     cfg.SafetyTimeout,
		MaxAttempts: cfg.SafetyMaxAttempts,
	})
	return NewServerWithClassifier(cfg, db, redisClient, classifier)
}

// NewServerWithClassifier is NewServerWithDeps with an explicit image
// classifier.
func NewServerWithClassifier(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, classifier safety.Classifier) (*Server, error) {
	accountRepo := repository.NewAccountRepository(db)
	graphRepo := repository.NewGraphRepository(db)
	postRepo := repository.NewPostRepository(db)
	interactionRepo := repository.NewInteractionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	moderationRepo := repository.NewModerationRepository(db)

	accountCache := cache.New(redisClient)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("message-board-api"),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		store:          storage.NewLocalStore(cfg),
		gate:           safety.NewGate(classifier, cfg.SafetyTimeout),
	}

	s.notificationService = service.NewNotificationService(notificationRepo)
	s.accountService = service.NewAccountService(accountRepo, graphRepo, postRepo, accountCache, cfg.AdminEmails())
	s.graphService = service.NewGraphService(graphRepo, accountRepo, s.notificationService)
	s.feedService = service.NewFeedService(s.graphService, postRepo, interactionRepo)
	s.postService = service.NewPostService(postRepo, interactionRepo, moderationRepo, s.graphService, s.gate, s.store)
	s.interactionService = service.NewInteractionService(postRepo, interactionRepo, s.graphService, s.notificationService)
	s.moderationService = service.NewModerationService(reportRepo, moderationRepo, postRepo, accountRepo, accountCache)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	// Reports panics to Sentry when it is initialised, then re-panics into recover.
	app.Use(sentryfiber.New(sentryfiber.Options{Repanic: true}))

	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Media is embedded by the web client from another origin.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.StructuredLogger())

	// CORS runs before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: s.config.AllowedOrigins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (300 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	app.Static("/media", s.store.Dir(), fiber.Static{MaxAge: 86400})

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Message Board Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	optional := middleware.JWTAuth(s.config, s.accountService, middleware.AuthOptions{Optional: true})
	auth := middleware.JWTAuth(s.config, s.accountService, middleware.AuthOptions{})

	api.Get("/feed", optional, s.GetFeed)
	api.Post("/safety/check", auth, middleware.RateLimit(s.redis, 30, time.Minute, "safety_check"), s.CheckSafety)

	posts := api.Group("/posts")
	posts.Post("/", auth, middleware.RateLimit(s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	// Specific /:id/:resource routes before the generic /:id route
	posts.Get("/:id/comments", optional, s.GetComments)
	posts.Post("/:id/comments", auth, middleware.RateLimit(s.redis, 20, time.Minute, "create_comment"), s.CreateComment)
	posts.Post("/:id/like", auth, s.LikePost)
	posts.Delete("/:id/like", auth, s.UnlikePost)
	posts.Post("/:id/report", auth, middleware.RateLimit(s.redis, 10, 10*time.Minute, "report"), s.ReportPost)
	posts.Get("/:id", optional, s.GetPost)
	posts.Delete("/:id", auth, s.DeletePost)

	users := api.Group("/users")
	users.Get("/me", auth, s.GetMyProfile)
	users.Put("/me", auth, s.UpdateMyProfile)
	users.Get("/:id/posts", optional, s.GetUserPosts)
	users.Get("/:id/followers", optional, s.GetFollowers)
	users.Get("/:id/following", optional, s.GetFollowing)
	users.Post("/:id/follow", auth, middleware.RateLimit(s.redis, 30, time.Minute, "follow"), s.FollowUser)
	users.Delete("/:id/follow", auth, s.UnfollowUser)
	users.Post("/:id/block", auth, s.BlockUser)
	users.Delete("/:id/block", auth, s.UnblockUser)
	users.Get("/:username", optional, s.GetUserProfile)

	api.Delete("/comments/:id", auth, s.DeleteComment)
	api.Get("/friends", auth, s.GetFriends)

	notes := api.Group("/notifications", auth)
	notes.Get("/", s.GetNotifications)
	notes.Get("/unread-count", s.GetUnreadCount)
	notes.Post("/read", s.MarkNotificationsRead)

	admin := api.Group("/admin", auth, middleware.AdminRequired())
	admin.Get("/stats", s.GetAdminStats)
	admin.Get("/reports", s.GetPendingReports)
	admin.Post("/reports/:id/resolve", s.ResolveReport)
	admin.Get("/audit-log", s.GetAuditLog)
	admin.Put("/users/:id/role", s.UpdateUserRole)
	admin.Delete("/users/:id", s.DeleteUser)

	// Browsers cannot set headers on the upgrade request, so the token may
	// also come from the query string here.
	wsAuth := middleware.JWTAuth(s.config, s.accountService, middleware.AuthOptions{
		TokenLookup: "header:Authorization,query:token",
	})
	api.Get("/ws", wsAuth, s.RequireUpgrade, s.WebsocketHandler())
}

// App returns the Fiber app built by Start or Handler.
func (s *Server) App() *fiber.App {
	return s.app
}

// Handler builds the Fiber app with middleware and routes without
// listening. Start uses it; tests drive it with app.Test.
func (s *Server) Handler() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Message Board API",
		BodyLimit: (s.config.MediaMaxUploadMB + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			observability.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.app = app
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start wires the hub to Redis and serves until the app shuts down.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.Handler()

	s.StartRealtime(s.shutdownCtx)

	observability.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			observability.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		observability.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			observability.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			observability.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	observability.Logger.Info("server shutdown complete")
	return nil
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports unhealthy when the database is unreachable. Redis
// is optional: it is reported but only fails readiness when configured and
// down.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"websocket_connections": s.hub.Count(),
		"time":                  time.Now(),
	})
}
