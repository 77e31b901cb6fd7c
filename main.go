package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mealmood-community/config"
	"mealmood-community/handlers"
	"mealmood-community/middleware"
	"mealmood-community/models"
	"mealmood-community/services"
	"mealmood-community/utils"
	"mealmood-community/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := models.Migrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	suppressor := newSuppressor(ctx, cfg.RedisURL)

	var images services.ImageStore
	if cfg.R2.Enabled() {
		store, err := utils.NewR2Store(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		images = store
	} else {
		log.Println("⚠️  R2 not configured, image uploads are disabled")
	}

	hub := services.NewNotificationHub()
	notifications := services.NewNotificationService(db, hub)
	users := services.NewUserService(db)
	groups := services.NewGroupService(db)
	challenges := services.NewChallengeService(db, groups, images)
	posts := services.NewPostService(db, groups, images)
	streaks := services.NewStreakService(db, suppressor, notifications)
	streaks.BatchSize = cfg.StreakBatchSize
	streaks.Workers = cfg.StreakWorkers
	lifecycle := services.NewLifecycleService(db)
	announcer := services.NewAnnouncementDispatcher(db, notifications)

	if err := streaks.SeedMoodGoals(ctx); err != nil {
		log.Printf("⚠️  could not seed mood goals: %v", err)
	}

	scheduler := services.NewScheduler(lifecycle, announcer, streaks, cfg.TickInterval)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("failed to start scheduler:", err)
	}

	go workers.PollAnnouncements(ctx, announcer, cfg.AnnouncementRetryInterval)

	if cfg.ProfileSyncURL != "" {
		workers.NewProfileSyncWorker(db, cfg.ProfileSyncURL, cfg.ProfileSyncPath, cfg.GatewayToken).Start(ctx)
	} else {
		log.Println("⚠️  PROFILE_SYNC_URL not set, user mirror sync is disabled")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, Last-Event-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// 🔐 Only Gateway requests allowed, except the health probe
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken, "/healthz"))

	handlers.SetupHealthRoutes(app, db)

	secured := app.Group("/", middleware.UserContextMiddleware())
	handlers.SetupUserRoutes(secured, users)
	handlers.SetupCommunityRoutes(secured, groups, challenges, posts)
	handlers.SetupStreakRoutes(secured, streaks)
	handlers.SetupNotificationRoutes(secured, notifications)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := scheduler.Stop(); err != nil {
		log.Printf("Scheduler shutdown: %v", err)
	}
}

// newSuppressor uses Redis when configured and reachable, otherwise an in-process map.
func newSuppressor(ctx context.Context, redisURL string) services.ReminderSuppressor {
	if redisURL == "" {
		log.Println("⚠️  REDIS_URL not set, reminder suppression is kept in memory")
		return services.NewMemorySuppressor(nil)
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("invalid REDIS_URL:", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("⚠️  Redis unreachable (%v), reminder suppression is kept in memory", err)
		_ = rdb.Close()
		return services.NewMemorySuppressor(nil)
	}
	log.Println("✅ Redis connected for reminder suppression")
	return services.NewRedisSuppressor(rdb)
}
