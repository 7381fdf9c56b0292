package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pos-backend/internal/admin"
	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/changefeed"
	"pos-backend/internal/config"
	"pos-backend/internal/dashboard"
	"pos-backend/internal/database"
	"pos-backend/internal/expense"
	"pos-backend/internal/inventory"
	"pos-backend/internal/invoice"
	"pos-backend/internal/jobs"
	"pos-backend/internal/logger"
	"pos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.IsDevelopment(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if cfg.UsingDefaultDSN() {
		lg.Warn("DATABASE_DSN not set, using local development database")
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		lg.Fatal("Time zone load failed", zap.String("timezone", cfg.TimeZone), zap.Error(err))
	}
	time.Local = loc

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabaseDSN, cfg.TimeZone, cfg.IsDevelopment())
	if err != nil {
		lg.Fatal("Database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		lg.Fatal("Migration failed", zap.Error(err))
	}
	if cfg.SeedData {
		if err := database.Seed(ctx, db, lg); err != nil {
			lg.Fatal("Seeding failed", zap.Error(err))
		}
	}
	sqlxDB, err := database.SQLX(db)
	if err != nil {
		lg.Fatal("Reporting connection failed", zap.Error(err))
	}

	var (
		cache    dashboard.Cache = dashboard.NewMemoryCache()
		feedOpts []changefeed.Option
		rdb      *redis.Client
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			lg.Warn("Redis unavailable, report cache stays in memory", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			cache = dashboard.NewRedisCache(rdb)
			feedOpts = append(feedOpts, changefeed.WithSharedVersion(changefeed.NewRedisVersion(rdb, changefeed.DefaultVersionKey)))
			lg.Info("Report cache and dataset version using Redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	feed := changefeed.NewFeed(feedOpts...)
	var relay *changefeed.KafkaRelay
	if len(cfg.Kafka.Brokers) > 0 {
		relay = changefeed.NewKafkaRelay(changefeed.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), lg)
		go relay.Run(ctx, feed)
		lg.Info("Change feed relay enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	recorder := audit.NewGormRecorder(db)
	users := admin.NewUserRepository(db)
	invoices := invoice.NewService(invoice.NewGormStore(db), feed, recorder, lg)
	reports := dashboard.NewService(dashboard.NewSQLStore(sqlxDB), cache, feed, cfg.Reports.CacheTTL, lg)

	scheduler, err := jobs.New(reports, cfg.Jobs, cfg.Reports.LowStockThreshold, lg)
	if err != nil {
		lg.Fatal("Job scheduler setup failed", zap.Error(err))
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler(lg),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(splitOrigins(cfg.CORSOrigins), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": feed.Version()})
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/login", auth.LoginHandler(users, cfg.JWTSecret))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	adminOnly := auth.RequireRole(models.RoleAdmin)

	protected.Get("/auth/me", auth.MeHandler(users))

	// Products
	products := inventory.NewHandlers(inventory.NewGormRepository(db), feed, recorder, lg)
	protected.Get("/products", products.List())
	protected.Get("/products/alert/low-stock", adminOnly, products.LowStock())
	protected.Get("/products/:id", products.Get())
	protected.Post("/products", adminOnly, products.Create())
	protected.Put("/products/:id", adminOnly, products.Update())
	protected.Delete("/products/:id", adminOnly, products.Delete())

	// Invoices
	protected.Get("/invoices/stats/today", invoice.TodayStatsHandler(invoices))
	protected.Get("/invoices", invoice.ListInvoicesHandler(invoices))
	protected.Get("/invoices/:id", invoice.GetInvoiceHandler(invoices))
	protected.Post("/invoices", auth.RequireRole(models.RoleAdmin, models.RoleStaff), invoice.CreateInvoiceHandler(invoices))

	// Expenses
	expenses := expense.NewHandlers(expense.NewGormRepository(db), feed, recorder, lg)
	exp := protected.Group("/expenses", adminOnly)
	exp.Get("/stats/today", expenses.TodayStats())
	exp.Get("/", expenses.List())
	exp.Get("/:id", expenses.Get())
	exp.Post("/", expenses.Create())
	exp.Put("/:id", expenses.Update())
	exp.Delete("/:id", expenses.Delete())

	// Dashboard & reports
	dash := dashboard.NewHandlers(reports, lg)
	dg := protected.Group("/dashboard", adminOnly)
	dg.Get("/stats", dash.Stats())
	dg.Get("/sales-chart", dash.SalesChart())
	dg.Get("/best-sellers", dash.BestSellers())
	dg.Get("/low-stock", dash.LowStock())
	dg.Get("/recent-activity", dash.RecentActivity())
	protected.Get("/reports", adminOnly, dash.Report())

	// Users
	userHandlers := admin.NewUserHandlers(users, recorder, lg)
	ug := protected.Group("/users", adminOnly)
	ug.Get("/", userHandlers.List())
	ug.Post("/", userHandlers.Create())
	ug.Put("/:id", userHandlers.Update())
	ug.Delete("/:id", userHandlers.Delete())

	// Audit logs
	protected.Get("/audit-logs", adminOnly, audit.ListAuditLogsHandler(recorder))

	go func() {
		<-ctx.Done()
		lg.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			lg.Error("HTTP shutdown failed", zap.Error(err))
		}
	}()

	lg.Info("Server listening", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.AppEnv))
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		lg.Error("HTTP server stopped", zap.Error(err))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Stop(stopCtx)
	if relay != nil {
		if err := relay.Close(); err != nil {
			lg.Warn("Kafka writer close failed", zap.Error(err))
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func errorHandler(lg *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var e *fiber.Error
		if errors.As(err, &e) {
			return c.Status(e.Code).JSON(fiber.Map{
				"error": e.Message,
			})
		}
		lg.Error("Unexpected error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Server error",
		})
	}
}

func splitOrigins(v string) []string {
	origins := strings.Split(v, ",")
	out := origins[:0]
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
