package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"pos-backend/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to Postgres. TranslateError maps driver errors such as
// unique violations to gorm sentinels. Every session runs in timeZone so
// date casts in SQL agree with the day windows computed in Go.
func Open(dsn, timeZone string, development bool) (*gorm.DB, error) {
	level := gormlogger.Warn
	if development {
		level = gormlogger.Info
	}

	dsn, err := WithTimeZone(dsn, timeZone)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// WithTimeZone sets the session time zone on a keyword/value or URL DSN
// unless the DSN already names one.
func WithTimeZone(dsn, timeZone string) (string, error) {
	if timeZone == "" {
		return dsn, nil
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse database url: %w", err)
		}
		q := u.Query()
		for k := range q {
			if strings.EqualFold(k, "timezone") {
				return dsn, nil
			}
		}
		q.Set("timezone", timeZone)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	for _, field := range strings.Fields(dsn) {
		if k, _, ok := strings.Cut(field, "="); ok && strings.EqualFold(k, "timezone") {
			return dsn, nil
		}
	}
	return strings.TrimSpace(dsn + " TimeZone=" + timeZone), nil
}

// SQLX shares the gorm connection pool with the reporting queries.
func SQLX(db *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	return sqlx.NewDb(sqlDB, "pgx"), nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.Expense{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

type seedUser struct {
	username, password, fullName string
	role                         models.UserRole
}

var defaultUsers = []seedUser{
	{"admin", "admin123", "Administrator", models.RoleAdmin},
	{"staff", "staff123", "Staff Member", models.RoleStaff},
}

var sampleProducts = []models.Product{
	{Name: "Chicken Shawarma", Category: "Shawarma", SalePrice: decimal.RequireFromString("8.99"), StockQuantity: 50},
	{Name: "Beef Shawarma", Category: "Shawarma", SalePrice: decimal.RequireFromString("9.99"), StockQuantity: 40},
	{Name: "Mixed Shawarma", Category: "Shawarma", SalePrice: decimal.RequireFromString("11.99"), StockQuantity: 30},
	{Name: "Falafel Wrap", Category: "Wraps", SalePrice: decimal.RequireFromString("6.99"), StockQuantity: 25},
	{Name: "Hummus Plate", Category: "Sides", SalePrice: decimal.RequireFromString("5.99"), StockQuantity: 20},
	{Name: "Baba Ganoush", Category: "Sides", SalePrice: decimal.RequireFromString("5.99"), StockQuantity: 15},
	{Name: "French Fries", Category: "Sides", SalePrice: decimal.RequireFromString("3.99"), StockQuantity: 100},
	{Name: "Soft Drink", Category: "Beverages", SalePrice: decimal.RequireFromString("2.49"), StockQuantity: 80},
	{Name: "Bottled Water", Category: "Beverages", SalePrice: decimal.RequireFromString("1.99"), StockQuantity: 60},
	{Name: "Baklava", Category: "Desserts", SalePrice: decimal.RequireFromString("4.99"), StockQuantity: 20},
}

// Seed creates the default users that are missing and the sample menu
// when the products table is empty.
func Seed(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	db = db.WithContext(ctx)

	for _, su := range defaultUsers {
		var count int64
		if err := db.Model(&models.User{}).Where("username = ?", su.username).Count(&count).Error; err != nil {
			return fmt.Errorf("check user %s: %w", su.username, err)
		}
		if count > 0 {
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(su.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u := models.User{
			Username:     su.username,
			PasswordHash: string(hash),
			FullName:     su.fullName,
			Role:         su.role,
		}
		if err := db.Create(&u).Error; err != nil {
			return fmt.Errorf("create user %s: %w", su.username, err)
		}
		logger.Info("Default user created", zap.String("username", su.username), zap.String("role", string(su.role)))
	}

	var products int64
	if err := db.Model(&models.Product{}).Count(&products).Error; err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if products == 0 {
		items := make([]models.Product, len(sampleProducts))
		copy(items, sampleProducts)
		for i := range items {
			items[i].Status = models.ProductStatusActive
		}
		if err := db.Create(&items).Error; err != nil {
			return fmt.Errorf("create sample products: %w", err)
		}
		logger.Info("Sample products inserted", zap.Int("count", len(items)))
	}
	return nil
}
