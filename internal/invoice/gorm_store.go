package invoice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pos-backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// GormStore is the postgres Ledger. Each boundary is one database
// transaction; products are row-locked in ascending id order.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

func (s *GormStore) FindInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&inv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *GormStore) ListInvoices(ctx context.Context, f ListFilter) ([]Summary, int64, error) {
	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Invoice{})
		if f.From != nil {
			q = q.Where("created_at >= ?", *f.From)
		}
		if f.To != nil {
			q = q.Where("created_at < ?", *f.To)
		}
		if f.StaffID != nil {
			q = q.Where("staff_id = ?", *f.StaffID)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []Summary
	err := scoped().
		Select("invoices.*, (SELECT COALESCE(SUM(quantity), 0) FROM invoice_items WHERE invoice_id = invoices.id) AS total_items").
		Order("created_at DESC, id DESC").
		Limit(f.Limit).
		Offset(f.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *GormStore) InvoiceStats(ctx context.Context, from, to time.Time, staffID *uint) (Stats, error) {
	q := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total), 0) AS total").
		Where("created_at >= ? AND created_at < ?", from, to)
	if staffID != nil {
		q = q.Where("staff_id = ?", *staffID)
	}

	var stats Stats
	if err := q.Scan(&stats).Error; err != nil {
		return Stats{}, err
	}
	return stats, nil
}

type gormTx struct {
	db *gorm.DB
}

func (tx *gormTx) LockProducts(_ context.Context, ids []uint) (map[uint]models.Product, error) {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var products []models.Product
	err := tx.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	out := make(map[uint]models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (tx *gormTx) InvoiceNumberExists(_ context.Context, number string) (bool, error) {
	var count int64
	err := tx.db.Model(&models.Invoice{}).Where("invoice_number = ?", number).Count(&count).Error
	return count > 0, err
}

func (tx *gormTx) InsertInvoice(_ context.Context, inv *models.Invoice) error {
	if err := tx.db.Create(inv).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert invoice %s: %w", inv.InvoiceNumber, ErrDuplicateNumber)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (tx *gormTx) DecrementStock(_ context.Context, productID uint, qty int, at time.Time) error {
	res := tx.db.Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, qty).
		Updates(map[string]interface{}{
			"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
			"updated_at":     at,
		})
	if res.Error != nil {
		if isCheckViolation(res.Error) {
			return ErrStockShortfall
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStockShortfall
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || pgCode(err) == pgUniqueViolation
}

// isCheckViolation matches both the translated gorm error and the raw
// driver error.
func isCheckViolation(err error) bool {
	return errors.Is(err, gorm.ErrCheckConstraintViolated) || pgCode(err) == pgCheckViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
