package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pos-backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("product not found")
	ErrInUse    = errors.New("product is referenced by invoices")
)

type Filter struct {
	Search   string
	Category string
	Status   models.ProductStatus
}

type Repository interface {
	Get(ctx context.Context, id uint) (*models.Product, error)
	// ListActive returns the sellable menu.
	ListActive(ctx context.Context) ([]models.Product, error)
	List(ctx context.Context, f Filter) ([]models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	// Update applies column -> value changes and returns the fresh row.
	Update(ctx context.Context, id uint, changes map[string]interface{}) (*models.Product, error)
	Delete(ctx context.Context, id uint) error
	LowStock(ctx context.Context, threshold int) ([]models.Product, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Get(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &p, nil
}

func (r *GormRepository) ListActive(ctx context.Context) ([]models.Product, error) {
	return r.List(ctx, Filter{Status: models.ProductStatusActive})
}

func (r *GormRepository) List(ctx context.Context, f Filter) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("name ILIKE ? OR category ILIKE ?", like, like)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var products []models.Product
	if err := q.Order("created_at DESC, id DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (r *GormRepository) Create(ctx context.Context, p *models.Product) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *GormRepository) Update(ctx context.Context, id uint, changes map[string]interface{}) (*models.Product, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{ID: id}).Updates(changes)
	if res.Error != nil {
		return nil, fmt.Errorf("update product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *GormRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.InvoiceItem{}).Where("product_id = ?", id).Count(&refs).Error; err != nil {
			return fmt.Errorf("count product references: %w", err)
		}
		if refs > 0 {
			return ErrInUse
		}

		res := tx.Delete(&models.Product{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete product %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *GormRepository) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("stock_quantity <= ?", threshold).
		Order("stock_quantity ASC, id ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("low stock products: %w", err)
	}
	return products, nil
}
