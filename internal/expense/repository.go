package expense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("expense not found")

// Filter dates are inclusive calendar days.
type Filter struct {
	From  *time.Time
	To    *time.Time
	Page  int
	Limit int
}

type Summary struct {
	Total       int64           `json:"total"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type Repository interface {
	List(ctx context.Context, f Filter) ([]models.Expense, Summary, error)
	Get(ctx context.Context, id uint) (*models.Expense, error)
	Create(ctx context.Context, e *models.Expense) error
	Update(ctx context.Context, id uint, changes map[string]interface{}) (*models.Expense, error)
	Delete(ctx context.Context, id uint) error
	// Totals counts and sums expenses dated within [from, to].
	Totals(ctx context.Context, from, to time.Time) (Summary, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) List(ctx context.Context, f Filter) ([]models.Expense, Summary, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Expense{})
		if f.From != nil {
			q = q.Where("date >= ?", f.From.Format(dateLayout))
		}
		if f.To != nil {
			q = q.Where("date <= ?", f.To.Format(dateLayout))
		}
		return q
	}

	var sum Summary
	err := scoped().Select("COUNT(*) AS total, COALESCE(SUM(amount), 0) AS total_amount").Scan(&sum).Error
	if err != nil {
		return nil, Summary{}, fmt.Errorf("summarize expenses: %w", err)
	}

	var expenses []models.Expense
	err = scoped().
		Order("date DESC, created_at DESC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Find(&expenses).Error
	if err != nil {
		return nil, Summary{}, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, sum, nil
}

func (r *GormRepository) Get(ctx context.Context, id uint) (*models.Expense, error) {
	var e models.Expense
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get expense %d: %w", id, err)
	}
	return &e, nil
}

func (r *GormRepository) Create(ctx context.Context, e *models.Expense) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (r *GormRepository) Update(ctx context.Context, id uint, changes map[string]interface{}) (*models.Expense, error) {
	res := r.db.WithContext(ctx).Model(&models.Expense{ID: id}).Updates(changes)
	if res.Error != nil {
		return nil, fmt.Errorf("update expense %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *GormRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Expense{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete expense %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) Totals(ctx context.Context, from, to time.Time) (Summary, error) {
	var sum Summary
	err := r.db.WithContext(ctx).Model(&models.Expense{}).
		Select("COUNT(*) AS total, COALESCE(SUM(amount), 0) AS total_amount").
		Where("date BETWEEN ? AND ?", from.Format(dateLayout), to.Format(dateLayout)).
		Scan(&sum).Error
	if err != nil {
		return Summary{}, fmt.Errorf("expense totals: %w", err)
	}
	return sum, nil
}
