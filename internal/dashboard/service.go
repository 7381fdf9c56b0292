package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"pos-backend/internal/changefeed"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultBestSellers    = 5
	DefaultLowStock       = 20
	DefaultRecentActivity = 10
)

type Stats struct {
	Date          string          `json:"date"`
	TodaySales    decimal.Decimal `json:"today_sales"`
	TodayOrders   int64           `json:"today_orders"`
	TodayExpenses decimal.Decimal `json:"today_expenses"`
	TodayProfit   decimal.Decimal `json:"today_profit"`
}

type LowStockResult struct {
	Threshold int          `json:"threshold"`
	Products  []StockLevel `json:"products"`
	Count     int          `json:"count"`
}

// Service answers dashboard and report queries. Results are cached under
// the dataset version, so any write makes the next read go to the store.
type Service struct {
	store    Store
	cache    Cache
	versions changefeed.Versioner
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store Store, cache Cache, versions changefeed.Versioner, ttl time.Duration, logger *zap.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		store:    store,
		cache:    cache,
		versions: versions,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

func cacheKey(version uint64, name string) string {
	return fmt.Sprintf("reports:v%d:%s", version, name)
}

// cached returns the value stored under name for the current dataset
// version, computing and storing it on a miss. Cache failures only cost a
// recompute. Without a readable version the cache is bypassed.
func cached[T any](ctx context.Context, s *Service, name string, load func() (T, error)) (T, error) {
	version, err := s.versions.CurrentVersion(ctx)
	if err != nil {
		s.logger.Warn("Dataset version unavailable, bypassing report cache", zap.String("report", name), zap.Error(err))
		return load()
	}
	key := cacheKey(version, name)

	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Report cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}

	if raw, err := json.Marshal(v); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.logger.Warn("Report cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// inLocation reinterprets a DATE column value as midnight in loc.
func inLocation(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

func (s *Service) DashboardStats(ctx context.Context) (*Stats, error) {
	today := startOfDay(s.now())
	date := today.Format(dayLayout)

	return cached(ctx, s, "stats:"+date, func() (*Stats, error) {
		sales, err := s.store.SalesBetween(ctx, today, today.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		expenses, err := s.store.ExpensesBetween(ctx, today, today)
		if err != nil {
			return nil, err
		}
		return &Stats{
			Date:          date,
			TodaySales:    sales.Sales,
			TodayOrders:   sales.Orders,
			TodayExpenses: expenses,
			TodayProfit:   sales.Sales.Sub(expenses),
		}, nil
	})
}

func (s *Service) BestSellers(ctx context.Context, limit int) ([]ProductSales, error) {
	if limit <= 0 {
		limit = DefaultBestSellers
	}
	return cached(ctx, s, fmt.Sprintf("best-sellers:%d", limit), func() ([]ProductSales, error) {
		rows, err := s.store.BestSellers(ctx, nil, nil, limit)
		if rows == nil {
			rows = []ProductSales{}
		}
		return rows, err
	})
}

func (s *Service) LowStock(ctx context.Context, threshold int) (*LowStockResult, error) {
	if threshold < 0 {
		threshold = DefaultLowStock
	}
	return cached(ctx, s, fmt.Sprintf("low-stock:%d", threshold), func() (*LowStockResult, error) {
		rows, err := s.store.LowStock(ctx, threshold)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []StockLevel{}
		}
		return &LowStockResult{Threshold: threshold, Products: rows, Count: len(rows)}, nil
	})
}

// RecentActivity merges the latest invoices and expenses, newest first.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = DefaultRecentActivity
	}
	return cached(ctx, s, fmt.Sprintf("recent-activity:%d", limit), func() ([]Activity, error) {
		invoices, err := s.store.RecentInvoices(ctx, limit)
		if err != nil {
			return nil, err
		}
		expenses, err := s.store.RecentExpenses(ctx, limit)
		if err != nil {
			return nil, err
		}

		activity := make([]Activity, 0, len(invoices)+len(expenses))
		activity = append(activity, invoices...)
		activity = append(activity, expenses...)
		sort.SliceStable(activity, func(i, j int) bool {
			return activity[i].Time.After(activity[j].Time)
		})
		if len(activity) > limit {
			activity = activity[:limit]
		}
		return activity, nil
	})
}
