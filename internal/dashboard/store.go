package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// DayAmount is one (day, payment method) aggregate. Method is empty for expenses.
type DayAmount struct {
	Day    time.Time       `db:"day" json:"day"`
	Method string          `db:"method" json:"method,omitempty"`
	Count  int64           `db:"count" json:"count"`
	Total  decimal.Decimal `db:"total" json:"total"`
}

type SalesTotals struct {
	Sales  decimal.Decimal `db:"sales"`
	Orders int64           `db:"orders"`
}

type ProductSales struct {
	ProductID uint            `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	Revenue   decimal.Decimal `db:"revenue" json:"revenue"`
}

type StockLevel struct {
	ID            uint            `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Category      string          `db:"category" json:"category"`
	SalePrice     decimal.Decimal `db:"sale_price" json:"sale_price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	Status        string          `db:"status" json:"status"`
}

type Activity struct {
	Type        string          `db:"type" json:"type"` // invoice | expense
	Description string          `db:"description" json:"description"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	User        string          `db:"user_name" json:"user"`
	Time        time.Time       `db:"time" json:"time"`
}

// Store is the read side of the ledger. Invoice ranges are [from, to);
// expense ranges are inclusive calendar days.
type Store interface {
	SalesBetween(ctx context.Context, from, to time.Time) (SalesTotals, error)
	ExpensesBetween(ctx context.Context, fromDay, toDay time.Time) (decimal.Decimal, error)
	DailySales(ctx context.Context, from, to time.Time) ([]DayAmount, error)
	DailyExpenses(ctx context.Context, fromDay, toDay time.Time) ([]DayAmount, error)
	// BestSellers with limit <= 0 returns every product sold in the range.
	BestSellers(ctx context.Context, from, to *time.Time, limit int) ([]ProductSales, error)
	LowStock(ctx context.Context, threshold int) ([]StockLevel, error)
	RecentInvoices(ctx context.Context, limit int) ([]Activity, error)
	RecentExpenses(ctx context.Context, limit int) ([]Activity, error)
}

type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

const dayLayout = "2006-01-02"

func (s *SQLStore) SalesBetween(ctx context.Context, from, to time.Time) (SalesTotals, error) {
	var t SalesTotals
	err := s.db.GetContext(ctx, &t, `
		SELECT COALESCE(SUM(total), 0) AS sales, COUNT(*) AS orders
		FROM invoices
		WHERE created_at >= $1 AND created_at < $2`, from, to)
	if err != nil {
		return SalesTotals{}, fmt.Errorf("sales between: %w", err)
	}
	return t, nil
}

func (s *SQLStore) ExpensesBetween(ctx context.Context, fromDay, toDay time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE date BETWEEN $1 AND $2`, fromDay.Format(dayLayout), toDay.Format(dayLayout))
	if err != nil {
		return decimal.Zero, fmt.Errorf("expenses between: %w", err)
	}
	return total, nil
}

// DailySales buckets by created_at::date, which uses the session time zone
// that database.Open pins to the configured TIMEZONE.
func (s *SQLStore) DailySales(ctx context.Context, from, to time.Time) ([]DayAmount, error) {
	var rows []DayAmount
	err := s.db.SelectContext(ctx, &rows, `
		SELECT created_at::date AS day,
			   payment_method AS method,
			   COUNT(*) AS count,
			   SUM(total) AS total
		FROM invoices
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day, method
		ORDER BY day ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	return rows, nil
}

func (s *SQLStore) DailyExpenses(ctx context.Context, fromDay, toDay time.Time) ([]DayAmount, error) {
	var rows []DayAmount
	err := s.db.SelectContext(ctx, &rows, `
		SELECT date AS day,
			   '' AS method,
			   COUNT(*) AS count,
			   SUM(amount) AS total
		FROM expenses
		WHERE date BETWEEN $1 AND $2
		GROUP BY day
		ORDER BY day ASC`, fromDay.Format(dayLayout), toDay.Format(dayLayout))
	if err != nil {
		return nil, fmt.Errorf("daily expenses: %w", err)
	}
	return rows, nil
}

func (s *SQLStore) BestSellers(ctx context.Context, from, to *time.Time, limit int) ([]ProductSales, error) {
	query := `
		SELECT ii.product_id,
			   ii.product_name AS name,
			   SUM(ii.quantity) AS quantity,
			   SUM(ii.total) AS revenue
		FROM invoice_items ii
		JOIN invoices i ON i.id = ii.invoice_id
		WHERE 1=1`
	var args []interface{}
	if from != nil {
		query += ` AND i.created_at >= ?`
		args = append(args, *from)
	}
	if to != nil {
		query += ` AND i.created_at < ?`
		args = append(args, *to)
	}
	query += ` GROUP BY ii.product_id, ii.product_name ORDER BY quantity DESC, revenue DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []ProductSales
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("best sellers: %w", err)
	}
	return rows, nil
}

func (s *SQLStore) LowStock(ctx context.Context, threshold int) ([]StockLevel, error) {
	var rows []StockLevel
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, category, sale_price, stock_quantity, status
		FROM products
		WHERE stock_quantity <= $1
		ORDER BY stock_quantity ASC, id ASC`, threshold)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	return rows, nil
}

func (s *SQLStore) RecentInvoices(ctx context.Context, limit int) ([]Activity, error) {
	var rows []Activity
	err := s.db.SelectContext(ctx, &rows, `
		SELECT 'invoice' AS type,
			   invoice_number AS description,
			   total AS amount,
			   staff_name AS user_name,
			   created_at AS time
		FROM invoices
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent invoices: %w", err)
	}
	return rows, nil
}

func (s *SQLStore) RecentExpenses(ctx context.Context, limit int) ([]Activity, error) {
	var rows []Activity
	err := s.db.SelectContext(ctx, &rows, `
		SELECT 'expense' AS type,
			   title AS description,
			   amount,
			   'Admin' AS user_name,
			   created_at AS time
		FROM expenses
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent expenses: %w", err)
	}
	return rows, nil
}
