package invoice

import (
	"context"
	"time"

	"pos-backend/internal/models"

	"github.com/shopspring/decimal"
)

// Ledger owns invoices and the product stock checkout decrements.
// Writes happen only inside WithinTx: fn's effects are committed when it
// returns nil and discarded otherwise.
type Ledger interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error

	// FindInvoice returns nil, nil when the invoice does not exist.
	FindInvoice(ctx context.Context, id uint) (*models.Invoice, error)
	ListInvoices(ctx context.Context, f ListFilter) ([]Summary, int64, error)
	InvoiceStats(ctx context.Context, from, to time.Time, staffID *uint) (Stats, error)
}

type LedgerTx interface {
	// LockProducts returns the requested products keyed by id, holding them
	// against concurrent checkouts until the boundary ends. Missing ids are
	// absent from the map.
	LockProducts(ctx context.Context, ids []uint) (map[uint]models.Product, error)
	InvoiceNumberExists(ctx context.Context, number string) (bool, error)
	// InsertInvoice assigns ids to the invoice and its items. A number
	// collision yields ErrDuplicateNumber.
	InsertInvoice(ctx context.Context, inv *models.Invoice) error
	// DecrementStock yields ErrStockShortfall when stock < qty.
	DecrementStock(ctx context.Context, productID uint, qty int, at time.Time) error
}

// ListFilter bounds are [From, To). StaffID nil means all staff.
type ListFilter struct {
	From    *time.Time
	To      *time.Time
	StaffID *uint
	Page    int
	Limit   int
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Summary is an invoice row without items plus the number of units sold.
type Summary struct {
	ID            uint                 `json:"id"`
	InvoiceNumber string               `json:"invoice_number"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Total         decimal.Decimal      `json:"total"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	StaffID       uint                 `json:"staff_id"`
	StaffName     string               `json:"staff_name"`
	CreatedAt     time.Time            `json:"created_at"`
	TotalItems    int64                `json:"total_items"`
}

type Stats struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}
