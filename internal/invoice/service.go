package invoice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"pos-backend/internal/audit"
	"pos-backend/internal/changefeed"
	"pos-backend/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultMaxNumberAttempts = 5
	defaultPageSize          = 20
	maxPageSize              = 100

	// MaxLineQuantity bounds one product's merged quantity in a cart.
	MaxLineQuantity = 1_000_000
)

type Staff struct {
	ID   uint
	Name string
	Role models.UserRole
}

func (s Staff) canSeeAll() bool {
	return s.Role == models.RoleAdmin
}

type ItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type CreateInvoiceRequest struct {
	Items         []ItemRequest        `json:"items"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type Page struct {
	Invoices   []Summary  `json:"invoices"`
	Pagination Pagination `json:"pagination"`
}

type Service struct {
	ledger   Ledger
	notifier changefeed.Notifier
	recorder audit.Recorder
	logger   *zap.Logger

	now               func() time.Time
	newNumber         func(time.Time) string
	maxNumberAttempts int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNumberGenerator(gen func(time.Time) string) Option {
	return func(s *Service) { s.newNumber = gen }
}

func WithMaxNumberAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxNumberAttempts = n
		}
	}
}

func NewService(ledger Ledger, notifier changefeed.Notifier, recorder audit.Recorder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		ledger:            ledger,
		notifier:          notifier,
		recorder:          recorder,
		logger:            logger,
		now:               time.Now,
		newNumber:         GenerateNumber,
		maxNumberAttempts: DefaultMaxNumberAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInvoice converts a cart into a persisted invoice and decrements
// stock for every line. Either everything commits or nothing does.
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest, staff Staff) (*models.Invoice, error) {
	lines, err := validate(req, staff)
	if err != nil {
		return nil, err
	}

	var inv *models.Invoice
	for attempt := 1; ; attempt++ {
		inv, err = s.checkout(ctx, lines, req.PaymentMethod, staff)
		if !errors.Is(err, ErrDuplicateNumber) {
			break
		}
		if attempt >= s.maxNumberAttempts {
			err = fmt.Errorf("invoice number collided %d times: %w", attempt, err)
			break
		}
		s.logger.Warn("Invoice number collided on insert, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		e := classify(err)
		if e.Kind == KindPersistence {
			s.logger.Error("Create invoice failed", zap.Uint("staff_id", staff.ID), zap.Error(e.Err))
		}
		return nil, e
	}

	s.afterCommit(ctx, inv, staff)
	return inv, nil
}

func (s *Service) checkout(ctx context.Context, lines []ItemRequest, method models.PaymentMethod, staff Staff) (*models.Invoice, error) {
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out *models.Invoice
	err := s.ledger.WithinTx(ctx, func(tx LedgerTx) error {
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}

		now := s.now()
		inv := &models.Invoice{
			PaymentMethod: method,
			StaffID:       staff.ID,
			StaffName:     staff.Name,
			CreatedAt:     now,
			Items:         make([]models.InvoiceItem, 0, len(lines)),
		}

		subtotal := decimal.Zero
		for _, l := range lines {
			p, ok := products[l.ProductID]
			if !ok {
				return &Error{Kind: KindProductNotFound, Message: fmt.Sprintf("Product with ID %d not found", l.ProductID)}
			}
			if !p.IsActive() {
				return &Error{Kind: KindProductInactive, Message: fmt.Sprintf("Product %s is inactive", p.Name)}
			}
			if l.Quantity > p.StockQuantity {
				return insufficientStock(p)
			}

			lineTotal := p.SalePrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			inv.Items = append(inv.Items, models.InvoiceItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    l.Quantity,
				UnitPrice:   p.SalePrice,
				Total:       lineTotal,
			})
		}
		inv.Subtotal = subtotal
		inv.Total = subtotal

		number, err := s.allocateNumber(ctx, tx, now)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number

		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}

		for _, item := range inv.Items {
			if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity, now); err != nil {
				if errors.Is(err, ErrStockShortfall) {
					return insufficientStock(products[item.ProductID])
				}
				return fmt.Errorf("decrement stock of product %d: %w", item.ProductID, err)
			}
		}

		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// allocateNumber draws numbers until one is unused in the ledger.
func (s *Service) allocateNumber(ctx context.Context, tx LedgerTx, now time.Time) (string, error) {
	for i := 0; i < s.maxNumberAttempts; i++ {
		number := s.newNumber(now)
		exists, err := tx.InvoiceNumberExists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("check invoice number: %w", err)
		}
		if !exists {
			return number, nil
		}
	}
	return "", persistenceError(fmt.Errorf("no free invoice number after %d draws", s.maxNumberAttempts))
}

func (s *Service) afterCommit(ctx context.Context, inv *models.Invoice, staff Staff) {
	if err := s.notifier.Notify(ctx, changefeed.Change{Topic: changefeed.TopicInvoiceCreated, EntityID: inv.ID}); err != nil {
		s.logger.Warn("Change feed notify failed", zap.Uint("invoice_id", inv.ID), zap.Error(err))
	}

	err := s.recorder.Record(ctx, audit.Entry{
		UserID:      staff.ID,
		UserName:    staff.Name,
		EntityType:  "invoice",
		EntityID:    inv.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("Invoice %s created, total %s", inv.InvoiceNumber, inv.Total.StringFixed(2)),
		After:       inv,
	})
	if err != nil {
		s.logger.Warn("Audit log failed", zap.Uint("invoice_id", inv.ID), zap.Error(err))
	}

	s.logger.Info("Invoice created",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Uint("staff_id", staff.ID),
		zap.String("total", inv.Total.StringFixed(2)),
		zap.Int("items", len(inv.Items)),
	)
}

// validate rejects malformed carts and merges repeated products, keeping
// first-seen order.
func validate(req CreateInvoiceRequest, staff Staff) ([]ItemRequest, error) {
	if len(req.Items) == 0 {
		return nil, validationError("At least one item is required")
	}
	if !req.PaymentMethod.Valid() {
		return nil, validationError("Valid payment method is required")
	}
	if staff.ID == 0 || staff.Name == "" {
		return nil, validationError("Staff identity is required")
	}

	lines := make([]ItemRequest, 0, len(req.Items))
	index := make(map[uint]int, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == 0 {
			return nil, validationError("Valid product ID is required")
		}
		if it.Quantity <= 0 {
			return nil, validationError("Valid quantity is required")
		}
		if it.Quantity > MaxLineQuantity {
			return nil, validationError(fmt.Sprintf("Quantity must not exceed %d", MaxLineQuantity))
		}
		if i, ok := index[it.ProductID]; ok {
			if it.Quantity > MaxLineQuantity-lines[i].Quantity {
				return nil, validationError(fmt.Sprintf("Quantity must not exceed %d", MaxLineQuantity))
			}
			lines[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(lines)
		lines = append(lines, it)
	}
	return lines, nil
}

// GetInvoice returns an invoice with its items. Staff may read only their own.
func (s *Service) GetInvoice(ctx context.Context, id uint, viewer Staff) (*models.Invoice, error) {
	inv, err := s.ledger.FindInvoice(ctx, id)
	if err != nil {
		return nil, persistenceError(fmt.Errorf("find invoice %d: %w", id, err))
	}
	if inv == nil {
		return nil, &Error{Kind: KindInvoiceNotFound, Message: "Invoice not found"}
	}
	if !viewer.canSeeAll() && inv.StaffID != viewer.ID {
		return nil, &Error{Kind: KindForbidden, Message: "Access denied"}
	}
	return inv, nil
}

// ListInvoices pages invoices newest first. Staff viewers are scoped to their own.
func (s *Service) ListInvoices(ctx context.Context, f ListFilter, viewer Staff) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if !viewer.canSeeAll() {
		id := viewer.ID
		f.StaffID = &id
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, validationError("from must be before to")
	}

	rows, total, err := s.ledger.ListInvoices(ctx, f)
	if err != nil {
		return nil, persistenceError(fmt.Errorf("list invoices: %w", err))
	}
	if rows == nil {
		rows = []Summary{}
	}

	return &Page{
		Invoices: rows,
		Pagination: Pagination{
			Page:  f.Page,
			Limit: f.Limit,
			Total: total,
			Pages: int(math.Ceil(float64(total) / float64(f.Limit))),
		},
	}, nil
}

// TodayStats counts and sums invoices created since local midnight.
func (s *Service) TodayStats(ctx context.Context, viewer Staff) (Stats, error) {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, 1)

	var staffID *uint
	if !viewer.canSeeAll() {
		id := viewer.ID
		staffID = &id
	}

	stats, err := s.ledger.InvoiceStats(ctx, from, to, staffID)
	if err != nil {
		return Stats{}, persistenceError(fmt.Errorf("invoice stats: %w", err))
	}
	return stats, nil
}
