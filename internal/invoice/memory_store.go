package invoice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pos-backend/internal/models"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Ledger. One mutex serializes every
// transactional boundary; writes are staged and applied only on success.
type MemoryStore struct {
	mu       sync.Mutex
	products map[uint]models.Product
	invoices []models.Invoice
	numbers  map[string]struct{}
	lastInv  uint
	lastItem uint
}

func NewMemoryStore(products ...models.Product) *MemoryStore {
	s := &MemoryStore{
		products: make(map[uint]models.Product, len(products)),
		numbers:  make(map[string]struct{}),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{
		store:    s,
		products: make(map[uint]models.Product),
		numbers:  make(map[string]struct{}),
		lastInv:  s.lastInv,
		lastItem: s.lastItem,
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, p := range tx.products {
		s.products[id] = p
	}
	s.invoices = append(s.invoices, tx.invoices...)
	for n := range tx.numbers {
		s.numbers[n] = struct{}{}
	}
	s.lastInv = tx.lastInv
	s.lastItem = tx.lastItem
	return nil
}

func (s *MemoryStore) FindInvoice(_ context.Context, id uint) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inv := range s.invoices {
		if inv.ID == id {
			out := cloneInvoice(inv)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListInvoices(_ context.Context, f ListFilter) ([]Summary, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Summary
	for _, inv := range s.invoices {
		if !inRange(inv.CreatedAt, f.From, f.To) {
			continue
		}
		if f.StaffID != nil && inv.StaffID != *f.StaffID {
			continue
		}
		matched = append(matched, summarize(inv))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := f.Offset()
	if start < 0 || start >= len(matched) {
		return []Summary{}, total, nil
	}
	end := start + f.Limit
	if f.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) InvoiceStats(_ context.Context, from, to time.Time, staffID *uint) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Total: decimal.Zero}
	for _, inv := range s.invoices {
		if !inRange(inv.CreatedAt, &from, &to) {
			continue
		}
		if staffID != nil && inv.StaffID != *staffID {
			continue
		}
		stats.Count++
		stats.Total = stats.Total.Add(inv.Total)
	}
	return stats, nil
}

// Product returns the committed state of a product.
func (s *MemoryStore) Product(id uint) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *MemoryStore) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

type memoryTx struct {
	store    *MemoryStore
	products map[uint]models.Product // staged product rows
	invoices []models.Invoice
	numbers  map[string]struct{}
	lastInv  uint
	lastItem uint
}

func (tx *memoryTx) product(id uint) (models.Product, bool) {
	if p, ok := tx.products[id]; ok {
		return p, true
	}
	p, ok := tx.store.products[id]
	return p, ok
}

func (tx *memoryTx) LockProducts(_ context.Context, ids []uint) (map[uint]models.Product, error) {
	out := make(map[uint]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := tx.product(id); ok {
			out[id] = p
		}
	}
	return out, nil
}

func (tx *memoryTx) InvoiceNumberExists(_ context.Context, number string) (bool, error) {
	if _, ok := tx.store.numbers[number]; ok {
		return true, nil
	}
	_, ok := tx.numbers[number]
	return ok, nil
}

func (tx *memoryTx) InsertInvoice(ctx context.Context, inv *models.Invoice) error {
	exists, _ := tx.InvoiceNumberExists(ctx, inv.InvoiceNumber)
	if exists {
		return fmt.Errorf("insert invoice %s: %w", inv.InvoiceNumber, ErrDuplicateNumber)
	}

	tx.lastInv++
	inv.ID = tx.lastInv
	for i := range inv.Items {
		tx.lastItem++
		inv.Items[i].ID = tx.lastItem
		inv.Items[i].InvoiceID = inv.ID
	}

	tx.invoices = append(tx.invoices, cloneInvoice(*inv))
	tx.numbers[inv.InvoiceNumber] = struct{}{}
	return nil
}

func (tx *memoryTx) DecrementStock(_ context.Context, productID uint, qty int, at time.Time) error {
	p, ok := tx.product(productID)
	if !ok {
		return errors.New("product does not exist")
	}
	if p.StockQuantity < qty {
		return ErrStockShortfall
	}
	p.StockQuantity -= qty
	p.UpdatedAt = at
	tx.products[productID] = p
	return nil
}

func cloneInvoice(inv models.Invoice) models.Invoice {
	inv.Items = append([]models.InvoiceItem(nil), inv.Items...)
	return inv
}

func summarize(inv models.Invoice) Summary {
	var units int64
	for _, it := range inv.Items {
		units += int64(it.Quantity)
	}
	return Summary{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Subtotal:      inv.Subtotal,
		Total:         inv.Total,
		PaymentMethod: inv.PaymentMethod,
		StaffID:       inv.StaffID,
		StaffName:     inv.StaffName,
		CreatedAt:     inv.CreatedAt,
		TotalItems:    units,
	}
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}
