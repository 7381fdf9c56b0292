package mocks

import (
	"context"
	"time"

	"pos-backend/internal/invoice"
	"pos-backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

// WithinTx hands Tx to fn when the expectation returns no error.
func (m *MockLedger) WithinTx(ctx context.Context, fn func(tx invoice.LedgerTx) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	if tx, ok := args.Get(1).(invoice.LedgerTx); ok {
		return fn(tx)
	}
	return nil
}

func (m *MockLedger) FindInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if inv := args.Get(0); inv != nil {
		return inv.(*models.Invoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedger) ListInvoices(ctx context.Context, f invoice.ListFilter) ([]invoice.Summary, int64, error) {
	args := m.Called(ctx, f)
	if rows := args.Get(0); rows != nil {
		return rows.([]invoice.Summary), args.Get(1).(int64), args.Error(2)
	}
	return nil, args.Get(1).(int64), args.Error(2)
}

func (m *MockLedger) InvoiceStats(ctx context.Context, from, to time.Time, staffID *uint) (invoice.Stats, error) {
	args := m.Called(ctx, from, to, staffID)
	return args.Get(0).(invoice.Stats), args.Error(1)
}

type MockLedgerTx struct {
	mock.Mock
}

func (m *MockLedgerTx) LockProducts(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	args := m.Called(ctx, ids)
	if p := args.Get(0); p != nil {
		return p.(map[uint]models.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerTx) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerTx) InsertInvoice(ctx context.Context, inv *models.Invoice) error {
	args := m.Called(ctx, inv)
	if inv != nil && args.Error(0) == nil {
		inv.ID = 1
	}
	return args.Error(0)
}

func (m *MockLedgerTx) DecrementStock(ctx context.Context, productID uint, qty int, at time.Time) error {
	args := m.Called(ctx, productID, qty, at)
	return args.Error(0)
}
