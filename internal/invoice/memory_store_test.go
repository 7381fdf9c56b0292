package invoice

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pos-backend/internal/audit"
	"pos-backend/internal/changefeed"
	"pos-backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestGetInvoice_KeepsCheckoutSnapshot(t *testing.T) {
	store := NewMemoryStore(models.Product{
		ID:            1,
		Name:          "Burger",
		SalePrice:     decimal.RequireFromString("100"),
		StockQuantity: 5,
		Status:        models.ProductStatusActive,
	})
	svc := NewService(store, changefeed.NewFeed(), audit.Nop{}, zap.NewNop())
	staff := Staff{ID: 2, Name: "Staff User", Role: models.RoleStaff}

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		Items:         []ItemRequest{{ProductID: 1, Quantity: 2}},
		PaymentMethod: models.PaymentMethodCash,
	}, staff)
	require.NoError(t, err)

	store.mu.Lock()
	p := store.products[1]
	p.Name = "Double Burger"
	p.SalePrice = decimal.RequireFromString("250")
	store.products[1] = p
	store.mu.Unlock()

	got, err := svc.GetInvoice(context.Background(), inv.ID, staff)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Burger", got.Items[0].ProductName)
	assert.Equal(t, "100.00", got.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "200.00", got.Total.StringFixed(2))

	// mutating the returned copy does not reach the stored invoice
	got.Items[0].ProductName = "changed"
	again, err := svc.GetInvoice(context.Background(), inv.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, "Burger", again.Items[0].ProductName)
}

func TestMemoryStore_DecrementStockShortfall(t *testing.T) {
	store := NewMemoryStore(models.Product{ID: 1, StockQuantity: 2})

	err := store.WithinTx(context.Background(), func(tx LedgerTx) error {
		require.NoError(t, tx.DecrementStock(context.Background(), 1, 2, time.Now()))
		return tx.DecrementStock(context.Background(), 1, 1, time.Now())
	})

	assert.ErrorIs(t, err, ErrStockShortfall)
	p, _ := store.Product(1)
	assert.Equal(t, 2, p.StockQuantity)
}

func TestConstraintErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		unique bool
		check  bool
	}{
		{"translated duplicate", fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), true, false},
		{"raw duplicate", &pgconn.PgError{Code: pgUniqueViolation}, true, false},
		{"translated check", fmt.Errorf("update: %w", gorm.ErrCheckConstraintViolated), false, true},
		{"raw check", &pgconn.PgError{Code: pgCheckViolation}, false, true},
		{"other", &pgconn.PgError{Code: "40001"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, isUniqueViolation(tt.err))
			assert.Equal(t, tt.check, isCheckViolation(tt.err))
		})
	}
}
