package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

func (s ProductStatus) Valid() bool {
	return s == ProductStatusActive || s == ProductStatusInactive
}

type Product struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:150;not null" json:"name"`
	Category      string          `gorm:"size:100;not null;index" json:"category"`
	SalePrice     decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_products_sale_price,sale_price >= 0" json:"sale_price"`
	StockQuantity int             `gorm:"not null;default:0;check:chk_products_stock_quantity,stock_quantity >= 0" json:"stock_quantity"`
	Status        ProductStatus   `gorm:"size:10;not null;default:active;check:chk_products_status,status IN ('active','inactive')" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p Product) IsActive() bool {
	return p.Status == ProductStatusActive
}
