package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "cash"        // cash at the counter
	PaymentMethodOnlineBank PaymentMethod = "online_bank" // bank transfer
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCash || m == PaymentMethodOnlineBank
}

// Invoice is written once at checkout and never updated.
type Invoice struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	InvoiceNumber string          `gorm:"size:32;uniqueIndex;not null" json:"invoice_number"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_invoices_subtotal,subtotal >= 0" json:"subtotal"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_invoices_total,total >= 0" json:"total"`
	PaymentMethod PaymentMethod   `gorm:"size:20;not null;check:chk_invoices_payment_method,payment_method IN ('cash','online_bank')" json:"payment_method"`
	StaffID       uint            `gorm:"index;not null" json:"staff_id"`
	StaffName     string          `gorm:"size:100;not null" json:"staff_name"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// InvoiceItem keeps the product name and price as they were at checkout.
type InvoiceItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	InvoiceID   uint            `gorm:"index;not null" json:"invoice_id"`
	ProductID   uint            `gorm:"index;not null" json:"product_id"`
	ProductName string          `gorm:"size:150;not null" json:"product_name"`
	Quantity    int             `gorm:"not null;check:chk_invoice_items_quantity,quantity > 0" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_invoice_items_unit_price,unit_price >= 0" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_invoice_items_total,total >= 0" json:"total"`
}
