package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Expense struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Title     string          `gorm:"size:150;not null" json:"title"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null;check:chk_expenses_amount,amount > 0" json:"amount"`
	Date      time.Time       `gorm:"type:date;index;not null" json:"date"` // day granularity
	Notes     string          `gorm:"size:255" json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
