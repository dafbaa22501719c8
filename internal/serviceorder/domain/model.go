package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ServiceOrder is a purchase of a sellable service.
type ServiceOrder struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	MerchantID  snowflake.ID    `gorm:"not null;index" json:"merchant_id"`
	ServiceID   snowflake.ID    `gorm:"not null;index" json:"service_id"`
	CustomerID  string          `gorm:"type:text;not null;index" json:"customer_id"`
	OrderNumber string          `gorm:"type:text;not null;uniqueIndex" json:"order_number"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	FeeRate     decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"fee_rate"`
	FeeAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"fee_amount"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Status      string          `gorm:"type:text;not null" json:"status"`
	Notes       *string         `gorm:"type:text" json:"notes,omitempty"`
	ReceivedAt  *time.Time      `json:"received_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

func (ServiceOrder) TableName() string { return "service_orders" }

// OrderNumberSequence is the per-day counter row locked while a number is
// allocated.
type OrderNumberSequence struct {
	DayPrefix string    `gorm:"primaryKey;type:text"`
	LastValue int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (OrderNumberSequence) TableName() string { return "order_number_sequences" }

// DayPrefix is the order number prefix for the UTC day of t.
func DayPrefix(t time.Time) string {
	return "ORD-" + t.UTC().Format("20060102")
}

func FormatOrderNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

type ListFilter struct {
	MerchantID   snowflake.ID
	Status       string
	ServiceID    snowflake.ID
	CustomerID   string
	CreatedFrom  *time.Time
	CreatedUntil *time.Time
	Cursor       *Cursor
	Limit        int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}
