package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Booking is a timed appointment against a bookable service. The monetary
// fields are captured at creation and never recomputed.
type Booking struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	MerchantID   snowflake.ID    `gorm:"not null;index" json:"merchant_id"`
	ServiceID    snowflake.ID    `gorm:"not null;index:ix_bookings_slot,priority:1" json:"service_id"`
	CustomerID   string          `gorm:"type:text;not null;index" json:"customer_id"`
	BookingDate  time.Time       `gorm:"type:date;not null;index:ix_bookings_slot,priority:2" json:"booking_date"`
	StartTime    string          `gorm:"type:text;not null;index:ix_bookings_slot,priority:3" json:"start_time"`
	EndTime      string          `gorm:"type:text;not null" json:"end_time"`
	PartySize    int             `gorm:"not null" json:"party_size"`
	ServicePrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"service_price"`
	FeeRate      decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"fee_rate"`
	FeeAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"fee_amount"`
	TotalAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Status       string          `gorm:"type:text;not null" json:"status"`
	Notes        *string         `gorm:"type:text" json:"notes,omitempty"`
	ConfirmedAt  *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

type ListFilter struct {
	MerchantID snowflake.ID
	Status     string
	ServiceID  snowflake.ID
	CustomerID string
	From       *time.Time
	To         *time.Time
	Cursor     *Cursor
	Limit      int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}
