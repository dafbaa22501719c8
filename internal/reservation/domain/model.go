package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Reservation holds a unit for the nights in [CheckIn, CheckOut).
type Reservation struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	MerchantID    snowflake.ID    `gorm:"not null;index" json:"merchant_id"`
	ServiceID     snowflake.ID    `gorm:"not null;index:ix_reservations_range,priority:1" json:"service_id"`
	CustomerID    string          `gorm:"type:text;not null;index" json:"customer_id"`
	CheckIn       time.Time       `gorm:"type:date;not null;index:ix_reservations_range,priority:2" json:"check_in"`
	CheckOut      time.Time       `gorm:"type:date;not null;index:ix_reservations_range,priority:3" json:"check_out"`
	GuestCount    int             `gorm:"not null" json:"guest_count"`
	Nights        int             `gorm:"not null" json:"nights"`
	PricePerNight decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price_per_night"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	FeeRate       decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"fee_rate"`
	FeeAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"fee_amount"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	Status        string          `gorm:"type:text;not null" json:"status"`
	Notes         *string         `gorm:"type:text" json:"notes,omitempty"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CheckedInAt   *time.Time      `json:"checked_in_at,omitempty"`
	CheckedOutAt  *time.Time      `json:"checked_out_at,omitempty"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (Reservation) TableName() string { return "reservations" }

// ListFilter selects by stay: From and To keep reservations whose nights
// intersect [From, To].
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
