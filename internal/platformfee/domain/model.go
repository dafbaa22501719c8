package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TransactionType names the kind of transaction a fee applies to.
type TransactionType string

const (
	TransactionTypeBooking     TransactionType = "booking"
	TransactionTypeReservation TransactionType = "reservation"
	TransactionTypeSellProduct TransactionType = "sell_product"
)

func ParseTransactionType(value string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(value)))
	switch t {
	case TransactionTypeBooking, TransactionTypeReservation, TransactionTypeSellProduct:
		return t, nil
	default:
		return "", ErrInvalidTransactionType
	}
}

var maxRatePercentage = decimal.NewFromInt(100)

// PlatformFee is the marketplace's percentage cut for one transaction type.
// At most one row per transaction type is active.
type PlatformFee struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	TransactionType TransactionType `gorm:"column:transaction_type;type:text;not null;index"`
	RatePercentage  decimal.Decimal `gorm:"column:rate_percentage;type:numeric(5,2);not null"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	Description     *string         `gorm:"type:text"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

func (PlatformFee) TableName() string { return "platform_fees" }

func (f *PlatformFee) Validate() error {
	if _, err := ParseTransactionType(string(f.TransactionType)); err != nil {
		return err
	}
	return ValidateRate(f.RatePercentage)
}

// ValidateRate accepts percentages in [0, 100] with at most two decimals.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(maxRatePercentage) {
		return ErrInvalidRatePercentage
	}
	if !rate.Equal(rate.Round(2)) {
		return ErrInvalidRatePercentage
	}
	return nil
}

// Quote is the fee-adjusted price of a subtotal.
type Quote struct {
	TransactionType TransactionType
	Subtotal        decimal.Decimal
	FeeRate         decimal.Decimal
	FeeAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ComputeQuote rounds the fee and the total to two decimals, half away from zero.
func ComputeQuote(transactionType TransactionType, subtotal, rate decimal.Decimal) Quote {
	subtotal = subtotal.Round(2)
	fee := subtotal.Mul(rate).Div(hundred).Round(2)
	return Quote{
		TransactionType: transactionType,
		Subtotal:        subtotal,
		FeeRate:         rate.Round(2),
		FeeAmount:       fee,
		TotalAmount:     subtotal.Add(fee).Round(2),
	}
}
