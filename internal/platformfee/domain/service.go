package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Calculator computes fee-adjusted totals from the active fee of a transaction type.
type Calculator interface {
	Calculate(ctx context.Context, transactionType TransactionType, subtotal decimal.Decimal) (Quote, error)
	// CalculateTx reads the active fee through tx.
	CalculateTx(ctx context.Context, tx *gorm.DB, transactionType TransactionType, subtotal decimal.Decimal) (Quote, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Deactivate(ctx context.Context, id string) (*Response, error)
	// SeedDefaults inserts configured default fees for types that have no fee row.
	SeedDefaults(ctx context.Context) (int, error)
}

type ListRequest struct {
	TransactionType string `form:"transaction_type"`
	IsActive        *bool  `form:"is_active"`
	SortBy          string `form:"sort_by"`
	OrderBy         string `form:"order_by"`
}

type CreateRequest struct {
	TransactionType string           `json:"transaction_type"`
	RatePercentage  *decimal.Decimal `json:"rate_percentage"`
	Description     *string          `json:"description"`
	IsActive        *bool            `json:"is_active"`
}

type UpdateRequest struct {
	ID             string           `json:"-"`
	RatePercentage *decimal.Decimal `json:"rate_percentage,omitempty"`
	Description    *string          `json:"description,omitempty"`
	IsActive       *bool            `json:"is_active,omitempty"`
}

type Response struct {
	ID              string          `json:"id"`
	TransactionType TransactionType `json:"transaction_type"`
	RatePercentage  string          `json:"rate_percentage"`
	IsActive        bool            `json:"is_active"`
	Description     *string         `json:"description,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type QuoteResponse struct {
	TransactionType TransactionType `json:"transaction_type"`
	Subtotal        string          `json:"subtotal"`
	FeeRate         string          `json:"fee_rate"`
	FeeAmount       string          `json:"fee_amount"`
	TotalAmount     string          `json:"total_amount"`
}

func NewQuoteResponse(q Quote) QuoteResponse {
	return QuoteResponse{
		TransactionType: q.TransactionType,
		Subtotal:        q.Subtotal.StringFixed(2),
		FeeRate:         q.FeeRate.StringFixed(2),
		FeeAmount:       q.FeeAmount.StringFixed(2),
		TotalAmount:     q.TotalAmount.StringFixed(2),
	}
}
