package domain

import (
	"context"
	"errors"
	"time"

	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	"github.com/smallbiznis/marketplace/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, merchantID, requesterID string, req CreateRequest) (*Response, error)
	UpdateStatus(ctx context.Context, merchantID, id, status string) (*Response, error)
	List(ctx context.Context, merchantID string, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, merchantID, id string) (*Response, error)
}

type CreateRequest struct {
	ServiceID string  `json:"service_id"`
	Quantity  int     `json:"quantity"`
	Notes     *string `json:"notes"`
}

type ListRequest struct {
	pagination.Pagination
	Status     string `form:"status"`
	ServiceID  string `form:"service_id"`
	CustomerID string `form:"customer_id"`
	From       string `form:"from"`
	To         string `form:"to"`
}

type Response struct {
	ID             string                        `json:"id"`
	MerchantID     string                        `json:"merchant_id"`
	ServiceID      string                        `json:"service_id"`
	CustomerID     string                        `json:"customer_id"`
	OrderNumber    string                        `json:"order_number"`
	Quantity       int                           `json:"quantity"`
	UnitPrice      string                        `json:"unit_price"`
	Subtotal       string                        `json:"subtotal"`
	FeeRate        string                        `json:"fee_rate"`
	FeeAmount      string                        `json:"fee_amount"`
	TotalAmount    string                        `json:"total_amount"`
	Status         string                        `json:"status"`
	Notes          *string                       `json:"notes,omitempty"`
	ReceivedAt     *time.Time                    `json:"received_at,omitempty"`
	CompletedAt    *time.Time                    `json:"completed_at,omitempty"`
	CancelledAt    *time.Time                    `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time                     `json:"created_at"`
	UpdatedAt      time.Time                     `json:"updated_at"`
	StockShortfall bool                          `json:"stock_shortfall,omitempty"`
	Service        *catalogdomain.ServiceSummary `json:"service,omitempty"`
	Merchant       *merchantdomain.Summary       `json:"merchant,omitempty"`
}

type ListResponse struct {
	pagination.PageInfo
	ServiceOrders []Response `json:"service_orders"`
}

var (
	ErrInvalidRequester = errors.New("invalid_requester")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidFilter    = errors.New("invalid_filter")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
