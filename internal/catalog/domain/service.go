package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CatalogService interface {
	CreateService(ctx context.Context, merchantID string, req CreateServiceRequest) (*ServiceResponse, error)
	UpdateService(ctx context.Context, merchantID, serviceID string, req UpdateServiceRequest) (*ServiceResponse, error)
	GetService(ctx context.Context, merchantID, serviceID string) (*ServiceResponse, error)
	ListServices(ctx context.Context, merchantID string, req ListServiceRequest) ([]ServiceResponse, error)
	SetSchedules(ctx context.Context, merchantID, serviceID string, req SetSchedulesRequest) ([]ScheduleResponse, error)
	ListSchedules(ctx context.Context, merchantID, serviceID string) ([]ScheduleResponse, error)

	// FindService resolves a service owned by merchantID through db. A miss,
	// or a service excluded by filter, is a txerror NotFound on service_id.
	FindService(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID, filter ServiceFilter) (*Service, error)
	// FindSchedule returns the schedule of serviceID for dayOfWeek, or nil.
	FindSchedule(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, dayOfWeek int) (*ServiceSchedule, error)
}

type ListServiceRequest struct {
	ServiceType string `form:"service_type"`
	IsActive    *bool  `form:"is_active"`
	SortBy      string `form:"sort_by"`
	OrderBy     string `form:"order_by"`
}

type CreateServiceRequest struct {
	Name                 string           `json:"name"`
	Description          *string          `json:"description"`
	ServiceType          string           `json:"service_type"`
	Price                *decimal.Decimal `json:"price"`
	IsActive             *bool            `json:"is_active"`
	DurationMinutes      int              `json:"duration_minutes"`
	MaxCapacity          int              `json:"max_capacity"`
	RequiresConfirmation bool             `json:"requires_confirmation"`
	PricePerNight        *decimal.Decimal `json:"price_per_night"`
	UnitStatus           string           `json:"unit_status"`
	StockQuantity        int              `json:"stock_quantity"`
	TrackStock           bool             `json:"track_stock"`
	Metadata             map[string]any   `json:"metadata"`
}

type UpdateServiceRequest struct {
	Name                 *string          `json:"name,omitempty"`
	Description          *string          `json:"description,omitempty"`
	Price                *decimal.Decimal `json:"price,omitempty"`
	IsActive             *bool            `json:"is_active,omitempty"`
	DurationMinutes      *int             `json:"duration_minutes,omitempty"`
	MaxCapacity          *int             `json:"max_capacity,omitempty"`
	RequiresConfirmation *bool            `json:"requires_confirmation,omitempty"`
	PricePerNight        *decimal.Decimal `json:"price_per_night,omitempty"`
	UnitStatus           *string          `json:"unit_status,omitempty"`
	StockQuantity        *int             `json:"stock_quantity,omitempty"`
	TrackStock           *bool            `json:"track_stock,omitempty"`
}

type ScheduleInput struct {
	DayOfWeek   int    `json:"day_of_week"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable *bool  `json:"is_available"`
}

type SetSchedulesRequest struct {
	Schedules []ScheduleInput `json:"schedules"`
}

type ServiceResponse struct {
	ID                   string         `json:"id"`
	MerchantID           string         `json:"merchant_id"`
	Name                 string         `json:"name"`
	Slug                 string         `json:"slug"`
	Description          *string        `json:"description,omitempty"`
	ServiceType          ServiceType    `json:"service_type"`
	Price                string         `json:"price"`
	IsActive             bool           `json:"is_active"`
	DurationMinutes      int            `json:"duration_minutes,omitempty"`
	MaxCapacity          int            `json:"max_capacity,omitempty"`
	RequiresConfirmation bool           `json:"requires_confirmation,omitempty"`
	PricePerNight        string         `json:"price_per_night,omitempty"`
	UnitStatus           UnitStatus     `json:"unit_status,omitempty"`
	StockQuantity        int            `json:"stock_quantity,omitempty"`
	TrackStock           bool           `json:"track_stock,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// ServiceSummary is the service attached to a transaction response.
type ServiceSummary struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ServiceType ServiceType `json:"service_type"`
}

func NewServiceSummary(s *Service) *ServiceSummary {
	if s == nil {
		return nil
	}
	return &ServiceSummary{ID: s.ID.String(), Name: s.Name, ServiceType: s.ServiceType}
}

type ScheduleResponse struct {
	ID          string `json:"id"`
	ServiceID   string `json:"service_id"`
	DayOfWeek   int    `json:"day_of_week"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
}

var (
	ErrInvalidMerchant    = errors.New("invalid_merchant")
	ErrBranchMerchant     = errors.New("branch_merchant")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidServiceType = errors.New("invalid_service_type")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidDuration    = errors.New("invalid_duration")
	ErrInvalidCapacity    = errors.New("invalid_capacity")
	ErrInvalidUnitStatus  = errors.New("invalid_unit_status")
	ErrInvalidStock       = errors.New("invalid_stock")
	ErrInvalidDayOfWeek   = errors.New("invalid_day_of_week")
	ErrInvalidSchedule    = errors.New("invalid_schedule")
	ErrDuplicateDay       = errors.New("duplicate_day_of_week")
	ErrNotBookable        = errors.New("not_bookable")
	ErrNotFound           = errors.New("not_found")
)
