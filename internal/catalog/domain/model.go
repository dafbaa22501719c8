package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ServiceType string

const (
	ServiceTypeSellable    ServiceType = "sellable"
	ServiceTypeBookable    ServiceType = "bookable"
	ServiceTypeReservation ServiceType = "reservation"
)

type UnitStatus string

const (
	UnitStatusAvailable   UnitStatus = "available"
	UnitStatusMaintenance UnitStatus = "maintenance"
)

// Service is something a merchant offers. Only the fields of its service
// type are meaningful; the others stay at their zero values.
type Service struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	MerchantID  snowflake.ID    `gorm:"not null;index" json:"merchant_id"`
	Name        string          `gorm:"type:text;not null" json:"name"`
	Slug        string          `gorm:"type:text;not null" json:"slug"`
	Description *string         `gorm:"type:text" json:"description,omitempty"`
	ServiceType ServiceType     `gorm:"column:service_type;type:text;not null" json:"service_type"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`

	// bookable
	DurationMinutes      int  `gorm:"not null;default:0" json:"duration_minutes"`
	RequiresConfirmation bool `gorm:"not null;default:false" json:"requires_confirmation"`

	// bookable and reservation
	MaxCapacity int `gorm:"not null;default:0" json:"max_capacity"`

	// reservation
	PricePerNight decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price_per_night"`
	UnitStatus    UnitStatus      `gorm:"type:text;not null;default:''" json:"unit_status"`

	// sellable
	StockQuantity int  `gorm:"not null;default:0" json:"stock_quantity"`
	TrackStock    bool `gorm:"not null;default:false" json:"track_stock"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (Service) TableName() string { return "services" }

// ServiceSchedule is the weekly opening window of a bookable service.
// DayOfWeek runs 0 (Sunday) to 6.
type ServiceSchedule struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ServiceID   snowflake.ID `gorm:"not null;uniqueIndex:ux_service_schedules_day,priority:1" json:"service_id"`
	DayOfWeek   int          `gorm:"not null;uniqueIndex:ux_service_schedules_day,priority:2" json:"day_of_week"`
	StartTime   string       `gorm:"type:text;not null" json:"start_time"`
	EndTime     string       `gorm:"type:text;not null" json:"end_time"`
	IsAvailable bool         `gorm:"not null;default:true" json:"is_available"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (ServiceSchedule) TableName() string { return "service_schedules" }

// ServiceFilter narrows a service lookup made on behalf of a transaction.
type ServiceFilter struct {
	Type ServiceType
	// ActiveOnly drops inactive services.
	ActiveOnly bool
	// AvailableUnitOnly drops reservation units not in the available state.
	AvailableUnitOnly bool
	// ForUpdate locks the service row for the rest of the transaction.
	ForUpdate bool
}
