package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateMerchantRequest struct {
	Name            string `json:"name"`
	ParentID        string `json:"parent_id"`
	CanTakeBookings bool   `json:"can_take_bookings"`
	CanRentUnits    bool   `json:"can_rent_units"`
	CanSellProducts bool   `json:"can_sell_products"`
}

type UpdateCapabilitiesRequest struct {
	CanTakeBookings *bool   `json:"can_take_bookings"`
	CanRentUnits    *bool   `json:"can_rent_units"`
	CanSellProducts *bool   `json:"can_sell_products"`
	Status          *string `json:"status"`
}

type Service interface {
	Create(ctx context.Context, req CreateMerchantRequest) (Merchant, error)
	GetByID(ctx context.Context, id string) (Merchant, error)
	UpdateCapabilities(ctx context.Context, id string, req UpdateCapabilitiesRequest) (Merchant, error)
	// Resolve loads an active merchant through db for use inside a transaction.
	Resolve(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Merchant, error)
	// Lookup loads a merchant in any status, for work on records it already owns.
	Lookup(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Merchant, error)
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidParent = errors.New("invalid_parent")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrNotFound      = errors.New("not_found")
)
