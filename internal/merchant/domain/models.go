package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/txerror"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Capability is a transaction family a merchant may accept.
type Capability string

const (
	CapabilityBookings Capability = "bookings"
	CapabilityRentals  Capability = "rentals"
	CapabilityProducts Capability = "products"
)

type Merchant struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	ParentID        *snowflake.ID `gorm:"index" json:"parent_id,omitempty"`
	Name            string        `gorm:"type:text;not null" json:"name"`
	Slug            string        `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Status          Status        `gorm:"type:text;not null" json:"status"`
	CanTakeBookings bool          `gorm:"not null;default:false" json:"can_take_bookings"`
	CanRentUnits    bool          `gorm:"not null;default:false" json:"can_rent_units"`
	CanSellProducts bool          `gorm:"not null;default:false" json:"can_sell_products"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
}

func (Merchant) TableName() string { return "merchants" }

type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (m *Merchant) Summary() *Summary {
	if m == nil {
		return nil
	}
	return &Summary{ID: m.ID.String(), Name: m.Name, Slug: m.Slug}
}

func (m *Merchant) IsBranch() bool {
	return m.ParentID != nil && *m.ParentID != 0
}

// CatalogOwnerID is the merchant whose services a transaction draws on.
// Branches sell their parent's catalog.
func (m *Merchant) CatalogOwnerID() snowflake.ID {
	if m.IsBranch() {
		return *m.ParentID
	}
	return m.ID
}

func (m *Merchant) Can(capability Capability) bool {
	switch capability {
	case CapabilityBookings:
		return m.CanTakeBookings
	case CapabilityRentals:
		return m.CanRentUnits
	case CapabilityProducts:
		return m.CanSellProducts
	default:
		return false
	}
}

var capabilityMessages = map[Capability]string{
	CapabilityBookings: "merchant does not take bookings",
	CapabilityRentals:  "merchant does not rent units",
	CapabilityProducts: "merchant does not sell products",
}

// RequireCapability fails with txerror.ErrCapabilityDisabled when the flag is off.
func (m *Merchant) RequireCapability(capability Capability) error {
	if m.Can(capability) {
		return nil
	}
	return txerror.NewFieldError("merchant_id", txerror.ErrCapabilityDisabled, capabilityMessages[capability])
}
