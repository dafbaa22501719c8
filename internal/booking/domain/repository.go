package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, booking *Booking) error
	// FindByID returns nil when the booking does not exist under merchantID.
	FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID, forUpdate bool) (*Booking, error)
	// UpdateStatus writes status, updated_at and, when stampColumn is set, that
	// timestamp column. No other column is touched.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status, stampColumn string, at time.Time) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Booking, error)
}
