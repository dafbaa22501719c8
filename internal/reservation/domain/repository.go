package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reservation *Reservation) error
	FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID, forUpdate bool) (*Reservation, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status, stampColumn string, at time.Time) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Reservation, error)
}
