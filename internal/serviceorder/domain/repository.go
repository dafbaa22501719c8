package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *ServiceOrder) error
	FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID, forUpdate bool) (*ServiceOrder, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status, stampColumn string, at time.Time) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*ServiceOrder, error)

	// NextSequence locks the day's counter row and returns the next number,
	// never below the highest order number already issued for the prefix.
	NextSequence(ctx context.Context, db *gorm.DB, prefix string, at time.Time) (int, error)
}
