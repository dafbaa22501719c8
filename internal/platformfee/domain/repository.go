package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindActiveByType(ctx context.Context, db *gorm.DB, transactionType TransactionType) (*PlatformFee, error)
	LockByType(ctx context.Context, db *gorm.DB, transactionType TransactionType) ([]PlatformFee, error)
	DeactivateOthers(ctx context.Context, db *gorm.DB, transactionType TransactionType, keepID snowflake.ID, now time.Time) error
	CountByType(ctx context.Context, db *gorm.DB, transactionType TransactionType) (int64, error)
	Insert(ctx context.Context, db *gorm.DB, fee *PlatformFee) error
	Update(ctx context.Context, db *gorm.DB, fee *PlatformFee) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*PlatformFee, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]PlatformFee, error)
}
