package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, merchant *Merchant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Merchant, error)
	SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error)
	UpdateCapabilities(ctx context.Context, db *gorm.DB, merchant *Merchant) error
}
