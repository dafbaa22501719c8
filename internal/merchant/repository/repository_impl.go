package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/merchant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, merchant *domain.Merchant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO merchants (
			id, parent_id, name, slug, status, can_take_bookings, can_rent_units,
			can_sell_products, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		merchant.ID,
		merchant.ParentID,
		merchant.Name,
		merchant.Slug,
		merchant.Status,
		merchant.CanTakeBookings,
		merchant.CanRentUnits,
		merchant.CanSellProducts,
		merchant.CreatedAt,
		merchant.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Merchant, error) {
	var merchant domain.Merchant
	err := db.WithContext(ctx).Raw(
		`SELECT id, parent_id, name, slug, status, can_take_bookings, can_rent_units,
			can_sell_products, created_at, updated_at
		 FROM merchants
		 WHERE id = ?`,
		id,
	).Scan(&merchant).Error
	if err != nil {
		return nil, err
	}
	if merchant.ID == 0 {
		return nil, nil
	}
	return &merchant, nil
}

func (r *repo) SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM merchants WHERE slug = ?`,
		slug,
	).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) UpdateCapabilities(ctx context.Context, db *gorm.DB, merchant *domain.Merchant) error {
	return db.WithContext(ctx).Exec(
		`UPDATE merchants
		 SET status = ?, can_take_bookings = ?, can_rent_units = ?, can_sell_products = ?, updated_at = ?
		 WHERE id = ?`,
		merchant.Status,
		merchant.CanTakeBookings,
		merchant.CanRentUnits,
		merchant.CanSellProducts,
		merchant.UpdatedAt,
		merchant.ID,
	).Error
}
