package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	"github.com/smallbiznis/marketplace/pkg/db/option"
	"gorm.io/gorm"
)

const feeColumns = `id, transaction_type, rate_percentage, is_active, description, created_at, updated_at`

type repository struct{}

func NewRepository() feedomain.Repository {
	return &repository{}
}

func (r *repository) FindActiveByType(ctx context.Context, db *gorm.DB, transactionType feedomain.TransactionType) (*feedomain.PlatformFee, error) {
	var fee feedomain.PlatformFee
	err := db.WithContext(ctx).Raw(
		`SELECT `+feeColumns+`
		 FROM platform_fees
		 WHERE transaction_type = ? AND is_active = true
		 ORDER BY updated_at DESC, id DESC
		 LIMIT 1`,
		transactionType,
	).Scan(&fee).Error
	if err != nil {
		return nil, err
	}
	if fee.ID == 0 {
		return nil, nil
	}
	return &fee, nil
}

func (r *repository) LockByType(ctx context.Context, db *gorm.DB, transactionType feedomain.TransactionType) ([]feedomain.PlatformFee, error) {
	var fees []feedomain.PlatformFee
	err := db.WithContext(ctx).Raw(
		`SELECT `+feeColumns+`
		 FROM platform_fees
		 WHERE transaction_type = ?
		 ORDER BY id ASC
		 FOR UPDATE`,
		transactionType,
	).Scan(&fees).Error
	if err != nil {
		return nil, err
	}
	return fees, nil
}

func (r *repository) DeactivateOthers(ctx context.Context, db *gorm.DB, transactionType feedomain.TransactionType, keepID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE platform_fees
		 SET is_active = false, updated_at = ?
		 WHERE transaction_type = ? AND id <> ? AND is_active = true`,
		now,
		transactionType,
		keepID,
	).Error
}

func (r *repository) CountByType(ctx context.Context, db *gorm.DB, transactionType feedomain.TransactionType) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM platform_fees WHERE transaction_type = ?`,
		transactionType,
	).Scan(&count).Error
	return count, err
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, fee *feedomain.PlatformFee) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO platform_fees (`+feeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fee.ID,
		fee.TransactionType,
		fee.RatePercentage,
		fee.IsActive,
		fee.Description,
		fee.CreatedAt,
		fee.UpdatedAt,
	).Error
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, fee *feedomain.PlatformFee) error {
	return db.WithContext(ctx).Exec(
		`UPDATE platform_fees
		 SET rate_percentage = ?, is_active = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		fee.RatePercentage,
		fee.IsActive,
		fee.Description,
		fee.UpdatedAt,
		fee.ID,
	).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*feedomain.PlatformFee, error) {
	query := `SELECT ` + feeColumns + ` FROM platform_fees WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var fee feedomain.PlatformFee
	if err := db.WithContext(ctx).Raw(query, id).Scan(&fee).Error; err != nil {
		return nil, err
	}
	if fee.ID == 0 {
		return nil, nil
	}
	return &fee, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, filter feedomain.ListRequest) ([]feedomain.PlatformFee, error) {
	var items []feedomain.PlatformFee
	stmt := db.WithContext(ctx).Model(&feedomain.PlatformFee{})

	if filter.TransactionType != "" {
		stmt = stmt.Where("transaction_type = ?", filter.TransactionType)
	}
	if filter.IsActive != nil {
		stmt = stmt.Where("is_active = ?", *filter.IsActive)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at":       true,
		"updated_at":       true,
		"transaction_type": true,
		"rate_percentage":  true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
