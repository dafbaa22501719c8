package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/reservation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reservation *domain.Reservation) error {
	return db.WithContext(ctx).Create(reservation).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID, forUpdate bool) (*domain.Reservation, error) {
	query := `SELECT * FROM reservations WHERE merchant_id = ? AND id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var reservation domain.Reservation
	if err := db.WithContext(ctx).Raw(query, merchantID, id).Scan(&reservation).Error; err != nil {
		return nil, err
	}
	if reservation.ID == 0 {
		return nil, nil
	}
	return &reservation, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status, stampColumn string, at time.Time) error {
	if stampColumn == "" {
		return db.WithContext(ctx).Exec(
			`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
			status, at, id,
		).Error
	}
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE reservations SET status = ?, %s = ?, updated_at = ? WHERE id = ?`, stampColumn),
		status, at, at, id,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Reservation, error) {
	var items []*domain.Reservation
	stmt := db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("merchant_id = ?", filter.MerchantID)

	if status := strings.TrimSpace(filter.Status); status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	if filter.ServiceID != 0 {
		stmt = stmt.Where("service_id = ?", filter.ServiceID)
	}
	if customerID := strings.TrimSpace(filter.CustomerID); customerID != "" {
		stmt = stmt.Where("customer_id = ?", customerID)
	}
	if filter.From != nil {
		stmt = stmt.Where("check_out > ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("check_in <= ?", *filter.To)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
