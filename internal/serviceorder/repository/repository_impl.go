package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/serviceorder/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.ServiceOrder) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID, forUpdate bool) (*domain.ServiceOrder, error) {
	query := `SELECT * FROM service_orders WHERE merchant_id = ? AND id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var order domain.ServiceOrder
	if err := db.WithContext(ctx).Raw(query, merchantID, id).Scan(&order).Error; err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status, stampColumn string, at time.Time) error {
	if stampColumn == "" {
		return db.WithContext(ctx).Exec(
			`UPDATE service_orders SET status = ?, updated_at = ? WHERE id = ?`,
			status, at, id,
		).Error
	}
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE service_orders SET status = ?, %s = ?, updated_at = ? WHERE id = ?`, stampColumn),
		status, at, at, id,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.ServiceOrder, error) {
	var items []*domain.ServiceOrder
	stmt := db.WithContext(ctx).Model(&domain.ServiceOrder{}).
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
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedUntil != nil {
		stmt = stmt.Where("created_at < ?", *filter.CreatedUntil)
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

func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, prefix string, at time.Time) (int, error) {
	conn := db.WithContext(ctx)

	seed := domain.OrderNumberSequence{DayPrefix: prefix, UpdatedAt: at}
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}

	var last int
	if err := conn.Raw(
		`SELECT last_value FROM order_number_sequences WHERE day_prefix = ? FOR UPDATE`,
		prefix,
	).Scan(&last).Error; err != nil {
		return 0, err
	}

	// Numbers issued before the counter row existed still count.
	var existing []string
	if err := conn.Raw(
		`SELECT order_number FROM service_orders
		 WHERE order_number LIKE ?
		 ORDER BY LENGTH(order_number) DESC, order_number DESC
		 LIMIT 1`,
		prefix+"-%",
	).Scan(&existing).Error; err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		if n, err := strconv.Atoi(strings.TrimPrefix(existing[0], prefix+"-")); err == nil && n > last {
			last = n
		}
	}

	next := last + 1
	if err := conn.Exec(
		`UPDATE order_number_sequences SET last_value = ?, updated_at = ? WHERE day_prefix = ?`,
		next, at, prefix,
	).Error; err != nil {
		return 0, err
	}
	return next, nil
}
