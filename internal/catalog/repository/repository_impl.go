package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/catalog/domain"
	"github.com/smallbiznis/marketplace/pkg/db/option"
	"gorm.io/gorm"
)

const serviceColumns = `id, merchant_id, name, slug, description, service_type, price, is_active,
	duration_minutes, requires_confirmation, max_capacity, price_per_night, unit_status,
	stock_quantity, track_stock, metadata, created_at, updated_at`

const scheduleColumns = `id, service_id, day_of_week, start_time, end_time, is_available, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertService(ctx context.Context, db *gorm.DB, service *domain.Service) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO services (`+serviceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		service.ID,
		service.MerchantID,
		service.Name,
		service.Slug,
		service.Description,
		service.ServiceType,
		service.Price,
		service.IsActive,
		service.DurationMinutes,
		service.RequiresConfirmation,
		service.MaxCapacity,
		service.PricePerNight,
		service.UnitStatus,
		service.StockQuantity,
		service.TrackStock,
		service.Metadata,
		service.CreatedAt,
		service.UpdatedAt,
	).Error
}

func (r *repo) UpdateService(ctx context.Context, db *gorm.DB, service *domain.Service) error {
	return db.WithContext(ctx).Exec(
		`UPDATE services
		 SET name = ?, description = ?, price = ?, is_active = ?, duration_minutes = ?,
			requires_confirmation = ?, max_capacity = ?, price_per_night = ?, unit_status = ?,
			stock_quantity = ?, track_stock = ?, updated_at = ?
		 WHERE merchant_id = ? AND id = ?`,
		service.Name,
		service.Description,
		service.Price,
		service.IsActive,
		service.DurationMinutes,
		service.RequiresConfirmation,
		service.MaxCapacity,
		service.PricePerNight,
		service.UnitStatus,
		service.StockQuantity,
		service.TrackStock,
		service.UpdatedAt,
		service.MerchantID,
		service.ID,
	).Error
}

func (r *repo) FindService(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID, filter domain.ServiceFilter) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE merchant_id = ? AND id = ?`
	args := []any{merchantID, id}
	if filter.Type != "" {
		query += ` AND service_type = ?`
		args = append(args, filter.Type)
	}
	if filter.ActiveOnly {
		query += ` AND is_active = true`
	}
	if filter.AvailableUnitOnly {
		query += ` AND unit_status = ?`
		args = append(args, domain.UnitStatusAvailable)
	}
	if filter.ForUpdate {
		query += ` FOR UPDATE`
	}

	var service domain.Service
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&service).Error; err != nil {
		return nil, err
	}
	if service.ID == 0 {
		return nil, nil
	}
	return &service, nil
}

func (r *repo) ListServices(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, filter domain.ListServiceRequest) ([]domain.Service, error) {
	var items []domain.Service
	stmt := db.WithContext(ctx).Model(&domain.Service{}).Where("merchant_id = ?", merchantID)

	if filter.ServiceType != "" {
		stmt = stmt.Where("service_type = ?", filter.ServiceType)
	}
	if filter.IsActive != nil {
		stmt = stmt.Where("is_active = ?", *filter.IsActive)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
		"price":      true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SlugExists(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, slug string) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM services WHERE merchant_id = ? AND slug = ?`,
		merchantID,
		slug,
	).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FindSchedule(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, dayOfWeek int) (*domain.ServiceSchedule, error) {
	var schedule domain.ServiceSchedule
	err := db.WithContext(ctx).Raw(
		`SELECT `+scheduleColumns+`
		 FROM service_schedules
		 WHERE service_id = ? AND day_of_week = ?`,
		serviceID,
		dayOfWeek,
	).Scan(&schedule).Error
	if err != nil {
		return nil, err
	}
	if schedule.ID == 0 {
		return nil, nil
	}
	return &schedule, nil
}

func (r *repo) ListSchedules(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) ([]domain.ServiceSchedule, error) {
	var items []domain.ServiceSchedule
	err := db.WithContext(ctx).Raw(
		`SELECT `+scheduleColumns+`
		 FROM service_schedules
		 WHERE service_id = ?
		 ORDER BY day_of_week ASC`,
		serviceID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ReplaceSchedules(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, schedules []domain.ServiceSchedule) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM service_schedules WHERE service_id = ?`,
		serviceID,
	).Error; err != nil {
		return err
	}
	for i := range schedules {
		s := &schedules[i]
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO service_schedules (`+scheduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID,
			s.ServiceID,
			s.DayOfWeek,
			s.StartTime,
			s.EndTime,
			s.IsAvailable,
			s.CreatedAt,
			s.UpdatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}
