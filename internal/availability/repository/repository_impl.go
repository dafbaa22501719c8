package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/availability/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) SumBookedPartySize(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, date time.Time, startTime string, statuses []string) (int, error) {
	var total int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(party_size), 0)
		 FROM bookings
		 WHERE service_id = ? AND booking_date = ? AND start_time = ? AND status IN ?`,
		serviceID,
		date,
		startTime,
		statuses,
	).Scan(&total).Error
	return total, err
}

// CountOverlappingReservations applies the half-open test
// existing.check_in < checkOut AND existing.check_out > checkIn.
func (r *repo) CountOverlappingReservations(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, checkIn, checkOut time.Time, statuses []string, excludeID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM reservations
		 WHERE service_id = ? AND status IN ? AND check_in < ? AND check_out > ? AND id <> ?`,
		serviceID,
		statuses,
		checkOut,
		checkIn,
		excludeID,
	).Scan(&count).Error
	return count, err
}
