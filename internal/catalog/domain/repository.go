package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertService(ctx context.Context, db *gorm.DB, service *Service) error
	UpdateService(ctx context.Context, db *gorm.DB, service *Service) error
	FindService(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID, filter ServiceFilter) (*Service, error)
	ListServices(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, filter ListServiceRequest) ([]Service, error)
	SlugExists(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, slug string) (bool, error)

	FindSchedule(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, dayOfWeek int) (*ServiceSchedule, error)
	ListSchedules(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) ([]ServiceSchedule, error)
	ReplaceSchedules(ctx context.Context, db *gorm.DB, serviceID snowflake.ID, schedules []ServiceSchedule) error
}
