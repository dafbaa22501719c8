package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/marketplace/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/marketplace/internal/booking/domain"
	catalogdomain "github.com/smallbiznis/marketplace/internal/catalog/domain"
	merchantdomain "github.com/smallbiznis/marketplace/internal/merchant/domain"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	reservationdomain "github.com/smallbiznis/marketplace/internal/reservation/domain"
	serviceorderdomain "github.com/smallbiznis/marketplace/internal/serviceorder/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres schema, including the
// reservation overlap exclusion and the order number unique index.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the gorm models on databases the
// embedded postgres migrations do not target. It carries none of the
// exclusion or partial index backstops.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&merchantdomain.Merchant{},
		&catalogdomain.Service{},
		&catalogdomain.ServiceSchedule{},
		&feedomain.PlatformFee{},
		&bookingdomain.Booking{},
		&reservationdomain.Reservation{},
		&serviceorderdomain.ServiceOrder{},
		&serviceorderdomain.OrderNumberSequence{},
		&auditdomain.AuditLog{},
	)
}
