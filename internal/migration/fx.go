package migration

import (
	"context"

	"github.com/smallbiznis/marketplace/internal/config"
	feedomain "github.com/smallbiznis/marketplace/internal/platformfee/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, fees feedomain.Service, log *zap.Logger) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else if err := AutoMigrate(conn); err != nil {
			return err
		}

		seeded, err := fees.SeedDefaults(context.Background())
		if err != nil {
			return err
		}
		if seeded > 0 {
			log.Named("migrations").Info("seeded default platform fees", zap.Int("count", seeded))
		}
		return nil
	}),
)
