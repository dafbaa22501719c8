package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/marketplace/internal/audit"
	"github.com/smallbiznis/marketplace/internal/availability"
	"github.com/smallbiznis/marketplace/internal/booking"
	"github.com/smallbiznis/marketplace/internal/catalog"
	"github.com/smallbiznis/marketplace/internal/clock"
	"github.com/smallbiznis/marketplace/internal/config"
	"github.com/smallbiznis/marketplace/internal/events"
	"github.com/smallbiznis/marketplace/internal/merchant"
	"github.com/smallbiznis/marketplace/internal/migration"
	"github.com/smallbiznis/marketplace/internal/observability"
	"github.com/smallbiznis/marketplace/internal/platformfee"
	"github.com/smallbiznis/marketplace/internal/ratelimit"
	"github.com/smallbiznis/marketplace/internal/reservation"
	"github.com/smallbiznis/marketplace/internal/server"
	"github.com/smallbiznis/marketplace/internal/serviceorder"
	"github.com/smallbiznis/marketplace/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		events.Module,
		ratelimit.Module,

		// Functional Domains
		merchant.Module,
		catalog.Module,
		availability.Module,
		platformfee.Module,
		audit.Module,
		booking.Module,
		reservation.Module,
		serviceorder.Module,

		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
