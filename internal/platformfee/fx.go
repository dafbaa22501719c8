package platformfee

import (
	"github.com/smallbiznis/marketplace/internal/platformfee/repository"
	"github.com/smallbiznis/marketplace/internal/platformfee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("platformfee.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewCalculator),
	fx.Provide(service.NewService),
)
