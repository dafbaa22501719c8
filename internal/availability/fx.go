package availability

import (
	"github.com/smallbiznis/marketplace/internal/availability/repository"
	"github.com/smallbiznis/marketplace/internal/availability/service"
	"go.uber.org/fx"
)

var Module = fx.Module("availability.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewChecker),
)
