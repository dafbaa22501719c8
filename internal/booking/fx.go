package booking

import (
	"github.com/smallbiznis/marketplace/internal/booking/repository"
	"github.com/smallbiznis/marketplace/internal/booking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("booking.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
