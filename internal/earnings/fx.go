package earnings

import (
	"github.com/bidworks/clearhouse/internal/earnings/repository"
	"github.com/bidworks/clearhouse/internal/earnings/service"
	"go.uber.org/fx"
)

var Module = fx.Module("earnings.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
