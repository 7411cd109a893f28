package audit

import (
	"github.com/bidworks/clearhouse/internal/audit/repository"
	"github.com/bidworks/clearhouse/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
