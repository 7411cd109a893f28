package compliance

import (
	"github.com/bidworks/clearhouse/internal/compliance/repository"
	"github.com/bidworks/clearhouse/internal/compliance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("compliance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
