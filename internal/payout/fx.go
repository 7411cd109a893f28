package payout

import (
	"github.com/bidworks/clearhouse/internal/payout/repository"
	"github.com/bidworks/clearhouse/internal/payout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payout",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
