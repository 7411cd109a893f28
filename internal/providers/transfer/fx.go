package transfer

import "go.uber.org/fx"

var Module = fx.Module("providers.transfer",
	fx.Provide(func() Executor {
		return NoOpExecutor{}
	}),
)
