package notify

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.notify",
	fx.Provide(func(log *zap.Logger) Dispatcher {
		return NewLogDispatcher(log)
	}),
)
