package payee

import "go.uber.org/fx"

var Module = fx.Module("payee",
	fx.Provide(NewLocker),
)
