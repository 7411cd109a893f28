package tinvault

import "go.uber.org/fx"

var Module = fx.Module("tinvault",
	fx.Provide(New),
)
