package deadline

import "go.uber.org/fx"

var Module = fx.Module("deadline.service",
	fx.Provide(NewService),
)
