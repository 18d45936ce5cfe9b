package food

import "go.uber.org/fx"

// Module provides the food repository to Fx.
var Module = fx.Provide(NewRepository)
