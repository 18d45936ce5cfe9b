package food

import "go.uber.org/fx"

// Module provides the menu catalog service to Fx.
var Module = fx.Provide(NewService)
