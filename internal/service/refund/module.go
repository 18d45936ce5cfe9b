package refund

import "go.uber.org/fx"

// Module provides the refund and adjustment engine to Fx.
var Module = fx.Provide(NewService)
