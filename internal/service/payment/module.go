package payment

import "go.uber.org/fx"

// Module provides the payment reconciliation service to Fx.
var Module = fx.Provide(NewService)
