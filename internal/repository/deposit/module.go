package deposit

import "go.uber.org/fx"

// Module provides the deposit ledger repository to Fx.
var Module = fx.Provide(NewRepository)
