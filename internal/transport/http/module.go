package http

import (
	"go.uber.org/fx"

	foodtransport "github.com/Additional-Code/tableorder/internal/transport/http/food"
	ordertransport "github.com/Additional-Code/tableorder/internal/transport/http/order"
	paymenttransport "github.com/Additional-Code/tableorder/internal/transport/http/payment"
	tabletransport "github.com/Additional-Code/tableorder/internal/transport/http/table"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	foodtransport.Module,
	tabletransport.Module,
	ordertransport.Module,
	paymenttransport.Module,
)
