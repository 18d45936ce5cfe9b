package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/tableorder/internal/cache"
	"github.com/Additional-Code/tableorder/internal/config"
	"github.com/Additional-Code/tableorder/internal/database"
	"github.com/Additional-Code/tableorder/internal/logger"
	"github.com/Additional-Code/tableorder/internal/messaging"
	"github.com/Additional-Code/tableorder/internal/notification"
	"github.com/Additional-Code/tableorder/internal/observability"
	repositorydeposit "github.com/Additional-Code/tableorder/internal/repository/deposit"
	repositoryfood "github.com/Additional-Code/tableorder/internal/repository/food"
	repositoryorder "github.com/Additional-Code/tableorder/internal/repository/order"
	repositorytable "github.com/Additional-Code/tableorder/internal/repository/table"
	grpcserver "github.com/Additional-Code/tableorder/internal/server/grpc"
	httpserver "github.com/Additional-Code/tableorder/internal/server/http"
	servicefood "github.com/Additional-Code/tableorder/internal/service/food"
	serviceorder "github.com/Additional-Code/tableorder/internal/service/order"
	servicepayment "github.com/Additional-Code/tableorder/internal/service/payment"
	servicerefund "github.com/Additional-Code/tableorder/internal/service/refund"
	servicetable "github.com/Additional-Code/tableorder/internal/service/table"
	transporthttp "github.com/Additional-Code/tableorder/internal/transport/http"
	"github.com/Additional-Code/tableorder/internal/worker"
	workerorder "github.com/Additional-Code/tableorder/internal/worker/order"
)

// Infra provides configuration, logging and storage without any domain wiring. The
// migrate and seed commands run on it alone.
var Infra = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	cache.Module,
	messaging.Module,
	observability.Module,
	repositoryfood.Module,
	repositorytable.Module,
	repositoryorder.Module,
	repositorydeposit.Module,
	notification.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	servicefood.Module,
	servicetable.Module,
	servicerefund.Module,
	servicepayment.Module,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
