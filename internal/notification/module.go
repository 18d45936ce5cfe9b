package notification

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/tableorder/internal/config"
	ordersvc "github.com/Additional-Code/tableorder/internal/service/order"
)

// Module provides the webhook client and the notifier, which also serves as the order
// service's completion notifier.
var Module = fx.Options(
	fx.Provide(
		func(cfg config.Config) Sender { return NewDiscordClient(cfg.Notification.Timeout) },
		NewService,
		func(s *Service) ordersvc.CompletionNotifier { return s },
	),
)
