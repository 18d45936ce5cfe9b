package payment

import (
	"context"
	"crypto/subtle"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/config"
	"github.com/Additional-Code/tableorder/internal/entity"
	depositrepo "github.com/Additional-Code/tableorder/internal/repository/deposit"
	orderrepo "github.com/Additional-Code/tableorder/internal/repository/order"
	ordersvc "github.com/Additional-Code/tableorder/internal/service/order"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tableorder/service/payment")

// Receipt describes what happened to one webhook delivery.
type Receipt struct {
	Ignored   bool
	DepositID string
	Matched   mo.Option[*entity.Order]
}

// Status is the payment state of a single order.
type Status struct {
	OrderID     string
	Completed   bool
	Status      entity.OrderStatus
	PayerName   string
	TotalAmount int64
}

// Service records bank deposits and reconciles them with pending pre-orders.
type Service struct {
	deposits *depositrepo.Repository
	orders   *orderrepo.Repository
	status   *ordersvc.Service
	notifier ordersvc.CompletionNotifier
	cfg      config.Payment
	logger   *zap.Logger
	now      func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Deposits *depositrepo.Repository
	Orders   *orderrepo.Repository
	Status   *ordersvc.Service
	Notifier ordersvc.CompletionNotifier `optional:"true"`
	Config   config.Config
	Logger   *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		deposits: p.Deposits,
		orders:   p.Orders,
		status:   p.Status,
		notifier: p.Notifier,
		cfg:      p.Config.Payment,
		logger:   p.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// VerifyKey checks the shared webhook key. Any key is accepted when none is configured.
func (s *Service) VerifyKey(key string) bool {
	if s.cfg.WebhookKey == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(s.cfg.WebhookKey), []byte(key)) == 1
}

// RecordDeposit handles one webhook delivery: non-deposit events are ignored, the
// deposit is appended to the ledger, and a matching pre-order is completed. A failure
// after the deposit is stored still returns the receipt alongside the error.
func (s *Service) RecordDeposit(ctx context.Context, body []byte) (Receipt, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.RecordDeposit")
	defer span.End()

	now := s.now()
	event, err := ParseDepositEvent(body, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed event")
		return Receipt{}, errorbank.BadRequest("malformed deposit event", errorbank.WithCause(err))
	}
	if !event.Deposited() {
		span.SetAttributes(attribute.String("deposit.transaction_type", event.TransactionType))
		return Receipt{Ignored: true}, nil
	}

	deposit := &entity.PaymentDeposit{
		ID:                uuid.NewString(),
		PayerName:         event.PayerName,
		BankAccountNumber: event.BankAccountNumber,
		Amount:            event.Amount,
		BankCode:          event.BankCode,
		BankAccountID:     event.BankAccountID,
		TransactionDate:   event.TransactionDate,
		ProcessingDate:    event.ProcessingDate,
		Balance:           event.Balance,
		CreatedAt:         now,
	}
	if err := s.deposits.Create(ctx, deposit); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return Receipt{}, errorbank.Internal("failed to record deposit", errorbank.WithCause(err))
	}
	receipt := Receipt{DepositID: deposit.ID, Matched: mo.None[*entity.Order]()}

	match, err := s.MatchDeposit(ctx, event.PayerName, event.Amount)
	if err != nil {
		return receipt, err
	}
	order, ok := match.Get()
	if !ok {
		if s.logger != nil {
			s.logger.Info("deposit recorded without matching pre-order",
				zap.String("deposit_id", deposit.ID),
				zap.Int64("amount", deposit.Amount),
			)
		}
		return receipt, nil
	}

	completed, err := s.status.TransitionStatus(ctx, order.ID, entity.StatusCompleted)
	if err != nil {
		return receipt, err
	}
	receipt.Matched = mo.Some(completed)
	if s.logger != nil {
		s.logger.Info("deposit matched pre-order",
			zap.String("deposit_id", deposit.ID),
			zap.String("order_id", completed.ID),
			zap.Int64("amount", deposit.Amount),
		)
	}
	return receipt, nil
}

// MatchDeposit finds the pending pre-order committed by payer for exactly amount,
// hidden orders included. The most recent order wins; equal timestamps fall back to the
// greater id. It never changes the order.
func (s *Service) MatchDeposit(ctx context.Context, payer string, amount int64) (mo.Option[*entity.Order], error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.MatchDeposit", trace.WithAttributes(attribute.Int64("deposit.amount", amount)))
	defer span.End()

	candidates, err := s.orders.FindPreOrders(ctx, payer, amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return mo.None[*entity.Order](), errorbank.Internal("failed to match deposit", errorbank.WithCause(err))
	}
	if len(candidates) == 0 {
		return mo.None[*entity.Order](), nil
	}

	latest := lo.MaxBy(candidates, func(a, b *entity.Order) bool {
		if !a.OrderDate.Equal(b.OrderDate) {
			return a.OrderDate.After(b.OrderDate)
		}
		return a.ID > b.ID
	})
	span.SetAttributes(attribute.Int("deposit.candidates", len(candidates)))
	return mo.Some(latest), nil
}

// PaymentStatus reports whether an order has been paid. A completed order that was
// never announced triggers its completion notification; delivery failures are logged.
func (s *Service) PaymentStatus(ctx context.Context, orderID string) (*Status, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.PaymentStatus", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := s.status.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	completed := order.Status == entity.StatusCompleted
	if completed && !order.DiscordNotified && s.notifier != nil {
		if err := s.notifier.NotifyOrderCompleted(ctx, order.ID); err != nil && s.logger != nil {
			s.logger.Warn("completion notification failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	return &Status{
		OrderID:     order.ID,
		Completed:   completed,
		Status:      order.Status,
		PayerName:   order.PayerName,
		TotalAmount: order.TotalAmount(),
	}, nil
}

// ListDeposits returns the deposit ledger newest first.
func (s *Service) ListDeposits(ctx context.Context, limit int) ([]*entity.PaymentDeposit, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.ListDeposits")
	defer span.End()

	deposits, err := s.deposits.List(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list deposits", errorbank.WithCause(err))
	}
	return deposits, nil
}

// TransferLink builds the banking app deep link that prefills a transfer of amount.
func (s *Service) TransferLink(amount int64) string {
	q := url.Values{}
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("bank", s.cfg.BankName)
	q.Set("accountNo", s.cfg.AccountNumber)
	q.Set("origin", "qr")
	return "supertoss://send?" + q.Encode()
}
