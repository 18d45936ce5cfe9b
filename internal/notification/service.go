package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/config"
	"github.com/Additional-Code/tableorder/internal/entity"
	orderrepo "github.com/Additional-Code/tableorder/internal/repository/order"
	tablerepo "github.com/Additional-Code/tableorder/internal/repository/table"
	"github.com/Additional-Code/tableorder/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/tableorder/notification")

const (
	colorPaid      = 0x00ff00
	colorStaffCall = 0xff9900
)

// Service sends order-completion and staff-call messages.
type Service struct {
	sender Sender
	orders *orderrepo.Repository
	tables *tablerepo.Repository
	cfg    config.Notification
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Sender Sender
	Orders *orderrepo.Repository
	Tables *tablerepo.Repository
	Config config.Config
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		sender: p.Sender,
		orders: p.Orders,
		tables: p.Tables,
		cfg:    p.Config.Notification,
		logger: p.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NotifyOrderCompleted announces a paid order at most once. The discord_notified flag
// is claimed before sending and released again when delivery fails, so a later call
// can retry.
func (s *Service) NotifyOrderCompleted(ctx context.Context, orderID string) error {
	ctx, span := serviceTracer.Start(ctx, "Notifier.NotifyOrderCompleted", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if !s.cfg.Enabled || s.cfg.CompletionURL == "" {
		return nil
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load order failed")
		return err
	}
	if order.Status != entity.StatusCompleted || order.DiscordNotified {
		return nil
	}

	claimed, err := s.orders.ClaimNotification(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		return err
	}
	if !claimed {
		return nil
	}

	if err := s.sender.Send(ctx, s.cfg.CompletionURL, s.completionMessage(order)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		if releaseErr := s.orders.ReleaseNotification(ctx, orderID); releaseErr != nil {
			err = errors.Join(err, fmt.Errorf("release notification flag: %w", releaseErr))
		}
		return err
	}

	if s.logger != nil {
		s.logger.Info("completion notification sent", zap.String("order_id", orderID))
	}
	return nil
}

// CallStaff pages the floor staff for a table. Only an unknown table is reported to the
// caller; delivery failures are logged.
func (s *Service) CallStaff(ctx context.Context, tableID, message string) error {
	ctx, span := serviceTracer.Start(ctx, "Notifier.CallStaff", trace.WithAttributes(attribute.String("table.id", tableID)))
	defer span.End()

	table, err := s.tables.GetByID(ctx, tableID)
	if err != nil {
		if errors.Is(err, tablerepo.ErrNotFound) {
			return errorbank.NotFound("table not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "load table failed")
		return errorbank.Internal("failed to load table", errorbank.WithCause(err))
	}

	if !s.cfg.Enabled || s.cfg.StaffCallURL == "" {
		if s.logger != nil {
			s.logger.Warn("staff call webhook not configured", zap.String("table_id", tableID))
		}
		return nil
	}

	if err := s.sender.Send(ctx, s.cfg.StaffCallURL, s.staffCallMessage(table, strings.TrimSpace(message))); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		if s.logger != nil {
			s.logger.Warn("staff call notification failed", zap.String("table_id", tableID), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) completionMessage(order *entity.Order) Message {
	payer := order.PayerName
	if payer == "" {
		payer = "unknown"
	}

	fields := []Field{
		{Name: "Order", Value: "`" + order.ID + "`", Inline: true},
		{Name: "Payer", Value: payer, Inline: true},
	}
	if order.Table != nil {
		fields = append(fields, Field{Name: "Table", Value: order.Table.DisplayName(), Inline: true})
	}
	fields = append(fields, Field{Name: "Amount", Value: formatAmount(order.TotalAmount()), Inline: true})

	if len(order.Lines) > 0 {
		var items strings.Builder
		for _, line := range order.Lines {
			name := fmt.Sprintf("food #%d", line.FoodID)
			if line.Food != nil {
				name = line.Food.Name
			}
			fmt.Fprintf(&items, "• %s x%d (%s)\n", name, line.Quantity, formatAmount(line.Total()))
		}
		fields = append(fields, Field{Name: "Items", Value: strings.TrimSpace(items.String())})
	}

	return Message{
		Username: s.cfg.Username,
		Embeds: []Embed{{
			Title:       "Payment completed",
			Description: "A new order has been paid.",
			Color:       colorPaid,
			Fields:      fields,
			Timestamp:   s.now().Format(time.RFC3339),
			Footer:      s.footer(),
		}},
	}
}

func (s *Service) staffCallMessage(table *entity.Table, message string) Message {
	description := table.DisplayName() + " is calling for staff."
	fields := []Field{{Name: "Table", Value: table.DisplayName(), Inline: true}}
	if message != "" {
		description += " Message: " + message
		fields = append(fields, Field{Name: "Message", Value: message})
	}

	return Message{
		Username: s.cfg.StaffCallName,
		Embeds: []Embed{{
			Title:       "Staff call",
			Description: description,
			Color:       colorStaffCall,
			Fields:      fields,
			Timestamp:   s.now().Format(time.RFC3339),
			Footer:      s.footer(),
		}},
	}
}

func (s *Service) footer() *Footer {
	if s.cfg.FooterText == "" {
		return nil
	}
	return &Footer{Text: s.cfg.FooterText}
}

// formatAmount renders minor units with thousands separators, e.g. 15,000.
func formatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}
