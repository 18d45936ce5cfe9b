package order

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	outcomeAdmitted   = "admitted"
	outcomeRejected   = "rejected"
	outcomeContention = "contention"
	outcomeFailed     = "failed"
)

type admissionMetrics struct {
	admissions metric.Int64Counter
	retries    metric.Int64Counter
}

func newAdmissionMetrics() admissionMetrics {
	meter := otel.Meter("github.com/Additional-Code/tableorder/service/order")
	fallback := noop.NewMeterProvider().Meter("")

	// Instrument creation only fails on invalid names; the no-op fallbacks keep the
	// service usable either way.
	admissions, err := meter.Int64Counter("orders.admissions",
		metric.WithDescription("Order admission attempts by outcome."))
	if err != nil {
		admissions, _ = fallback.Int64Counter("orders.admissions")
	}
	retries, err := meter.Int64Counter("orders.admission.retries",
		metric.WithDescription("Admission transactions retried after lock contention."))
	if err != nil {
		retries, _ = fallback.Int64Counter("orders.admission.retries")
	}
	return admissionMetrics{admissions: admissions, retries: retries}
}

func (m admissionMetrics) record(ctx context.Context, outcome string) {
	m.admissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m admissionMetrics) retry(ctx context.Context) {
	m.retries.Add(ctx, 1)
}
