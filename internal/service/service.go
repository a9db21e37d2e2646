// Package service implements the point-of-sale core: seat leases, cash
// register sessions, the sale flow, closure reports and the ticket
// lifecycle.  Services hold no mutable state of their own; the storage
// layer is the only serialization point.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/bus-pos/internal/logger"
	"github.com/iliyamo/bus-pos/internal/metrics"
	"github.com/iliyamo/bus-pos/internal/queue"
	"github.com/iliyamo/bus-pos/internal/telemetry"
)

// Notifier publishes committed POS changes to interested clients.
// Delivery is best effort: a failed publish is logged and never undoes
// the change.
type Notifier interface {
	Publish(ctx context.Context, ev queue.POSEvent) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, queue.POSEvent) error { return nil }

// Options carries the collaborators shared by all services.  Zero values
// are replaced by no-op implementations and the wall clock.
type Options struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Notifier Notifier
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Notifier == nil {
		o.Notifier = NopNotifier{}
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

func (o Options) log(ctx context.Context) *zap.Logger {
	return logger.FromContextOr(ctx, o.Logger)
}

func (o Options) publish(ctx context.Context, ev queue.POSEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = o.Now()
	}
	if err := o.Notifier.Publish(ctx, ev); err != nil {
		o.log(ctx).Warn("publish event failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

var tracer = otel.Tracer(telemetry.TracerName)

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(CodeOf(err)))
	}
	span.End()
}
