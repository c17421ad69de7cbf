// Package tracing provides an aspect that opens an OpenTelemetry span around every
// intercepted call.
package tracing

import (
	"context"

	"github.com/centraunit/aop"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used when no tracer is supplied.
const TracerName = "github.com/centraunit/aop/tracing"

// FactoryType is the key the tracing aspect is configured under.
var FactoryType = aop.TypeOf[*Factory]()

type spanKey struct{}

// Factory creates tracing aspects starting spans on Tracer.
type Factory struct {
	Tracer trace.Tracer
}

// NewFactory returns a Factory using tracer, or the global tracer provider when nil.
func NewFactory(tracer trace.Tracer) *Factory {
	return &Factory{Tracer: tracer}
}

func (f *Factory) Create(b aop.Binding, _ *aop.ContainerContext) (aop.Aspect, error) {
	tracer := f.Tracer
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(TracerName)
	}
	return &Aspect{
		tracer:   tracer,
		contract: b.Contract.String(),
	}, nil
}

// Aspect starts a span in PreInvoke and ends it in PostInvoke. When the method takes a
// leading context.Context, the call proceeds with the span's context.
type Aspect struct {
	tracer   trace.Tracer
	contract string
}

func (a *Aspect) PreInvoke(inv *aop.Invocation) {
	ctx, span := a.tracer.Start(inv.Context(), inv.TargetMethod.String(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("aop.contract", a.contract),
			attribute.String("aop.method", inv.TargetMethod.Name()),
			attribute.String("aop.kind", inv.Kind.String()),
			attribute.String("aop.invocation_id", inv.ID),
		),
	)
	inv.WithContext(ctx)
	inv.Set(spanKey{}, span)
}

func (a *Aspect) PostInvoke(inv *aop.Invocation) {
	v, ok := inv.Get(spanKey{})
	if !ok {
		return
	}
	span := v.(trace.Span)
	defer span.End()

	if !inv.Proceed {
		span.SetAttributes(attribute.Bool("aop.proceeded", false))
	}
	if inv.Err != nil {
		span.RecordError(inv.Err)
		span.SetStatus(codes.Error, inv.Err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// SpanFromInvocation returns the span started for inv, if any.
func SpanFromInvocation(inv *aop.Invocation) (trace.Span, bool) {
	v, ok := inv.Get(spanKey{})
	if !ok {
		return nil, false
	}
	span, ok := v.(trace.Span)
	return span, ok
}

// ContextWithSpan is a helper for aspects that run inside the tracing aspect and want
// to start child spans for methods without a context argument.
func ContextWithSpan(inv *aop.Invocation) context.Context {
	if span, ok := SpanFromInvocation(inv); ok {
		return trace.ContextWithSpan(inv.Context(), span)
	}
	return inv.Context()
}

// AddTracingAspect registers a Factory for tracer and attaches it to the last
// registered service.
func AddTracingAspect(b *aop.RegistrationBuilder, tracer trace.Tracer, opts ...aop.EntryOption) error {
	return b.AddAspectFactory(NewFactory(tracer), opts...)
}
