package observability

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"codequest/internal/config"
	"codequest/internal/logger"
)

const tracerName = "codequest"

// InitTracing installs the global tracer provider. The returned function flushes
// and stops it; it is a no-op when tracing is disabled.
func InitTracing(ctx context.Context, log *logger.Logger, cfg config.TracingConfig, version string) func(context.Context) error {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(tracerName),
			semconv.ServiceVersionKey.String(strings.TrimSpace(version)),
		),
	)
	if err != nil {
		log.Warn("otel resource init failed (continuing)", "error", err)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))
	opts := []sdktrace.TracerProviderOption{sdktrace.WithSampler(sampler), sdktrace.WithResource(res)}

	exporter, err := buildExporter(ctx, cfg)
	if err != nil {
		log.Warn("otel exporter init failed (continuing)", "error", err)
	} else {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("otel tracing initialized", "exporter", cfg.Exporter, "endpoint", cfg.Endpoint)
	return tp.Shutdown
}

func buildExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	if strings.EqualFold(cfg.Exporter, "otlp") {
		opts := []otlptracehttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// StartSpan opens a span on the service tracer
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// FinishSpan records *errp on the span, if any, and ends it. Use with a named error return:
//
//	ctx, span := observability.StartSpan(ctx, "claim")
//	defer observability.FinishSpan(span, &err)
func FinishSpan(span trace.Span, errp *error) {
	if errp != nil && *errp != nil {
		span.RecordError(*errp, trace.WithStackTrace(true))
		span.SetStatus(codes.Error, (*errp).Error())
	}
	span.End()
}

func AttrUserID(userID string) attribute.KeyValue {
	return attribute.String("user.id", userID)
}

func AttrMissionID(missionID string) attribute.KeyValue {
	return attribute.String("mission.id", missionID)
}

func AttrSkillID(skillID string) attribute.KeyValue {
	return attribute.String("skill.id", skillID)
}
