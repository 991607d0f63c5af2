package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/obichijioke/event-app-fullstack-sub004"

// Config はトレースの設定
type Config struct {
	ServiceName    string
	JaegerEndpoint string // 空なら送信しない
	SampleRatio    float64
}

// Setup はグローバルな TracerProvider とプロパゲータを設定する
// 戻り値の関数で送信中のスパンを flush して終了する
func Setup(cfg Config) (func(context.Context) error, error) {
	opts := []tracesdk.TracerProviderOption{
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		)),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(cfg.SampleRatio))),
	}

	if cfg.JaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("jaeger exporter の作成に失敗: %w", err)
		}
		opts = append(opts, tracesdk.WithBatcher(exp))
	}

	tp := tracesdk.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	// メッセージ経由でトレースを伝播させるために必要
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Tracer はアプリケーション共通の Tracer を返す
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Start はスパンを開始する
func Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// RecordError はエラーをスパンに記録して err をそのまま返す
func RecordError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
	}
	return err
}
