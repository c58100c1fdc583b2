package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "learnapp"

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer(tracerName)
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		globalTracer = otel.Tracer(tracerName)
	}
	return globalTracer
}

// TraceFunction starts a new span with a descriptive name for the given service and function.
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetGlobalTracer()
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceAIFunction starts a new span for an AI gateway function.
func TraceAIFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "ai", functionName, attributes...)
}

// TraceOCRFunction starts a new span for an OCR or batch function.
func TraceOCRFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "ocr", functionName, attributes...)
}

// TraceQuestionFunction starts a new span for a question generation function.
func TraceQuestionFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "question", functionName, attributes...)
}

// TraceHistoryFunction starts a new span for a history store function.
func TraceHistoryFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "history", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// AttributeSubject returns a tracing attribute for a subject code.
func AttributeSubject(subject string) attribute.KeyValue {
	return attribute.String("subject", subject)
}

// AttributeDifficulty returns a tracing attribute for a difficulty code.
func AttributeDifficulty(difficulty string) attribute.KeyValue {
	return attribute.String("difficulty", difficulty)
}

// AttributeQuestionType returns a tracing attribute for a question type.
func AttributeQuestionType(qType interface{}) attribute.KeyValue {
	return attribute.String("question.type", fmt.Sprintf("%v", qType))
}

// AttributeQuestionCount returns a tracing attribute for a requested question count.
func AttributeQuestionCount(n int) attribute.KeyValue {
	return attribute.Int("question.count", n)
}

// AttributeImageCount returns a tracing attribute for the number of images in a call.
func AttributeImageCount(n int) attribute.KeyValue {
	return attribute.Int("image.count", n)
}

// AttributeAttempt returns a tracing attribute for a retry attempt index.
func AttributeAttempt(n int) attribute.KeyValue {
	return attribute.Int("retry.attempt", n)
}
