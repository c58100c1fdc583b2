package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

const meterName = "learnapp"

// Instruments groups the counters recorded by the AI pipeline.
type Instruments struct {
	AIAttempts       otelmetric.Int64Counter
	AIFailures       otelmetric.Int64Counter
	SchemaDeviations otelmetric.Int64Counter
	OCRBatches       otelmetric.Int64Counter
}

var (
	instruments   *Instruments
	instrumentsMu sync.Mutex
)

// InitInstruments (re)creates the counters against the global meter provider.
func InitInstruments() {
	instrumentsMu.Lock()
	defer instrumentsMu.Unlock()
	instruments = newInstruments(otel.Meter(meterName))
}

// Metrics returns the process instruments, creating them on first use.
func Metrics() *Instruments {
	instrumentsMu.Lock()
	defer instrumentsMu.Unlock()
	if instruments == nil {
		instruments = newInstruments(otel.Meter(meterName))
	}
	return instruments
}

func newInstruments(m otelmetric.Meter) *Instruments {
	// Creation only fails on invalid names; the returned counters are then no-ops.
	attempts, _ := m.Int64Counter("learnapp.ai.attempts",
		otelmetric.WithDescription("AI gateway calls issued"))
	failures, _ := m.Int64Counter("learnapp.ai.failures",
		otelmetric.WithDescription("AI gateway calls that failed"))
	deviations, _ := m.Int64Counter("learnapp.normalizer.schema_deviations",
		otelmetric.WithDescription("AI question objects that did not match the expected schema before coercion"))
	batches, _ := m.Int64Counter("learnapp.ocr.batches",
		otelmetric.WithDescription("OCR batch groups processed, by result"))
	return &Instruments{
		AIAttempts:       attempts,
		AIFailures:       failures,
		SchemaDeviations: deviations,
		OCRBatches:       batches,
	}
}

// RecordAIAttempt counts one gateway call and, when failed, one failure.
func (i *Instruments) RecordAIAttempt(ctx context.Context, provider string, failed bool) {
	attrs := otelmetric.WithAttributes(attribute.String("ai.provider", provider))
	i.AIAttempts.Add(ctx, 1, attrs)
	if failed {
		i.AIFailures.Add(ctx, 1, attrs)
	}
}

// RecordBatch counts one OCR batch group.
func (i *Instruments) RecordBatch(ctx context.Context, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	i.OCRBatches.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("result", result)))
}
