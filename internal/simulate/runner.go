package simulate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/sarahrileyjo/adaptivegc/pkg/gcpolicy"
)

// Record captures the engine's published state immediately after one
// simulated collection, for reporting.
type Record struct {
	Index             int
	Complete          bool
	Cause             gcpolicy.Cause
	EdenSize          uint64
	SurvivorSize      uint64
	OldSize           uint64
	TenuringThreshold uint
	MinorGcCostRatio  float64
	MajorGcCostRatio  float64
}

// Result is a completed simulated run.
type Result struct {
	Records    []Record
	Summary    Summary
	MinorCount uint64
	MajorCount uint64
}

// Run drives engine through collections synthetic collections produced by
// gen, sleeping through each event's mutator/pause durations so the engine's
// real-time interval timers observe a plausible split between them. A nil
// tracer runs with no-op spans.
func Run(ctx context.Context, tracer trace.Tracer, engine *gcpolicy.Engine, gen *Generator, collections int) (Result, error) {
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer("adaptivegc")
	}

	ctx, span := tracer.Start(ctx, "adaptivegc.run", trace.WithAttributes(
		attribute.Int("policy.collections", collections),
	))
	defer span.End()

	result := Result{Records: make([]Record, 0, collections)}

	for i := range collections {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		heap := gen.CurrentHeap(engine.EdenSize(), engine.SurvivorSize())
		complete := engine.ShouldCollectCompletely(true, heap)

		event := gen.Next(engine.EdenSize(), engine.SurvivorSize(), engine.TenuringThreshold(), complete)

		runCollection(ctx, tracer, engine, i, complete, event)

		if complete {
			result.MajorCount++
		} else {
			result.MinorCount++
		}

		result.Records = append(result.Records, Record{
			Index:             i,
			Complete:          complete,
			Cause:             event.Cause,
			EdenSize:          engine.EdenSize(),
			SurvivorSize:      engine.SurvivorSize(),
			OldSize:           engine.OldSize(),
			TenuringThreshold: engine.TenuringThreshold(),
			MinorGcCostRatio:  engine.MinorGcCostRatio(),
			MajorGcCostRatio:  engine.MajorGcCostRatio(),
		})
	}

	result.Summary = summarize(result.Records)

	span.SetAttributes(
		attribute.Int64("report.minor_count", int64(result.MinorCount)),
		attribute.Int64("report.major_count", int64(result.MajorCount)),
	)

	return result, nil
}

// runCollection wraps one collection's OnCollectionBegin/OnCollectionEnd
// pair in a child span, sleeping through the simulated mutator interval and
// pause so the engine's interval timers measure real elapsed time.
func runCollection(
	ctx context.Context, tracer trace.Tracer, engine *gcpolicy.Engine, index int, complete bool, event Event,
) {
	_, span := tracer.Start(ctx, "adaptivegc.collection", trace.WithAttributes(
		attribute.Int("policy.index", index),
		attribute.Bool("collection.complete", complete),
		attribute.String("gc_cause", event.Cause.String()),
	))
	defer span.End()

	time.Sleep(event.MutatorInterval)
	engine.OnCollectionBegin(complete, event.YoungChunkBytes, event.YoungAlignedChunkBytes)

	time.Sleep(event.PauseDuration)
	engine.OnCollectionEnd(complete, event.Cause, event.Snapshot)
}
