package gcpolicy

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/metric"

	"github.com/sarahrileyjo/adaptivegc/pkg/mathutil"
)

const (
	metricEdenSize         = "adaptivegc.eden.size.bytes"
	metricOldSize          = "adaptivegc.old.size.bytes"
	metricSurvivorSize     = "adaptivegc.survivor.size.bytes"
	metricTenuringThresh   = "adaptivegc.tenuring.threshold"
	metricMinorCount       = "adaptivegc.minor.count"
	metricMajorCount       = "adaptivegc.major.count"
	metricMinorGcCostRatio = "adaptivegc.minor.gc.cost.ratio"
	metricMajorGcCostRatio = "adaptivegc.major.gc.cost.ratio"
)

// EngineMetrics publishes an Engine's current sizes, counts, and cost
// ratios as OTel observable instruments. The periodic reader drives the
// callback; EngineMetrics never polls or holds a goroutine of its own.
type EngineMetrics struct {
	engine *Engine

	edenSize     metric.Int64ObservableGauge
	oldSize      metric.Int64ObservableGauge
	survivorSize metric.Int64ObservableGauge
	tenuring     metric.Int64ObservableGauge
	minorCount   metric.Int64ObservableCounter
	majorCount   metric.Int64ObservableCounter
	minorCost    metric.Float64ObservableGauge
	majorCost    metric.Float64ObservableGauge
}

// metricBuilder accumulates OTel instrument creation errors, enabling batch
// construction with a single error check. Mirrors
// internal/observability's metricBuilder; kept local so this package stays
// free of a dependency on the CLI-facing observability bootstrap.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder { return &metricBuilder{meter: mt} }

func (b *metricBuilder) gauge(name, desc, unit string) metric.Int64ObservableGauge {
	g, err := b.meter.Int64ObservableGauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return g
}

func (b *metricBuilder) floatGauge(name, desc, unit string) metric.Float64ObservableGauge {
	g, err := b.meter.Float64ObservableGauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return g
}

func (b *metricBuilder) observableCounter(name, desc, unit string) metric.Int64ObservableCounter {
	c, err := b.meter.Int64ObservableCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// NewEngineMetrics creates and registers OTel instruments backed by engine's
// current state.
func NewEngineMetrics(mt metric.Meter, engine *Engine) (*EngineMetrics, error) {
	b := newMetricBuilder(mt)

	em := &EngineMetrics{
		engine:       engine,
		edenSize:     b.gauge(metricEdenSize, "Current eden space target size", "By"),
		oldSize:      b.gauge(metricOldSize, "Current old generation target size", "By"),
		survivorSize: b.gauge(metricSurvivorSize, "Current survivor space target size", "By"),
		tenuring:     b.gauge(metricTenuringThresh, "Current tenuring threshold", "{age}"),
		minorCount:   b.observableCounter(metricMinorCount, "Minor collections so far", "{collection}"),
		majorCount:   b.observableCounter(metricMajorCount, "Major collections so far", "{collection}"),
		minorCost:    b.floatGauge(metricMinorGcCostRatio, "Average minor GC cost ratio", "1"),
		majorCost:    b.floatGauge(metricMajorGcCostRatio, "Average major GC cost ratio", "1"),
	}

	if b.err != nil {
		return nil, b.err
	}

	instruments := []metric.Observable{
		em.edenSize, em.oldSize, em.survivorSize, em.tenuring,
		em.minorCount, em.majorCount, em.minorCost, em.majorCost,
	}

	if _, err := mt.RegisterCallback(em.observe, instruments...); err != nil {
		return nil, fmt.Errorf("register engine metrics callback: %w", err)
	}

	return em, nil
}

// observe reports the engine's current state to the OTel observer.
func (em *EngineMetrics) observe(_ context.Context, obs metric.Observer) error {
	e := em.engine

	obs.ObserveInt64(em.edenSize, safeObservedInt64(e.EdenSize()))
	obs.ObserveInt64(em.oldSize, safeObservedInt64(e.OldSize()))
	obs.ObserveInt64(em.survivorSize, safeObservedInt64(e.SurvivorSize()))
	obs.ObserveInt64(em.tenuring, int64(e.TenuringThreshold()))
	obs.ObserveInt64(em.minorCount, safeObservedInt64(e.minorCount))
	obs.ObserveInt64(em.majorCount, safeObservedInt64(e.majorCount))
	obs.ObserveFloat64(em.minorCost, e.MinorGcCostRatio())
	obs.ObserveFloat64(em.majorCost, e.MajorGcCostRatio())

	return nil
}

// safeObservedInt64 clamps a uint64 byte count into the observable gauge's
// int64 range rather than letting it wrap on conversion.
func safeObservedInt64(v uint64) int64 {
	return int64(mathutil.MinU64(v, math.MaxInt64))
}
