package gcpolicy

import (
	"math"

	"github.com/sarahrileyjo/adaptivegc/pkg/alg/stats"
	"github.com/sarahrileyjo/adaptivegc/pkg/mathutil"
	"github.com/sarahrileyjo/adaptivegc/pkg/safeconv"
)

// HeapState is the current heap usage the collector supplies to
// ShouldCollectCompletely, ahead of knowing whether the next collection
// will run at all.
type HeapState struct {
	YoungUsedBytes uint64
	OldUsedBytes   uint64
}

// Option configures an Engine at construction time. Options only affect
// initial state and feature toggles, never mid-run learned averages (the
// policy never persists or replays learned state across runs).
type Option func(*Engine)

// WithInitialSizes overrides the zero-value default of sizing every
// generation to the aligned minimum space size.
func WithInitialSizes(eden, survivor, promo, old uint64) Option {
	return func(e *Engine) {
		e.edenSize = AlignUp(eden, e.params.Alignment)
		e.survivorSize = AlignUp(survivor, e.params.Alignment)
		e.promoSize = AlignUp(promo, e.params.Alignment)
		e.oldSize = AlignUp(old, e.params.Alignment)
	}
}

// WithInitialSupplements seeds the decaying startup growth boosts.
func WithInitialSupplements(young, old float64) Option {
	return func(e *Engine) {
		e.youngGenSizeIncrementSupplement = young
		e.oldGenSizeIncrementSupplement = old
	}
}

// WithAdaptToSystemGC enables sampling averages on explicitly-requested
// (OnSystemGC) collections, not just allocation-triggered ones.
func WithAdaptToSystemGC(enabled bool) Option {
	return func(e *Engine) { e.adaptToSystemGC = enabled }
}

// WithCostEstimators toggles whether the reciprocal least-squares
// estimators gate expansion decisions once warmed up. Disabling always
// assumes expansion helps (the pre-warm-up behavior), useful for tests that
// want to isolate the footprint-shrink path.
func WithCostEstimators(enabled bool) Option {
	return func(e *Engine) { e.costEstimatorsEnabled = enabled }
}

// WithFootprintGoal toggles the footprint-shrink path.
func WithFootprintGoal(enabled bool) Option {
	return func(e *Engine) { e.footprintGoalEnabled = enabled }
}

// WithMajorGCCostDecay toggles decaying major GC cost's contribution once
// the mutator has run far longer than the average major interval.
func WithMajorGCCostDecay(enabled bool) Option {
	return func(e *Engine) { e.majorGcCostDecayEnabled = enabled }
}

// Engine is the adaptive sizing policy. It owns every average/estimator in
// spec, consumes Snapshots at collection boundaries, and emits updated
// generation sizes and the tenuring threshold. It performs no heap
// allocation in its callbacks beyond what Go's escape analysis already
// stack-allocates, and must only be driven from stop-the-world callbacks:
// it is not safe for concurrent use.
type Engine struct {
	params SizeParams

	edenSize     uint64
	survivorSize uint64
	promoSize    uint64
	oldSize      uint64

	// tenuringThreshold is an age, never negative; held as uint at rest and
	// only widened to int (via safeconv) where computeSurvivorSpaceSizeAndThreshold
	// needs signed +1/-1 delta arithmetic ahead of clamping.
	tenuringThreshold uint

	youngGenPolicyIsReady bool

	minorCount                     uint64
	majorCount                     uint64
	minorCountSinceMajorCollection uint64

	oldSizeExceededInPreviousCollection bool

	youngGenSizeIncrementSupplement float64
	oldGenSizeIncrementSupplement   float64

	youngGenChangeForMinorThroughput int
	oldGenChangeForMajorThroughput   int

	// Stored as nanoseconds despite the spec's "...Seconds" naming in the
	// source this is grounded on; converted to seconds only at the point
	// of use. See DESIGN.md.
	latestMinorMutatorIntervalNanos int64
	latestMajorMutatorIntervalNanos int64

	minorTimer *IntervalTimer
	majorTimer *IntervalTimer

	avgMinorGcCost                  *WeightedAverage
	avgMinorPause                   *PaddedAverage
	avgMajorGcCost                  *WeightedAverage
	avgMajorPause                   *PaddedAverage
	avgMajorIntervalSeconds         *WeightedAverage
	avgSurvived                     *PaddedAverage
	avgPromoted                     *PaddedAverage
	avgOldLive                      *WeightedAverage
	avgYoungGenAlignedChunkFraction *WeightedAverage

	minorCostEstimator *ReciprocalLeastSquareFit
	majorCostEstimator *ReciprocalLeastSquareFit

	adaptToSystemGC         bool
	costEstimatorsEnabled   bool
	footprintGoalEnabled    bool
	majorGcCostDecayEnabled bool
}

// New creates an engine with spec-default calibration constants and the
// given collector size parameters, applying any options in order.
func New(params SizeParams, opts ...Option) *Engine {
	e := &Engine{
		params:            params,
		tenuringThreshold: InitialTenuringThreshold,

		minorTimer: NewIntervalTimer(),
		majorTimer: NewIntervalTimer(),

		avgMinorGcCost:                  NewWeightedAverage(AdaptiveTimeWeight),
		avgMinorPause:                   NewPaddedAverage(AdaptiveTimeWeight, PausePadding, false),
		avgMajorGcCost:                  NewWeightedAverage(AdaptiveTimeWeight),
		avgMajorPause:                   NewPaddedAverage(AdaptiveTimeWeight, PausePadding, false),
		avgMajorIntervalSeconds:         NewWeightedAverage(AdaptiveTimeWeight),
		avgSurvived:                     NewPaddedAverage(AdaptiveSizePolicyWeight, SurvivorPadding, false),
		avgPromoted:                     NewPaddedAverage(AdaptiveSizePolicyWeight, PromotedPadding, true),
		avgOldLive:                      NewWeightedAverage(AdaptiveSizePolicyWeight),
		avgYoungGenAlignedChunkFraction: NewWeightedAverage(AdaptiveTimeWeight),

		minorCostEstimator: NewReciprocalLeastSquareFit(estimatorHistory),
		majorCostEstimator: NewReciprocalLeastSquareFit(estimatorHistory),

		youngGenSizeIncrementSupplement: YoungGenerationSizeSupplementDefault,
		oldGenSizeIncrementSupplement:   TenuredGenerationSizeSupplementDefault,

		costEstimatorsEnabled:   true,
		footprintGoalEnabled:    true,
		majorGcCostDecayEnabled: true,
	}

	e.edenSize = AlignUp(params.MinSpaceSize, params.Alignment)
	e.survivorSize = AlignUp(params.MinSpaceSize, params.Alignment)
	e.promoSize = AlignUp(params.MinSpaceSize, params.Alignment)
	e.oldSize = AlignUp(params.MinSpaceSize, params.Alignment)

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Name identifies this policy to the collector.
func (e *Engine) Name() string { return "adaptive" }

// GCCount returns minor+major collections so far. Safe to call from
// uninterruptible contexts: it is two plain loads, and callers tolerate
// non-atomic tearing because both counters only ever increase at
// safepoints.
func (e *Engine) GCCount() uint64 { return e.minorCount + e.majorCount }

// EdenSize returns the current eden target size in bytes.
func (e *Engine) EdenSize() uint64 { return e.edenSize }

// SurvivorSize returns the current survivor-space target size in bytes.
func (e *Engine) SurvivorSize() uint64 { return e.survivorSize }

// PromoSize returns the current promotion budget (old-gen growth room) in
// bytes.
func (e *Engine) PromoSize() uint64 { return e.promoSize }

// OldSize returns the current old-generation target size in bytes.
func (e *Engine) OldSize() uint64 { return e.oldSize }

// TenuringThreshold returns the current tenuring threshold.
func (e *Engine) TenuringThreshold() uint { return e.tenuringThreshold }

// YoungGenPolicyIsReady reports whether the young generation policy has
// warmed up (minorCount >= AdaptiveSizePolicyReadyThreshold).
func (e *Engine) YoungGenPolicyIsReady() bool { return e.youngGenPolicyIsReady }

// MinorGcCostRatio returns the current weighted-average fraction of
// wall-clock time minor collections have consumed.
func (e *Engine) MinorGcCostRatio() float64 { return e.avgMinorGcCost.Average() }

// MajorGcCostRatio returns the current weighted-average fraction of
// wall-clock time major collections have consumed.
func (e *Engine) MajorGcCostRatio() float64 { return e.avgMajorGcCost.Average() }

// ShouldCollectCompletely decides whether the next collection, assumed to
// be attempted incrementally first per spec, should instead be complete
// (young + old). heap supplies the current live-byte usage the policy needs
// but does not own.
func (e *Engine) ShouldCollectCompletely(followingIncremental bool, heap HeapState) bool {
	if !e.youngGenPolicyIsReady || !followingIncremental {
		return false
	}

	if e.oldSizeExceededInPreviousCollection {
		return true
	}

	if float64(e.minorCountSinceMajorCollection)*e.avgMinorPause.Average() >=
		ConsecutiveMinorToMajorPauseTimeRatio*e.avgMajorPause.PaddedAverage() {
		return true
	}

	projectedPromotion := math.Min(e.avgPromoted.PaddedAverage(), float64(heap.YoungUsedBytes))
	headroom := float64(mathutil.SubOrZero(e.oldSize, heap.OldUsedBytes))

	return projectedPromotion > headroom
}

// OnCollectionBegin is invoked at the start of a collection (stop-the-world
// safepoint). youngChunkBytes/youngAlignedChunkBytes come from the
// collector's heap accounting; pass 0 for youngChunkBytes to skip sampling
// avgYoungGenAlignedChunkFraction this cycle.
func (e *Engine) OnCollectionBegin(complete bool, youngChunkBytes, youngAlignedChunkBytes uint64) {
	timer := e.minorTimer
	if complete {
		timer = e.majorTimer
	}

	timer.Close()

	if complete {
		e.latestMajorMutatorIntervalNanos = timer.MeasuredNanos()
	} else {
		e.latestMinorMutatorIntervalNanos = timer.MeasuredNanos()
	}

	if youngChunkBytes != 0 {
		e.avgYoungGenAlignedChunkFraction.Sample(float64(youngAlignedChunkBytes) / float64(youngChunkBytes))
	}

	timer.Reset()
	timer.Open()
}

// OnCollectionEnd is invoked at the end of a collection (stop-the-world
// safepoint), with the collector's live-byte accounting for the collection
// that just finished.
func (e *Engine) OnCollectionEnd(complete bool, cause Cause, snap Snapshot) {
	timer := e.minorTimer
	if complete {
		timer = e.majorTimer
	}

	timer.Close()
	pauseNanos := timer.MeasuredNanos()
	timer.Reset()

	e.updateCollectionEndAverages(complete, cause, pauseNanos)

	if complete {
		e.majorCount++
		e.minorCountSinceMajorCollection = 0
	} else {
		e.minorCount++
		e.minorCountSinceMajorCollection++
	}

	if e.minorCount >= AdaptiveSizePolicyReadyThreshold {
		e.youngGenPolicyIsReady = true
	}

	timer.Open()

	e.oldSizeExceededInPreviousCollection = snap.OldLiveBytes > e.oldSize

	e.avgSurvived.Sample(float64(snap.SurvivorChunkBytes + snap.SurvivorOverflowObjectBytes))
	e.avgPromoted.Sample(float64(snap.TenuredObjectBytes))

	e.computeSurvivorSpaceSizeAndThreshold(snap)
	e.computeEdenSpaceSize()

	if complete {
		e.computeOldGenSpaceSize(snap.OldLiveBytes)
	}

	e.decaySupplementalGrowth(complete)
}

// updateCollectionEndAverages samples the cost/pause/interval averages and
// the corresponding cost estimator for whichever generation just collected.
func (e *Engine) updateCollectionEndAverages(complete bool, cause Cause, pauseNanos int64) {
	if cause != OnAllocation && !e.adaptToSystemGC {
		return
	}

	pauseSeconds := nanosToSeconds(pauseNanos)

	mutatorNanos := e.latestMinorMutatorIntervalNanos
	if complete {
		mutatorNanos = e.latestMajorMutatorIntervalNanos
	}

	mutatorSeconds := nanosToSeconds(mutatorNanos)

	var cost float64
	if mutatorSeconds > 0 && pauseSeconds > 0 {
		cost = pauseSeconds / (mutatorSeconds + pauseSeconds)
	}

	if complete {
		e.avgMajorPause.Sample(pauseSeconds)
		e.avgMajorGcCost.Sample(cost)
		e.avgMajorIntervalSeconds.Sample(mutatorSeconds)
		e.majorCostEstimator.Update(float64(e.promoSize), cost)
	} else {
		e.avgMinorPause.Sample(pauseSeconds)
		e.avgMinorGcCost.Sample(cost)
		e.minorCostEstimator.Update(float64(e.edenSize), cost)
	}
}

// computeSurvivorSpaceSizeAndThreshold implements spec.md §4.4.4.
func (e *Engine) computeSurvivorSpaceSizeAndThreshold(snap Snapshot) {
	if !e.youngGenPolicyIsReady {
		return
	}

	tol := 1 + ThresholdTolerancePct

	thresholdDelta := 0

	switch {
	case snap.SurvivorOverflow:
		thresholdDelta = -1
	case e.avgMinorGcCost.Average() > e.avgMajorGcCost.Average()*tol:
		thresholdDelta = -1
	case e.avgMajorGcCost.Average() > e.avgMinorGcCost.Average()*tol:
		thresholdDelta = 1
	}

	desired := AlignUp(uint64(math.Max(0, e.avgSurvived.PaddedAverage())), e.params.Alignment)
	if desired < e.params.MinSpaceSize {
		desired = AlignUp(e.params.MinSpaceSize, e.params.Alignment)
	}

	survivorLimit := AlignDown(e.params.MaxSurvivorSize, e.params.Alignment)
	if desired > survivorLimit {
		desired = survivorLimit
		thresholdDelta = -1
	}

	e.survivorSize = desired

	current := safeconv.MustUintToInt(e.tenuringThreshold)
	clamped := stats.Clamp(current+thresholdDelta, 1, MaxSurvivorSpaces+1)
	e.tenuringThreshold = safeconv.MustIntToUint(clamped)
}

// computeEdenSpaceSize implements spec.md §4.4.5.
func (e *Engine) computeEdenSpaceSize() {
	gcCost := e.decayingGcCost()
	adjustedMutatorCost := 1 - gcCost
	minorCost := e.avgMinorGcCost.Average()

	useEstimator := e.costEstimatorsEnabled && e.youngGenChangeForMinorThroughput > AdaptiveSizePolicyInitializingSteps
	expansionReducesCost := !useEstimator || e.minorCostEstimator.Slope(float64(e.edenSize)) <= 0

	desired := e.edenSize
	expanded := false

	if expansionReducesCost && adjustedMutatorCost < ThroughputGoal && gcCost > 0 {
		delta := AlignUp(scalePct(e.edenSize, e.youngGenSizeIncrementSupplement+YoungGenerationSizeIncrementPct), e.params.Alignment)
		scaledDelta := uint64(float64(delta) * (minorCost / gcCost))

		accept := true
		if useEstimator {
			accept = e.minorCostEstimator.ExpansionSignificantlyReducesCost(float64(e.edenSize), float64(scaledDelta))
		}

		if accept {
			grown := AlignUp(e.edenSize+scaledDelta, e.params.Alignment)
			desired = mathutil.MaxU64(grown, e.edenSize)
			e.youngGenChangeForMinorThroughput++
			expanded = true
		}
	}

	footprintTrigger := e.footprintGoalEnabled && e.youngGenPolicyIsReady && adjustedMutatorCost >= ThroughputGoal
	if !expanded || footprintTrigger {
		desired = e.shrinkForFootprint(e.edenSize, YoungGenerationSizeIncrementPct, e.edenSize, e.promoSize)
	}

	if desired < e.params.MinSpaceSize {
		desired = AlignUp(e.params.MinSpaceSize, e.params.Alignment)
	}

	edenLimit := AlignDown(e.params.MaxEdenSize, e.params.Alignment)
	if desired > edenLimit {
		desired = mathutil.MaxU64(edenLimit, e.edenSize)
	}

	e.edenSize = desired
}

// computeOldGenSpaceSize implements spec.md §4.4.6.
func (e *Engine) computeOldGenSpaceSize(oldLive uint64) {
	e.avgOldLive.Sample(float64(oldLive))

	promoLimit := AlignDown(
		mathutil.MaxU64(e.promoSize, mathutil.SubOrZero(e.params.MaxOldSize, uint64(e.avgOldLive.Average()))),
		e.params.Alignment,
	)

	gcCost := e.decayingGcCost()
	adjustedMutatorCost := 1 - gcCost
	majorCost := e.avgMajorGcCost.Average()

	useEstimator := e.costEstimatorsEnabled && e.oldGenChangeForMajorThroughput > AdaptiveSizePolicyInitializingSteps
	expansionReducesCost := !useEstimator || e.majorCostEstimator.Slope(float64(e.promoSize)) <= 0

	desired := e.promoSize
	expanded := false

	if expansionReducesCost && adjustedMutatorCost < ThroughputGoal && gcCost > 0 {
		delta := AlignUp(scalePct(e.promoSize, e.oldGenSizeIncrementSupplement+TenuredGenerationSizeIncrementPct), e.params.Alignment)
		scaledDelta := uint64(float64(delta) * (majorCost / gcCost))

		accept := true
		if useEstimator {
			accept = e.majorCostEstimator.ExpansionSignificantlyReducesCost(float64(e.promoSize), float64(scaledDelta))
		}

		if accept {
			grown := AlignUp(e.promoSize+scaledDelta, e.params.Alignment)
			desired = mathutil.MaxU64(grown, e.promoSize)
			e.oldGenChangeForMajorThroughput++
			expanded = true
		}
	}

	footprintTrigger := e.footprintGoalEnabled && e.youngGenPolicyIsReady && adjustedMutatorCost >= ThroughputGoal
	if !expanded || footprintTrigger {
		desired = e.shrinkForFootprint(e.promoSize, TenuredGenerationSizeIncrementPct, e.edenSize, e.promoSize)
	}

	if desired < e.params.MinSpaceSize {
		desired = AlignUp(e.params.MinSpaceSize, e.params.Alignment)
	}

	e.promoSize = mathutil.MinU64(desired, promoLimit)

	e.oldSize = clampSize(
		oldLive+e.promoSize+uint64(math.Max(0, e.avgPromoted.PaddedAverage())),
		e.params.MinSpaceSize, e.params.MaxOldSize, e.params.Alignment,
	)
}

// shrinkForFootprint implements the footprint-shrink step shared by eden and
// old-gen sizing: shrink `size` by a quarter of its growth increment, scaled
// by size's share of edenSize+promoSize.
func (e *Engine) shrinkForFootprint(size uint64, incrementPct float64, eden, promo uint64) uint64 {
	incr := AlignUp(scalePct(size, incrementPct), e.params.Alignment)
	change := incr / AdaptiveSizeDecrementScaleFactor

	if denom := eden + promo; denom > 0 {
		change = uint64(float64(change) * float64(size) / float64(denom))
	}

	return AlignUp(mathutil.SubOrZero(size, change), e.params.Alignment)
}

// decaySupplementalGrowth implements spec.md §4.4.3 step 10.
func (e *Engine) decaySupplementalGrowth(complete bool) {
	if complete {
		if e.majorCount%OldGenSizeSupplementDecayCollections == 0 {
			e.oldGenSizeIncrementSupplement /= 2
		}

		return
	}

	if e.minorCount >= AdaptiveSizePolicyReadyThreshold && e.minorCount%YoungGenSizeSupplementDecayCollections == 0 {
		e.youngGenSizeIncrementSupplement /= 2
	}
}

// decayingGcCost implements spec.md §4.4.7.
func (e *Engine) decayingGcCost() float64 {
	minorCost := e.avgMinorGcCost.Average()
	majorCost := e.avgMajorGcCost.Average()
	decayedMajor := majorCost

	avgMajorInterval := e.avgMajorIntervalSeconds.Average()
	if e.majorGcCostDecayEnabled && avgMajorInterval > 0 {
		secondsSinceMajor := nanosToSeconds(e.majorTimer.PeekNanos())
		threshold := AdaptiveSizeMajorGCDecayTimeScale * avgMajorInterval

		if secondsSinceMajor > threshold {
			decayedMajor = math.Min(majorCost, majorCost*threshold/secondsSinceMajor)
		}
	}

	return math.Min(1, minorCost+decayedMajor)
}

// scalePct returns alignable bytes = size*pct/100, without integer-dividing
// before the multiply (pct may itself be a sum including a fractional
// supplement).
func scalePct(size uint64, pct float64) uint64 {
	return uint64(float64(size) * pct / 100)
}

// nanosToSeconds converts nanoseconds to a float seconds value. The engine
// stores every duration as int64 nanoseconds internally and only converts
// at the point of use, per spec.md §9's documented naming caveat.
func nanosToSeconds(nanos int64) float64 {
	return float64(nanos) / 1e9
}
