// Package gcpolicy implements an adaptive generation-sizing policy for a
// generational, stop-the-world garbage collector. It fuses online statistics
// (weighted and padded moving averages), a reciprocal least-squares cost
// model, and a feedback loop over heap sizes to pick eden, survivor, and old
// generation target sizes plus a tenuring threshold, balancing mutator
// throughput against memory footprint.
package gcpolicy

// Calibration constants. Values are fixed defaults; callers may override a
// subset through Option values passed to New, but the defaults below match
// the reference policy exactly.
const (
	// AdaptiveTimeWeight is the default weight for time-based averages
	// (pause, cost, interval).
	AdaptiveTimeWeight = 25

	// AdaptiveSizePolicyWeight is the default weight for size-based
	// averages (survived, promoted, old-live bytes).
	AdaptiveSizePolicyWeight = 10

	// AdaptiveSizePolicyReadyThreshold is the minimum minor collection
	// count before the young generation policy is considered warmed up.
	AdaptiveSizePolicyReadyThreshold = 5

	// AdaptiveSizePolicyInitializingSteps is the number of expansions a
	// generation must have applied before its cost estimator is consulted.
	AdaptiveSizePolicyInitializingSteps = 5

	// AdaptiveSizeDecrementScaleFactor divides the footprint-driven shrink
	// increment (a quarter of the growth increment).
	AdaptiveSizeDecrementScaleFactor = 4

	// ThresholdTolerancePct is the tolerance band (10%) used when comparing
	// minor vs. major GC cost for tenuring-threshold adjustment.
	ThresholdTolerancePct = 0.10

	// SurvivorPadding is the padding multiplier for avgSurvived.
	SurvivorPadding = 3

	// PromotedPadding is the padding multiplier for avgPromoted.
	PromotedPadding = 3

	// PausePadding is the padding multiplier for avgMinorPause/avgMajorPause.
	PausePadding = 1

	// InitialTenuringThreshold is the tenuring threshold at engine creation.
	InitialTenuringThreshold = 7

	// GCTimeRatio sets the throughput goal to 1 - 1/(1+GCTimeRatio) = 0.95.
	GCTimeRatio = 19

	// ThroughputGoal is the target mutator cost, derived from GCTimeRatio.
	ThroughputGoal = 1 - 1.0/(1+GCTimeRatio)

	// YoungGenerationSizeIncrementPct is the young generation's percentage
	// growth increment.
	YoungGenerationSizeIncrementPct = 10

	// TenuredGenerationSizeIncrementPct is the old generation's percentage
	// growth increment.
	TenuredGenerationSizeIncrementPct = 10

	// YoungGenerationSizeSupplementDefault is the default startup growth
	// boost for the young generation, in percentage points added to
	// YoungGenerationSizeIncrementPct.
	YoungGenerationSizeSupplementDefault = 0

	// TenuredGenerationSizeSupplementDefault is the default startup growth
	// boost for the old generation, in percentage points added to
	// TenuredGenerationSizeIncrementPct.
	TenuredGenerationSizeSupplementDefault = 0

	// YoungGenSizeSupplementDecayCollections is the minor-collection-count
	// period at which the young supplement is halved.
	YoungGenSizeSupplementDecayCollections = 8

	// OldGenSizeSupplementDecayCollections is the major-collection-count
	// period at which the old supplement is halved.
	OldGenSizeSupplementDecayCollections = 2

	// AdaptiveSizeMajorGCDecayTimeScale is the multiplier on
	// avgMajorIntervalSeconds past which major GC cost starts decaying.
	AdaptiveSizeMajorGCDecayTimeScale = 10

	// EstimatorMinSizeThroughputTradeoff is the minimum fraction of the
	// fractional size increase that must be recovered as fractional
	// throughput gain for an expansion to be judged significant.
	EstimatorMinSizeThroughputTradeoff = 0.80

	// ConsecutiveMinorToMajorPauseTimeRatio is used by
	// shouldCollectCompletely's pause-ratio trigger.
	ConsecutiveMinorToMajorPauseTimeRatio = 2

	// MaxSurvivorSpaces is the number of survivor ages an object can reach
	// before promotion; the tenuring threshold is kept within
	// [1, MaxSurvivorSpaces+1], which contains InitialTenuringThreshold.
	MaxSurvivorSpaces = 15

	// estimatorHistory is the decay window H for the reciprocal
	// least-squares cost estimators.
	estimatorHistory = 25
)
