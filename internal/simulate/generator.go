// Package simulate drives a gcpolicy.Engine with a synthetic, seeded
// mutator/collection workload, standing in for a real collector's allocator
// and heap accounting so the adaptive sizing policy can be exercised and
// reported on without a live JVM-style runtime behind it.
package simulate

import (
	"math"
	"math/rand"
	"time"

	"github.com/sarahrileyjo/adaptivegc/pkg/gcpolicy"
	"github.com/sarahrileyjo/adaptivegc/pkg/units"
)

// Params configures the synthetic workload a Generator produces. Defaults
// model a moderately allocation-heavy service: most objects die young, a
// minority survive into old gen, and an occasional explicit
// System.gc()-equivalent request exercises AdaptToSystemGC.
type Params struct {
	// AllocBytesMean/AllocBytesStdDev describe the bytes allocated into eden
	// between collections.
	AllocBytesMean   float64
	AllocBytesStdDev float64

	// SurvivalRateMean/SurvivalRateStdDev describe the fraction of allocated
	// bytes still live when a minor collection runs.
	SurvivalRateMean   float64
	SurvivalRateStdDev float64

	// PromotionRateMean/PromotionRateStdDev describe the fraction of
	// surviving bytes old enough to tenure into old gen.
	PromotionRateMean   float64
	PromotionRateStdDev float64

	// OldGenSurvivalMean/OldGenSurvivalStdDev describe the fraction of old
	// gen that remains live after a complete collection reclaims garbage.
	OldGenSurvivalMean   float64
	OldGenSurvivalStdDev float64

	// MutatorInterval/MutatorJitter scale the simulated time the mutator
	// runs between collections; the driver sleeps through these so the
	// engine's real-time interval timers observe a plausible split.
	MutatorInterval time.Duration
	MutatorJitter   time.Duration

	// MinorPause is the simulated minor-collection pause; MajorPauseFactor
	// scales it up for complete collections.
	MinorPause       time.Duration
	MajorPauseFactor float64

	// SystemGCProbability is the chance a cycle reports OnSystemGC instead
	// of OnAllocation.
	SystemGCProbability float64

	// ChunkFragmentation is the fraction of the young generation's chunk
	// capacity considered aligned, sampled by avgYoungGenAlignedChunkFraction.
	ChunkFragmentation float64
}

// DefaultParams returns the baseline workload used when the simulate CLI
// command is run without tuning flags.
func DefaultParams() Params {
	return Params{
		AllocBytesMean:   1 * units.MiB,
		AllocBytesStdDev: 256 * units.KiB,

		SurvivalRateMean:   0.12,
		SurvivalRateStdDev: 0.04,

		PromotionRateMean:   0.30,
		PromotionRateStdDev: 0.08,

		OldGenSurvivalMean:   0.85,
		OldGenSurvivalStdDev: 0.05,

		MutatorInterval: 200 * time.Microsecond,
		MutatorJitter:   50 * time.Microsecond,

		MinorPause:       20 * time.Microsecond,
		MajorPauseFactor: 6,

		SystemGCProbability: 0.02,
		ChunkFragmentation:  0.92,
	}
}

// Generator produces a deterministic sequence of synthetic collection events
// from a seeded PRNG, tracking the persistent old-generation occupancy a
// real allocator would own between collections.
type Generator struct {
	rng     *rand.Rand
	params  Params
	oldUsed uint64
}

// NewGenerator seeds a Generator. The same seed and Params always produce
// the same trace.
func NewGenerator(seed int64, params Params) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed)), params: params}
}

// Event is everything one simulated collection needs to drive an Engine:
// the chunk accounting OnCollectionBegin consumes, the snapshot
// OnCollectionEnd consumes, the cause, and the durations the driver sleeps
// through.
type Event struct {
	Heap                   gcpolicy.HeapState
	YoungChunkBytes        uint64
	YoungAlignedChunkBytes uint64
	MutatorInterval        time.Duration
	PauseDuration          time.Duration
	Cause                  gcpolicy.Cause
	Snapshot               gcpolicy.Snapshot
}

// CurrentHeap reports the heap usage ShouldCollectCompletely needs, ahead of
// knowing whether the next collection will be complete.
func (g *Generator) CurrentHeap(edenSize, survivorSize uint64) gcpolicy.HeapState {
	return gcpolicy.HeapState{
		YoungUsedBytes: edenSize + survivorSize/2,
		OldUsedBytes:   g.oldUsed,
	}
}

// Next produces the next synthetic collection event given the generation
// sizes and tenuring threshold the engine currently targets, and whether the
// collector decided this cycle runs as a complete (young+old) collection.
func (g *Generator) Next(edenSize, survivorSize uint64, tenuringThreshold uint, complete bool) Event {
	heap := g.CurrentHeap(edenSize, survivorSize)

	allocated := g.clampedNormal(g.params.AllocBytesMean, g.params.AllocBytesStdDev, 0, float64(edenSize)*1.5)
	survivalRate := g.clampedNormal(g.params.SurvivalRateMean, g.params.SurvivalRateStdDev, 0, 1)
	promotionRate := g.promotionRate(tenuringThreshold)

	survivorBytes := uint64(allocated * survivalRate)

	overflow := false

	var overflowBytes uint64

	if survivorBytes > survivorSize {
		overflowBytes = survivorBytes - survivorSize
		survivorBytes = survivorSize
		overflow = true
	}

	tenured := uint64(float64(survivorBytes)*promotionRate) + overflowBytes

	oldUsedBefore := g.oldUsed
	oldLive := oldUsedBefore + tenured

	if complete {
		survivalFrac := g.clampedNormal(g.params.OldGenSurvivalMean, g.params.OldGenSurvivalStdDev, 0.5, 1)
		oldLive = uint64(float64(oldLive) * survivalFrac)
	}

	g.oldUsed = oldLive

	youngChunk := edenSize + survivorSize
	youngAligned := uint64(float64(youngChunk) * g.params.ChunkFragmentation)

	cause := gcpolicy.OnAllocation
	if g.rng.Float64() < g.params.SystemGCProbability {
		cause = gcpolicy.OnSystemGC
	}

	pause := g.params.MinorPause
	if complete {
		pause = time.Duration(float64(g.params.MinorPause) * g.params.MajorPauseFactor)
	}

	return Event{
		Heap:                   heap,
		YoungChunkBytes:        youngChunk,
		YoungAlignedChunkBytes: youngAligned,
		MutatorInterval:        g.jittered(g.params.MutatorInterval, g.params.MutatorJitter),
		PauseDuration:          pause,
		Cause:                  cause,
		Snapshot: gcpolicy.Snapshot{
			YoungUsedBytes:              heap.YoungUsedBytes,
			YoungChunkBytes:             youngChunk,
			YoungChunkBytesBefore:       youngChunk,
			YoungAlignedChunkBytes:      youngAligned,
			SurvivorChunkBytes:          survivorBytes,
			SurvivorOverflowObjectBytes: overflowBytes,
			SurvivorOverflow:            overflow,
			TenuredObjectBytes:          tenured,
			OldUsedBytes:                oldUsedBefore,
			OldLiveBytes:                oldLive,
		},
	}
}

// promotionRate scales the baseline promotion rate down as the tenuring
// threshold rises, modeling fewer objects surviving enough collections to
// tenure when the collector holds objects in survivor space longer.
func (g *Generator) promotionRate(tenuringThreshold uint) float64 {
	base := g.clampedNormal(g.params.PromotionRateMean, g.params.PromotionRateStdDev, 0, 1)
	if tenuringThreshold <= 1 {
		return base
	}

	return base / float64(tenuringThreshold)
}

func (g *Generator) clampedNormal(mean, stddev, lo, hi float64) float64 {
	v := g.rng.NormFloat64()*stddev + mean

	return math.Min(hi, math.Max(lo, v))
}

func (g *Generator) jittered(base, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return base
	}

	delta := time.Duration((g.rng.Float64()*2 - 1) * float64(jitter))

	result := base + delta
	if result < 0 {
		return 0
	}

	return result
}
