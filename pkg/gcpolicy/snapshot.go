package gcpolicy

import "github.com/sarahrileyjo/adaptivegc/pkg/mathutil"

// Cause identifies why a collection ran.
type Cause int

const (
	// OnAllocation is an ordinary collection triggered by allocation
	// failure. The policy always samples averages for this cause.
	OnAllocation Cause = iota

	// OnSystemGC is a collection triggered by an explicit user/runtime
	// request (e.g. a System.gc()-equivalent call).
	OnSystemGC

	// OnMetadataThreshold is a collection triggered by metadata-space
	// exhaustion, not allocation pressure.
	OnMetadataThreshold
)

// String renders the cause for logging.
func (c Cause) String() string {
	switch c {
	case OnAllocation:
		return "allocation"
	case OnSystemGC:
		return "system_gc"
	case OnMetadataThreshold:
		return "metadata_threshold"
	default:
		return "unknown"
	}
}

// Snapshot is the collection accounting state the collector supplies to the
// policy at the end of a collection. All sizes are in bytes.
type Snapshot struct {
	// YoungUsedBytes is the live young-generation byte count before this
	// collection's eden/survivor reset.
	YoungUsedBytes uint64

	// YoungChunkBytes is the total young-generation chunk capacity.
	YoungChunkBytes uint64

	// YoungChunkBytesBefore is the young-generation chunk capacity as it
	// was before this collection (used to detect resizing side effects).
	YoungChunkBytesBefore uint64

	// YoungAlignedChunkBytes is the aligned subset of YoungChunkBytes.
	YoungAlignedChunkBytes uint64

	// SurvivorChunkBytes is live bytes copied into survivor space.
	SurvivorChunkBytes uint64

	// SurvivorOverflowObjectBytes is bytes that overflowed survivor space
	// straight into old gen.
	SurvivorOverflowObjectBytes uint64

	// SurvivorOverflow reports whether a survivor overflow occurred.
	SurvivorOverflow bool

	// TenuredObjectBytes is bytes promoted into old gen this collection.
	TenuredObjectBytes uint64

	// OldUsedBytes is live old-generation bytes before this collection.
	OldUsedBytes uint64

	// OldLiveBytes is live old-generation bytes after this collection
	// (only meaningful on a complete collection).
	OldLiveBytes uint64
}

// SizeParams are the external size parameters supplied by the collector's
// heap layout (allocator limits and alignment), consumed but not owned by
// the engine.
type SizeParams struct {
	MinSpaceSize    uint64
	MaxEdenSize     uint64
	MaxSurvivorSize uint64
	MaxOldSize      uint64

	// Alignment is the collector's chunk alignment unit, a power of two.
	Alignment uint64
}

// AlignUp rounds size up to the nearest multiple of alignment.
func AlignUp(size, alignment uint64) uint64 {
	if alignment == 0 {
		return size
	}

	return (size + alignment - 1) &^ (alignment - 1)
}

// AlignDown rounds size down to the nearest multiple of alignment.
func AlignDown(size, alignment uint64) uint64 {
	if alignment == 0 {
		return size
	}

	return size &^ (alignment - 1)
}

// IsAligned reports whether size is a multiple of alignment.
func IsAligned(size, alignment uint64) bool {
	if alignment == 0 {
		return true
	}

	return size&(alignment-1) == 0
}

// clampSize aligns x up, then clamps it into [min(aligned(lo)), aligned(hi)].
func clampSize(x, lo, hi, alignment uint64) uint64 {
	aligned := AlignUp(x, alignment)
	lo = AlignUp(lo, alignment)
	hi = AlignDown(hi, alignment)

	if hi < lo {
		hi = lo
	}

	return mathutil.MaxU64(lo, mathutil.MinU64(aligned, hi))
}
