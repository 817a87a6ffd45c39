package simulate

import "github.com/sarahrileyjo/adaptivegc/pkg/alg/stats"

// Summary aggregates descriptive statistics over a completed run's eden and
// old-generation target sizes, so a long run's table/JSON output carries a
// compact picture of the run alongside the per-collection records.
type Summary struct {
	MeanEdenSize float64
	P95EdenSize  float64
	MinEdenSize  uint64
	MaxEdenSize  uint64

	MeanOldSize float64
	P95OldSize  float64
	MinOldSize  uint64
	MaxOldSize  uint64
}

// summarize computes a Summary over records' eden and old-generation sizes.
// An empty slice yields a zero Summary.
func summarize(records []Record) Summary {
	eden := make([]float64, len(records))
	old := make([]float64, len(records))
	edenSizes := make([]uint64, len(records))
	oldSizes := make([]uint64, len(records))

	for i, rec := range records {
		eden[i] = float64(rec.EdenSize)
		old[i] = float64(rec.OldSize)
		edenSizes[i] = rec.EdenSize
		oldSizes[i] = rec.OldSize
	}

	return Summary{
		MeanEdenSize: stats.Mean(eden),
		P95EdenSize:  stats.Percentile(eden, stats.PercentileP95),
		MinEdenSize:  stats.Min(edenSizes),
		MaxEdenSize:  stats.Max(edenSizes),

		MeanOldSize: stats.Mean(old),
		P95OldSize:  stats.Percentile(old, stats.PercentileP95),
		MinOldSize:  stats.Min(oldSizes),
		MaxOldSize:  stats.Max(oldSizes),
	}
}
