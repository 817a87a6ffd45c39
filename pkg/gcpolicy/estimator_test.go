package gcpolicy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarahrileyjo/adaptivegc/pkg/gcpolicy"
)

func TestReciprocalLeastSquareFit_PanicsOnBadHistory(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { gcpolicy.NewReciprocalLeastSquareFit(1) })
	assert.Panics(t, func() { gcpolicy.NewReciprocalLeastSquareFit(0) })
}

func TestReciprocalLeastSquareFit_UnreadyBeforeTwoDistinctSizes(t *testing.T) {
	t.Parallel()

	est := gcpolicy.NewReciprocalLeastSquareFit(25)

	assert.Equal(t, 0.0, est.Estimate(100))
	assert.Equal(t, 0.0, est.Slope(100))

	est.Update(100, 0.5)
	est.Update(100, 0.5)

	// Still only one distinct size observed.
	assert.Equal(t, 0.0, est.Estimate(100))
}

func TestReciprocalLeastSquareFit_FitsDecreasingCost(t *testing.T) {
	t.Parallel()

	est := gcpolicy.NewReciprocalLeastSquareFit(25)

	// cost = 1/size exactly: larger generations cost less per the model.
	sizes := []float64{10, 20, 50, 100, 200}
	for _, s := range sizes {
		est.Update(s, 1/s)
	}

	assert.InDelta(t, 1.0/400.0, est.Estimate(400), 1e-6)
	assert.Negative(t, est.Slope(400), "cost should fall as size grows")
}

func TestReciprocalLeastSquareFit_ZeroSizeSkipped(t *testing.T) {
	t.Parallel()

	est := gcpolicy.NewReciprocalLeastSquareFit(25)

	est.Update(0, 0.9) // must not panic or divide by zero.
	est.Update(10, 1.0/10)
	est.Update(20, 1.0/20)

	assert.InDelta(t, 1.0/40.0, est.Estimate(40), 1e-6)
}

func TestReciprocalLeastSquareFit_ExpansionSignificantlyReducesCost(t *testing.T) {
	t.Parallel()

	est := gcpolicy.NewReciprocalLeastSquareFit(25)

	// cost = 500/size exactly, so a 10% growth from 1000 to 1100 moves cost
	// from 0.5 to ~0.4545: a large marginal win relative to the size increase.
	for _, s := range []float64{500, 700, 900, 1100, 1300, 1500} {
		est.Update(s, 500/s)
	}

	assert.True(t, est.ExpansionSignificantlyReducesCost(1000, 100), "a 10%% growth at 50%% baseline cost should clear the 80%% tradeoff bar")
}

func TestReciprocalLeastSquareFit_FlatCostNeverPassesTradeoff(t *testing.T) {
	t.Parallel()

	est := gcpolicy.NewReciprocalLeastSquareFit(25)

	// Cost independent of size: growing the generation buys nothing, so the
	// fit should settle on b == 0 and reject every expansion.
	for _, s := range []float64{100, 200, 300, 400} {
		est.Update(s, 0.3)
	}

	assert.False(t, est.ExpansionSignificantlyReducesCost(1000, 100))
}

func TestReciprocalLeastSquareFit_ExpansionRejectedAtZeroSize(t *testing.T) {
	t.Parallel()

	est := gcpolicy.NewReciprocalLeastSquareFit(25)

	assert.False(t, est.ExpansionSignificantlyReducesCost(0, 100))
}
