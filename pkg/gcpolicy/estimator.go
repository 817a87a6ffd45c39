package gcpolicy

// ReciprocalLeastSquareFit fits y = a + b/x to a decaying history of
// (size, gc-cost) samples, used to estimate the marginal throughput gain
// from expanding a generation by some delta.
type ReciprocalLeastSquareFit struct {
	history float64 // H: decay window.

	sw  float64 // sum of weights.
	su  float64 // sum of w*(1/x).
	sy  float64 // sum of w*y.
	suu float64 // sum of w*(1/x)^2.
	suy float64 // sum of w*(1/x)*y.

	// firstX, sawFirstX, and distinctSeen track distinctness without a
	// map: the estimator only needs to know whether it has seen 2+
	// distinct x values, not which ones, so it remembers the first and
	// flags any later sample that differs from it. OnCollectionEnd calls
	// Update directly from the stop-the-world callback, so this struct
	// must never allocate.
	firstX       float64
	sawFirstX    bool
	distinctSeen bool
}

// NewReciprocalLeastSquareFit creates an estimator with decay window
// history. history must be greater than 1.
func NewReciprocalLeastSquareFit(history int) *ReciprocalLeastSquareFit {
	if history <= 1 {
		panic("gcpolicy: estimator history must be greater than 1")
	}

	return &ReciprocalLeastSquareFit{
		history: float64(history),
	}
}

// Update decays all accumulators by (H-1)/H, then folds in a new
// (size, cost) sample at weight 1.
func (r *ReciprocalLeastSquareFit) Update(size, cost float64) {
	decay := (r.history - 1) / r.history
	r.sw *= decay
	r.su *= decay
	r.sy *= decay
	r.suu *= decay
	r.suy *= decay

	if size == 0 {
		// A zero size carries no information for y = a + b/x; skip it
		// rather than dividing by zero.
		return
	}

	u := 1 / size

	r.sw++
	r.su += u
	r.sy += cost
	r.suu += u * u
	r.suy += u * cost

	switch {
	case !r.sawFirstX:
		r.firstX = size
		r.sawFirstX = true
	case size != r.firstX:
		r.distinctSeen = true
	}
}

// ready reports whether at least two distinct x values have been observed.
func (r *ReciprocalLeastSquareFit) ready() bool {
	return r.distinctSeen
}

// fit returns the fitted slope b and intercept a in y = a + b/x, plus
// whether the fit is usable.
func (r *ReciprocalLeastSquareFit) fit() (a, b float64, ok bool) {
	if !r.ready() {
		return 0, 0, false
	}

	denom := r.sw*r.suu - r.su*r.su
	if denom <= 0 {
		return 0, 0, false
	}

	b = (r.sw*r.suy - r.su*r.sy) / denom
	a = (r.sy - b*r.su) / r.sw

	return a, b, true
}

// Estimate returns the fitted cost at size x, or 0 before the fit is usable
// or when x is 0.
func (r *ReciprocalLeastSquareFit) Estimate(x float64) float64 {
	if x == 0 {
		return 0
	}

	a, b, ok := r.fit()
	if !ok {
		return 0
	}

	return a + b/x
}

// Slope returns the derivative of Estimate with respect to x, or 0 before
// the fit is usable or when x is 0.
func (r *ReciprocalLeastSquareFit) Slope(x float64) float64 {
	if x == 0 {
		return 0
	}

	_, b, ok := r.fit()
	if !ok {
		return 0
	}

	return -b / (x * x)
}

// ExpansionSignificantlyReducesCost reports whether expanding a generation
// currently sized x0 by delta is expected to recover at least
// EstimatorMinSizeThroughputTradeoff of the fractional size increase as
// fractional throughput gain.
func (r *ReciprocalLeastSquareFit) ExpansionSignificantlyReducesCost(x0, delta float64) bool {
	if x0 == 0 {
		return false
	}

	t0 := 1 - r.Estimate(x0)
	if t0 == 0 {
		return false
	}

	x1 := x0 + delta
	t1 := 1 - r.Estimate(x1)

	if x0 >= x1 || t0 >= t1 {
		return false
	}

	minGain := (x1/x0 - 1) * EstimatorMinSizeThroughputTradeoff
	estGain := t1/t0 - 1

	return estGain >= minGain
}
