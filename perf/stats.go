package perf

import (
	"math"

	"github.com/cunha/fbperf/must"
)

// ConfidenceZ is the normal-approximation two-sided 95% Z-score used
// throughout the stats kernel to turn a standard error into a half-width.
const ConfidenceZ = 2.0

// MinSamples is the minimum sample count a metric needs before a route is
// considered for summarization; below this, the route is "not enough
// samples" rather than simply wide-CI.
const MinSamples = 30

// medianHalfwidth recovers a route's own half-width for a metric whose
// confidence interval is reported as separate lower/upper bounds.
// medianVariance then inverts the halfwidth = ConfidenceZ * sqrt(var)
// relationship used everywhere else in the kernel.
func medianHalfwidth(lb, ub float32) float32 {
	return (ub - lb) / 2
}

func medianVariance(lb, ub float32) float32 {
	h := medianHalfwidth(lb, ub)
	v := h / ConfidenceZ
	return v * v
}

// MinrttMedianDiffCI computes the (diff, halfwidth) of the median MinRTT
// between primary and alt. diff is primary - alt: positive means alt has
// lower (better) latency. primary must be the bin's slot-0 route.
func MinrttMedianDiffCI(primary, alt *RouteInfo) (diff, halfwidth float32) {
	must.True(primary.ApmRouteNum == 1, "MinrttMedianDiffCI: primary must be the slot-0 route")
	med1 := float32(primary.MinrttP50)
	med2 := float32(alt.MinrttP50)
	var1 := medianVariance(float32(primary.MinrttP50CILB), float32(primary.MinrttP50CIUB))
	var2 := medianVariance(float32(alt.MinrttP50CILB), float32(alt.MinrttP50CIUB))
	diff = med1 - med2
	halfwidth = ConfidenceZ * float32(math.Sqrt(float64(var1+var2)))
	return diff, halfwidth
}

// HdRatioMedianDiffCI computes the (diff, halfwidth) of the median HD-ratio
// between primary and alt. diff is alt - primary: positive means alt has the
// higher (better) HD-ratio.
func HdRatioMedianDiffCI(primary, alt *RouteInfo) (diff, halfwidth float32) {
	must.True(primary.ApmRouteNum == 1, "HdRatioMedianDiffCI: primary must be the slot-0 route")
	var1 := medianVariance(primary.HdratioP50CILB, primary.HdratioP50CIUB)
	var2 := medianVariance(alt.HdratioP50CILB, alt.HdratioP50CIUB)
	diff = alt.HdratioP50 - primary.HdratioP50
	halfwidth = ConfidenceZ * float32(math.Sqrt(float64(var1+var2)))
	return diff, halfwidth
}

// HdRatioDiffCIDoNotUse computes a (diff, halfwidth) from the HD-ratio
// average and its normal-approximation variance, dividing that variance by
// the sample count, i.e. treating hdratio_normal_var as the variance of one
// independent sample.
//
// Deprecated: each sample in a bin is itself an aggregate, so the division
// by n is not justified and can understate the half-width. Prefer
// [HdRatioMedianDiffCI]. Kept for callers exercising the legacy metric.
func HdRatioDiffCIDoNotUse(primary, alt *RouteInfo) (diff, halfwidth float32) {
	must.True(primary.ApmRouteNum == 1, "HdRatioDiffCIDoNotUse: primary must be the slot-0 route")
	diff = alt.HdratioAvg - primary.HdratioAvg
	var1 := primary.HdratioNormalVar / float32(primary.HdratioNumSamples)
	var2 := alt.HdratioNormalVar / float32(alt.HdratioNumSamples)
	halfwidth = ConfidenceZ * float32(math.Sqrt(float64(var1+var2)))
	return diff, halfwidth
}

// HdRatioBootDiffCI reads alt's precomputed bootstrap difference-from-primary
// interval directly rather than recombining two independent variances: diff
// is the bootstrapped averages' raw difference, clamped into alt's own
// [lb, ub] bounds. primary's own bounds must be zero, since a route's
// difference from itself is zero by construction.
func HdRatioBootDiffCI(primary, alt *RouteInfo) (lb, diff, ub float32) {
	must.True(primary.HdratioBootDiffCILB == 0 && primary.HdratioBootDiffCIUB == 0,
		"HdRatioBootDiffCI: primary's own bootstrap diff CI must be zero")
	lb, ub = alt.HdratioBootDiffCILB, alt.HdratioBootDiffCIUB
	diff = alt.HdratioAvgBootstrapped - primary.HdratioAvgBootstrapped
	// BUG: the caller treats this as a symmetric halfwidth via (ub-lb)/2,
	// discarding the asymmetry the clamp can introduce. Reproduced as
	// specified rather than invented away.
	switch {
	case diff < lb:
		diff = lb
	case diff > ub:
		diff = ub
	}
	return lb, diff, ub
}

// CompareMedianMinrtt returns positive when a's median MinRTT is lower
// (better) than b's, zero when equal, negative otherwise.
func CompareMedianMinrtt(a, b *RouteInfo) int {
	switch {
	case a.MinrttP50 < b.MinrttP50:
		return 1
	case a.MinrttP50 > b.MinrttP50:
		return -1
	default:
		return 0
	}
}

// CompareMedianHdratio returns positive when a's median HD-ratio is higher
// (better) than b's.
func CompareMedianHdratio(a, b *RouteInfo) int {
	return cmpFloat32(a.HdratioP50, b.HdratioP50)
}

// CompareHdratio returns positive when a's average HD-ratio is higher than
// b's, driving best-alternate selection for the deprecated metric.
func CompareHdratio(a, b *RouteInfo) int {
	return cmpFloat32(a.HdratioAvg, b.HdratioAvg)
}

// CompareHdratioBootstrap returns positive when a's bootstrapped average
// HD-ratio is higher than b's.
func CompareHdratioBootstrap(a, b *RouteInfo) int {
	return cmpFloat32(a.HdratioAvgBootstrapped, b.HdratioAvgBootstrapped)
}

func cmpFloat32(a, b float32) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}
