package summarize

import (
	"fmt"

	"github.com/cunha/fbperf/perf"
)

// diffCIFunc computes (diff, halfwidth) for a metric between a bin's primary
// and its chosen alternate. The subtraction order varies by metric, but
// positive always means the alternate is better, matching perf's own
// MinrttMedianDiffCI/HdRatioMedianDiffCI/HdRatioDiffCIDoNotUse return
// conventions.
type diffCIFunc func(primary, alt *perf.RouteInfo) (diff, halfwidth float32)

// MinRtt50 is the opportunity summarizer over median MinRTT.
type MinRtt50 struct {
	MinImprovMs       int16
	MaxDiffCIHalfwidth float32
	CompareLowerBound bool
}

func (s *MinRtt50) Summarize(_ *perf.PathId, bin *perf.TimeBin) TimeBinSummary {
	primary := bin.GetPrimaryRoute(perf.MinrttValidPred)
	if primary == nil {
		return noRoute()
	}
	alt := bin.GetBestAlternate(perf.CompareMedianMinrtt, perf.MinrttValidPred)
	if alt == nil {
		return noRoute()
	}
	diff, halfwidth := perf.MinrttMedianDiffCI(primary, alt)
	if halfwidth > s.MaxDiffCIHalfwidth {
		return wideConfidenceInterval()
	}
	limit := diff
	if s.CompareLowerBound {
		limit = diff - halfwidth
	}
	return valid(TimeBinStats{
		Bytes:             bin.BytesAckedSum,
		DiffCI:            diff,
		DiffCIHalfwidth:   halfwidth,
		PrimaryPeerType:   primary.PeerType,
		AlternatePeerType: alt.PeerType,
		Bitmask:           computeBitmask(primary, alt),
		IsShifted:         limit >= float32(s.MinImprovMs),
	})
}

func (s *MinRtt50) GetRoutes(pid *perf.PathId, t int64, db *perf.DB) (*perf.RouteInfo, *perf.RouteInfo) {
	bin := db.PathInfo(pid).Get(t)
	return bin.GetPrimaryRoute(perf.MinrttValidPred), bin.GetBestAlternate(perf.CompareMedianMinrtt, perf.MinrttValidPred)
}

func (s *MinRtt50) Prefix() string {
	return fmt.Sprintf("minrtt50--opp--bound-%v--halfwidth-%0.2f--min-improv-%d", s.CompareLowerBound, s.MaxDiffCIHalfwidth, s.MinImprovMs)
}

// HdRatio is the opportunity summarizer over the legacy (deprecated)
// average-based HD-ratio metric, using HdRatioDiffCIDoNotUse and the
// best-alternate-by-average comparator.
type HdRatio struct {
	MinImprov          float32
	MaxDiffCIHalfwidth float32
	CompareLowerBound  bool
}

func (s *HdRatio) Summarize(_ *perf.PathId, bin *perf.TimeBin) TimeBinSummary {
	primary := bin.GetPrimaryRoute(perf.HdratioValidPred)
	if primary == nil {
		return noRoute()
	}
	alt := bin.GetBestAlternate(perf.CompareHdratio, perf.HdratioValidPred)
	if alt == nil {
		return noRoute()
	}
	diff, halfwidth := perf.HdRatioDiffCIDoNotUse(primary, alt)
	if halfwidth > s.MaxDiffCIHalfwidth {
		return wideConfidenceInterval()
	}
	limit := diff
	if s.CompareLowerBound {
		limit = diff - halfwidth
	}
	return valid(TimeBinStats{
		Bytes:             bin.BytesAckedSum,
		DiffCI:            diff,
		DiffCIHalfwidth:   halfwidth,
		PrimaryPeerType:   primary.PeerType,
		AlternatePeerType: alt.PeerType,
		Bitmask:           computeBitmask(primary, alt),
		IsShifted:         limit >= s.MinImprov,
	})
}

func (s *HdRatio) GetRoutes(pid *perf.PathId, t int64, db *perf.DB) (*perf.RouteInfo, *perf.RouteInfo) {
	bin := db.PathInfo(pid).Get(t)
	return bin.GetPrimaryRoute(perf.HdratioValidPred), bin.GetBestAlternate(perf.CompareHdratio, perf.HdratioValidPred)
}

func (s *HdRatio) Prefix() string {
	return fmt.Sprintf("hdratio--opp--bound-%v--halfwidth-%0.2f--min-improv-%0.2f", s.CompareLowerBound, s.MaxDiffCIHalfwidth, s.MinImprov)
}

// HdRatio50 is the opportunity summarizer over median HD-ratio. Both
// Summarize and GetRoutes select the best alternate with the HD-ratio median
// comparator (CompareMedianHdratio) — see DESIGN.md for why this
// implementation does not reproduce a source revision that mixed in the
// MinRTT comparator for alternate selection.
type HdRatio50 struct {
	MinImprov          float32
	MaxDiffCIHalfwidth float32
	CompareLowerBound  bool
}

func (s *HdRatio50) Summarize(_ *perf.PathId, bin *perf.TimeBin) TimeBinSummary {
	primary := bin.GetPrimaryRoute(perf.HdratioValidPred)
	if primary == nil {
		return noRoute()
	}
	alt := bin.GetBestAlternate(perf.CompareMedianHdratio, perf.HdratioValidPred)
	if alt == nil {
		return noRoute()
	}
	diff, halfwidth := perf.HdRatioMedianDiffCI(primary, alt)
	if halfwidth > s.MaxDiffCIHalfwidth {
		return wideConfidenceInterval()
	}
	limit := diff
	if s.CompareLowerBound {
		limit = diff - halfwidth
	}
	return valid(TimeBinStats{
		Bytes:             bin.BytesAckedSum,
		DiffCI:            diff,
		DiffCIHalfwidth:   halfwidth,
		PrimaryPeerType:   primary.PeerType,
		AlternatePeerType: alt.PeerType,
		Bitmask:           computeBitmask(primary, alt),
		IsShifted:         limit >= s.MinImprov,
	})
}

func (s *HdRatio50) GetRoutes(pid *perf.PathId, t int64, db *perf.DB) (*perf.RouteInfo, *perf.RouteInfo) {
	bin := db.PathInfo(pid).Get(t)
	return bin.GetPrimaryRoute(perf.HdratioValidPred), bin.GetBestAlternate(perf.CompareMedianHdratio, perf.HdratioValidPred)
}

func (s *HdRatio50) Prefix() string {
	return fmt.Sprintf("hdratio50--opp--bound-%v--halfwidth-%0.2f--min-improv-%0.2f", s.CompareLowerBound, s.MaxDiffCIHalfwidth, s.MinImprov)
}

// HdRatioBootstrapDifference is the opportunity summarizer over the
// bootstrapped HD-ratio difference metric.
type HdRatioBootstrapDifference struct {
	MinImprov        float32
	MaxDiffCIFullwidth float32
	CompareLowerBound bool
}

func (s *HdRatioBootstrapDifference) Summarize(_ *perf.PathId, bin *perf.TimeBin) TimeBinSummary {
	primary := bin.GetPrimaryRoute(perf.HdratioValidPred)
	if primary == nil {
		return noRoute()
	}
	alt := bin.GetBestAlternate(perf.CompareHdratioBootstrap, perf.HdratioValidPred)
	if alt == nil {
		return noRoute()
	}
	lb, diff, ub := perf.HdRatioBootDiffCI(primary, alt)
	fullwidth := ub - lb
	if fullwidth > s.MaxDiffCIFullwidth {
		return wideConfidenceInterval()
	}
	limit := diff
	if s.CompareLowerBound {
		limit = lb
	}
	return valid(TimeBinStats{
		Bytes:             bin.BytesAckedSum,
		DiffCI:            diff,
		DiffCIHalfwidth:   fullwidth / 2,
		PrimaryPeerType:   primary.PeerType,
		AlternatePeerType: alt.PeerType,
		Bitmask:           computeBitmask(primary, alt),
		IsShifted:         limit >= s.MinImprov,
	})
}

func (s *HdRatioBootstrapDifference) GetRoutes(pid *perf.PathId, t int64, db *perf.DB) (*perf.RouteInfo, *perf.RouteInfo) {
	bin := db.PathInfo(pid).Get(t)
	return bin.GetPrimaryRoute(perf.HdratioValidPred), bin.GetBestAlternate(perf.CompareHdratioBootstrap, perf.HdratioValidPred)
}

func (s *HdRatioBootstrapDifference) Prefix() string {
	return fmt.Sprintf("hdratioboot--opp--bound-%v--fullwidth-%0.2f--min-improv-%0.2f", s.CompareLowerBound, s.MaxDiffCIFullwidth, s.MinImprov)
}

// MinRtt50HdConstrained is MinRtt50 with an additional guard: the alternate
// must not regress HD-ratio, i.e. the HD-ratio median diff's upper bound
// must be >= 0.
type MinRtt50HdConstrained struct {
	MinRtt50
}

func (s *MinRtt50HdConstrained) Summarize(pid *perf.PathId, bin *perf.TimeBin) TimeBinSummary {
	primary := bin.GetPrimaryRoute(perf.MinrttValidPred)
	alt := bin.GetBestAlternate(perf.CompareMedianMinrtt, perf.MinrttValidPred)
	if primary == nil || alt == nil {
		return noRoute()
	}
	if !primary.HdratioValid() || !alt.HdratioValid() {
		return noRoute()
	}
	hddiff, hdhalfwidth := perf.HdRatioMedianDiffCI(primary, alt)
	if hddiff+hdhalfwidth < 0 {
		return noRoute()
	}
	return s.MinRtt50.Summarize(pid, bin)
}

func (s *MinRtt50HdConstrained) Prefix() string {
	return "hdconstrained--" + s.MinRtt50.Prefix()
}
