package summarize

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/cunha/fbperf/perf"
)

// degradationPool holds the per-path baseline-eligible primary routes used
// to pick one path-level baseline route per metric.
type degradationPool struct {
	baselines map[*perf.PathId]*perf.RouteInfo
}

// minFracBinsUsingBaselinePath is the default coverage threshold the
// "distinct paths" degradation variant requires a single px_nexthops value
// to clear before it becomes the restricted baseline pool.
const minFracBinsUsingBaselinePath = 0.5

// buildBaseline scans every bin of every path, collecting eligible primary
// routes (valid under validPred and under the precision ceiling), optionally
// restricted to paths' dominant px_nexthops value, and picks the route at
// the requested sorted position as that path's baseline.
func buildBaseline(
	db *perf.DB,
	validPred func(*perf.RouteInfo) bool,
	precision func(*perf.RouteInfo) float32,
	maxPrecision float32,
	sortKey func(*perf.RouteInfo) float32,
	position float64,
	distinctPathsOnly bool,
) degradationPool {
	pool := degradationPool{baselines: make(map[*perf.PathId]*perf.RouteInfo)}
	for _, pid := range db.Paths() {
		info := db.PathInfo(pid)
		var eligible []*perf.RouteInfo
		counts := make(map[uint64]int)
		for _, t := range info.SortedTimes() {
			bin := info.Get(t)
			primary := bin.GetPrimaryRoute(validPred)
			if primary == nil || precision(primary) > maxPrecision {
				continue
			}
			eligible = append(eligible, primary)
			counts[primary.PxNexthops]++
		}
		if len(eligible) == 0 {
			continue
		}
		if distinctPathsOnly {
			restricted, ok := restrictToDominantPath(eligible, counts)
			if !ok {
				continue
			}
			eligible = restricted
		}
		sort.Slice(eligible, func(i, j int) bool { return sortKey(eligible[i]) < sortKey(eligible[j]) })
		keys := make(stats.Float64Data, len(eligible))
		for i, r := range eligible {
			keys[i] = float64(sortKey(r))
		}
		value, err := stats.PercentileNearestRank(keys, position*100)
		if err != nil {
			continue
		}
		idx := sort.SearchFloat64s(keys, value)
		if idx >= len(eligible) {
			idx = len(eligible) - 1
		}
		pool.baselines[pid] = eligible[idx]
	}
	return pool
}

func restrictToDominantPath(eligible []*perf.RouteInfo, counts map[uint64]int) ([]*perf.RouteInfo, bool) {
	var dominant uint64
	best := 0
	for nexthop, n := range counts {
		if n > best {
			best, dominant = n, nexthop
		}
	}
	if float64(best)/float64(len(eligible)) < minFracBinsUsingBaselinePath {
		return nil, false
	}
	out := eligible[:0:0]
	for _, r := range eligible {
		if r.PxNexthops == dominant {
			out = append(out, r)
		}
	}
	return out, true
}

// DegradationMinRtt compares each bin's primary route against a per-path
// baseline chosen from historical primaries by median MinRTT percentile.
type DegradationMinRtt struct {
	BaselinePercentile float64
	MaxBaselineHalfwidth float32
	MinImprovMs          int16
	MaxDiffCIHalfwidth    float32
	CompareLowerBound     bool
	DistinctPathsOnly     bool

	pool degradationPool
	built bool
}

// Build scans db once to compute every path's baseline route. Must be called
// before Summarize/GetRoutes.
func (s *DegradationMinRtt) Build(db *perf.DB) {
	halfwidth := func(r *perf.RouteInfo) float32 {
		return (float32(r.MinrttP50CIUB) - float32(r.MinrttP50CILB)) / 2
	}
	s.pool = buildBaseline(db, perf.MinrttValidPred, halfwidth, s.MaxBaselineHalfwidth,
		func(r *perf.RouteInfo) float32 { return float32(r.MinrttP50) },
		1-s.BaselinePercentile, s.DistinctPathsOnly)
	s.built = true
}

func (s *DegradationMinRtt) Summarize(pid *perf.PathId, bin *perf.TimeBin) TimeBinSummary {
	primary := bin.GetPrimaryRoute(perf.MinrttValidPred)
	if primary == nil {
		return noRoute()
	}
	baseline, ok := s.pool.baselines[pid]
	if !ok {
		return wideConfidenceInterval()
	}
	diff, halfwidth := perf.MinrttMedianDiffCI(primary, baseline)
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
		AlternatePeerType: baseline.PeerType,
		IsShifted:         limit >= float32(s.MinImprovMs),
	})
}

func (s *DegradationMinRtt) GetRoutes(pid *perf.PathId, t int64, db *perf.DB) (*perf.RouteInfo, *perf.RouteInfo) {
	bin := db.PathInfo(pid).Get(t)
	return bin.GetPrimaryRoute(perf.MinrttValidPred), s.pool.baselines[pid]
}

func (s *DegradationMinRtt) Prefix() string {
	name := "minrtt"
	if s.DistinctPathsOnly {
		name = "minrtt-distinct-paths"
	}
	return fmt.Sprintf("%s--degr--bound-%v--halfwidth-%0.2f--min-improv-%d", name, s.CompareLowerBound, s.MaxDiffCIHalfwidth, s.MinImprovMs)
}

// DegradationHdRatio compares each bin's primary route against a per-path
// baseline chosen from historical primaries by median HD-ratio percentile.
type DegradationHdRatio struct {
	BaselinePercentile   float64
	MaxBaselineHalfwidth float32
	MinImprov            float32
	MaxDiffCIHalfwidth    float32
	CompareLowerBound     bool
	DistinctPathsOnly     bool

	pool  degradationPool
	built bool
}

func (s *DegradationHdRatio) Build(db *perf.DB) {
	halfwidth := func(r *perf.RouteInfo) float32 {
		return (r.HdratioP50CIUB - r.HdratioP50CILB) / 2
	}
	s.pool = buildBaseline(db, perf.HdratioValidPred, halfwidth, s.MaxBaselineHalfwidth,
		func(r *perf.RouteInfo) float32 { return r.HdratioP50 },
		s.BaselinePercentile, s.DistinctPathsOnly)
	s.built = true
}

func (s *DegradationHdRatio) Summarize(pid *perf.PathId, bin *perf.TimeBin) TimeBinSummary {
	primary := bin.GetPrimaryRoute(perf.HdratioValidPred)
	if primary == nil {
		return noRoute()
	}
	baseline, ok := s.pool.baselines[pid]
	if !ok {
		return wideConfidenceInterval()
	}
	diff, halfwidth := perf.HdRatioMedianDiffCI(primary, baseline)
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
		AlternatePeerType: baseline.PeerType,
		IsShifted:         limit >= s.MinImprov,
	})
}

func (s *DegradationHdRatio) GetRoutes(pid *perf.PathId, t int64, db *perf.DB) (*perf.RouteInfo, *perf.RouteInfo) {
	bin := db.PathInfo(pid).Get(t)
	return bin.GetPrimaryRoute(perf.HdratioValidPred), s.pool.baselines[pid]
}

func (s *DegradationHdRatio) Prefix() string {
	name := "hdratio"
	if s.DistinctPathsOnly {
		name = "hdratio-distinct-paths"
	}
	return fmt.Sprintf("%s--degr--bound-%v--halfwidth-%0.2f--min-improv-%0.2f", name, s.CompareLowerBound, s.MaxDiffCIHalfwidth, s.MinImprov)
}
