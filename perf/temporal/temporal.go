// Package temporal classifies a path's stream of per-bin summarizer
// decisions into one behavioral category, following the build/classify/
// reclassify split in original_source/rust/src/performance/perfstats.rs's
// PathSummary, generalized per SPEC_FULL.md §4.5 to a count-based bad-bins
// definition and a DB-global Undersampled denominator.
package temporal

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cunha/fbperf/perf"
	"github.com/cunha/fbperf/perf/summarize"
)

// ErrBinsOutOfOrder is returned by Build if the caller's bin stream is not
// strictly ascending in time_bucket. There is no legitimate caller that
// would present bins out of order (PathInfo already maintains a sorted key
// slice), so this is treated as a caller bug rather than tolerated silently.
var ErrBinsOutOfOrder = errors.New("temporal: bins must be presented in ascending time order")

// Behavior is one of the temporal classifier's seven possible labels.
type Behavior uint8

const (
	Uninitialized Behavior = iota
	Uneventful
	Continuous
	Diurnal
	Episodic
	Undersampled
	NoAlternate
	MissingBins
)

func (b Behavior) String() string {
	switch b {
	case Uneventful:
		return "Uneventful"
	case Continuous:
		return "Continuous"
	case Diurnal:
		return "Diurnal"
	case Episodic:
		return "Episodic"
	case Undersampled:
		return "Undersampled"
	case NoAlternate:
		return "NoAlternate"
	case MissingBins:
		return "MissingBins"
	default:
		return "Uninitialized"
	}
}

// AllBehaviors enumerates every classified (non-Uninitialized) behavior, in
// the order the aggregate reporter's byte matrices use.
var AllBehaviors = []Behavior{
	Uneventful, Continuous, Diurnal, Episodic, Undersampled, NoAlternate, MissingBins,
}

// TemporalConfig is the parameter set driving one classification pass.
// bin_duration_secs must match the DB's own bin width: it is only used to
// compute bins_per_day for the diurnal offset histogram.
type TemporalConfig struct {
	BinDurationSecs              int64
	MinDays                      int
	MinFracExistingBins          float64
	MinFracBinsWithAlternate     float64
	MinFracValidBins             float64
	ContinuousMinFracShiftedBins float64
	DiurnalMinBadBins            int
	DiurnalBadBinMinProbShift    float64
	UneventfulMaxFracShiftedBins float64
}

// Prefix names this config's output subdirectory, encoding every tunable.
func (c TemporalConfig) Prefix() string {
	return fmt.Sprintf(
		"temporal--bindur-%d--mindays-%d--existing-%.2f--alt-%.2f--valid-%.2f--cont-%.2f--uneventful-%.2f--diurnalbins-%d--diurnalprob-%.2f",
		c.BinDurationSecs, c.MinDays, c.MinFracExistingBins, c.MinFracBinsWithAlternate,
		c.MinFracValidBins, c.ContinuousMinFracShiftedBins, c.UneventfulMaxFracShiftedBins,
		c.DiurnalMinBadBins, c.DiurnalBadBinMinProbShift,
	)
}

// PathSummary is the classifier's output for one path under one
// (summarizer, TemporalConfig) pair.
type PathSummary struct {
	Stats map[int64]summarize.TimeBinStats

	day2Shifts map[int64]int
	times      []int64

	NoRouteBins, WideCIBins, ShiftedBins, ValidBins   uint64
	NoRouteBytes, WideCIBytes, ShiftedBytes, ValidBytes uint64

	DistinctShifts int
	BadBins        int

	existingBins int64
	TemporalBehavior Behavior
}

// Times returns the ascending time_bucket keys of every valid bin recorded
// in this PathSummary.
func (p *PathSummary) Times() []int64 {
	return p.times
}

// Build walks pid's bins (via db) in ascending time order, invoking
// summarizer per bin, and classifies the result under cfg.
func Build(pid *perf.PathId, db *perf.DB, summarizer summarize.Summarizer, cfg TemporalConfig) (*PathSummary, error) {
	info := db.PathInfo(pid)
	psum := &PathSummary{
		Stats:      make(map[int64]summarize.TimeBinStats),
		day2Shifts: make(map[int64]int),
	}
	if info == nil {
		psum.classify(db.TotalBins(), cfg)
		return psum, nil
	}
	psum.existingBins = int64(info.Len())

	times := info.SortedTimes()
	lastTime := int64(math.MinInt64)
	haveLast := false
	wasShifted := false
	for _, t := range times {
		if haveLast && t <= lastTime {
			return nil, fmt.Errorf("%w: path=%v time=%d previous=%d", ErrBinsOutOfOrder, pid, t, lastTime)
		}
		lastTime, haveLast = t, true

		bin := info.Get(t)
		summary := summarizer.Summarize(pid, bin)
		switch summary.Kind {
		case summarize.NoRoute:
			psum.NoRouteBins++
			psum.NoRouteBytes += bin.BytesAckedSum
		case summarize.WideConfidenceInterval:
			psum.WideCIBins++
			psum.WideCIBytes += bin.BytesAckedSum
		case summarize.Valid:
			s := summary.Stats
			psum.ValidBins++
			psum.ValidBytes += s.Bytes
			day := t / 86400
			if s.IsShifted {
				psum.ShiftedBins++
				psum.ShiftedBytes += s.Bytes
				if !wasShifted {
					psum.DistinctShifts++
				}
				psum.day2Shifts[day]++
			} else if _, ok := psum.day2Shifts[day]; !ok {
				psum.day2Shifts[day] = 0
			}
			wasShifted = s.IsShifted
			psum.Stats[t] = s
			psum.times = append(psum.times, t)
		}
	}

	psum.computeBadBins(cfg)
	psum.classify(db.TotalBins(), cfg)
	return psum, nil
}

// Reclassify reruns the bad-bins recount and the classify step against a new
// TemporalConfig, without replaying the underlying bin stream. totalBins is
// the DB-global bin count used by the Undersampled gate.
func (p *PathSummary) Reclassify(totalBins int64, cfg TemporalConfig) {
	p.computeBadBins(cfg)
	p.classify(totalBins, cfg)
}

// computeBadBins implements SPEC_FULL.md §4.5's count-based diurnal-offset
// histogram: an offset is "bad" when at least diurnal_bad_bin_min_prob_shift
// of observed days saw that offset shifted.
func (p *PathSummary) computeBadBins(cfg TemporalConfig) {
	numDays := len(p.day2Shifts)
	if numDays < cfg.MinDays || cfg.BinDurationSecs <= 0 {
		p.BadBins = 0
		return
	}
	minShifts := int(math.Floor(cfg.DiurnalBadBinMinProbShift * float64(numDays)))
	binsPerDay := int(86400 / cfg.BinDurationSecs)
	if binsPerDay <= 0 {
		p.BadBins = 0
		return
	}
	offsetShiftCounts := make([]int, binsPerDay)
	for t, s := range p.Stats {
		if s.IsShifted {
			offset := int((t % 86400) / cfg.BinDurationSecs)
			offsetShiftCounts[offset]++
		}
	}
	badBins := 0
	for _, count := range offsetShiftCounts {
		if count >= minShifts {
			badBins++
		}
	}
	p.BadBins = badBins
}

// classify implements SPEC_FULL.md §4.5's four-step gate.
func (p *PathSummary) classify(totalBins int64, cfg TemporalConfig) {
	if totalBins <= 0 {
		p.TemporalBehavior = MissingBins
		return
	}
	if float64(p.existingBins)/float64(totalBins) < cfg.MinFracExistingBins {
		p.TemporalBehavior = MissingBins
		return
	}
	if p.existingBins == 0 {
		p.TemporalBehavior = NoAlternate
		return
	}
	if 1-float64(p.NoRouteBins)/float64(p.existingBins) < cfg.MinFracBinsWithAlternate {
		p.TemporalBehavior = NoAlternate
		return
	}
	if float64(len(p.Stats))/float64(totalBins) < cfg.MinFracValidBins {
		p.TemporalBehavior = Undersampled
		return
	}
	if p.ValidBins == 0 {
		p.TemporalBehavior = Uneventful
		return
	}
	f := float64(p.ShiftedBins) / float64(p.ValidBins)
	switch {
	case f <= cfg.UneventfulMaxFracShiftedBins:
		p.TemporalBehavior = Uneventful
	case f >= cfg.ContinuousMinFracShiftedBins:
		p.TemporalBehavior = Continuous
	case p.BadBins >= cfg.DiurnalMinBadBins:
		p.TemporalBehavior = Diurnal
	default:
		p.TemporalBehavior = Episodic
	}
}

// sortedDays returns day2Shifts's keys in ascending order, used by tests
// that need a deterministic walk of the per-day shift histogram.
func (p *PathSummary) sortedDays() []int64 {
	days := make([]int64, 0, len(p.day2Shifts))
	for d := range p.day2Shifts {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}
