// Package summarize implements the opportunity, degradation, and
// relationship summarizer families: per-bin classifiers that compare a
// path's primary route against an alternate and decide whether, and by how
// much, the alternate would have been better.
package summarize

import "github.com/cunha/fbperf/perf"

// Kind distinguishes the three possible outcomes of summarizing one bin.
type Kind uint8

const (
	// NoRoute means the bin had no eligible (primary, alternate) pair.
	NoRoute Kind = iota
	// WideConfidenceInterval means a pair was found but its precision did
	// not clear the summarizer's configured bar.
	WideConfidenceInterval
	// Valid carries a populated TimeBinStats.
	Valid
)

// Bitmask bits populated by opportunity summarizers; degradation and
// relationship summarizers always emit Bitmask == 0.
const (
	BestAlternateIsBgpPreferred uint8 = 1 << iota
	AlternateIsLonger
	AlternateIsPrependedMore
)

// TimeBinStats is the payload of a Valid TimeBinSummary.
type TimeBinStats struct {
	Bytes             uint64
	DiffCI            float32
	DiffCIHalfwidth   float32
	PrimaryPeerType   perf.PeerType
	AlternatePeerType perf.PeerType
	Bitmask           uint8
	IsShifted         bool
}

// TimeBinSummary is the tagged-union result of summarizing one bin. Stats is
// only meaningful when Kind == Valid.
type TimeBinSummary struct {
	Kind  Kind
	Stats TimeBinStats
}

func noRoute() TimeBinSummary              { return TimeBinSummary{Kind: NoRoute} }
func wideConfidenceInterval() TimeBinSummary { return TimeBinSummary{Kind: WideConfidenceInterval} }
func valid(stats TimeBinStats) TimeBinSummary {
	return TimeBinSummary{Kind: Valid, Stats: stats}
}

// Summarizer is the capability set every family (opportunity, degradation,
// relationship) implements.
type Summarizer interface {
	// Summarize classifies one bin for the given path.
	Summarize(pid *perf.PathId, bin *perf.TimeBin) TimeBinSummary
	// GetRoutes returns the (primary, alternate) pair this summarizer used
	// for the bin at time, for dumpers that need to emit reference routes.
	// Callers must only invoke this after Summarize returned Valid or
	// WideConfidenceInterval for the same (pid, time).
	GetRoutes(pid *perf.PathId, t int64, db *perf.DB) (primary, alternate *perf.RouteInfo)
	// Prefix names this summarizer's output subdirectory, encoding every
	// tunable so distinct configurations never collide.
	Prefix() string
}

// computeBitmask populates the three opportunity bits by comparing alt
// against primary; degradation and relationship summarizers never call this,
// matching the production implementation leaving their bitmask at zero.
func computeBitmask(primary, alt *perf.RouteInfo) uint8 {
	var bitmask uint8
	if alt.ApmRouteNum == 1 {
		bitmask |= BestAlternateIsBgpPreferred
	}
	if alt.BgpAsPathLenPrependingRemoved > primary.BgpAsPathLenPrependingRemoved {
		bitmask |= AlternateIsLonger
	}
	if alt.BgpAsPathPrepends() > primary.BgpAsPathPrepends() {
		bitmask |= AlternateIsPrependedMore
	}
	return bitmask
}
