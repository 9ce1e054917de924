// Package aggregate builds the database-wide report over every classified
// path: per-(behavior, continent) traffic rollups, CDFs, a peer-type
// cross-tabulation, and the flat-file dumps consumed downstream. Grounded on
// SPEC_FULL.md §4.6's DBSummary, generalizing the build/reclassify split
// perf/temporal already uses for a single path to the whole database.
package aggregate

import (
	"github.com/cunha/fbperf/perf"
	"github.com/cunha/fbperf/perf/summarize"
	"github.com/cunha/fbperf/perf/temporal"
)

// ByteMatrix is a per-(Behavior, Continent) byte accumulator, zero-valued on
// first read.
type ByteMatrix map[temporal.Behavior]map[perf.Continent]uint64

func newByteMatrix() ByteMatrix {
	m := make(ByteMatrix, len(temporal.AllBehaviors))
	for _, b := range temporal.AllBehaviors {
		m[b] = make(map[perf.Continent]uint64, len(perf.AllContinents))
	}
	return m
}

func (m ByteMatrix) add(b temporal.Behavior, c perf.Continent, bytes uint64) {
	m[b][c] += bytes
}

// peerTypePair and peerTypeTotals key and hold the
// (peer_type_primary, peer_type_alternate) ->
// (total_shifted_bytes, longer_bytes, prepended_more_bytes) cross-tabulation
// from SPEC_FULL.md §4.6(v).
type peerTypePair struct {
	Primary, Alternate perf.PeerType
}

type peerTypeTotals struct {
	TotalShiftedBytes  uint64
	LongerBytes        uint64
	PrependedMoreBytes uint64
}

// DBSummary is the report built from one full pass over a DB under one
// (Summarizer, TemporalConfig) pair.
type DBSummary struct {
	Summarizer summarize.Summarizer
	Config     temporal.TemporalConfig

	Paths map[*perf.PathId]*temporal.PathSummary

	ShiftedBytes ByteMatrix
	ValidBytes   ByteMatrix
	TotalBytes   ByteMatrix

	crossTab map[peerTypePair]*peerTypeTotals

	DroppedPaths int
}

// Build runs summarizer over every path in db and classifies the result
// under cfg. Paths whose PathSummary.ValidBytes is zero are dropped from the
// report entirely, matching §4.6's "paths with valid_bytes == 0 are dropped"
// rule.
func Build(db *perf.DB, summarizer summarize.Summarizer, cfg temporal.TemporalConfig) (*DBSummary, error) {
	s := &DBSummary{
		Summarizer:   summarizer,
		Config:       cfg,
		Paths:        make(map[*perf.PathId]*temporal.PathSummary),
		ShiftedBytes: newByteMatrix(),
		ValidBytes:   newByteMatrix(),
		TotalBytes:   newByteMatrix(),
		crossTab:     make(map[peerTypePair]*peerTypeTotals),
	}
	for _, pid := range db.Paths() {
		psum, err := temporal.Build(pid, db, summarizer, cfg)
		if err != nil {
			return nil, err
		}
		if psum.ValidBytes == 0 {
			s.DroppedPaths++
			continue
		}
		s.Paths[pid] = psum
		s.accumulate(pid, psum)
	}
	return s, nil
}

// Reclassify clears every accumulated matrix and the cross-tabulation, then
// reclassifies every retained PathSummary under cfg without replaying the
// underlying bin stream, matching §4.6's reclassify(new_config). Paths
// already dropped by the original Build pass stay dropped: reclassification
// never resurrects a path whose bins were never summarized.
func (s *DBSummary) Reclassify(totalBins int64, cfg temporal.TemporalConfig) {
	s.Config = cfg
	s.ShiftedBytes = newByteMatrix()
	s.ValidBytes = newByteMatrix()
	s.TotalBytes = newByteMatrix()
	s.crossTab = make(map[peerTypePair]*peerTypeTotals)
	for pid, psum := range s.Paths {
		psum.Reclassify(totalBins, cfg)
		s.accumulate(pid, psum)
	}
}

func (s *DBSummary) accumulate(pid *perf.PathId, psum *temporal.PathSummary) {
	continent := pid.ClientContinent
	behavior := psum.TemporalBehavior
	s.ShiftedBytes.add(behavior, continent, psum.ShiftedBytes)
	s.ValidBytes.add(behavior, continent, psum.ValidBytes)
	s.TotalBytes.add(behavior, continent, psum.NoRouteBytes+psum.WideCIBytes+psum.ValidBytes)

	for _, stats := range psum.Stats {
		if !stats.IsShifted {
			continue
		}
		pair := peerTypePair{Primary: stats.PrimaryPeerType, Alternate: stats.AlternatePeerType}
		totals, ok := s.crossTab[pair]
		if !ok {
			totals = &peerTypeTotals{}
			s.crossTab[pair] = totals
		}
		totals.TotalShiftedBytes += stats.Bytes
		if stats.Bitmask&summarize.AlternateIsLonger != 0 {
			totals.LongerBytes += stats.Bytes
		}
		if stats.Bitmask&summarize.AlternateIsPrependedMore != 0 {
			totals.PrependedMoreBytes += stats.Bytes
		}
	}
}

// GlobalTraffic sums TotalBytes across every behavior and continent, the
// denominator for the temporal-behavior-table's traffic-share percentages.
func (s *DBSummary) GlobalTraffic() uint64 {
	var total uint64
	for _, byContinent := range s.TotalBytes {
		for _, bytes := range byContinent {
			total += bytes
		}
	}
	return total
}
