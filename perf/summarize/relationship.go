package summarize

import (
	"fmt"

	"github.com/cunha/fbperf/perf"
)

// PeerTypeMask is a bitmask over perf.PeerType ordinals, used by relationship
// summarizers to restrict which peer types are eligible as primary or
// alternate. Bit i corresponds to PeerType(i).
type PeerTypeMask uint8

// NewPeerTypeMask ORs together the bit for each given PeerType.
func NewPeerTypeMask(types ...perf.PeerType) PeerTypeMask {
	var mask PeerTypeMask
	for _, t := range types {
		mask |= 1 << uint8(t)
	}
	return mask
}

func (m PeerTypeMask) has(t perf.PeerType) bool {
	return m&(1<<uint8(t)) != 0
}

func (m PeerTypeMask) String() string {
	var out string
	for t := perf.PeeringPrivate; t <= perf.Transit; t++ {
		if m.has(t) {
			if out != "" {
				out += "+"
			}
			out += t.String()
		}
	}
	return out
}

// RelationshipMinRtt asks: when a primary whose peer type is in PrimaryMask
// is in production use, how often would the first alternate whose peer type
// is in AlternateMask have been a better choice by median MinRTT? Unlike the
// opportunity family, the alternate is selected by role (GetFirstAlternate),
// not by searching for the best metric value.
type RelationshipMinRtt struct {
	PrimaryMask        PeerTypeMask
	AlternateMask      PeerTypeMask
	MinImprovMs        int16
	MaxDiffCIHalfwidth float32
	CompareLowerBound  bool
}

func (s *RelationshipMinRtt) eligiblePrimary(r *perf.RouteInfo) bool {
	return r.MinrttValid() && s.PrimaryMask.has(r.PeerType)
}

func (s *RelationshipMinRtt) eligibleAlternate(r *perf.RouteInfo) bool {
	return r.MinrttValid() && s.AlternateMask.has(r.PeerType)
}

func (s *RelationshipMinRtt) Summarize(_ *perf.PathId, bin *perf.TimeBin) TimeBinSummary {
	primary := bin.GetPrimaryRoute(s.eligiblePrimary)
	if primary == nil {
		return noRoute()
	}
	alt := bin.GetFirstAlternate(s.eligibleAlternate)
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
		IsShifted:         limit >= float32(s.MinImprovMs),
	})
}

func (s *RelationshipMinRtt) GetRoutes(pid *perf.PathId, t int64, db *perf.DB) (*perf.RouteInfo, *perf.RouteInfo) {
	bin := db.PathInfo(pid).Get(t)
	return bin.GetPrimaryRoute(s.eligiblePrimary), bin.GetFirstAlternate(s.eligibleAlternate)
}

func (s *RelationshipMinRtt) Prefix() string {
	return fmt.Sprintf("minrtt50--rel--%s-to-%s--bound-%v--halfwidth-%0.2f--min-improv-%d",
		s.PrimaryMask, s.AlternateMask, s.CompareLowerBound, s.MaxDiffCIHalfwidth, s.MinImprovMs)
}

// RelationshipHdRatio is RelationshipMinRtt's HD-ratio counterpart, using the
// median HD-ratio diff-CI.
type RelationshipHdRatio struct {
	PrimaryMask        PeerTypeMask
	AlternateMask      PeerTypeMask
	MinImprov          float32
	MaxDiffCIHalfwidth float32
	CompareLowerBound  bool
}

func (s *RelationshipHdRatio) eligiblePrimary(r *perf.RouteInfo) bool {
	return r.HdratioValid() && s.PrimaryMask.has(r.PeerType)
}

func (s *RelationshipHdRatio) eligibleAlternate(r *perf.RouteInfo) bool {
	return r.HdratioValid() && s.AlternateMask.has(r.PeerType)
}

func (s *RelationshipHdRatio) Summarize(_ *perf.PathId, bin *perf.TimeBin) TimeBinSummary {
	primary := bin.GetPrimaryRoute(s.eligiblePrimary)
	if primary == nil {
		return noRoute()
	}
	alt := bin.GetFirstAlternate(s.eligibleAlternate)
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
		IsShifted:         limit >= s.MinImprov,
	})
}

func (s *RelationshipHdRatio) GetRoutes(pid *perf.PathId, t int64, db *perf.DB) (*perf.RouteInfo, *perf.RouteInfo) {
	bin := db.PathInfo(pid).Get(t)
	return bin.GetPrimaryRoute(s.eligiblePrimary), bin.GetFirstAlternate(s.eligibleAlternate)
}

func (s *RelationshipHdRatio) Prefix() string {
	return fmt.Sprintf("hdratio50--rel--%s-to-%s--bound-%v--halfwidth-%0.2f--min-improv-%0.2f",
		s.PrimaryMask, s.AlternateMask, s.CompareLowerBound, s.MaxDiffCIHalfwidth, s.MinImprov)
}
