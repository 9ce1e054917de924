package summarize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cunha/fbperf/perf"
)

func TestPeerTypeMaskString(t *testing.T) {
	mask := NewPeerTypeMask(perf.Transit, perf.PeeringPrivate)
	require.True(t, mask.has(perf.Transit))
	require.True(t, mask.has(perf.PeeringPrivate))
	require.False(t, mask.has(perf.PeeringPublic))
	require.Equal(t, "peering_private+transit", mask.String())
}

func minrttRoute(apmRouteNum uint8, peerType perf.PeerType, p50, lb, ub int16) *perf.RouteInfo {
	return &perf.RouteInfo{
		ApmRouteNum:      apmRouteNum,
		PeerType:         peerType,
		MinrttNumSamples: perf.MinSamples,
		MinrttP50:        p50,
		MinrttP50CILB:    lb,
		MinrttP50CIUB:    ub,
	}
}

func TestRelationshipMinRttShiftsOnImprovement(t *testing.T) {
	s := &RelationshipMinRtt{
		PrimaryMask:        NewPeerTypeMask(perf.Transit),
		AlternateMask:      NewPeerTypeMask(perf.PeeringPrivate),
		MinImprovMs:        5,
		MaxDiffCIHalfwidth: 100,
	}
	bin := &perf.TimeBin{BytesAckedSum: 1000}
	bin.Routes[0] = minrttRoute(1, perf.Transit, 50, 49, 51)
	bin.Routes[1] = minrttRoute(2, perf.PeeringPrivate, 30, 29, 31)

	summary := s.Summarize(nil, bin)
	require.Equal(t, Valid, summary.Kind)
	require.True(t, summary.Stats.IsShifted)
	require.InDelta(t, 20.0, summary.Stats.DiffCI, 1e-4)
}

func TestRelationshipMinRttNoRouteWhenPrimaryWrongPeerType(t *testing.T) {
	s := &RelationshipMinRtt{
		PrimaryMask:   NewPeerTypeMask(perf.Transit),
		AlternateMask: NewPeerTypeMask(perf.PeeringPrivate),
	}
	bin := &perf.TimeBin{}
	bin.Routes[0] = minrttRoute(1, perf.PeeringPublic, 50, 49, 51)
	bin.Routes[1] = minrttRoute(2, perf.PeeringPrivate, 30, 29, 31)

	summary := s.Summarize(nil, bin)
	require.Equal(t, NoRoute, summary.Kind)
}

func TestRelationshipMinRttNoRouteWhenNoEligibleAlternate(t *testing.T) {
	s := &RelationshipMinRtt{
		PrimaryMask:   NewPeerTypeMask(perf.Transit),
		AlternateMask: NewPeerTypeMask(perf.PeeringPrivate),
	}
	bin := &perf.TimeBin{}
	bin.Routes[0] = minrttRoute(1, perf.Transit, 50, 49, 51)
	bin.Routes[1] = minrttRoute(2, perf.PeeringPaid, 30, 29, 31)

	summary := s.Summarize(nil, bin)
	require.Equal(t, NoRoute, summary.Kind)
}

func TestRelationshipMinRttPicksFirstAlternateByRoleNotMetric(t *testing.T) {
	s := &RelationshipMinRtt{
		PrimaryMask:        NewPeerTypeMask(perf.Transit),
		AlternateMask:      NewPeerTypeMask(perf.PeeringPrivate),
		MinImprovMs:        5,
		MaxDiffCIHalfwidth: 100,
	}
	bin := &perf.TimeBin{}
	bin.Routes[0] = minrttRoute(1, perf.Transit, 50, 49, 51)
	bin.Routes[1] = minrttRoute(2, perf.PeeringPrivate, 40, 39, 41)
	bin.Routes[2] = minrttRoute(3, perf.PeeringPrivate, 10, 9, 11)

	summary := s.Summarize(nil, bin)
	require.Equal(t, Valid, summary.Kind)
	require.InDelta(t, 10.0, summary.Stats.DiffCI, 1e-4, "must compare against slot 1, the first eligible alternate, not slot 2's better metric")
}

func TestRelationshipMinRttWideConfidenceInterval(t *testing.T) {
	s := &RelationshipMinRtt{
		PrimaryMask:        NewPeerTypeMask(perf.Transit),
		AlternateMask:      NewPeerTypeMask(perf.PeeringPrivate),
		MaxDiffCIHalfwidth: 0.01,
	}
	bin := &perf.TimeBin{}
	bin.Routes[0] = minrttRoute(1, perf.Transit, 50, 0, 100)
	bin.Routes[1] = minrttRoute(2, perf.PeeringPrivate, 30, 0, 60)

	summary := s.Summarize(nil, bin)
	require.Equal(t, WideConfidenceInterval, summary.Kind)
}

func TestRelationshipMinRttCompareLowerBound(t *testing.T) {
	s := &RelationshipMinRtt{
		PrimaryMask:        NewPeerTypeMask(perf.Transit),
		AlternateMask:      NewPeerTypeMask(perf.PeeringPrivate),
		MinImprovMs:        5,
		MaxDiffCIHalfwidth: 100,
		CompareLowerBound:  true,
	}
	bin := &perf.TimeBin{}
	// diff ~20ms but with a wide enough CI that diff-halfwidth drops below
	// the 5ms bar when the lower bound is used instead of the point estimate.
	bin.Routes[0] = minrttRoute(1, perf.Transit, 50, 30, 70)
	bin.Routes[1] = minrttRoute(2, perf.PeeringPrivate, 30, 10, 50)

	summary := s.Summarize(nil, bin)
	require.Equal(t, Valid, summary.Kind)
	require.False(t, summary.Stats.IsShifted, "lower bound of the CI must fail to clear MinImprovMs")
}

func TestRelationshipMinRttGetRoutes(t *testing.T) {
	s := &RelationshipMinRtt{
		PrimaryMask:   NewPeerTypeMask(perf.Transit),
		AlternateMask: NewPeerTypeMask(perf.PeeringPrivate),
	}
	db := perf.NewDB(900)
	pid, err := perf.PathIdFromRecord("lla", "203.0.113.0/24", "NA", "US")
	require.NoError(t, err)
	bin := &perf.TimeBin{TimeBucket: 900}
	bin.Routes[0] = minrttRoute(1, perf.Transit, 50, 49, 51)
	bin.Routes[1] = minrttRoute(2, perf.PeeringPrivate, 30, 29, 31)
	canonical, err := db.Insert(pid, bin)
	require.NoError(t, err)

	primary, alt := s.GetRoutes(canonical, 900, db)
	require.Same(t, bin.Routes[0], primary)
	require.Same(t, bin.Routes[1], alt)
}

func TestRelationshipMinRttPrefixEncodesTunables(t *testing.T) {
	s := &RelationshipMinRtt{
		PrimaryMask:        NewPeerTypeMask(perf.Transit),
		AlternateMask:      NewPeerTypeMask(perf.PeeringPrivate),
		MinImprovMs:        5,
		MaxDiffCIHalfwidth: 10,
		CompareLowerBound:  true,
	}
	require.Equal(t, "minrtt50--rel--transit-to-peering_private--bound-true--halfwidth-10.00--min-improv-5", s.Prefix())
}

func hdratioRoute(apmRouteNum uint8, peerType perf.PeerType, p50, lb, ub float32) *perf.RouteInfo {
	return &perf.RouteInfo{
		ApmRouteNum:       apmRouteNum,
		PeerType:          peerType,
		HdratioNumSamples: perf.MinSamples,
		HdratioP50:        p50,
		HdratioP50CILB:    lb,
		HdratioP50CIUB:    ub,
	}
}

func TestRelationshipHdRatioShiftsOnImprovement(t *testing.T) {
	s := &RelationshipHdRatio{
		PrimaryMask:        NewPeerTypeMask(perf.Transit),
		AlternateMask:      NewPeerTypeMask(perf.PeeringPrivate),
		MinImprov:          0.05,
		MaxDiffCIHalfwidth: 1,
	}
	bin := &perf.TimeBin{BytesAckedSum: 500}
	bin.Routes[0] = hdratioRoute(1, perf.Transit, 0.80, 0.79, 0.81)
	bin.Routes[1] = hdratioRoute(2, perf.PeeringPrivate, 0.95, 0.94, 0.96)

	summary := s.Summarize(nil, bin)
	require.Equal(t, Valid, summary.Kind)
	require.True(t, summary.Stats.IsShifted)
	require.InDelta(t, 0.15, summary.Stats.DiffCI, 1e-4)
}

func TestRelationshipHdRatioNoRouteWhenAlternateInvalid(t *testing.T) {
	s := &RelationshipHdRatio{
		PrimaryMask:   NewPeerTypeMask(perf.Transit),
		AlternateMask: NewPeerTypeMask(perf.PeeringPrivate),
	}
	bin := &perf.TimeBin{}
	bin.Routes[0] = hdratioRoute(1, perf.Transit, 0.80, 0.79, 0.81)
	alt := hdratioRoute(2, perf.PeeringPrivate, 0.95, 0.94, 0.96)
	alt.HdratioNumSamples = 0
	bin.Routes[1] = alt

	summary := s.Summarize(nil, bin)
	require.Equal(t, NoRoute, summary.Kind)
}

func TestRelationshipHdRatioPrefixEncodesTunables(t *testing.T) {
	s := &RelationshipHdRatio{
		PrimaryMask:        NewPeerTypeMask(perf.Transit),
		AlternateMask:      NewPeerTypeMask(perf.PeeringPublic),
		MinImprov:          0.1,
		MaxDiffCIHalfwidth: 0.2,
	}
	require.Equal(t, "hdratio50--rel--transit-to-peering_public--bound-false--halfwidth-0.20--min-improv-0.10", s.Prefix())
}
