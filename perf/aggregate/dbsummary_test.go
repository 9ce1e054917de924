package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cunha/fbperf/perf"
	"github.com/cunha/fbperf/perf/summarize"
	"github.com/cunha/fbperf/perf/temporal"
	"github.com/cunha/fbperf/util"
)

func mustSubnet(t *testing.T, cidr string) util.Subnet {
	t.Helper()
	s, err := util.ParseSubnet(cidr)
	require.NoError(t, err)
	return s
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

func lenientTemporalConfig() temporal.TemporalConfig {
	return temporal.TemporalConfig{BinDurationSecs: 3600}
}

func TestBuildAccumulatesByBehaviorAndContinent(t *testing.T) {
	db := perf.NewDB(3600)
	summarizer := &summarize.MinRtt50{MinImprovMs: 5, MaxDiffCIHalfwidth: 100}

	pidA := perf.PathId{VipMetro: "lla", BgpPrefix: mustSubnet(t, "10.0.0.0/24"), ClientContinent: perf.ContinentNorthAmerica, ClientCountry: "US"}
	binA := &perf.TimeBin{TimeBucket: 0, BytesAckedSum: 1000}
	binA.Routes[0] = minrttRoute(1, perf.Transit, 50, 49, 51)
	binA.Routes[1] = minrttRoute(2, perf.PeeringPrivate, 30, 29, 31)
	_, err := db.Insert(pidA, binA)
	require.NoError(t, err)

	pidB := perf.PathId{VipMetro: "gru", BgpPrefix: mustSubnet(t, "10.0.1.0/24"), ClientContinent: perf.ContinentSouthAmerica, ClientCountry: "BR"}
	binB := &perf.TimeBin{TimeBucket: 0, BytesAckedSum: 2000}
	binB.Routes[0] = minrttRoute(1, perf.Transit, 50, 49, 51)
	binB.Routes[1] = minrttRoute(2, perf.PeeringPublic, 48, 47, 49)
	_, err = db.Insert(pidB, binB)
	require.NoError(t, err)

	s, err := Build(db, summarizer, lenientTemporalConfig())
	require.NoError(t, err)
	require.Len(t, s.Paths, 2)
	require.Zero(t, s.DroppedPaths)

	var totalShifted uint64
	for _, c := range perf.AllContinents {
		totalShifted += s.ShiftedBytes[temporal.Continuous][c] + s.ShiftedBytes[temporal.Uneventful][c] +
			s.ShiftedBytes[temporal.Episodic][c] + s.ShiftedBytes[temporal.Diurnal][c]
	}
	require.Equal(t, uint64(1000), totalShifted)

	require.Equal(t, uint64(2000), s.TotalBytes[temporal.Uneventful][perf.ContinentSouthAmerica])
}

func TestBuildDropsZeroValidBytePaths(t *testing.T) {
	db := perf.NewDB(3600)
	summarizer := &summarize.MinRtt50{MinImprovMs: 5, MaxDiffCIHalfwidth: 100}

	pid := perf.PathId{VipMetro: "lla", BgpPrefix: mustSubnet(t, "10.0.0.0/24"), ClientContinent: perf.ContinentNorthAmerica, ClientCountry: "US"}
	bin := &perf.TimeBin{TimeBucket: 0, BytesAckedSum: 1000}
	_, err := db.Insert(pid, bin)
	require.NoError(t, err)

	s, err := Build(db, summarizer, lenientTemporalConfig())
	require.NoError(t, err)
	require.Empty(t, s.Paths)
	require.Equal(t, 1, s.DroppedPaths)
}

func TestBuildPopulatesCrossTabOnlyForShiftedBins(t *testing.T) {
	db := perf.NewDB(3600)
	summarizer := &summarize.MinRtt50{MinImprovMs: 5, MaxDiffCIHalfwidth: 100}

	pid := perf.PathId{VipMetro: "lla", BgpPrefix: mustSubnet(t, "10.0.0.0/24"), ClientContinent: perf.ContinentNorthAmerica, ClientCountry: "US"}
	shiftedBin := &perf.TimeBin{TimeBucket: 0, BytesAckedSum: 1000}
	shiftedBin.Routes[0] = minrttRoute(1, perf.Transit, 50, 49, 51)
	shiftedBin.Routes[1] = minrttRoute(2, perf.PeeringPrivate, 30, 29, 31)
	_, err := db.Insert(pid, shiftedBin)
	require.NoError(t, err)

	notShiftedBin := &perf.TimeBin{TimeBucket: 3600, BytesAckedSum: 500}
	notShiftedBin.Routes[0] = minrttRoute(1, perf.Transit, 50, 49, 51)
	notShiftedBin.Routes[1] = minrttRoute(2, perf.PeeringPublic, 50, 49, 51)
	_, err = db.Insert(pid, notShiftedBin)
	require.NoError(t, err)

	s, err := Build(db, summarizer, lenientTemporalConfig())
	require.NoError(t, err)

	require.Len(t, s.crossTab, 1)
	for pair, totals := range s.crossTab {
		require.Equal(t, perf.Transit, pair.Primary)
		require.Equal(t, perf.PeeringPrivate, pair.Alternate)
		require.Equal(t, uint64(1000), totals.TotalShiftedBytes)
	}
}

func TestReclassifyRecomputesMatricesWithoutReplayingBins(t *testing.T) {
	db := perf.NewDB(3600)
	summarizer := &summarize.MinRtt50{MinImprovMs: 5, MaxDiffCIHalfwidth: 100}

	pid := perf.PathId{VipMetro: "lla", BgpPrefix: mustSubnet(t, "10.0.0.0/24"), ClientContinent: perf.ContinentNorthAmerica, ClientCountry: "US"}
	bin := &perf.TimeBin{TimeBucket: 0, BytesAckedSum: 1000}
	bin.Routes[0] = minrttRoute(1, perf.Transit, 50, 49, 51)
	bin.Routes[1] = minrttRoute(2, perf.PeeringPrivate, 30, 29, 31)
	_, err := db.Insert(pid, bin)
	require.NoError(t, err)

	cfg := lenientTemporalConfig()
	s, err := Build(db, summarizer, cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), s.ValidBytes[temporal.Continuous][perf.ContinentNorthAmerica])

	strict := cfg
	strict.MinFracExistingBins = 2.0
	s.Reclassify(db.TotalBins(), strict)

	require.Zero(t, s.ValidBytes[temporal.Continuous][perf.ContinentNorthAmerica])
	require.Equal(t, uint64(1000), s.TotalBytes[temporal.MissingBins][perf.ContinentNorthAmerica])
}

func TestGlobalTrafficSumsAllBehaviorsAndContinents(t *testing.T) {
	db := perf.NewDB(3600)
	summarizer := &summarize.MinRtt50{MinImprovMs: 5, MaxDiffCIHalfwidth: 100}

	pidA := perf.PathId{VipMetro: "lla", BgpPrefix: mustSubnet(t, "10.0.0.0/24"), ClientContinent: perf.ContinentNorthAmerica, ClientCountry: "US"}
	binA := &perf.TimeBin{TimeBucket: 0, BytesAckedSum: 700}
	binA.Routes[0] = minrttRoute(1, perf.Transit, 50, 49, 51)
	binA.Routes[1] = minrttRoute(2, perf.PeeringPrivate, 48, 47, 49)
	_, err := db.Insert(pidA, binA)
	require.NoError(t, err)

	s, err := Build(db, summarizer, lenientTemporalConfig())
	require.NoError(t, err)
	require.Equal(t, uint64(700), s.GlobalTraffic())
}
