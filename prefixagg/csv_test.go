package prefixagg

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleCSV = `time,bgp_prefix,agg_prefix,origin_asn,min_rtt_p50,hdratio
100,10.0.0.0/23,10.0.0.0/24,65000,20,0.9
200,10.0.0.0/23,10.0.0.0/24,65000,22,0.91
100,10.0.0.0/23,10.0.1.0/24,65000,21,0.89
`

func TestLoadInputGroupsByAggPrefix(t *testing.T) {
	prefix2data, err := LoadInput(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, prefix2data, 2)

	p0 := netip.MustParsePrefix("10.0.0.0/24")
	data := prefix2data[p0]
	require.NotNil(t, data)
	require.Equal(t, uint64(2), data.RecordCount)
	require.Equal(t, netip.MustParsePrefix("10.0.0.0/23"), data.BgpPrefix)
	require.True(t, data.IsDeaggregated())
}

func TestLoadInputRejectsDuplicateTime(t *testing.T) {
	body := sampleCSV + "100,10.0.0.0/23,10.0.0.0/24,65000,25,0.80\n"
	_, err := LoadInput(strings.NewReader(body))
	require.Error(t, err)
}

func TestEquivalentPerformanceWithinThresholds(t *testing.T) {
	prefix2data, err := LoadInput(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	a := prefix2data[netip.MustParsePrefix("10.0.0.0/24")]
	b := prefix2data[netip.MustParsePrefix("10.0.1.0/24")]
	require.True(t, equivalentPerformance(a, b, 5, 0.1))
	require.False(t, equivalentPerformance(a, b, 0, 0.001))
}

func TestDumpOutputWritesRecordsAndSummary(t *testing.T) {
	prefix2data, err := LoadInput(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	aggregated := map[netip.Prefix]struct{}{
		netip.MustParsePrefix("10.0.0.0/24"): {},
		netip.MustParsePrefix("10.0.1.0/24"): {},
	}
	var buf strings.Builder
	require.NoError(t, DumpOutput(&buf, prefix2data, aggregated))
	require.Contains(t, buf.String(), "prefix,bgp_prefix,prefix_records,bgp_prefix_records")
	require.Contains(t, buf.String(), "10.0.0.0/24")
}
