package cmd

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/cunha/fbperf/config"
)

const aggregatePrefixesCSVHeader = "time,bgp_prefix,agg_prefix,origin_asn,min_rtt_p50,hdratio\n"

func TestRunAggregatePrefixesCommandWritesOutput(t *testing.T) {
	afs := afero.NewMemMapFs()
	body := aggregatePrefixesCSVHeader +
		"1,203.0.113.0/25,203.0.113.0/24,65000,10,0.95\n" +
		"1,203.0.113.128/25,203.0.113.0/24,65000,11,0.94\n"
	require.NoError(t, afero.WriteFile(afs, "/in.csv", []byte(body), 0o644))

	cfg := config.GetDefaultConfig()
	err := RunAggregatePrefixesCommand(afs, "/in.csv", "/out", &cfg)
	require.NoError(t, err)

	ok, err := afero.Exists(afs, "/out/prefix-aggregation.csv")
	require.NoError(t, err)
	require.True(t, ok)

	contents, err := afero.ReadFile(afs, "/out/prefix-aggregation.csv")
	require.NoError(t, err)
	require.Contains(t, string(contents), "prefix,bgp_prefix,prefix_records,bgp_prefix_records")
}

func TestRunAggregatePrefixesCommandMissingInputErrors(t *testing.T) {
	afs := afero.NewMemMapFs()
	cfg := config.GetDefaultConfig()
	err := RunAggregatePrefixesCommand(afs, "/nonexistent.csv", "/out", &cfg)
	require.Error(t, err)
}
