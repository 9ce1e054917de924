package ingest

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/cunha/fbperf/perf"
)

const sampleHeader = "time_bucket\tbytes_acked\tvip_metro\tbgp_ip_prefix\tclient_continent\tclient_country\t" +
	"r0_apm_route_num\tr0_bgp_as_path_len\tr0_bgp_as_path_min_len_prepending_removed\tr0_bgp_as_path_prepending\t" +
	"r0_peer_type\tr0_peer_subtype\tr0_num_samples\tr0_minrtt_ms_p50\tr0_minrtt_ms_p50_ci_lb\tr0_minrtt_ms_p50_ci_ub\t" +
	"r0_num_samples_with_hdratio\tr0_hdratio_avg\tr0_hdratio_normal_var\tr0_hdratio_p50\tr0_hdratio_p50_ci_lb\t" +
	"r0_hdratio_p50_ci_ub\tr0_hdratio_avg_bootstrapped\tr0_r0_diff_hdratio_avg_bootstrapped_ci_lb\t" +
	"r0_r0_diff_hdratio_avg_bootstrapped_ci_ub\tr0_px_nexthops\t" +
	"r1_apm_route_num\tr1_bgp_as_path_len\tr1_bgp_as_path_min_len_prepending_removed\tr1_bgp_as_path_prepending\t" +
	"r1_peer_type\tr1_peer_subtype\tr1_num_samples\tr1_minrtt_ms_p50\tr1_minrtt_ms_p50_ci_lb\tr1_minrtt_ms_p50_ci_ub\t" +
	"r1_num_samples_with_hdratio\tr1_hdratio_avg\tr1_hdratio_normal_var\tr1_hdratio_p50\tr1_hdratio_p50_ci_lb\t" +
	"r1_hdratio_p50_ci_ub\tr1_hdratio_avg_bootstrapped\tr1_r0_diff_hdratio_avg_bootstrapped_ci_lb\t" +
	"r1_r0_diff_hdratio_avg_bootstrapped_ci_ub\tr1_px_nexthops"

const sampleRecordRoute0 = "1\t4\t3\ttrue\ttransit\t\t40\t15\t12\t18\t40\t0.95\t0.01\t0.97\t0.9\t1.0\t0.96\t0\t0\t203.0.113.1"
const sampleRecordRoute1 = "2\t5\t4\tfalse\tpeering\tpublic\t35\t20\t17\t24\t35\t0.90\t0.02\t0.91\t0.8\t0.95\t0.89\t-0.05\t0.05\t203.0.113.2"

func writeFile(t *testing.T, afs afero.Fs, path, contents string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(afs, path, []byte(contents), 0o644))
}

func TestLoadFileSingleRecord(t *testing.T) {
	afs := afero.NewMemMapFs()
	body := sampleHeader + "\n" + "900\t1000\tlla\t203.0.113.0/24\tNA\tUS\t" + sampleRecordRoute0 + "\t" + sampleRecordRoute1 + "\n"
	writeFile(t, afs, "/in.tsv", body)

	db := perf.NewDB(900)
	require.NoError(t, LoadFile(afs, "/in.tsv", db))

	require.Equal(t, uint64(1), db.Rows)
	require.Equal(t, uint64(1000), db.TotalTraffic)
	require.Len(t, db.Paths(), 1)

	pid := db.Paths()[0]
	info := db.PathInfo(pid)
	require.Equal(t, 1, info.Len())

	bin := info.Get(900)
	require.NotNil(t, bin)
	require.NotNil(t, bin.Routes[0])
	require.Equal(t, uint8(1), bin.Routes[0].ApmRouteNum)
	require.NotNil(t, bin.Routes[1])
	require.Equal(t, uint8(2), bin.Routes[1].ApmRouteNum)
}

func TestLoadFileSkipsMalformedRecord(t *testing.T) {
	afs := afero.NewMemMapFs()
	body := sampleHeader + "\n" +
		"900\t1000\tNULL\t203.0.113.0/24\tNA\tUS\t" + sampleRecordRoute0 + "\t" + sampleRecordRoute1 + "\n" +
		"1800\t500\tlla\t203.0.113.0/24\tNA\tUS\t" + sampleRecordRoute0 + "\t" + sampleRecordRoute1 + "\n"
	writeFile(t, afs, "/in.tsv", body)

	db := perf.NewDB(900)
	require.NoError(t, LoadFile(afs, "/in.tsv", db))

	require.Equal(t, uint64(1), db.Rows, "only the well-formed record should be counted")
	require.Equal(t, uint64(1), db.ErrorCounts[perf.KindVipMetroIsNull])
}

func TestLoadFileEmptyFileIsSkippedNotErrored(t *testing.T) {
	afs := afero.NewMemMapFs()
	writeFile(t, afs, "/empty.tsv", "")

	db := perf.NewDB(900)
	require.NoError(t, LoadFile(afs, "/empty.tsv", db))
	require.Equal(t, uint64(0), db.Rows)
}

func TestLoadFileMissingRouteSlotLeftNil(t *testing.T) {
	afs := afero.NewMemMapFs()
	emptyRoute1 := "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"
	body := sampleHeader + "\n" + "900\t1000\tlla\t203.0.113.0/24\tNA\tUS\t" + sampleRecordRoute0 + "\t" + emptyRoute1 + "\n"
	writeFile(t, afs, "/in.tsv", body)

	db := perf.NewDB(900)
	require.NoError(t, LoadFile(afs, "/in.tsv", db))

	pid := db.Paths()[0]
	bin := db.PathInfo(pid).Get(900)
	require.NotNil(t, bin.Routes[0])
	require.Nil(t, bin.Routes[1], "a slot with no apm_route_num token is absent, not a parse error")
}
