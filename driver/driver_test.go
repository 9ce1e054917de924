package driver

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/cunha/fbperf/config"
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

func sampleRow(timeBucket, prefix string) string {
	return timeBucket + "\t1000\tlla\t" + prefix + "\tNA\tUS\t" + sampleRecordRoute0 + "\t" + sampleRecordRoute1 + "\n"
}

func writeFile(t *testing.T, afs afero.Fs, path, contents string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(afs, path, []byte(contents), 0o644))
}

func TestLoadMergesMultipleFilesIntoOneDB(t *testing.T) {
	afs := afero.NewMemMapFs()
	writeFile(t, afs, "/a.tsv", sampleHeader+"\n"+sampleRow("900", "203.0.113.0/24"))
	writeFile(t, afs, "/b.tsv", sampleHeader+"\n"+sampleRow("900", "198.51.100.0/24"))

	db, err := Load(context.Background(), afs, []string{"/a.tsv", "/b.tsv"}, 900)
	require.NoError(t, err)
	require.Equal(t, uint64(2), db.Rows)
	require.Len(t, db.Paths(), 2)
}

func TestLoadWrapsPerFileErrorsWithPath(t *testing.T) {
	afs := afero.NewMemMapFs()

	_, err := Load(context.Background(), afs, []string{"/nonexistent.tsv"}, 900)
	require.Error(t, err)
	require.ErrorContains(t, err, "/nonexistent.tsv")
}

func TestPlanBuildsFixedSummarizerMenu(t *testing.T) {
	cfg := config.GetDefaultConfig()
	plan := Plan(&cfg)

	// one opportunity + one degradation summarizer per threshold, per metric,
	// plus four relationship pairs per metric.
	wantMinrtt := len(cfg.Summarizers.MinrttThresholdsMs)
	wantHdratio := len(cfg.Summarizers.HdratioThresholds)
	want := 2*wantMinrtt + 2*wantHdratio + 4*2
	require.Len(t, plan, want)

	seen := make(map[string]bool)
	for _, s := range plan {
		require.False(t, seen[s.Prefix()], "duplicate summarizer prefix %s", s.Prefix())
		seen[s.Prefix()] = true
	}
}

func TestRunWritesManifestAndDumps(t *testing.T) {
	afs := afero.NewMemMapFs()
	writeFile(t, afs, "/in.tsv", sampleHeader+"\n"+sampleRow("900", "203.0.113.0/24"))

	db, err := Load(context.Background(), afs, []string{"/in.tsv"}, 900)
	require.NoError(t, err)

	cfg := config.GetDefaultConfig()
	cfg.Summarizers.MinrttThresholdsMs = cfg.Summarizers.MinrttThresholdsMs[:1]
	cfg.Summarizers.HdratioThresholds = cfg.Summarizers.HdratioThresholds[:1]

	err = Run(context.Background(), afs, db, &cfg, "/out", nil, []string{"/in.tsv"})
	require.NoError(t, err)

	ok, err := afero.Exists(afs, "/out/run-manifest.txt")
	require.NoError(t, err)
	require.True(t, ok, "run-manifest.txt should be written")

	contents, err := afero.ReadFile(afs, "/out/run-manifest.txt")
	require.NoError(t, err)
	require.Contains(t, string(contents), "run_id")
	require.Contains(t, string(contents), "/in.tsv")
}
