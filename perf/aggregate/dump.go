package aggregate

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/cunha/fbperf/cdf"
	"github.com/cunha/fbperf/perf"
	"github.com/cunha/fbperf/perf/temporal"
)

// dumpFileRate caps how many files one Dump call may flush per second, so
// dozens of concurrent summarizer tasks (driver.Run's fan-out) don't all
// hammer the output filesystem in the same instant. Repurposed from
// database/writer.go's batch-send limiter to file-dump pacing.
const dumpFileRate = 50

var dumpLimiter = rate.NewLimiter(rate.Limit(dumpFileRate), dumpFileRate)

// Dump writes every artifact enumerated in SPEC_FULL.md §4.6(i-vi) under
// dir: ten CDF files, a temporal-behavior-table, the peer-type
// cross-tabulation in txt/pickle/json form, and (if pathIds is non-empty) a
// per-PathId time-series dump.
func (s *DBSummary) Dump(afs afero.Fs, dir string, pathIds []*perf.PathId) error {
	if err := afs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("aggregate: creating %s: %w", dir, err)
	}
	if err := s.dumpTemporalConfig(afs, dir); err != nil {
		return err
	}
	if err := s.dumpCDFs(afs, dir); err != nil {
		return err
	}
	if err := s.dumpBehaviorTable(afs, dir); err != nil {
		return err
	}
	if err := s.dumpCrossTab(afs, dir); err != nil {
		return err
	}
	if len(pathIds) > 0 {
		if err := s.dumpPathTimeseries(afs, dir, pathIds); err != nil {
			return err
		}
	}
	return nil
}

func (s *DBSummary) dumpTemporalConfig(afs afero.Fs, dir string) error {
	return writeLines(afs, filepath.Join(dir, "temporal-config.txt"), []string{s.Config.Prefix()})
}

// dumpCDFs writes the six per-bin diff_ci CDFs (mid/lower/upper, each
// count-weighted and byte-weighted) plus the two per-path shifted_fraction
// CDFs and the two per-path distinct_shifts/day CDFs, ten files total.
func (s *DBSummary) dumpCDFs(afs afero.Fs, dir string) error {
	var midCount, lowerCount, upperCount []cdf.Point
	var midBytes, lowerBytes, upperBytes []cdf.Point

	for _, psum := range s.Paths {
		for _, bin := range psum.Stats {
			mid := bin.DiffCI
			lower := bin.DiffCI - bin.DiffCIHalfwidth
			upper := bin.DiffCI + bin.DiffCIHalfwidth
			midCount = append(midCount, cdf.Point{Key: mid, Weight: 1})
			lowerCount = append(lowerCount, cdf.Point{Key: lower, Weight: 1})
			upperCount = append(upperCount, cdf.Point{Key: upper, Weight: 1})
			w := float64(bin.Bytes)
			midBytes = append(midBytes, cdf.Point{Key: mid, Weight: w})
			lowerBytes = append(lowerBytes, cdf.Point{Key: lower, Weight: w})
			upperBytes = append(upperBytes, cdf.Point{Key: upper, Weight: w})
		}
	}

	var shiftedFracCount, shiftedFracBytes []cdf.Point
	var distinctShiftsCount, distinctShiftsBytes []cdf.Point
	for _, psum := range s.Paths {
		traffic := psum.ValidBytes
		var frac float32
		if psum.ValidBins > 0 {
			frac = float32(psum.ShiftedBins) / float32(psum.ValidBins)
		}
		shiftedFracCount = append(shiftedFracCount, cdf.Point{Key: frac, Weight: 1})
		shiftedFracBytes = append(shiftedFracBytes, cdf.Point{Key: frac, Weight: float64(traffic)})

		days := float32(1)
		if n := float32(len(psum.Times())); n > 0 {
			// distinct_shifts/day: DistinctShifts spread over the days the
			// path was observed, approximated by its valid-bin count scaled
			// to a day granularity via the config's bin duration.
			if s.Config.BinDurationSecs > 0 {
				binsPerDay := float32(86400 / s.Config.BinDurationSecs)
				if binsPerDay > 0 {
					days = n / binsPerDay
					if days < 1 {
						days = 1
					}
				}
			}
		}
		perDay := float32(psum.DistinctShifts) / days
		distinctShiftsCount = append(distinctShiftsCount, cdf.Point{Key: perDay, Weight: 1})
		distinctShiftsBytes = append(distinctShiftsBytes, cdf.Point{Key: perDay, Weight: float64(traffic)})
	}

	files := []struct {
		name string
		data []cdf.Point
	}{
		{"diff-ci-mid-count.cdf", midCount},
		{"diff-ci-mid-bytes.cdf", midBytes},
		{"diff-ci-lower-count.cdf", lowerCount},
		{"diff-ci-lower-bytes.cdf", lowerBytes},
		{"diff-ci-upper-count.cdf", upperCount},
		{"diff-ci-upper-bytes.cdf", upperBytes},
		{"shifted-fraction-count.cdf", shiftedFracCount},
		{"shifted-fraction-bytes.cdf", shiftedFracBytes},
		{"distinct-shifts-per-day-count.cdf", distinctShiftsCount},
		{"distinct-shifts-per-day-bytes.cdf", distinctShiftsBytes},
	}
	for _, f := range files {
		points := cdf.Build(f.data, cdf.DefaultStep)
		if err := writeCDFFile(afs, filepath.Join(dir, f.name), points); err != nil {
			return err
		}
	}
	return nil
}

func writeCDFFile(afs afero.Fs, path string, points []cdf.Point) error {
	lines := make([]string, 0, len(points))
	for _, p := range points {
		lines = append(lines, fmt.Sprintf("%g %g", p.Key, p.Weight))
	}
	return writeLines(afs, path, lines)
}

// dumpBehaviorTable writes per-continent, per-behavior, and
// per-(behavior x continent) byte rollups and their share of global traffic.
func (s *DBSummary) dumpBehaviorTable(afs afero.Fs, dir string) error {
	global := s.GlobalTraffic()
	var lines []string

	lines = append(lines, "# behavior total_bytes valid_bytes shifted_bytes frac_of_global")
	for _, b := range temporal.AllBehaviors {
		var total, valid, shifted uint64
		for _, c := range perf.AllContinents {
			total += s.TotalBytes[b][c]
			valid += s.ValidBytes[b][c]
			shifted += s.ShiftedBytes[b][c]
		}
		lines = append(lines, fmt.Sprintf("%s %d %d %d %s", b, total, valid, shifted, fracString(total, global)))
	}

	lines = append(lines, "# continent total_bytes valid_bytes shifted_bytes frac_of_global")
	for _, c := range perf.AllContinents {
		var total, valid, shifted uint64
		for _, b := range temporal.AllBehaviors {
			total += s.TotalBytes[b][c]
			valid += s.ValidBytes[b][c]
			shifted += s.ShiftedBytes[b][c]
		}
		lines = append(lines, fmt.Sprintf("%s %d %d %d %s", c, total, valid, shifted, fracString(total, global)))
	}

	lines = append(lines, "# behavior continent total_bytes valid_bytes shifted_bytes frac_of_global")
	for _, b := range temporal.AllBehaviors {
		for _, c := range perf.AllContinents {
			total := s.TotalBytes[b][c]
			if total == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s %s %d %d %d %s",
				b, c, total, s.ValidBytes[b][c], s.ShiftedBytes[b][c], fracString(total, global)))
		}
	}

	return writeLines(afs, filepath.Join(dir, "temporal-behavior-table.txt"), lines)
}

func fracString(part, total uint64) string {
	if total == 0 {
		return "0.000000"
	}
	return fmt.Sprintf("%.6f", float64(part)/float64(total))
}

// dumpCrossTab writes opp-vs-relationship.txt (human-readable), .pickle, and
// .json, mirroring opportunity.rs::dump_opportunity_vs_relationship.
func (s *DBSummary) dumpCrossTab(afs afero.Fs, dir string) error {
	type row struct {
		Primary, Alternate                           perf.PeerType
		TotalShiftedBytes, LongerBytes, PrependedMoreBytes uint64
	}
	rows := make([]row, 0, len(s.crossTab))
	for pair, totals := range s.crossTab {
		rows = append(rows, row{pair.Primary, pair.Alternate, totals.TotalShiftedBytes, totals.LongerBytes, totals.PrependedMoreBytes})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Primary != rows[j].Primary {
			return rows[i].Primary < rows[j].Primary
		}
		return rows[i].Alternate < rows[j].Alternate
	})

	var textLines []string
	pickleTable := make(map[[2]uint8][3]string, len(rows))
	jsonTable := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		textLines = append(textLines, fmt.Sprintf("%s %s --- %d %d %d",
			r.Primary, r.Alternate, r.TotalShiftedBytes, r.LongerBytes, r.PrependedMoreBytes))
		key := [2]uint8{uint8(r.Primary), uint8(r.Alternate)}
		pickleTable[key] = [3]string{
			strconv.FormatUint(r.TotalShiftedBytes, 10),
			strconv.FormatUint(r.LongerBytes, 10),
			strconv.FormatUint(r.PrependedMoreBytes, 10),
		}
		jsonTable = append(jsonTable, map[string]any{
			"primary_peer_type":    r.Primary.String(),
			"alternate_peer_type":  r.Alternate.String(),
			"total_shifted_bytes":  r.TotalShiftedBytes,
			"longer_bytes":         r.LongerBytes,
			"prepended_more_bytes": r.PrependedMoreBytes,
		})
	}

	if err := writeLines(afs, filepath.Join(dir, "opp-vs-relationship.txt"), textLines); err != nil {
		return err
	}

	if err := dumpLimiter.Wait(context.Background()); err != nil {
		return fmt.Errorf("aggregate: rate limiter: %w", err)
	}
	pickleFile, err := afs.Create(filepath.Join(dir, "opp-vs-relationship.pickle"))
	if err != nil {
		return fmt.Errorf("aggregate: creating opp-vs-relationship.pickle: %w", err)
	}
	defer pickleFile.Close()
	if err := EncodePickle(pickleFile, pickleTable); err != nil {
		return fmt.Errorf("aggregate: encoding opp-vs-relationship.pickle: %w", err)
	}

	if err := dumpLimiter.Wait(context.Background()); err != nil {
		return fmt.Errorf("aggregate: rate limiter: %w", err)
	}
	jsonFile, err := afs.Create(filepath.Join(dir, "opp-vs-relationship.json"))
	if err != nil {
		return fmt.Errorf("aggregate: creating opp-vs-relationship.json: %w", err)
	}
	defer jsonFile.Close()
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(jsonFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonTable); err != nil {
		return fmt.Errorf("aggregate: encoding opp-vs-relationship.json: %w", err)
	}
	return nil
}

// dumpPathTimeseries writes one line per (PathId, time_bucket) bin for every
// requested PathId that survived into the report.
func (s *DBSummary) dumpPathTimeseries(afs afero.Fs, dir string, pathIds []*perf.PathId) error {
	var lines []string
	for _, pid := range pathIds {
		psum, ok := s.Paths[pid]
		if !ok {
			continue
		}
		times := append([]int64(nil), psum.Times()...)
		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
		for _, t := range times {
			bin := psum.Stats[t]
			lines = append(lines, fmt.Sprintf("%s %d %d %g %g %s %s %d %v",
				pid.BgpPrefix.ToString(), t, bin.Bytes, bin.DiffCI, bin.DiffCIHalfwidth,
				bin.PrimaryPeerType, bin.AlternatePeerType, bin.Bitmask, bin.IsShifted))
		}
	}
	return writeLines(afs, filepath.Join(dir, "pathid-timeseries-dump.txt"), lines)
}

func writeLines(afs afero.Fs, path string, lines []string) error {
	if err := dumpLimiter.Wait(context.Background()); err != nil {
		return fmt.Errorf("aggregate: rate limiter: %w", err)
	}
	file, err := afs.Create(path)
	if err != nil {
		return fmt.Errorf("aggregate: creating %s: %w", path, err)
	}
	defer file.Close()
	bw := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
