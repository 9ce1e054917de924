// Package ingest reads telemetry TSV files into a perf.DB.
package ingest

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	zerolog "github.com/cunha/fbperf/logger"
	"github.com/cunha/fbperf/perf"
)

// initialBufferSize and maxBufferSize follow importer/parser.go's scanner
// buffer sizing: most lines are well under 64KiB, but a record with many
// populated route slots can run long.
const (
	initialBufferSize = 64 * 1024
	maxBufferSize     = 1024 * 1024
)

const lineErrorLimit = 25

// routeColumnSuffixes lists the per-route column suffixes in r{i}_* order,
// matching perf.RouteFields field-for-field.
var routeColumnSuffixes = []string{
	"apm_route_num",
	"bgp_as_path_len",
	"bgp_as_path_min_len_prepending_removed",
	"bgp_as_path_prepending",
	"peer_type",
	"peer_subtype",
	"num_samples",
	"minrtt_ms_p50",
	"minrtt_ms_p50_ci_lb",
	"minrtt_ms_p50_ci_ub",
	"num_samples_with_hdratio",
	"hdratio_avg",
	"hdratio_normal_var",
	"hdratio_p50",
	"hdratio_p50_ci_lb",
	"hdratio_p50_ci_ub",
	"hdratio_avg_bootstrapped",
	"r0_diff_hdratio_avg_bootstrapped_ci_lb",
	"r0_diff_hdratio_avg_bootstrapped_ci_ub",
	"px_nexthops",
}

const (
	colTimeBucket      = "time_bucket"
	colBytesAcked      = "bytes_acked"
	colVipMetro        = "vip_metro"
	colBgpIPPrefix     = "bgp_ip_prefix"
	colClientContinent = "client_continent"
	colClientCountry   = "client_country"
)

// header maps a column name onto its position in a tab-split record.
type header struct {
	index map[string]int
}

func parseHeader(line string) header {
	fields := strings.Split(line, "\t")
	idx := make(map[string]int, len(fields))
	for i, name := range fields {
		idx[strings.TrimPrefix(name, "#")] = i
	}
	return header{index: idx}
}

func (h header) get(fields []string, name string) string {
	i, ok := h.index[name]
	if !ok || i >= len(fields) {
		return ""
	}
	return fields[i]
}

// LoadFile parses one gzip or plain TSV telemetry file into db, logging and
// returning early on unrecoverable I/O errors. Per-record parse errors are
// counted in db.ErrorCounts and the record is dropped; the file continues.
func LoadFile(afs afero.Fs, path string, db *perf.DB) error {
	logger := zerolog.GetLogger()

	empty, err := afero.IsEmpty(afs, path)
	if err != nil {
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if empty {
		logger.Warn().Str("path", path).Msg("skipping empty input file")
		return nil
	}

	file, err := afs.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	var scanner *bufio.Scanner
	if strings.HasSuffix(path, ".gz") {
		gzr, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("opening gzip reader for %s: %w", path, err)
		}
		defer gzr.Close()
		scanner = bufio.NewScanner(gzr)
	} else {
		scanner = bufio.NewScanner(file)
	}
	scanner.Buffer(make([]byte, 0, initialBufferSize), maxBufferSize)

	var h header
	haveHeader := false
	lineErrors := 0

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if !haveHeader {
			h = parseHeader(line)
			haveHeader = true
			continue
		}

		if err := loadRecord(h, line, db); err != nil {
			kind := perf.ClassifyParseError(err)
			db.RecordError(kind)
			logger.Debug().Str("path", path).Err(err).Msg("dropping malformed record")
			lineErrors++
			if lineErrors > lineErrorLimit {
				logger.Warn().Str("path", path).Int("errors", lineErrors).Msg("too many malformed records, file may be corrupted")
				break
			}
			continue
		}
		db.Rows++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning %s: %w", path, err)
	}
	return nil
}

func loadRecord(h header, line string, db *perf.DB) error {
	fields := strings.Split(line, "\t")

	pid, err := perf.PathIdFromRecord(
		h.get(fields, colVipMetro),
		h.get(fields, colBgpIPPrefix),
		h.get(fields, colClientContinent),
		h.get(fields, colClientCountry),
	)
	if err != nil {
		return err
	}

	timeBucket, err := strconv.ParseInt(h.get(fields, colTimeBucket), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: time_bucket: %v", perf.ErrUntracked, err)
	}
	bytesAcked, err := strconv.ParseUint(h.get(fields, colBytesAcked), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bytes_acked: %v", perf.ErrUntracked, err)
	}

	bin := &perf.TimeBin{TimeBucket: timeBucket, BytesAckedSum: bytesAcked}
	for i := 0; i < perf.MaxTimeBinRoutes; i++ {
		rf, present := routeFieldsForSlot(h, fields, i)
		if !present {
			continue
		}
		route, err := perf.NewRouteInfoFromFields(rf)
		if err != nil {
			return err
		}
		bin.Routes[i] = &route
	}

	_, err = db.Insert(pid, bin)
	return err
}

// routeFieldsForSlot extracts slot i's r{i}_* columns. A slot whose
// apm_route_num column is empty is reported absent: not every bin populates
// all seven slots.
func routeFieldsForSlot(h header, fields []string, slot int) (perf.RouteFields, bool) {
	prefix := fmt.Sprintf("r%d_", slot)
	col := func(suffix string) string { return h.get(fields, prefix+suffix) }

	apmRouteNum := col(routeColumnSuffixes[0])
	if apmRouteNum == "" {
		return perf.RouteFields{}, false
	}
	return perf.RouteFields{
		ApmRouteNum:            apmRouteNum,
		BgpAsPathLen:           col(routeColumnSuffixes[1]),
		BgpAsPathLenNoPrepend:  col(routeColumnSuffixes[2]),
		BgpAsPathPrepending:    col(routeColumnSuffixes[3]),
		PeerType:               col(routeColumnSuffixes[4]),
		PeerSubtype:            col(routeColumnSuffixes[5]),
		NumSamples:             col(routeColumnSuffixes[6]),
		MinrttP50:              col(routeColumnSuffixes[7]),
		MinrttP50CILB:          col(routeColumnSuffixes[8]),
		MinrttP50CIUB:          col(routeColumnSuffixes[9]),
		HdratioNumSamples:      col(routeColumnSuffixes[10]),
		HdratioAvg:             col(routeColumnSuffixes[11]),
		HdratioNormalVar:       col(routeColumnSuffixes[12]),
		HdratioP50:             col(routeColumnSuffixes[13]),
		HdratioP50CILB:         col(routeColumnSuffixes[14]),
		HdratioP50CIUB:         col(routeColumnSuffixes[15]),
		HdratioAvgBootstrapped: col(routeColumnSuffixes[16]),
		HdratioBootDiffCILB:    col(routeColumnSuffixes[17]),
		HdratioBootDiffCIUB:    col(routeColumnSuffixes[18]),
		PxNexthops:             col(routeColumnSuffixes[19]),
	}, true
}
