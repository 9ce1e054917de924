package prefixagg

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/netip"
	"strconv"

	"github.com/cunha/fbperf/logger"
)

// RouteRecord is one input row: a (time, bgp_prefix, agg_prefix) performance
// sample. Grounded on original_source/perfagg/src/inout.rs's RouteInfo.
type RouteRecord struct {
	Time      int64
	BgpPrefix netip.Prefix
	AggPrefix netip.Prefix
	OriginASN uint32
	Lat50     int32
	HdRatio   float64
}

// PrefixData accumulates every RouteRecord observed for one agg_prefix,
// grounded on main.rs's PrefixData.
type PrefixData struct {
	Prefix      netip.Prefix
	BgpPrefix   netip.Prefix
	OriginASN   uint32
	RecordCount uint64

	byTime map[int64]RouteRecord
}

func newPrefixData(first RouteRecord) *PrefixData {
	return &PrefixData{
		Prefix:    first.AggPrefix,
		BgpPrefix: first.BgpPrefix,
		OriginASN: first.OriginASN,
		byTime:    make(map[int64]RouteRecord),
	}
}

// IsDeaggregated reports whether this prefix's BGP-observed prefix is
// broader than its agg_prefix bucket: a larger announcement split into
// several more specific performance-tracking buckets.
func (d *PrefixData) IsDeaggregated() bool {
	return d.BgpPrefix.Bits() < d.Prefix.Bits() && d.BgpPrefix.Contains(d.Prefix.Addr())
}

// equivalentPerformance reports whether a and b's overlapping timestamps
// never differ by more than the given thresholds; empty overlap counts as
// equivalent, matching main.rs's loop-and-return-true-by-default shape.
func equivalentPerformance(a, b *PrefixData, maxLat50Diff int32, maxHdRatioDiff float64) bool {
	for t, r1 := range a.byTime {
		r2, ok := b.byTime[t]
		if !ok {
			continue
		}
		if abs32(r1.Lat50-r2.Lat50) > maxLat50Diff {
			return false
		}
		if abs64(r1.HdRatio-r2.HdRatio) > maxHdRatioDiff {
			return false
		}
	}
	return true
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ComparePrefixes decides whether pfx1 and pfx2 may be merged, grounded on
// main.rs::compare_prefixes: when PrefixData is absent on one side, the
// result is the present side's IsDeaggregated (parent candidates above the CSV's own
// max-routable prefix length never appear in prefix2data), differing origin
// ASNs always refuse, and otherwise the comparison is purely performance
// equivalence.
func ComparePrefixes(pfx1, pfx2 netip.Prefix, prefix2data map[netip.Prefix]*PrefixData, maxLat50Diff int32, maxHdRatioDiff float64) bool {
	data1, ok1 := prefix2data[pfx1]
	data2, ok2 := prefix2data[pfx2]
	switch {
	case !ok1 && !ok2:
		return false
	case ok1 && !ok2:
		return data1.IsDeaggregated()
	case !ok1 && ok2:
		return data2.IsDeaggregated()
	default:
		if data1.OriginASN != data2.OriginASN {
			return false
		}
		return equivalentPerformance(data1, data2, maxLat50Diff, maxHdRatioDiff)
	}
}

// MaxRoutablePrefixLength is the longest prefix length the aggregator will
// ever propose merging down to: /24 for IPv4, /48 for IPv6.
func MaxRoutablePrefixLength(p netip.Prefix) int {
	if p.Addr().Is4() {
		return 24
	}
	return 48
}

var csvHeader = []string{"time", "bgp_prefix", "agg_prefix", "origin_asn", "min_rtt_p50", "hdratio"}

// LoadInput reads the performance CSV and groups records by agg_prefix.
// Grounded on inout.rs::load_input.
func LoadInput(r io.Reader) (map[netip.Prefix]*PrefixData, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("prefixagg: reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, want := range csvHeader {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("prefixagg: missing required column %q", want)
		}
	}

	prefix2data := make(map[netip.Prefix]*PrefixData)
	row := 0
	for {
		row++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("prefixagg: row %d: %w", row, err)
		}
		rec, err := parseRow(record, cols)
		if err != nil {
			return nil, fmt.Errorf("prefixagg: row %d: %w", row, err)
		}
		data, ok := prefix2data[rec.AggPrefix]
		if !ok {
			data = newPrefixData(rec)
			prefix2data[rec.AggPrefix] = data
		}
		if _, dup := data.byTime[rec.Time]; dup {
			return nil, fmt.Errorf("prefixagg: row %d: duplicate time %d for prefix %s", row, rec.Time, rec.AggPrefix)
		}
		data.byTime[rec.Time] = rec
		data.RecordCount++
	}
	return prefix2data, nil
}

func parseRow(record []string, cols map[string]int) (RouteRecord, error) {
	var rec RouteRecord
	t, err := strconv.ParseInt(record[cols["time"]], 10, 64)
	if err != nil {
		return rec, fmt.Errorf("time: %w", err)
	}
	bgp, err := netip.ParsePrefix(record[cols["bgp_prefix"]])
	if err != nil {
		return rec, fmt.Errorf("bgp_prefix: %w", err)
	}
	agg, err := netip.ParsePrefix(record[cols["agg_prefix"]])
	if err != nil {
		return rec, fmt.Errorf("agg_prefix: %w", err)
	}
	asn, err := strconv.ParseUint(record[cols["origin_asn"]], 10, 32)
	if err != nil {
		return rec, fmt.Errorf("origin_asn: %w", err)
	}
	lat, err := strconv.ParseInt(record[cols["min_rtt_p50"]], 10, 32)
	if err != nil {
		return rec, fmt.Errorf("min_rtt_p50: %w", err)
	}
	hd, err := strconv.ParseFloat(record[cols["hdratio"]], 64)
	if err != nil {
		return rec, fmt.Errorf("hdratio: %w", err)
	}
	rec.Time = t
	rec.BgpPrefix = bgp.Masked()
	rec.AggPrefix = agg.Masked()
	rec.OriginASN = uint32(asn)
	rec.Lat50 = int32(lat)
	rec.HdRatio = hd
	return rec, nil
}

// DumpOutput writes one row per aggregated prefix and logs a traffic-share
// summary, grounded on inout.rs::dump_output. Record counts stand in for the
// original's traffic-byte totals, since this CSV schema carries no byte
// column for either source revision to sum (see DESIGN.md).
func DumpOutput(w io.Writer, prefix2data map[netip.Prefix]*PrefixData, aggregated map[netip.Prefix]struct{}) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"prefix", "bgp_prefix", "prefix_records", "bgp_prefix_records"}); err != nil {
		return err
	}

	var totalRecords, keptRecords, mergedRecords, deaggRecords uint64
	var kept, merged, deagg int

	for prefix := range aggregated {
		data, ok := prefix2data[prefix]
		if !ok {
			continue
		}
		bgpData := prefix2data[data.BgpPrefix]
		bgpRecords := uint64(0)
		if bgpData != nil {
			bgpRecords = bgpData.RecordCount
		}
		totalRecords += data.RecordCount
		switch {
		case data.Prefix != data.BgpPrefix && data.Prefix.Contains(data.BgpPrefix.Addr()):
			mergedRecords += data.RecordCount
			merged++
		case data.Prefix != data.BgpPrefix:
			deaggRecords += data.RecordCount
			deagg++
		default:
			keptRecords += data.RecordCount
			kept++
		}
		if err := writer.Write([]string{
			data.Prefix.String(), data.BgpPrefix.String(),
			strconv.FormatUint(data.RecordCount, 10), strconv.FormatUint(bgpRecords, 10),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	log := logger.GetLogger()
	log.Info().
		Int("kept", kept).Int("merged", merged).Int("deagg", deagg).
		Uint64("records_total", totalRecords).
		Float64("records_kept_frac", fraction(keptRecords, totalRecords)).
		Float64("records_merged_frac", fraction(mergedRecords, totalRecords)).
		Float64("records_deagg_frac", fraction(deaggRecords, totalRecords)).
		Msg("prefix aggregation summary")
	return nil
}

func fraction(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
