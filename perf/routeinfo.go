package perf

import (
	"fmt"
	"strconv"
)

// MaxTimeBinRoutes is the fixed number of route slots a TimeBin carries: one
// primary (slot 0) plus up to six alternates.
const MaxTimeBinRoutes = 7

// RouteInfo is one candidate route reported for a path in a single time
// bin: either the primary (ApmRouteNum == 1, always slot 0) or an alternate
// (ApmRouteNum 2..7, or 1 again for a slot-0 duplicate reported elsewhere).
type RouteInfo struct {
	ApmRouteNum                   uint8
	BgpAsPathLen                  uint8
	BgpAsPathLenPrependingRemoved uint8
	BgpAsPathPrepending           bool
	PeerType                      PeerType

	MinrttNumSamples uint32
	MinrttP50        int16
	MinrttP50CILB    int16
	MinrttP50CIUB    int16

	HdratioNumSamples      uint32
	HdratioAvg             float32
	HdratioNormalVar       float32
	HdratioP50             float32
	HdratioP50CILB         float32
	HdratioP50CIUB         float32
	HdratioAvgBootstrapped float32
	HdratioBootDiffCILB    float32
	HdratioBootDiffCIUB    float32

	PxNexthops uint64
}

// BgpAsPathPrepends is the explicit prepend count: how many AS-path hops
// the prepend-adjusted length drops relative to the raw length.
func (r *RouteInfo) BgpAsPathPrepends() uint8 {
	return r.BgpAsPathLen - r.BgpAsPathLenPrependingRemoved
}

// MinrttValid reports whether this route has enough MinRTT samples to be
// used by a MinRTT-based summarizer.
func (r *RouteInfo) MinrttValid() bool {
	return r.MinrttNumSamples >= MinSamples
}

// HdratioValid reports whether this route has enough HD-ratio samples to be
// used by an HD-ratio-based summarizer.
func (r *RouteInfo) HdratioValid() bool {
	return r.HdratioNumSamples >= MinSamples
}

// stringToBool reproduces the original implementation's truthiness test:
// membership in a fixed token set, which happens to include both "true" and
// "false" spellings. Reproduced verbatim rather than corrected.
func stringToBool(s string) bool {
	switch s {
	case "ok", "Ok", "OK", "true", "True", "false", "False", "0", "1":
		return true
	default:
		return false
	}
}

// RouteFields holds one route's raw r{i}_* column values, already sliced out
// of a record by the ingest package's header-driven column lookup.
type RouteFields struct {
	ApmRouteNum            string
	BgpAsPathLen           string
	BgpAsPathLenNoPrepend  string
	BgpAsPathPrepending    string
	PeerType               string
	PeerSubtype            string
	NumSamples             string
	MinrttP50              string
	MinrttP50CILB          string
	MinrttP50CIUB          string
	HdratioNumSamples      string
	HdratioAvg             string
	HdratioNormalVar       string
	HdratioP50             string
	HdratioP50CILB         string
	HdratioP50CIUB         string
	HdratioAvgBootstrapped string
	HdratioBootDiffCILB    string
	HdratioBootDiffCIUB    string
	PxNexthops             string
}

// NewRouteInfoFromFields builds a RouteInfo from the positional r{i}_* fields
// of one TSV record.
func NewRouteInfoFromFields(f RouteFields) (RouteInfo, error) {
	apmRouteNum, err := strconv.ParseUint(f.ApmRouteNum, 10, 8)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: apm_route_num: %v", ErrUntracked, err)
	}
	bgpAsPathLen, err := strconv.ParseUint(f.BgpAsPathLen, 10, 8)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: bgp_as_path_len: %v", ErrUntracked, err)
	}
	bgpAsPathLenNoPrepend, err := strconv.ParseUint(f.BgpAsPathLenNoPrepend, 10, 8)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: bgp_as_path_min_len_prepending_removed: %v", ErrUntracked, err)
	}
	peerType, err := NewPeerType(f.PeerType, f.PeerSubtype)
	if err != nil {
		return RouteInfo{}, err
	}
	minrttNumSamples, err := strconv.ParseUint(f.NumSamples, 10, 32)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: num_samples: %v", ErrUntracked, err)
	}
	minrttP50, err := strconv.ParseInt(f.MinrttP50, 10, 16)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: minrtt_ms_p50: %v", ErrUntracked, err)
	}
	minrttP50LB, err := strconv.ParseInt(f.MinrttP50CILB, 10, 16)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: minrtt_ms_p50_ci_lb: %v", ErrUntracked, err)
	}
	minrttP50UB, err := strconv.ParseInt(f.MinrttP50CIUB, 10, 16)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: minrtt_ms_p50_ci_ub: %v", ErrUntracked, err)
	}
	hdratioNumSamples, err := strconv.ParseUint(f.HdratioNumSamples, 10, 32)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: num_samples_with_hdratio: %v", ErrUntracked, err)
	}
	hdratioAvg, err := strconv.ParseFloat(f.HdratioAvg, 32)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: hdratio_avg: %v", ErrUntracked, err)
	}
	hdratioNormalVar, err := strconv.ParseFloat(f.HdratioNormalVar, 32)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: hdratio_normal_var: %v", ErrUntracked, err)
	}
	hdratioP50, err := strconv.ParseFloat(f.HdratioP50, 32)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: hdratio_p50: %v", ErrUntracked, err)
	}
	hdratioP50LB, err := strconv.ParseFloat(f.HdratioP50CILB, 32)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: hdratio_p50_ci_lb: %v", ErrUntracked, err)
	}
	hdratioP50UB, err := strconv.ParseFloat(f.HdratioP50CIUB, 32)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: hdratio_p50_ci_ub: %v", ErrUntracked, err)
	}
	hdratioBoot, err := strconv.ParseFloat(f.HdratioAvgBootstrapped, 32)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: hdratio_avg_bootstrapped: %v", ErrUntracked, err)
	}
	bootDiffLB, err := strconv.ParseFloat(f.HdratioBootDiffCILB, 32)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: r0_diff_hdratio_avg_bootstrapped_ci_lb: %v", ErrUntracked, err)
	}
	bootDiffUB, err := strconv.ParseFloat(f.HdratioBootDiffCIUB, 32)
	if err != nil {
		return RouteInfo{}, fmt.Errorf("%w: r0_diff_hdratio_avg_bootstrapped_ci_ub: %v", ErrUntracked, err)
	}
	if bootDiffLB > bootDiffUB {
		return RouteInfo{}, fmt.Errorf("%w: lb=%v ub=%v", ErrHdRatioBootstrapDiffCIBoundsMismatch, bootDiffLB, bootDiffUB)
	}

	return RouteInfo{
		ApmRouteNum:                   uint8(apmRouteNum),
		BgpAsPathLen:                  uint8(bgpAsPathLen),
		BgpAsPathLenPrependingRemoved: uint8(bgpAsPathLenNoPrepend),
		BgpAsPathPrepending:           stringToBool(f.BgpAsPathPrepending),
		PeerType:                      peerType,
		MinrttNumSamples:              uint32(minrttNumSamples),
		MinrttP50:                     int16(minrttP50),
		MinrttP50CILB:                 int16(minrttP50LB),
		MinrttP50CIUB:                 int16(minrttP50UB),
		HdratioNumSamples:             uint32(hdratioNumSamples),
		HdratioAvg:                    float32(hdratioAvg),
		HdratioNormalVar:              float32(hdratioNormalVar),
		HdratioP50:                    float32(hdratioP50),
		HdratioP50CILB:                float32(hdratioP50LB),
		HdratioP50CIUB:                float32(hdratioP50UB),
		HdratioAvgBootstrapped:        float32(hdratioBoot),
		HdratioBootDiffCILB:           float32(bootDiffLB),
		HdratioBootDiffCIUB:           float32(bootDiffUB),
		PxNexthops:                    hashPxNexthops(f.PxNexthops),
	}, nil
}

// hashPxNexthops turns the raw px_nexthops token into a stable uint64 key,
// mirroring the original implementation's use of a generic string hash: the
// exact value only matters for equality grouping, never for display.
func hashPxNexthops(s string) uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211 // FNV-1a prime
	}
	return h
}
