package perf

// TimeBin is one measurement interval for a path: a byte count and up to
// MaxTimeBinRoutes candidate routes, slot 0 always being the primary.
type TimeBin struct {
	TimeBucket    int64
	BytesAckedSum uint64
	Routes        [MaxTimeBinRoutes]*RouteInfo
}

// GetPrimaryRoute returns the slot-0 route iff present and valid under pred.
func (t *TimeBin) GetPrimaryRoute(pred func(*RouteInfo) bool) *RouteInfo {
	r := t.Routes[0]
	if r == nil || !pred(r) {
		return nil
	}
	return r
}

// GetBestAlternate scans slots 1..6, skipping absent routes, routes that are
// a slot-0 duplicate (ApmRouteNum == 1), and routes invalid under pred, and
// returns the one compare ranks highest. Ties keep the first one found.
func (t *TimeBin) GetBestAlternate(compare func(a, b *RouteInfo) int, pred func(*RouteInfo) bool) *RouteInfo {
	var best *RouteInfo
	for i := 1; i < MaxTimeBinRoutes; i++ {
		r := t.Routes[i]
		if r == nil || r.ApmRouteNum == 1 || !pred(r) {
			continue
		}
		if best == nil || compare(r, best) > 0 {
			best = r
		}
	}
	return best
}

// GetFirstAlternate returns the first non-slot-0 route (by ascending slot
// index) satisfying pred. Unlike GetBestAlternate, slot-0 duplicates
// (ApmRouteNum == 1) are eligible here: relationship summarizers define "the"
// alternate by role, not by metric.
func (t *TimeBin) GetFirstAlternate(pred func(*RouteInfo) bool) *RouteInfo {
	for i := 1; i < MaxTimeBinRoutes; i++ {
		r := t.Routes[i]
		if r == nil || !pred(r) {
			continue
		}
		return r
	}
	return nil
}

// MinrttValidPred and HdratioValidPred bind the metric validity predicates
// for use with GetPrimaryRoute/GetBestAlternate/GetFirstAlternate.
func MinrttValidPred(r *RouteInfo) bool { return r.MinrttValid() }
func HdratioValidPred(r *RouteInfo) bool { return r.HdratioValid() }
