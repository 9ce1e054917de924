// Package cdf builds weighted empirical CDFs over float32-keyed samples,
// grounded on original_source/rust/src/cdf.rs's build_cdf: sort, coalesce
// equal keys by summing weights, then walk the cumulative weight and emit a
// point whenever it crosses the next multiple of step.
package cdf

import "sort"

// Point is one (key, cumulative fraction) sample of a built CDF.
type Point struct {
	Key    float32
	Weight float64
}

// DefaultStep is the cumulative-weight granularity used when callers don't
// need a different resolution.
const DefaultStep = 0.001

// Build sorts data by Key, coalesces equal keys by summing Weight, and
// returns the CDF sampled at crossings of each multiple of step. Empty input
// returns the pair {(0, 0.0), (0, 1.0)}, matching the Rust source's
// Default::default() fallback (float32's zero value).
func Build(data []Point, step float32) []Point {
	if len(data) == 0 {
		return []Point{{Key: 0, Weight: 0.0}, {Key: 0, Weight: 1.0}}
	}
	if step <= 0 {
		step = DefaultStep
	}

	sorted := make([]Point, len(data))
	copy(sorted, data)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	type coalesced struct {
		key    float32
		weight float64
	}
	var merged []coalesced
	curKey := sorted[0].Key
	var curWeight float64
	for _, p := range sorted {
		if p.Key != curKey {
			merged = append(merged, coalesced{curKey, curWeight})
			curKey = p.Key
			curWeight = 0
		}
		curWeight += p.Weight
	}
	merged = append(merged, coalesced{curKey, curWeight})

	var total float64
	for _, m := range merged {
		total += m.weight
	}
	if total == 0 {
		return []Point{{Key: sorted[0].Key, Weight: 0.0}, {Key: sorted[0].Key, Weight: 1.0}}
	}

	result := []Point{{Key: merged[0].key, Weight: 0.0}}
	nextHeight := float64(step)
	var cumulative float64
	for _, m := range merged {
		cumulative += m.weight
		h := cumulative / total
		if h >= nextHeight {
			result = append(result, Point{Key: m.key, Weight: h})
			steps := float64(int(h/float64(step))) + 1
			nextHeight = steps * float64(step)
		}
	}
	if last := result[len(result)-1]; last.Weight < 1.0 {
		result = append(result, Point{Key: merged[len(merged)-1].key, Weight: 1.0})
	}
	return result
}
