// Package prefixagg coalesces sibling IP prefixes under a caller-supplied
// equivalence predicate, and separately reduces a multi-length prefix set to
// its non-covered members. Grounded on
// original_source/perfagg/src/aggregation.rs's aggregate_prefixes/
// noncovered_prefixes, ported from the ipnet/treebitmap crates to net/netip
// and github.com/gaissmai/bart.
package prefixagg

import (
	"net/netip"
	"sort"

	"github.com/gaissmai/bart"
)

// CanAggregate decides whether two sibling prefixes (same parent, same
// length) may be merged into that parent.
type CanAggregate func(a, b netip.Prefix) bool

// supernet returns p's immediate parent: the same address with one fewer
// mask bit, renormalized. Panics if p.Bits() is 0, since the root has no
// parent; callers only call this after checking Bits() > 0.
func supernet(p netip.Prefix) netip.Prefix {
	return netip.PrefixFrom(p.Addr(), p.Bits()-1).Masked()
}

// flipBit flips bit index bitPos (0-indexed from the most significant bit)
// of addr and returns the result. addr's family is preserved.
func flipBit(addr netip.Addr, bitPos int) netip.Addr {
	byteIdx, bitIdx := bitPos/8, 7-bitPos%8
	if addr.Is4() {
		b := addr.As4()
		b[byteIdx] ^= 1 << bitIdx
		return netip.AddrFrom4(b)
	}
	b := addr.As16()
	b[byteIdx] ^= 1 << bitIdx
	return netip.AddrFrom16(b)
}

// sibling returns the other child of p's parent: the prefix of the same
// length as p that, together with p, exactly covers their shared parent.
func sibling(p netip.Prefix) netip.Prefix {
	flipped := flipBit(p.Addr(), p.Bits()-1)
	return netip.PrefixFrom(flipped, p.Bits())
}

// AggregatePrefixes coalesces start into the coarsest set of prefixes such
// that no merge would violate canAggregate. Mirrors
// aggregation.rs::aggregate_prefixes's round-based algorithm: at each round,
// every candidate prefix is compared against its sibling; a merge proposes
// the parent for the next round, a refusal keeps both prefixes and marks the
// parent (and every ancestor above it) as a permanent stop marker, so a
// later round can never re-propose a merge that crosses a previously refused
// boundary.
func AggregatePrefixes(start map[netip.Prefix]struct{}, canAggregate CanAggregate) map[netip.Prefix]struct{} {
	aggregated := make(map[netip.Prefix]struct{})
	aggregatedSupernets := make(map[netip.Prefix]struct{})
	nextAggregatedSupernets := make(map[netip.Prefix]struct{})
	nextPrefixes := make(map[netip.Prefix]struct{})

	prefixes := make(map[netip.Prefix]struct{}, len(start))
	for p := range start {
		prefixes[p.Masked()] = struct{}{}
	}

	for len(prefixes) > 0 {
		for len(prefixes) > 0 {
			var prefix netip.Prefix
			for p := range prefixes {
				prefix = p
				break
			}
			delete(prefixes, prefix)

			if prefix.Bits() == 0 {
				aggregated[prefix] = struct{}{}
				continue
			}
			parent := supernet(prefix)
			sib := sibling(prefix)

			switch {
			case contains(aggregatedSupernets, sib):
				// sib's range was already ruled covered by a previous
				// round's refusal: this prefix can't merge past it either.
				aggregated[prefix] = struct{}{}
				nextAggregatedSupernets[parent] = struct{}{}
			case canAggregate(prefix, sib):
				nextPrefixes[parent] = struct{}{}
			default:
				aggregated[prefix] = struct{}{}
				nextAggregatedSupernets[parent] = struct{}{}
				if contains(prefixes, sib) {
					delete(prefixes, sib)
					aggregated[sib] = struct{}{}
				}
			}
		}
		for p := range aggregatedSupernets {
			if p.Bits() > 0 {
				nextAggregatedSupernets[supernet(p)] = struct{}{}
			}
		}
		aggregatedSupernets = nextAggregatedSupernets
		prefixes = nextPrefixes
		nextAggregatedSupernets = make(map[netip.Prefix]struct{})
		nextPrefixes = make(map[netip.Prefix]struct{})
	}
	return aggregated
}

func contains(set map[netip.Prefix]struct{}, p netip.Prefix) bool {
	_, ok := set[p]
	return ok
}

// NoncoveredPrefixes reduces prefixes to the most specific members of the
// set, those that contain no other member, regardless of input order or
// relative mask length. Grounded on
// aggregation.rs::noncovered_prefixes's longest-prefix-match trie walk: a
// single bart.Table handles both IPv4 and IPv6 natively (the original needed
// two treebitmap tries, one per address family), so this port uses one.
func NoncoveredPrefixes(prefixes []netip.Prefix) []netip.Prefix {
	var tbl bart.Table[bool]
	kept := make(map[netip.Prefix]struct{})

	// Visiting broader prefixes first means every member that covers p is
	// already in the table when p is looked up.
	sorted := append([]netip.Prefix(nil), prefixes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Bits() < sorted[j].Bits() })

	for _, raw := range sorted {
		p := raw.Masked()
		lpm, _, ok := tbl.LookupPrefix(p)
		if !ok {
			tbl.Insert(p, true)
			kept[p] = struct{}{}
			continue
		}
		// The incoming prefix is at least as specific as the covering
		// entry: it supersedes it.
		tbl.Delete(lpm)
		delete(kept, lpm)
		tbl.Insert(p, true)
		kept[p] = struct{}{}
	}

	out := make([]netip.Prefix, 0, len(kept))
	for p := range kept {
		out = append(out, p)
	}
	return out
}
