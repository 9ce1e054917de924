package perf

import (
	"fmt"
	"net"

	"github.com/cunha/fbperf/util"
)

// PathId is the grain of analysis: an ingress metro, a BGP prefix, and the
// client's continent/country. Equality and hashing use all four fields.
// PathIds are immutable after creation and shared by pointer: the DB owns a
// canonical pool (pathIdPool) and every other structure (DBSummary maps,
// summarizer baseline maps) holds the same *PathId, never a copy. Go's
// garbage collector substitutes for the reference-counted handles a non-GC
// implementation would need.
type PathId struct {
	VipMetro        string
	BgpPrefix       util.Subnet
	ClientContinent Continent
	ClientCountry   string
}

// key is the comparable value used to dedupe PathIds in the canonical pool.
// net.IPNet is not comparable with ==, so the key flattens the prefix to its
// CIDR string form.
type pathIdKey struct {
	vipMetro        string
	bgpPrefix       string
	clientContinent Continent
	clientCountry   string
}

func (p *PathId) key() pathIdKey {
	return pathIdKey{
		vipMetro:        p.VipMetro,
		bgpPrefix:       p.BgpPrefix.ToString(),
		clientContinent: p.ClientContinent,
		clientCountry:   p.ClientCountry,
	}
}

// pathIdPool interns PathId values so that every reference to "the same"
// path shares one *PathId, matching §9's shared-handle design note.
type pathIdPool struct {
	idx map[pathIdKey]*PathId
}

func newPathIdPool() *pathIdPool {
	return &pathIdPool{idx: make(map[pathIdKey]*PathId)}
}

// intern returns the canonical *PathId for the given value, allocating it on
// first sight.
func (pool *pathIdPool) intern(p PathId) *PathId {
	k := p.key()
	if existing, ok := pool.idx[k]; ok {
		return existing
	}
	canonical := p
	pool.idx[k] = &canonical
	return &canonical
}

// PathIdFromRecord builds a PathId from the raw telemetry fields, applying
// the parse-error rules in the external interface: a NULL vip_metro or
// client_country is a dedicated error kind rather than Untracked, since the
// original implementation's producers use the literal string "NULL" to mark
// unpopulated dimensions.
func PathIdFromRecord(vipMetro, bgpPrefix, clientContinent, clientCountry string) (PathId, error) {
	if vipMetro == "NULL" {
		return PathId{}, ErrVipMetroIsNull
	}
	if clientCountry == "NULL" {
		return PathId{}, ErrClientCountryIsNull
	}
	subnet, err := util.ParseSubnet(bgpPrefix)
	if err != nil {
		return PathId{}, fmt.Errorf("%w: %v", ErrAddrParse, err)
	}
	return PathId{
		VipMetro:        vipMetro,
		BgpPrefix:       subnet,
		ClientContinent: ParseContinent(clientContinent),
		ClientCountry:   clientCountry,
	}, nil
}

// subnetContains reports whether net b's network address lies inside net a;
// b's mask is not compared.
func subnetContains(a, b *net.IPNet) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Contains(b.IP)
}
