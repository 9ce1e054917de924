package perf

import "fmt"

// PeerType classifies the BGP relationship of a route's next-hop peer.
// Ordinal values define a strict total order: Transit > PeeringPaid >
// PeeringPublic > PeeringPrivate.
type PeerType uint8

const (
	PeeringPrivate PeerType = iota
	PeeringPublic
	PeeringPaid
	Transit
	PeerTypeUninitialized
)

func (p PeerType) String() string {
	switch p {
	case PeeringPrivate:
		return "peering_private"
	case PeeringPublic:
		return "peering_public"
	case PeeringPaid:
		return "peering_paid"
	case Transit:
		return "transit"
	default:
		return "uninitialized"
	}
}

// NewPeerType maps the raw (peer_type, peer_subtype) telemetry fields onto a
// PeerType, following the fixed table in the external interface: every
// combination not listed here is an UnknownPeeringRelationship parse error.
func NewPeerType(peerType, peerSubtype string) (PeerType, error) {
	switch {
	case peerType == "peering" && peerSubtype == "mixed":
		return PeeringPrivate, nil
	case peerType == "peering" && peerSubtype == "private":
		return PeeringPrivate, nil
	case peerType == "peering" && peerSubtype == "public":
		return PeeringPublic, nil
	case peerType == "route_server" && peerSubtype == "mixed":
		return PeeringPublic, nil
	case peerType == "peering" && peerSubtype == "paid":
		return PeeringPaid, nil
	case peerType == "transit" && peerSubtype == "":
		return Transit, nil
	default:
		return PeerTypeUninitialized, fmt.Errorf("%w: peer_type=%q peer_subtype=%q", ErrUnknownPeeringRelationship, peerType, peerSubtype)
	}
}
