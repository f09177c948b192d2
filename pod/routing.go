package pod

import (
	"github.com/flowpod/flowpod/proto"
)

type RoutingKind uint8

const (
	HeadRouting RoutingKind = iota + 1
	TailRouting
)

func (k RoutingKind) String() string {
	if k == HeadRouting {
		return "head"
	}
	return "tail"
}

// RoutingUnit is the fan-out/fan-in stage inserted when a group has
// more than one member. It owns one endpoint and the mapping from its
// single external port to the endpoints of the units it fans to/from.
// A singleton group gets no routing unit at all; the sole member's
// endpoint is the group's endpoint.
type RoutingUnit struct {
	kind     RoutingKind
	endpoint proto.Endpoint
	members  []proto.Endpoint
}

func newRoutingUnit(kind RoutingKind, endpoint proto.Endpoint, members []proto.Endpoint) *RoutingUnit {
	return &RoutingUnit{kind: kind, endpoint: endpoint, members: members}
}

func (r *RoutingUnit) Kind() RoutingKind        { return r.kind }
func (r *RoutingUnit) Endpoint() proto.Endpoint { return r.endpoint }

// Members returns the endpoints this unit fans to (head) or collects
// from (tail).
func (r *RoutingUnit) Members() []proto.Endpoint {
	out := make([]proto.Endpoint, len(r.members))
	copy(out, r.members)
	return out
}
