package pod

import (
	"github.com/flowpod/flowpod/proto"
)

// Wiring is the full endpoint assignment of one pod, produced by the
// endpoint allocator before any worker exists. The external endpoint is
// stable for the life of the pod; internal endpoints are only reused by
// a replica's replacement during a rolling update.
type Wiring struct {
	External proto.Endpoint

	// Head/Tail are set iff the pod has more than one replica.
	Head *proto.Endpoint
	Tail *proto.Endpoint

	Replicas []ReplicaWiring
}

// ReplicaWiring assigns endpoints inside one replica. Head/Tail are set
// iff the replica runs more than one shard.
type ReplicaWiring struct {
	External proto.Endpoint

	Head *proto.Endpoint
	Tail *proto.Endpoint

	Workers []proto.Endpoint
}
