package flow

import (
	"fmt"

	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/pod"
	"github.com/flowpod/flowpod/proto"
)

// allocator hands out ports deterministically: fresh ports come from a
// monotonic counter, overrides are claimed explicitly. The same spec
// and overrides always produce the same wiring.
type allocator struct {
	next uint32
	used map[uint32]struct{}
}

func newAllocator(base uint32) *allocator {
	if base == 0 {
		base = proto.DefaultBasePort
	}
	return &allocator{next: base, used: make(map[uint32]struct{})}
}

func (a *allocator) fresh() uint32 {
	for {
		p := a.next
		a.next++
		if _, taken := a.used[p]; taken {
			continue
		}
		a.used[p] = struct{}{}
		return p
	}
}

func (a *allocator) claim(p uint32) error {
	if _, taken := a.used[p]; taken {
		return fmt.Errorf("%w: port %d", apierrors.ErrPortConflict, p)
	}
	a.used[p] = struct{}{}
	return nil
}

// wire assigns every endpoint of the pipeline: the gateway's, each
// pod's external pair, and all group-internal ports. Adjacent units end
// up chained (unit[i].port_out == unit[i+1].port_in) including the
// gateway at both ends.
func wire(spec *proto.PipelineSpec) (gateway proto.Endpoint, wirings []pod.Wiring, err error) {
	alloc := newAllocator(spec.BasePort)

	// gateway out feeds the first stage
	var prevOut uint32
	if first := spec.Stages[0]; first.PortIn != 0 {
		if err := alloc.claim(first.PortIn); err != nil {
			return gateway, nil, err
		}
		prevOut = first.PortIn
	} else {
		prevOut = alloc.fresh()
	}
	gateway.PortOut = prevOut

	wirings = make([]pod.Wiring, 0, len(spec.Stages))
	for i := range spec.Stages {
		stage := &spec.Stages[i]
		in := prevOut
		if stage.PortIn != 0 && stage.PortIn != in {
			return gateway, nil, fmt.Errorf("%w: stage %s port_in %d, upstream port_out %d",
				apierrors.ErrWiring, stage.Name, stage.PortIn, in)
		}

		var out uint32
		switch {
		case stage.PortOut != 0:
			if err := alloc.claim(stage.PortOut); err != nil {
				return gateway, nil, err
			}
			out = stage.PortOut
		case i+1 < len(spec.Stages) && spec.Stages[i+1].PortIn != 0:
			// bind to the next stage's declared input
			if err := alloc.claim(spec.Stages[i+1].PortIn); err != nil {
				return gateway, nil, err
			}
			out = spec.Stages[i+1].PortIn
		default:
			out = alloc.fresh()
		}

		wirings = append(wirings, wirePod(alloc, stage, proto.Endpoint{PortIn: in, PortOut: out}))
		prevOut = out
	}

	gateway.PortIn = prevOut
	return gateway, wirings, nil
}

// wirePod lays out one pod's internal ports. The group head's external
// port equals the group's advertised port; internal-facing ports are
// freshly allocated and not reused elsewhere. Degree-1 groups get no
// routing unit: the sole member inherits the group's endpoint.
func wirePod(alloc *allocator, stage *proto.StageSpec, external proto.Endpoint) pod.Wiring {
	w := pod.Wiring{External: external}

	replicaIn, replicaOut := external.PortIn, external.PortOut
	if stage.Replicas > 1 {
		headOut := alloc.fresh()
		tailIn := alloc.fresh()
		w.Head = &proto.Endpoint{PortIn: external.PortIn, PortOut: headOut}
		w.Tail = &proto.Endpoint{PortIn: tailIn, PortOut: external.PortOut}
		replicaIn, replicaOut = headOut, tailIn
	}

	w.Replicas = make([]pod.ReplicaWiring, 0, stage.Replicas)
	for r := 0; r < stage.Replicas; r++ {
		rw := pod.ReplicaWiring{External: proto.Endpoint{PortIn: replicaIn, PortOut: replicaOut}}
		workerIn, workerOut := replicaIn, replicaOut
		if stage.Shards > 1 {
			headOut := alloc.fresh()
			tailIn := alloc.fresh()
			rw.Head = &proto.Endpoint{PortIn: replicaIn, PortOut: headOut}
			rw.Tail = &proto.Endpoint{PortIn: tailIn, PortOut: replicaOut}
			workerIn, workerOut = headOut, tailIn
		}
		for s := 0; s < stage.Shards; s++ {
			rw.Workers = append(rw.Workers, proto.Endpoint{PortIn: workerIn, PortOut: workerOut})
		}
		w.Replicas = append(w.Replicas, rw)
	}
	return w
}
