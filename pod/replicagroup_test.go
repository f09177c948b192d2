package pod

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/executor"
	"github.com/flowpod/flowpod/proto"
)

// unitProbe answers searches with its replica index so tests can tell
// which member served a call.
const unitProbe = "unit_probe"

func init() {
	executor.Register(unitProbe, func(cfg executor.Config) (executor.Executor, error) {
		return &probeUnit{replica: cfg.Replica}, nil
	})
}

type probeUnit struct {
	replica int
}

func (p *probeUnit) Process(_ context.Context, req *proto.Request) (*proto.Response, error) {
	resp := &proto.Response{ReqID: req.ReqID}
	if req.Type == proto.RequestSearch {
		resp.Results = []*proto.Matches{{Matches: []*proto.Match{
			{ID: strconv.Itoa(p.replica), Score: float32(p.replica)},
		}}}
	}
	return resp, nil
}

func (p *probeUnit) Close() error { return nil }

func newProbeGroup(t *testing.T, replicas int) *ReplicaGroup {
	t.Helper()
	spec := proto.StageSpec{Name: "probe", Replicas: replicas, Shards: 1, Uses: unitProbe}

	wiring := Wiring{External: proto.Endpoint{PortIn: 100, PortOut: 101}}
	replicaIn, replicaOut := wiring.External.PortIn, wiring.External.PortOut
	if replicas > 1 {
		wiring.Head = &proto.Endpoint{PortIn: 100, PortOut: 102}
		wiring.Tail = &proto.Endpoint{PortIn: 103, PortOut: 101}
		replicaIn, replicaOut = 102, 103
	}

	members := make([]*Replica, 0, replicas)
	for i := 0; i < replicas; i++ {
		rw := ReplicaWiring{
			External: proto.Endpoint{PortIn: replicaIn, PortOut: replicaOut},
			Workers:  []proto.Endpoint{{PortIn: replicaIn, PortOut: replicaOut}},
		}
		wiring.Replicas = append(wiring.Replicas, rw)

		w, err := newWorker(spec, i, 0, rw.Workers[0], "")
		require.NoError(t, err)
		members = append(members, newReplica(i, rw, newShardGroup(spec.Name, rw, []*Worker{w}, nil)))
	}

	g := newReplicaGroup(spec.Name, wiring, members)
	g.Start()
	t.Cleanup(g.Stop)
	return g
}

func servedBy(t *testing.T, g *ReplicaGroup, calls int) map[string]int {
	t.Helper()
	served := make(map[string]int)
	for i := 0; i < calls; i++ {
		resp, err := g.Process(context.Background(), &proto.Request{
			ReqID: "q", Type: proto.RequestSearch, Docs: []*proto.Document{{ID: "d"}},
		})
		require.NoError(t, err)
		served[resp.Results[0].Matches[0].ID]++
	}
	return served
}

func TestReplicaGroupRoundRobin(t *testing.T) {
	g := newProbeGroup(t, 3)
	served := servedBy(t, g, 20)
	require.Len(t, served, 3)
	for replica, n := range served {
		require.Greater(t, n, 0, "replica %s starved", replica)
	}
}

func TestReplicaGroupExclusion(t *testing.T) {
	g := newProbeGroup(t, 3)

	g.exclude(0)
	served := servedBy(t, g, 12)
	require.Len(t, served, 2)
	require.NotContains(t, served, "0")

	g.include(0, g.replicaAt(0))
	served = servedBy(t, g, 12)
	require.Len(t, served, 3)
}

func TestReplicaGroupAllExcluded(t *testing.T) {
	g := newProbeGroup(t, 2)
	g.exclude(0)
	g.exclude(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Process(ctx, &proto.Request{ReqID: "q", Type: proto.RequestSearch})
	require.ErrorIs(t, err, apierrors.ErrNoAvailableReplica)

	// a member coming back unblocks waiting callers
	g.include(0, g.replicaAt(0))
	_, err = g.Process(context.Background(), &proto.Request{ReqID: "q", Type: proto.RequestSearch})
	require.NoError(t, err)
}

func TestReplicaGroupRoutingUnits(t *testing.T) {
	g := newProbeGroup(t, 2)
	require.NotNil(t, g.Head())
	require.NotNil(t, g.Tail())
	require.Equal(t, HeadRouting, g.Head().Kind())
	require.Equal(t, TailRouting, g.Tail().Kind())
	require.Len(t, g.Head().Members(), 2)

	solo := newProbeGroup(t, 1)
	require.Nil(t, solo.Head())
	require.Nil(t, solo.Tail())
}

func TestReplicaGroupRetriesQueries(t *testing.T) {
	g := newProbeGroup(t, 2)
	// stop one member behind the group's back: queries must still succeed
	g.replicaAt(0).Stop()

	served := servedBy(t, g, 10)
	require.Equal(t, map[string]int{"1": 10}, served)
}
