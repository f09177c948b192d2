package pod

import (
	"context"
	"fmt"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/flowpod/flowpod/proto"
)

// Aggregator merges the per-shard answers of a broadcast search into
// one response. Entries of resps follow shard order; a nil entry marks
// a shard that failed this call.
type Aggregator interface {
	Reduce(req *proto.Request, resps []*proto.Response) (*proto.Response, error)
}

// ShardGroup runs P parallel workers over disjoint data partitions.
// Every request is broadcast to all shards: live ingestion is
// partition-agnostic, shard ownership of persisted data is decided
// later by the snapshot partitioner.
type ShardGroup struct {
	stage    string
	endpoint proto.Endpoint
	head     *RoutingUnit
	tail     *RoutingUnit
	workers  []*Worker
	agg      Aggregator
}

func newShardGroup(stage string, wiring ReplicaWiring, workers []*Worker, agg Aggregator) *ShardGroup {
	g := &ShardGroup{
		stage:    stage,
		endpoint: wiring.External,
		workers:  workers,
		agg:      agg,
	}
	if len(workers) > 1 {
		memberEndpoints := make([]proto.Endpoint, 0, len(workers))
		for _, w := range workers {
			memberEndpoints = append(memberEndpoints, w.Endpoint())
		}
		g.head = newRoutingUnit(HeadRouting, *wiring.Head, memberEndpoints)
		g.tail = newRoutingUnit(TailRouting, *wiring.Tail, memberEndpoints)
	}
	return g
}

func (g *ShardGroup) Start() {
	for _, w := range g.workers {
		w.Start()
	}
}

func (g *ShardGroup) Stop() {
	for _, w := range g.workers {
		w.Stop()
	}
}

func (g *ShardGroup) Ready() bool {
	for _, w := range g.workers {
		if !w.Ready() {
			return false
		}
	}
	return true
}

func (g *ShardGroup) Endpoint() proto.Endpoint { return g.endpoint }
func (g *ShardGroup) Head() *RoutingUnit       { return g.head }
func (g *ShardGroup) Tail() *RoutingUnit       { return g.tail }
func (g *ShardGroup) Workers() []*Worker       { return g.workers }

func (g *ShardGroup) Process(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	// no routing hop for a degree-1 group
	if len(g.workers) == 1 {
		return g.workers[0].Process(ctx, req)
	}

	resps := make([]*proto.Response, len(g.workers))
	errs := make([]error, len(g.workers))
	var wg sync.WaitGroup
	wg.Add(len(g.workers))
	for i := range g.workers {
		i := i
		go func() {
			defer wg.Done()
			resps[i], errs[i] = g.workers[i].Process(ctx, req)
		}()
	}
	wg.Wait()

	if req.Type == proto.RequestSearch {
		return g.collectSearch(ctx, req, resps, errs)
	}
	return g.collectWrite(ctx, req, resps, errs)
}

// collectSearch merges whatever shards answered. A shard that timed out
// is excluded from this call only; the search fails only when no shard
// answered at all.
func (g *ShardGroup) collectSearch(ctx context.Context, req *proto.Request, resps []*proto.Response, errs []error) (*proto.Response, error) {
	span := trace.SpanFromContextSafe(ctx)

	answered := 0
	var firstErr error
	for i := range errs {
		if errs[i] != nil {
			span.Warnf("stage %s shard %d search failed: %s", g.stage, i, errs[i])
			resps[i] = nil
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		answered++
	}
	if answered == 0 {
		return nil, errors.Info(firstErr, fmt.Sprintf("all %d shards of stage %s failed", len(g.workers), g.stage))
	}
	return g.agg.Reduce(req, resps)
}

// collectWrite reports per-shard failures without rolling back the
// shards that succeeded. Broadcast writes are never retried per member.
func (g *ShardGroup) collectWrite(ctx context.Context, req *proto.Request, resps []*proto.Response, errs []error) (*proto.Response, error) {
	failed := make([]int, 0)
	stopped := 0
	var firstErr error
	for i := range errs {
		if errs[i] != nil {
			if errs[i] == errWorkerStopped {
				stopped++
			}
			if firstErr == nil {
				firstErr = errs[i]
			}
			failed = append(failed, i)
		}
	}
	if firstErr != nil {
		// any stopped worker means this replica is being replaced and
		// its state will be discarded, so the write is safe to retry on
		// another replica
		if stopped > 0 {
			return nil, errWorkerStopped
		}
		return nil, errors.Info(firstErr, fmt.Sprintf("write to stage %s failed on shards %v", g.stage, failed))
	}
	return &proto.Response{ReqID: req.ReqID}, nil
}
