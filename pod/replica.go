package pod

import (
	"context"
	"sync/atomic"
	"time"

	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/proto"
)

const (
	drainPollInterval = 5 * time.Millisecond
	readyPollInterval = 10 * time.Millisecond
)

// Replica is one interchangeable instance of a pod's stage, wrapping
// exactly one shard group.
type Replica struct {
	index    int
	endpoint proto.Endpoint
	group    *ShardGroup

	inflight int64
}

func newReplica(index int, wiring ReplicaWiring, group *ShardGroup) *Replica {
	return &Replica{
		index:    index,
		endpoint: wiring.External,
		group:    group,
	}
}

func (r *Replica) Index() int               { return r.index }
func (r *Replica) Endpoint() proto.Endpoint { return r.endpoint }
func (r *Replica) ShardGroup() *ShardGroup  { return r.group }

func (r *Replica) Start() { r.group.Start() }
func (r *Replica) Stop()  { r.group.Stop() }

func (r *Replica) Ready() bool { return r.group.Ready() }

func (r *Replica) Process(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	atomic.AddInt64(&r.inflight, 1)
	defer atomic.AddInt64(&r.inflight, -1)
	return r.group.Process(ctx, req)
}

// drain waits for in-flight requests already routed here to complete.
// The caller must have excluded the replica from selection first.
func (r *Replica) drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		if atomic.LoadInt64(&r.inflight) == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// waitReady blocks until every worker of the replica reports ready, or
// the bounded timeout expires.
func (r *Replica) waitReady(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		if r.Ready() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-timer.C:
			return apierrors.ErrReplicaNotReady
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
