package pod

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	apierrors "github.com/flowpod/flowpod/errors"
	"github.com/flowpod/flowpod/metrics"
	"github.com/flowpod/flowpod/proto"
)

const selectRetryInterval = 10 * time.Millisecond

// memberView is an immutable snapshot of group membership. Selection
// reads the current view without locks; the rolling update orchestrator
// builds a new view per transition and swaps it atomically, so a
// selection never observes a half-updated member list.
type memberView struct {
	replicas []*Replica
	excluded []bool
}

func (v *memberView) clone() *memberView {
	n := &memberView{
		replicas: make([]*Replica, len(v.replicas)),
		excluded: make([]bool, len(v.excluded)),
	}
	copy(n.replicas, v.replicas)
	copy(n.excluded, v.excluded)
	return n
}

// ReplicaGroup holds R interchangeable replicas and selects exactly one
// of them for every incoming request.
type ReplicaGroup struct {
	podName  string
	endpoint proto.Endpoint
	head     *RoutingUnit
	tail     *RoutingUnit

	rr   uint32
	view atomic.Value // *memberView
	mu   sync.Mutex   // serializes view swaps
}

func newReplicaGroup(podName string, wiring Wiring, replicas []*Replica) *ReplicaGroup {
	g := &ReplicaGroup{
		podName:  podName,
		endpoint: wiring.External,
	}
	if len(replicas) > 1 {
		memberEndpoints := make([]proto.Endpoint, 0, len(replicas))
		for _, r := range replicas {
			memberEndpoints = append(memberEndpoints, r.Endpoint())
		}
		g.head = newRoutingUnit(HeadRouting, *wiring.Head, memberEndpoints)
		g.tail = newRoutingUnit(TailRouting, *wiring.Tail, memberEndpoints)
	}
	g.view.Store(&memberView{
		replicas: replicas,
		excluded: make([]bool, len(replicas)),
	})
	return g
}

func (g *ReplicaGroup) currentView() *memberView {
	return g.view.Load().(*memberView)
}

func (g *ReplicaGroup) Endpoint() proto.Endpoint { return g.endpoint }
func (g *ReplicaGroup) Head() *RoutingUnit       { return g.head }
func (g *ReplicaGroup) Tail() *RoutingUnit       { return g.tail }

func (g *ReplicaGroup) Size() int {
	return len(g.currentView().replicas)
}

// Replicas returns the current membership in replica-index order.
func (g *ReplicaGroup) Replicas() []*Replica {
	v := g.currentView()
	out := make([]*Replica, len(v.replicas))
	copy(out, v.replicas)
	return out
}

func (g *ReplicaGroup) Start() {
	for _, r := range g.currentView().replicas {
		r.Start()
	}
}

func (g *ReplicaGroup) Stop() {
	for _, r := range g.currentView().replicas {
		r.Stop()
	}
}

func (g *ReplicaGroup) Ready() bool {
	v := g.currentView()
	for i, r := range v.replicas {
		if v.excluded[i] {
			continue
		}
		if !r.Ready() {
			return false
		}
	}
	return true
}

// selectReplica picks the next ready, non-excluded replica round-robin.
// Replicas in skip were already tried for this call.
func (g *ReplicaGroup) selectReplica(skip map[int]struct{}) (*Replica, int, bool) {
	v := g.currentView()
	n := len(v.replicas)
	for i := 0; i < n; i++ {
		idx := int(atomic.AddUint32(&g.rr, 1)-1) % n
		if v.excluded[idx] {
			continue
		}
		if _, tried := skip[idx]; tried {
			continue
		}
		r := v.replicas[idx]
		if r == nil || !r.Ready() {
			continue
		}
		return r, idx, true
	}
	return nil, 0, false
}

// Process routes the request to exactly one replica. Queries are
// retry-safe and move on to another replica when the chosen one fails;
// writes are not retried. When every replica is momentarily excluded
// the call waits, bounded by the caller's context, so a request is
// never dropped just because an update is in progress.
func (g *ReplicaGroup) Process(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	retriable := req.Type == proto.RequestSearch
	var skip map[int]struct{}
	var lastErr error
	for {
		r, idx, ok := g.selectReplica(skip)
		if !ok {
			if len(skip) > 0 && len(skip) >= g.Size() {
				// every replica tried and failed
				return nil, lastErr
			}
			select {
			case <-time.After(selectRetryInterval):
				skip = nil
				continue
			case <-ctx.Done():
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, apierrors.ErrNoAvailableReplica
			}
		}

		metrics.ReplicaSelected.WithLabelValues(g.podName, strconv.Itoa(idx)).Inc()
		resp, err := r.Process(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		// a write that only reached a stopped replica applied nowhere,
		// routing it to another replica is safe
		if (!retriable && err != errWorkerStopped) || ctx.Err() != nil {
			return nil, err
		}
		if skip == nil {
			skip = make(map[int]struct{})
		}
		skip[idx] = struct{}{}
	}
}

// exclude takes replica i out of selection. In-flight requests on it
// are unaffected; no new request will reach it.
func (g *ReplicaGroup) exclude(i int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.currentView().clone()
	v.excluded[i] = true
	g.view.Store(v)
}

// include installs a (possibly replaced) replica at index i and returns
// it to selection.
func (g *ReplicaGroup) include(i int, r *Replica) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.currentView().clone()
	v.replicas[i] = r
	v.excluded[i] = false
	g.view.Store(v)
}

func (g *ReplicaGroup) replicaAt(i int) *Replica {
	return g.currentView().replicas[i]
}
